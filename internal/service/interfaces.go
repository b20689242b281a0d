package service

import (
	"context"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks -source=interfaces.go

// Fetcher retrieves the raw bureau response for a subject
type Fetcher interface {
	Fetch(ctx context.Context, provider models.Provider, subjectID string, debug bool) models.UpstreamOutcome
}

// Normalizer turns a raw payload into the canonical report
type Normalizer interface {
	Normalize(provider models.Provider, body []byte) (*models.NormalizedCreditReport, error)
}

// RuleEvaluator decides whether scoring is skipped
type RuleEvaluator interface {
	EvaluateTransport(o models.UpstreamOutcome) *models.RejectionResult
	Evaluate(report *models.NormalizedCreditReport) *models.RejectionResult
}

// Scorer computes the score of a report that passed the rules
type Scorer interface {
	Score(report *models.NormalizedCreditReport) *models.ScoreResult
}
