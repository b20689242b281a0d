package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/cache"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Data quality markers attached to scored results
const (
	QualityDeceased          = "deceased"
	QualitySynthesized       = "synthesized_entities"
	QualityHistoricalMissing = "historical_missing"
	QualityPeriodsIgnored    = "periods_ignored"
)

// Service runs the fetch, normalize, reject-check and score pipeline
type Service struct {
	fetcher    Fetcher
	normalizer Normalizer
	rules      RuleEvaluator
	scorer     Scorer
	cache      *cache.Cache
	log        *logrus.Logger
	now        func() time.Time
}

// NewService initializes a new service. fetcher and cache may be nil when only
// Evaluate is used.
func NewService(fetcher Fetcher, normalizer Normalizer, rules RuleEvaluator, scorer Scorer, c *cache.Cache, log *logrus.Logger) *Service {
	return &Service{
		fetcher:    fetcher,
		normalizer: normalizer,
		rules:      rules,
		scorer:     scorer,
		cache:      c,
		log:        log,
		now:        time.Now,
	}
}

// Score fetches and evaluates a subject through the score cache. Business
// rejections are returned as results; only a *normalizer.NormalizationError is
// returned as an error.
func (s *Service) Score(ctx context.Context, req cache.Request) (result *models.ScoreResult, err error) {
	requestID := uuid.NewString()
	logger := s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"provider":   req.Provider,
		"subject":    utils.MaskSubject(req.SubjectID),
	})
	defer func() {
		if r := recover(); r != nil {
			result, err = s.internalFailure(logger, req.Provider, req.SubjectID, r), nil
		}
		if result != nil {
			result.Metadata.RequestID = requestID
		}
	}()

	result, err = s.cache.Score(ctx, req, func(ctx context.Context) (*models.ScoreResult, error) {
		return s.fetchAndEvaluate(ctx, logger, req)
	})
	if err != nil {
		logger.Warnf("Failed to normalize bureau payload: %v", err)
		return nil, err
	}
	if !req.Debug {
		result.Metadata.Features = nil
	}
	logResult(logger, result)
	return result, nil
}

func (s *Service) fetchAndEvaluate(ctx context.Context, logger *logrus.Entry, req cache.Request) (result *models.ScoreResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = s.internalFailure(logger, req.Provider, req.SubjectID, r), nil
		}
	}()
	outcome := s.fetcher.Fetch(ctx, req.Provider, req.SubjectID, req.Debug)
	return s.evaluate(req.Provider, req.SubjectID, outcome)
}

// Evaluate runs the pipeline on an upstream outcome that was already obtained.
// It does not use the cache and never panics.
func (s *Service) Evaluate(provider models.Provider, subjectID string, outcome models.UpstreamOutcome) (result *models.ScoreResult, err error) {
	logger := s.log.WithFields(logrus.Fields{"provider": provider, "subject": utils.MaskSubject(subjectID)})
	defer func() {
		if r := recover(); r != nil {
			result, err = s.internalFailure(logger, provider, subjectID, r), nil
		}
	}()
	return s.evaluate(provider, subjectID, outcome)
}

func (s *Service) evaluate(provider models.Provider, subjectID string, outcome models.UpstreamOutcome) (*models.ScoreResult, error) {
	if rej := s.rules.EvaluateTransport(outcome); rej != nil {
		return s.stamp(models.Rejected(rej), provider, subjectID), nil
	}

	report, err := s.normalizer.Normalize(provider, outcome.Body)
	if err != nil {
		return nil, err
	}
	if subjectID == "" {
		subjectID = report.SubjectID
	}

	if rej := s.rules.Evaluate(report); rej != nil {
		return s.stamp(models.Rejected(rej), provider, subjectID), nil
	}

	result := s.scorer.Score(report)
	result.Metadata.DataQuality = dataQuality(report)
	return s.stamp(result, provider, subjectID), nil
}

func (s *Service) stamp(result *models.ScoreResult, provider models.Provider, subjectID string) *models.ScoreResult {
	result.Metadata.Provider = provider
	result.Metadata.SubjectID = subjectID
	result.Metadata.ComputedAt = s.now().UTC()
	return result
}

func (s *Service) internalFailure(logger *logrus.Entry, provider models.Provider, subjectID string, r interface{}) *models.ScoreResult {
	logger.WithField("stack", string(debug.Stack())).Errorf("Scoring pipeline failed: %v", r)
	zero := 0
	return s.stamp(&models.ScoreResult{
		Score: &zero,
		Rejection: &models.RejectionResult{
			Code:   models.RejectInternalFailure,
			Detail: fmt.Sprintf("internal scoring failure: %v", r),
		},
	}, provider, subjectID)
}

func dataQuality(report *models.NormalizedCreditReport) []string {
	var q []string
	if report.Flags.IsDeceased {
		q = append(q, QualityDeceased)
	}
	if report.Metadata.Synthesized {
		q = append(q, QualitySynthesized)
	}
	if report.Periods.Historical.Status == models.PeriodMissing {
		q = append(q, QualityHistoricalMissing)
	}
	if report.Metadata.PeriodsIgnored > 0 {
		q = append(q, QualityPeriodsIgnored)
	}
	return q
}

func logResult(logger *logrus.Entry, result *models.ScoreResult) {
	fields := logrus.Fields{"from_cache": result.Metadata.FromCache}
	if result.Score != nil {
		fields["score"] = *result.Score
	}
	if result.Rejection != nil {
		fields["rejection"] = result.Rejection.Code
		fields["status"] = result.Rejection.Status
	}
	logger.WithFields(fields).Info("Score evaluated")
}
