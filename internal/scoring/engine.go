package scoring

import (
	"fmt"
	"math"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// UnavailableDebt marks a period the bureau did not report.
	UnavailableDebt = -1.0
	// UndefinedRatio is reported when the indebtedness ratio cannot be computed.
	UndefinedRatio = -314.0
)

// Engine turns a normalized report into a score with the logistic risk model
type Engine struct {
	coef *Coefficients
	log  *logrus.Logger
}

// NewEngine initializes a new score engine
func NewEngine(coef *Coefficients, log *logrus.Logger) *Engine {
	return &Engine{coef: coef, log: log}
}

// Coefficients returns the table the engine scores with
func (e *Engine) Coefficients() *Coefficients {
	return e.coef
}

// Score evaluates every feature, sums the weighted bins and maps the total
// onto 0..1000. The report must already have passed the rejection rules.
func (e *Engine) Score(report *models.NormalizedCreditReport) *models.ScoreResult {
	values := ResolveFeatures(report)

	total := e.coef.Intercept()
	contributions := make(map[string]float64, len(values))
	bins := make(map[string]float64, len(values))
	for _, v := range values {
		c := v.Bin * e.coef.Weight(v.Name)
		contributions[v.Name] = c
		bins[v.Name] = v.Bin
		total += c
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		panic(fmt.Sprintf("linear predictor is not finite: %v", total))
	}

	score := int(math.Round(1000 * logistic(total)))
	ratio := IndebtednessRatio(report)

	e.log.WithFields(logrus.Fields{
		"linear_predictor":   total,
		"score":              score,
		"indebtedness_ratio": ratio,
		"model_version":      e.coef.Version(),
	}).Debug("scored report")

	return &models.ScoreResult{
		Score:             &score,
		WorstRating:       models.WorstRating(report.Periods.Recent.Entities, report.Periods.Historical.Entities),
		IndebtednessRatio: ratio,
		LinearPredictor:   total,
		Contributions:     contributions,
		Metadata: models.ResultMetadata{
			SubjectID:    report.SubjectID,
			Provider:     report.Provider,
			ModelVersion: e.coef.Version(),
			Features:     bins,
		},
	}
}

// logistic is 1/(1+e^-t) without overflow for large |t|
func logistic(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	z := math.Exp(t)
	return z / (1 + z)
}

// PeriodDebt returns the period's total debt, or UnavailableDebt when it was not reported
func PeriodDebt(p models.Period) float64 {
	if !p.Reported() {
		return UnavailableDebt
	}
	return p.Aggregates.TotalDebt()
}

// IndebtednessRatio compares recent debt to historical debt: recent/historical - 1
func IndebtednessRatio(report *models.NormalizedCreditReport) float64 {
	recent := PeriodDebt(report.Periods.Recent)
	historical := PeriodDebt(report.Periods.Historical)
	if recent == UnavailableDebt || historical == UnavailableDebt || historical == 0 {
		return UndefinedRatio
	}
	return recent/historical - 1
}
