package normalizer

import (
	"sort"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/sirupsen/logrus"
)

// Normalizer converts raw provider payloads into the canonical credit report
type Normalizer struct {
	log *logrus.Logger
}

// NewNormalizer initializes a new normalizer
func NewNormalizer(log *logrus.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize detects the payload shape, decodes it and assembles the canonical report.
// It fails with *NormalizationError when the subject or every period is absent.
func (n *Normalizer) Normalize(provider models.Provider, body []byte) (*models.NormalizedCreditReport, error) {
	shape, err := DetectShape(body)
	if err != nil {
		return nil, err
	}
	p, err := decode(shape, body)
	if err != nil {
		return nil, err
	}
	report, err := assemble(provider, shape, p.raw())
	if err != nil {
		return nil, err
	}
	n.log.WithFields(logrus.Fields{
		"provider":    provider,
		"shape":       shape,
		"synthesized": report.Metadata.Synthesized,
		"deceased":    report.Flags.IsDeceased,
	}).Debug("normalized bureau payload")
	return report, nil
}

func assemble(provider models.Provider, shape models.PayloadShape, raw rawReport) (*models.NormalizedCreditReport, error) {
	if raw.subjectID == "" {
		return nil, missing("subject")
	}
	report := &models.NormalizedCreditReport{
		Provider:  provider,
		SubjectID: raw.subjectID,
		Metadata: models.ReportMetadata{
			Shape:       shape,
			SubjectName: raw.subjectName,
		},
	}
	if raw.deceased {
		report.Flags.IsDeceased = true
		report.Periods = models.Periods{Recent: models.EmptyPeriod(), Historical: models.EmptyPeriod()}
		return report, nil
	}
	if len(raw.periods) == 0 {
		return nil, missing("periods")
	}

	periods := orderPeriods(raw.periods)
	report.Periods.Recent = buildPeriod(periods[0])
	report.Metadata.RecentDate = periods[0].date
	report.Periods.Historical = models.UnavailablePeriod(models.PeriodMissing)
	if len(periods) > 1 {
		report.Periods.Historical = buildPeriod(periods[1])
		report.Metadata.HistoricalDate = periods[1].date
		report.Metadata.PeriodsIgnored = len(periods) - 2
	}

	for _, rp := range periods[:min(2, len(periods))] {
		if len(rp.synthesized) > 0 && !rp.noRecord {
			report.Metadata.Synthesized = true
			report.Metadata.SynthesizedEntities = append(report.Metadata.SynthesizedEntities, rp.synthesized...)
		}
	}
	_, report.Flags.HasRejectableRating = models.WorstRejectable(report.Periods.Recent.Entities)
	return report, nil
}

// orderPeriods sorts dated periods newest first. Undated periods follow them in provider order.
func orderPeriods(periods []rawPeriod) []rawPeriod {
	out := append([]rawPeriod(nil), periods...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].date, out[j].date
		return a != "" && (b == "" || a > b)
	})
	return out
}

func buildPeriod(rp rawPeriod) models.Period {
	if rp.noRecord {
		return models.UnavailablePeriod(models.PeriodNoRecord)
	}
	p := models.EmptyPeriod()
	if rp.entities != nil {
		p.Entities = rp.entities
	}
	if rp.totals != nil {
		p.Aggregates = *rp.totals
	} else {
		p.Aggregates = sumEntities(p.Entities)
	}
	p.Totals = []models.CategoryTotal{
		{Kind: models.CategoryCurrent, Amounts: p.Aggregates.Current},
		{Kind: models.CategoryOverdue, Amounts: p.Aggregates.Overdue},
		{Kind: models.CategoryChargedOff, Amounts: p.Aggregates.ChargedOff},
		{Kind: models.CategoryContingent, Amounts: p.Aggregates.Contingent},
	}
	return p
}

func sumEntities(entities []models.Entity) models.AggregateSummary {
	agg := models.AggregateSummary{EntityCount: len(entities)}
	for _, e := range entities {
		for _, c := range e.Categories {
			switch c.Kind {
			case models.CategoryCurrent:
				agg.Current = agg.Current.Add(c.Amounts)
			case models.CategoryOverdue:
				agg.Overdue = agg.Overdue.Add(c.Amounts)
			case models.CategoryChargedOff:
				agg.ChargedOff = agg.ChargedOff.Add(c.Amounts)
			case models.CategoryContingent:
				agg.Contingent = agg.Contingent.Add(c.Amounts)
			}
		}
	}
	return agg
}
