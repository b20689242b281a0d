package scoring

import (
	"strings"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

// accumulation says how repeated matches within one scan combine
type accumulation int

const (
	// lockOnce keeps the first matching bin; later matches are ignored.
	lockOnce accumulation = iota
	// lastMatchWins lets every match overwrite the previous bin.
	lastMatchWins
)

func (a accumulation) String() string {
	if a == lockOnce {
		return "lock-once"
	}
	return "last-match-wins"
}

// binFold is the running state of a feature scan
type binFold struct {
	value  float64
	locked bool
}

func (f binFold) step(mode accumulation, bin float64) binFold {
	if f.locked {
		return f
	}
	if mode == lockOnce {
		return binFold{value: bin, locked: true}
	}
	return binFold{value: bin}
}

type periodScope int

const (
	scopeRecent periodScope = iota
	scopeHistorical
	scopeBoth
)

func (s periodScope) entities(r *models.NormalizedCreditReport) []models.Entity {
	switch s {
	case scopeRecent:
		return r.Periods.Recent.Entities
	case scopeHistorical:
		return r.Periods.Historical.Entities
	}
	out := make([]models.Entity, 0, len(r.Periods.Recent.Entities)+len(r.Periods.Historical.Entities))
	out = append(out, r.Periods.Recent.Entities...)
	return append(out, r.Periods.Historical.Entities...)
}

// feature is either a scan folded entity by entity or a value derived from the whole report
type feature struct {
	name     string
	baseline float64
	mode     accumulation
	scope    periodScope
	match    func(e models.Entity, m Match) (float64, bool)
	derive   func(r *models.NormalizedCreditReport) float64
}

func (f feature) resolve(r *models.NormalizedCreditReport) float64 {
	if f.derive != nil {
		return f.derive(r)
	}
	acc := binFold{value: f.baseline}
	for _, e := range f.scope.entities(r) {
		if bin, ok := f.match(e, LookupInstitution(e.Name)); ok {
			acc = acc.step(f.mode, bin)
		}
	}
	return acc.value
}

// Thresholds on current debt at tier-one banks, local plus foreign.
const (
	indebtednessHighTier = 150000
	indebtednessMidTier  = 30000
)

// features is the model's feature list; the order is also the summation order.
var features = []feature{
	{
		name:   "hist_entity_count",
		derive: func(r *models.NormalizedCreditReport) float64 { return countBucket(len(r.Periods.Historical.Entities)) },
	},
	{
		name:   "recent_entity_count",
		derive: func(r *models.NormalizedCreditReport) float64 { return countBucket(len(r.Periods.Recent.Entities)) },
	},
	{
		name:  "scotia_rating",
		mode:  lockOnce,
		scope: scopeRecent,
		match: func(e models.Entity, m Match) (float64, bool) {
			if !m.Is("scotiabank") {
				return 0, false
			}
			switch e.Rating {
			case models.Rating1A, models.Rating1B:
				return 1, true
			case models.Rating1C:
				return 0.5, true
			}
			return 0, true
		},
	},
	{
		name:  "tier_one_bank",
		mode:  lockOnce,
		scope: scopeRecent,
		match: func(_ models.Entity, m Match) (float64, bool) { return 1, m.Has(TagTierOne) },
	},
	{
		name:  "brou_rating",
		mode:  lastMatchWins,
		scope: scopeRecent,
		match: func(e models.Entity, m Match) (float64, bool) {
			if !m.Is("brou") {
				return 0, false
			}
			switch e.Rating {
			case models.Rating1A:
				return 2, true
			case models.Rating1B, models.Rating1C:
				return 1, true
			}
			return -1, true
		},
	},
	{
		name:  "santander_rating",
		mode:  lastMatchWins,
		scope: scopeRecent,
		match: func(e models.Entity, m Match) (float64, bool) {
			if !m.Is("santander") {
				return 0, false
			}
			switch e.Rating {
			case models.Rating1A:
				return 1, true
			case models.Rating1B, models.Rating1C:
				return 0.5, true
			}
			return 0, true
		},
	},
	{
		name:  "coop_contingent",
		mode:  lockOnce,
		scope: scopeBoth,
		match: func(e models.Entity, m Match) (float64, bool) {
			return 1, m.Has(TagCooperative) && e.HasCategory(models.CategoryContingent)
		},
	},
	{
		name: "consumer_finance_count",
		derive: func(r *models.NormalizedCreditReport) float64 {
			n := 0
			for _, e := range r.Periods.Recent.Entities {
				if LookupInstitution(e.Name).Has(TagConsumerFinance) {
					n++
				}
			}
			return smallCountBucket(n)
		},
	},
	{
		name:  "card_issuer",
		mode:  lockOnce,
		scope: scopeRecent,
		match: func(_ models.Entity, m Match) (float64, bool) { return 1, m.Has(TagCardIssuer) },
	},
	{
		name:     "hist_rating_quality",
		baseline: 0.5,
		mode:     lockOnce,
		scope:    scopeHistorical,
		match: func(e models.Entity, _ Match) (float64, bool) {
			if !e.Rating.Ranked() {
				return 0, false
			}
			switch e.Rating {
			case models.Rating1A, models.Rating1B:
				return 1, true
			case models.Rating1C, models.Rating2A:
				return 0, true
			}
			return -1, true
		},
	},
	{
		name: "recent_worst_rating",
		derive: func(r *models.NormalizedCreditReport) float64 {
			switch models.WorstRating(r.Periods.Recent.Entities) {
			case models.Rating1A, models.RatingNone:
				return 0
			case models.Rating1B, models.Rating1C:
				return 1
			case models.Rating2A:
				return 2
			}
			return 3
		},
	},
	{
		name:  "recent_overdue",
		mode:  lockOnce,
		scope: scopeRecent,
		match: func(e models.Entity, _ Match) (float64, bool) { return 1, e.Overdue.Total() > 0 },
	},
	{
		name:  "hist_charged_off",
		mode:  lockOnce,
		scope: scopeHistorical,
		match: func(e models.Entity, _ Match) (float64, bool) { return 1, e.ChargedOff.Total() > 0 },
	},
	{
		name:  "indebtedness_tier",
		mode:  lastMatchWins,
		scope: scopeRecent,
		match: func(e models.Entity, m Match) (float64, bool) {
			if !m.Has(TagTierOne) {
				return 0, false
			}
			switch debt := e.Current.Total(); {
			case debt > indebtednessHighTier:
				return 2, true
			case debt > indebtednessMidTier:
				return 1, true
			}
			return 0, true
		},
	},
	{
		name: "new_entities",
		derive: func(r *models.NormalizedCreditReport) float64 {
			if !r.Periods.Historical.Reported() {
				return 0
			}
			seen := make(map[string]bool, len(r.Periods.Historical.Entities))
			for _, e := range r.Periods.Historical.Entities {
				seen[nameKey(e.Name)] = true
			}
			added := make(map[string]bool)
			for _, e := range r.Periods.Recent.Entities {
				if k := nameKey(e.Name); !seen[k] {
					added[k] = true
				}
			}
			return smallCountBucket(len(added))
		},
	},
	{
		name:  "foreign_debt",
		mode:  lockOnce,
		scope: scopeRecent,
		match: func(e models.Entity, _ Match) (float64, bool) {
			return 1, e.Current.Foreign > 0 || e.Overdue.Foreign > 0 || e.ChargedOff.Foreign > 0
		},
	},
	{
		name:  "consumer_finance_rating",
		mode:  lastMatchWins,
		scope: scopeRecent,
		match: func(e models.Entity, m Match) (float64, bool) {
			if !m.Has(TagConsumerFinance) {
				return 0, false
			}
			switch e.Rating {
			case models.Rating1A:
				return 1, true
			case models.Rating1B, models.Rating1C:
				return 0, true
			}
			return -1, true
		},
	},
}

// FeatureNames returns the feature names in summation order
func FeatureNames() []string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.name
	}
	return names
}

// FeatureValue is a resolved bin for one feature
type FeatureValue struct {
	Name string
	Bin  float64
}

// ResolveFeatures evaluates every feature against a report
func ResolveFeatures(r *models.NormalizedCreditReport) []FeatureValue {
	out := make([]FeatureValue, len(features))
	for i, f := range features {
		out[i] = FeatureValue{Name: f.name, Bin: f.resolve(r)}
	}
	return out
}

// countBucket: 0, 1, 2-3, 4+
func countBucket(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	case n <= 3:
		return 2
	}
	return 3
}

// smallCountBucket: 0, 1, 2+
func smallCountBucket(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	}
	return 2
}

func nameKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
