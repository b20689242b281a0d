package models

import "fmt"

// Provider identifies the bureau a report was pulled from
type Provider string

const (
	ProviderEquifax   Provider = "equifax"
	ProviderBCU       Provider = "bcu"
	ProviderRiskProxy Provider = "riskproxy"
)

// ParseProvider validates a provider identifier
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderEquifax, ProviderBCU, ProviderRiskProxy:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// CategoryKind classifies the status of a debt (rubro)
type CategoryKind string

const (
	CategoryCurrent    CategoryKind = "CURRENT"
	CategoryOverdue    CategoryKind = "OVERDUE"
	CategoryChargedOff CategoryKind = "CHARGED_OFF"
	CategoryContingent CategoryKind = "CONTINGENT"
)

// CategoryKinds lists every kind in reporting order
var CategoryKinds = []CategoryKind{CategoryCurrent, CategoryOverdue, CategoryChargedOff, CategoryContingent}

// Category is one debt line of an entity
type Category struct {
	Kind    CategoryKind `json:"kind"`
	Amounts Money        `json:"amounts"`
}

// CategoryTotal is the sum of a category kind over a period
type CategoryTotal struct {
	Kind    CategoryKind `json:"kind"`
	Amounts Money        `json:"amounts"`
}

// Entity is a credit-granting institution as seen in one period
type Entity struct {
	Name       string     `json:"name"`
	Rating     Rating     `json:"rating"`
	Current    Money      `json:"current"`
	Overdue    Money      `json:"overdue"`
	ChargedOff Money      `json:"charged_off"`
	Categories []Category `json:"categories"`
}

// HasCategory reports whether the entity carries a line of the given kind
func (e Entity) HasCategory(kind CategoryKind) bool {
	for _, c := range e.Categories {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// AggregateSummary holds period-level sums
type AggregateSummary struct {
	Current     Money `json:"current"`
	Overdue     Money `json:"overdue"`
	ChargedOff  Money `json:"charged_off"`
	Contingent  Money `json:"contingent"`
	EntityCount int   `json:"entity_count"`
}

// TotalDebt is current plus overdue plus charged-off, local and foreign combined
func (a AggregateSummary) TotalDebt() float64 {
	return a.Current.Add(a.Overdue).Add(a.ChargedOff).Total()
}

// PeriodStatus tells whether the bureau reported data for a snapshot
type PeriodStatus string

const (
	PeriodReported PeriodStatus = "REPORTED"
	PeriodNoRecord PeriodStatus = "NO_RECORD"
	PeriodMissing  PeriodStatus = "MISSING"
)

// Period is one bureau snapshot
type Period struct {
	Status     PeriodStatus     `json:"status"`
	Entities   []Entity         `json:"entities"`
	Totals     []CategoryTotal  `json:"totals"`
	Aggregates AggregateSummary `json:"aggregates"`
}

// Reported reports whether the bureau supplied data for the period
func (p Period) Reported() bool {
	return p.Status == PeriodReported
}

// EmptyPeriod returns the canonical empty period: no entities and zero aggregates
func EmptyPeriod() Period {
	return Period{
		Status:   PeriodReported,
		Entities: []Entity{},
		Totals:   zeroTotals(),
	}
}

// UnavailablePeriod returns an empty period with the given status
func UnavailablePeriod(status PeriodStatus) Period {
	p := EmptyPeriod()
	p.Status = status
	return p
}

func zeroTotals() []CategoryTotal {
	totals := make([]CategoryTotal, len(CategoryKinds))
	for i, k := range CategoryKinds {
		totals[i] = CategoryTotal{Kind: k}
	}
	return totals
}

// Periods groups the two snapshots used for scoring
type Periods struct {
	Recent     Period `json:"recent"`
	Historical Period `json:"historical"`
}

// ReportFlags are subject-level conditions raised by the bureau or the normalizer
type ReportFlags struct {
	IsDeceased          bool `json:"is_deceased"`
	HasRejectableRating bool `json:"has_rejectable_rating"`
}

// PayloadShape names a known provider response layout
type PayloadShape string

const (
	ShapeLegacy    PayloadShape = "legacy"
	ShapeAggregate PayloadShape = "aggregate"
	ShapeEnvelope  PayloadShape = "envelope"
)

// ReportMetadata describes how a report was built
type ReportMetadata struct {
	Shape               PayloadShape `json:"shape"`
	SubjectName         string       `json:"subject_name,omitempty"`
	RecentDate          string       `json:"recent_date,omitempty"`
	HistoricalDate      string       `json:"historical_date,omitempty"`
	Synthesized         bool         `json:"synthesized"`
	SynthesizedEntities []string     `json:"synthesized_entities,omitempty"`
	PeriodsIgnored      int          `json:"periods_ignored,omitempty"`
}

// NormalizedCreditReport is the canonical bureau report. It is not mutated once built.
type NormalizedCreditReport struct {
	Provider  Provider       `json:"provider"`
	SubjectID string         `json:"subject_id"`
	Periods   Periods        `json:"periods"`
	Flags     ReportFlags    `json:"flags"`
	Metadata  ReportMetadata `json:"metadata"`
}
