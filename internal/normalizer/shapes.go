package normalizer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

// payload is implemented by every known provider shape. Each one reduces
// itself to a rawReport; assembly into the canonical report is shared.
type payload interface {
	raw() rawReport
}

type rawReport struct {
	subjectID   string
	subjectName string
	deceased    bool
	periods     []rawPeriod
}

type rawPeriod struct {
	date     string
	noRecord bool
	entities []models.Entity
	// totals overrides the entity sums when the provider sends period aggregates.
	totals      *models.AggregateSummary
	synthesized []string
}

func decode(shape models.PayloadShape, body []byte) (payload, error) {
	switch shape {
	case models.ShapeLegacy:
		var p legacyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, malformed("payload", err)
		}
		return &p, nil
	case models.ShapeAggregate:
		var p aggregatePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, malformed("payload", err)
		}
		return &p, nil
	case models.ShapeEnvelope:
		var p envelopePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, malformed("payload", err)
		}
		return &p, nil
	default:
		return nil, &NormalizationError{Field: "payload", Reason: "unsupported shape " + string(shape)}
	}
}

// text decodes a JSON string or number into a trimmed string
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = text(n.String())
		return nil
	}
	*t = ""
	return nil
}

// Legacy field-per-entity shape from the registry itself.

type legacyPayload struct {
	Documento text           `json:"documento"`
	Nombre    string         `json:"nombre"`
	Fallecido flag           `json:"fallecido"`
	Periodos  []legacyPeriod `json:"periodos"`
}

type legacyPeriod struct {
	Fecha     string         `json:"fecha"`
	SinDatos  flag           `json:"sinDatos"`
	Entidades []legacyEntity `json:"entidades"`
}

type legacyEntity struct {
	Entidad      string        `json:"entidad"`
	Calificacion string        `json:"calificacion"`
	Rubros       []legacyRubro `json:"rubros"`
}

type legacyRubro struct {
	Rubro string `json:"rubro"`
	MN    amount `json:"mn"`
	ME    amount `json:"me"`
}

var rubroKinds = map[string]models.CategoryKind{
	"VIGENTE":       models.CategoryCurrent,
	"VENCIDO":       models.CategoryOverdue,
	"CASTIGADO":     models.CategoryChargedOff,
	"CONTINGENCIAS": models.CategoryContingent,
}

func (p *legacyPayload) raw() rawReport {
	out := rawReport{
		subjectID:   string(p.Documento),
		subjectName: strings.TrimSpace(p.Nombre),
		deceased:    bool(p.Fallecido),
	}
	for _, per := range p.Periodos {
		rp := rawPeriod{date: strings.TrimSpace(per.Fecha), noRecord: bool(per.SinDatos)}
		for _, ent := range per.Entidades {
			var cats []models.Category
			for _, r := range ent.Rubros {
				kind, ok := rubroKinds[strings.ToUpper(strings.TrimSpace(r.Rubro))]
				if !ok {
					continue
				}
				cats = append(cats, models.Category{Kind: kind, Amounts: models.NewMoney(r.MN.decimal(), r.ME.decimal())})
			}
			rp.entities = append(rp.entities, newEntity(ent.Entidad, ent.Calificacion, cats))
		}
		out.periods = append(out.periods, rp)
	}
	return out
}

// Aggregate-totals shape: category totals per period plus a flat institution list.

type aggregatePayload struct {
	SubjectID   text              `json:"subjectId"`
	DisplayName string            `json:"displayName"`
	Deceased    flag              `json:"deceased"`
	Periods     []aggregatePeriod `json:"periods"`
}

type aggregatePeriod struct {
	Date             string                 `json:"date"`
	NoRecord         flag                   `json:"noRecord"`
	CurrentAmount    string                 `json:"currentAmount"`
	OverdueAmount    string                 `json:"overdueAmount"`
	ChargedOffAmount string                 `json:"chargedOffAmount"`
	ContingentAmount string                 `json:"contingentAmount"`
	Institutions     []aggregateInstitution `json:"institutions"`
}

// aggregateInstitution accepts either a bare name or {name, rating}
type aggregateInstitution struct {
	Name   string `json:"name"`
	Rating string `json:"rating"`
}

func (a *aggregateInstitution) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		a.Name = name
		return nil
	}
	type plain aggregateInstitution
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = aggregateInstitution(v)
	return nil
}

func (p *aggregatePayload) raw() rawReport {
	out := rawReport{
		subjectID:   string(p.SubjectID),
		subjectName: strings.TrimSpace(p.DisplayName),
		deceased:    bool(p.Deceased),
	}
	for _, per := range p.Periods {
		totals := models.AggregateSummary{
			Current:     ParseMoneyString(per.CurrentAmount),
			Overdue:     ParseMoneyString(per.OverdueAmount),
			ChargedOff:  ParseMoneyString(per.ChargedOffAmount),
			Contingent:  ParseMoneyString(per.ContingentAmount),
			EntityCount: len(per.Institutions),
		}
		cats := []models.Category{
			{Kind: models.CategoryCurrent, Amounts: totals.Current},
			{Kind: models.CategoryOverdue, Amounts: totals.Overdue},
			{Kind: models.CategoryChargedOff, Amounts: totals.ChargedOff},
			{Kind: models.CategoryContingent, Amounts: totals.Contingent},
		}
		rp := rawPeriod{date: strings.TrimSpace(per.Date), noRecord: bool(per.NoRecord), totals: &totals}
		// No per-institution breakdown exists: every institution carries the period totals.
		for _, inst := range per.Institutions {
			e := newEntity(inst.Name, inst.Rating, cats)
			rp.entities = append(rp.entities, e)
			rp.synthesized = append(rp.synthesized, e.Name)
		}
		out.periods = append(out.periods, rp)
	}
	return out
}

// Nested envelope shape from the risk-scoring proxy.

type envelopePayload struct {
	RequestID string           `json:"requestId"`
	Response  envelopeResponse `json:"response"`
}

type envelopeResponse struct {
	Subject   envelopeSubject    `json:"subject"`
	Snapshots []envelopeSnapshot `json:"snapshots"`
}

type envelopeSubject struct {
	Document text   `json:"document"`
	FullName string `json:"fullName"`
	Deceased flag   `json:"deceased"`
}

type envelopeSnapshot struct {
	Period string         `json:"period"`
	Status string         `json:"status"`
	Debts  []envelopeDebt `json:"debts"`
}

type envelopeDebt struct {
	Institution string           `json:"institution"`
	Rating      string           `json:"rating"`
	Balances    envelopeBalances `json:"balances"`
}

type envelopeBalances struct {
	Current    envelopeMoney `json:"current"`
	Overdue    envelopeMoney `json:"overdue"`
	ChargedOff envelopeMoney `json:"chargedOff"`
	Contingent envelopeMoney `json:"contingent"`
}

type envelopeMoney struct {
	Local   amount `json:"local"`
	Foreign amount `json:"foreign"`
}

func (m envelopeMoney) money() models.Money {
	return models.NewMoney(m.Local.decimal(), m.Foreign.decimal())
}

func (p *envelopePayload) raw() rawReport {
	subj := p.Response.Subject
	out := rawReport{
		subjectID:   string(subj.Document),
		subjectName: strings.TrimSpace(subj.FullName),
		deceased:    bool(subj.Deceased),
	}
	for _, snap := range p.Response.Snapshots {
		rp := rawPeriod{
			date:     strings.TrimSpace(snap.Period),
			noRecord: strings.EqualFold(strings.TrimSpace(snap.Status), "NO_RECORD"),
		}
		for _, d := range snap.Debts {
			cats := []models.Category{
				{Kind: models.CategoryCurrent, Amounts: d.Balances.Current.money()},
				{Kind: models.CategoryOverdue, Amounts: d.Balances.Overdue.money()},
				{Kind: models.CategoryChargedOff, Amounts: d.Balances.ChargedOff.money()},
				{Kind: models.CategoryContingent, Amounts: d.Balances.Contingent.money()},
			}
			rp.entities = append(rp.entities, newEntity(d.Institution, d.Rating, cats))
		}
		out.periods = append(out.periods, rp)
	}
	return out
}

// newEntity drops zero-amount lines, sums the remaining ones per kind and
// orders them by kind so every shape yields the same category list
func newEntity(name, rating string, cats []models.Category) models.Entity {
	e := models.Entity{
		Name:       strings.TrimSpace(name),
		Rating:     models.ParseRating(rating),
		Categories: []models.Category{},
	}
	for _, c := range cats {
		if c.Amounts.IsZero() {
			continue
		}
		e.Categories = append(e.Categories, c)
		switch c.Kind {
		case models.CategoryCurrent:
			e.Current = e.Current.Add(c.Amounts)
		case models.CategoryOverdue:
			e.Overdue = e.Overdue.Add(c.Amounts)
		case models.CategoryChargedOff:
			e.ChargedOff = e.ChargedOff.Add(c.Amounts)
		}
	}
	sort.SliceStable(e.Categories, func(i, j int) bool {
		return kindOrder[e.Categories[i].Kind] < kindOrder[e.Categories[j].Kind]
	})
	return e
}

// kindOrder ranks category kinds in reporting order
var kindOrder = func() map[models.CategoryKind]int {
	m := make(map[models.CategoryKind]int, len(models.CategoryKinds))
	for i, k := range models.CategoryKinds {
		m[k] = i
	}
	return m
}()
