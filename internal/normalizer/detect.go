package normalizer

import (
	"encoding/json"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

// No provider sends a schema version, so the shape is inferred from marker
// fields. The checks run in this order and the first match wins.
var shapeChecks = []struct {
	shape   models.PayloadShape
	matches func(top map[string]json.RawMessage) bool
}{
	{models.ShapeEnvelope, hasEnvelopeSubject},
	{models.ShapeAggregate, hasAggregateAmounts},
	{models.ShapeLegacy, hasRubroList},
	{models.ShapeLegacy, hasPeriodos},
}

// DetectShape returns the payload shape of a raw provider body
func DetectShape(body []byte) (models.PayloadShape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", malformed("payload", err)
	}
	for _, c := range shapeChecks {
		if c.matches(top) {
			return c.shape, nil
		}
	}
	return "", &NormalizationError{Field: "payload", Reason: "unrecognized payload shape"}
}

// response.subject
func hasEnvelopeSubject(top map[string]json.RawMessage) bool {
	resp, ok := object(top["response"])
	if !ok {
		return false
	}
	_, ok = resp["subject"]
	return ok
}

// periods[].currentAmount
func hasAggregateAmounts(top map[string]json.RawMessage) bool {
	for _, p := range objects(top["periods"]) {
		if _, ok := p["currentAmount"]; ok {
			return true
		}
	}
	return false
}

// periodos[].entidades[].rubros
func hasRubroList(top map[string]json.RawMessage) bool {
	for _, p := range objects(top["periodos"]) {
		for _, e := range objects(p["entidades"]) {
			if _, ok := e["rubros"]; ok {
				return true
			}
		}
	}
	return false
}

// periodos is present as a list, even with no entities in it
func hasPeriodos(top map[string]json.RawMessage) bool {
	var list []json.RawMessage
	raw, ok := top["periodos"]
	return ok && json.Unmarshal(raw, &list) == nil && list != nil
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func objects(raw json.RawMessage) []map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]map[string]json.RawMessage, 0, len(list))
	for _, item := range list {
		if m, ok := object(item); ok {
			out = append(out, m)
		}
	}
	return out
}
