package models

import "time"

// RejectionCode names a short-circuit outcome
type RejectionCode string

const (
	RejectTransportError  RejectionCode = "TRANSPORT_ERROR"
	RejectNoData          RejectionCode = "NO_DATA"
	RejectDeceased        RejectionCode = "DECEASED"
	RejectBadRating       RejectionCode = "BAD_RATING"
	RejectInternalFailure RejectionCode = "INTERNAL_FAILURE"
)

// Cacheable reports whether an outcome with this code may be served from cache
func (c RejectionCode) Cacheable() bool {
	switch c {
	case RejectNoData, RejectDeceased, RejectBadRating:
		return true
	}
	return false
}

// RejectionResult explains why scoring was skipped
type RejectionResult struct {
	Code               RejectionCode `json:"code"`
	Detail             string        `json:"detail,omitempty"`
	SubjectDisplayName string        `json:"subject_display_name,omitempty"`
	Rating             Rating        `json:"rating,omitempty"`
	Status             int           `json:"status,omitempty"` // originating HTTP status for transport errors
	Reason             string        `json:"reason,omitempty"`
}

// ResultMetadata carries request bookkeeping that is not part of the score itself
type ResultMetadata struct {
	RequestID    string             `json:"request_id"`
	SubjectID    string             `json:"subject_id"`
	Provider     Provider           `json:"provider"`
	FromCache    bool               `json:"from_cache"`
	ComputedAt   time.Time          `json:"computed_at"`
	ModelVersion string             `json:"model_version,omitempty"`
	Features     map[string]float64 `json:"features,omitempty"`
	DataQuality  []string           `json:"data_quality,omitempty"`
}

// ScoreResult is the outcome of one evaluation. Exactly one of Score and Rejection
// is set, except INTERNAL_FAILURE which carries a zero score and the rejection.
type ScoreResult struct {
	Score             *int               `json:"score"`
	WorstRating       Rating             `json:"worst_rating,omitempty"`
	IndebtednessRatio float64            `json:"indebtedness_ratio"`
	LinearPredictor   float64            `json:"linear_predictor,omitempty"`
	Contributions     map[string]float64 `json:"contributions,omitempty"`
	Rejection         *RejectionResult   `json:"rejection"`
	Metadata          ResultMetadata     `json:"metadata"`
}

// Rejected builds a result for a short-circuit outcome
func Rejected(r *RejectionResult) *ScoreResult {
	return &ScoreResult{Rejection: r}
}

// Cacheable reports whether the result may be stored in the score cache
func (s *ScoreResult) Cacheable() bool {
	if s == nil {
		return false
	}
	if s.Rejection != nil {
		return s.Rejection.Code.Cacheable()
	}
	return s.Score != nil
}

// Clone returns a deep copy so cached values stay immutable
func (s *ScoreResult) Clone() *ScoreResult {
	if s == nil {
		return nil
	}
	out := *s
	if s.Score != nil {
		v := *s.Score
		out.Score = &v
	}
	if s.Rejection != nil {
		r := *s.Rejection
		out.Rejection = &r
	}
	out.Contributions = cloneFloats(s.Contributions)
	out.Metadata.Features = cloneFloats(s.Metadata.Features)
	if s.Metadata.DataQuality != nil {
		out.Metadata.DataQuality = append([]string(nil), s.Metadata.DataQuality...)
	}
	return &out
}

func cloneFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
