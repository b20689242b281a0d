package rejection

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dan9191/bureau-scoring/internal/models"
)

// DeceasedPolicy selects what a deceased flag does
type DeceasedPolicy string

const (
	// DeceasedReject stops the pipeline with a DECEASED rejection.
	DeceasedReject DeceasedPolicy = "reject"
	// DeceasedAnnotate lets scoring run on the empty periods and marks the result.
	DeceasedAnnotate DeceasedPolicy = "annotate"
)

// ParseDeceasedPolicy validates a policy name
func ParseDeceasedPolicy(s string) (DeceasedPolicy, error) {
	switch p := DeceasedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DeceasedReject, DeceasedAnnotate:
		return p, nil
	case "":
		return DeceasedReject, nil
	}
	return "", fmt.Errorf("unknown deceased policy %q", s)
}

// Policy holds the two call-site decisions the legacy rules left open
type Policy struct {
	// RejectHistoricalBadRating also applies the bad-rating check to the historical period.
	RejectHistoricalBadRating bool
	Deceased                  DeceasedPolicy
}

// DefaultPolicy checks the recent period only and rejects deceased subjects
func DefaultPolicy() Policy {
	return Policy{Deceased: DeceasedReject}
}

// Evaluator decides whether a request short-circuits before scoring
type Evaluator struct {
	policy Policy
}

// NewEvaluator initializes a new evaluator
func NewEvaluator(policy Policy) *Evaluator {
	if policy.Deceased == "" {
		policy.Deceased = DeceasedReject
	}
	return &Evaluator{policy: policy}
}

// Policy returns the evaluator's policy
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// EvaluateTransport applies rule 1 to the upstream outcome. It returns nil on success.
func (e *Evaluator) EvaluateTransport(o models.UpstreamOutcome) *models.RejectionResult {
	if o.Succeeded() {
		return nil
	}
	r := &models.RejectionResult{Code: models.RejectTransportError}
	switch {
	case o.Err != nil && o.Timeout:
		r.Status, r.Reason = http.StatusGatewayTimeout, "timeout"
	case o.Err != nil && o.StatusCode == http.StatusUnauthorized:
		// the token exchange failed before the report was requested
		r.Status, r.Reason = http.StatusUnauthorized, "unauthorized"
	case o.Err != nil:
		r.Status, r.Reason = http.StatusBadGateway, "transport"
	default:
		r.Status, r.Reason = o.StatusCode, statusReason(o.StatusCode)
	}
	r.Detail = upstreamDetail(o)
	return r
}

func statusReason(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "unauthorized"
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return "validation"
	case code >= 500:
		return "internal"
	}
	return "status"
}

// upstreamDetail keeps the provider's own wording when it sends one
func upstreamDetail(o models.UpstreamOutcome) string {
	if len(o.Body) > 0 {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(o.Body, &body); err == nil {
			for _, key := range []string{"detail", "message", "error"} {
				var s string
				if raw, ok := body[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
					return s
				}
			}
		}
		if s := strings.TrimSpace(string(o.Body)); s != "" {
			return s
		}
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return http.StatusText(o.StatusCode)
}

// Evaluate applies rules 2 to 4 to a normalized report. A nil result means scoring continues.
func (e *Evaluator) Evaluate(report *models.NormalizedCreditReport) *models.RejectionResult {
	name := report.Metadata.SubjectName

	if !report.Periods.Recent.Reported() {
		return &models.RejectionResult{
			Code:               models.RejectNoData,
			Detail:             fmt.Sprintf("recent period %s", strings.ToLower(string(report.Periods.Recent.Status))),
			SubjectDisplayName: name,
		}
	}

	if report.Flags.IsDeceased && e.policy.Deceased == DeceasedReject {
		return &models.RejectionResult{Code: models.RejectDeceased, Detail: "subject reported deceased", SubjectDisplayName: name}
	}

	if bad, ok := models.WorstRejectable(report.Periods.Recent.Entities); ok {
		return badRating(bad, "recent", name)
	}
	if e.policy.RejectHistoricalBadRating && report.Periods.Historical.Reported() {
		if bad, ok := models.WorstRejectable(report.Periods.Historical.Entities); ok {
			return badRating(bad, "historical", name)
		}
	}
	return nil
}

func badRating(r models.Rating, period, name string) *models.RejectionResult {
	return &models.RejectionResult{
		Code:               models.RejectBadRating,
		Detail:             fmt.Sprintf("rating %s in %s period", r, period),
		SubjectDisplayName: name,
		Rating:             r,
	}
}
