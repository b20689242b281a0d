package models

// UpstreamOutcome is what the bureau call produced: a status and body, or a transport error
type UpstreamOutcome struct {
	StatusCode int
	Body       []byte
	Err        error
	Timeout    bool
}

// Succeeded reports a 2xx response with no transport error
func (o UpstreamOutcome) Succeeded() bool {
	return o.Err == nil && o.StatusCode >= 200 && o.StatusCode < 300
}
