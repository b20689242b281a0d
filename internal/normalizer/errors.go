package normalizer

import "fmt"

// NormalizationError reports a payload that lacks a mandatory field or has no known shape
type NormalizationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s: %s", e.Field, e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

func missing(field string) error {
	return &NormalizationError{Field: field, Reason: "mandatory field is absent"}
}

func malformed(field string, err error) error {
	return &NormalizationError{Field: field, Reason: "malformed", Err: err}
}
