package hemodynamics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned when an observation or coordinate falls outside
// the physiologically sane domain the classifier accepts.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidTuning is returned when a tuning table breaks the documented
// ordering of weights and bounds.
var ErrInvalidTuning = errors.New("invalid tuning")

// ValidationError describes one rejected field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ValidationErrors collects every rejected field of one observation.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Field+" "+e.Reason)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, e := range ve {
		errs[i] = e
	}
	return errs
}

// Fields returns field -> reason, the shape the API reports.
func (ve ValidationErrors) Fields() map[string]string {
	m := make(map[string]string, len(ve))
	for _, e := range ve {
		m[e.Field] = e.Reason
	}
	return m
}
