package wims

import (
	"encoding/json"
	"strings"

	"github.com/ansel1/merry"
)

type Status int

const (
	StatusOK Status = iota
	StatusTransportFailure
	StatusServiceFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTransportFailure:
		return "TRANSPORT_FAILURE"
	case StatusServiceFailure:
		return "SERVICE_FAILURE"
	}
	return "UNKNOWN"
}

// Result is the outcome of one adm/raw round trip.
type Result struct {
	Job    string
	Code   string
	Status Status

	// Lines is set for line-format jobs, Doc for JSON jobs.
	Lines []string
	Doc   map[string]json.RawMessage
	Raw   []byte

	// Message is the service's own message (JSON "message" field) when it sent one.
	Message    string
	Diagnostic []string
}

func (r *Result) OK() bool {
	return r.Status == StatusOK
}

// Err converts a failed result into an error carrying the result itself.
func (r *Result) Err() error {
	var base merry.Error
	switch r.Status {
	case StatusOK:
		return nil
	case StatusTransportFailure:
		base = ErrTransportFailure
	default:
		base = ErrServiceFailure
	}
	err := base.Here().WithValue(resultValueKey, r).Append("job " + r.Job)
	if r.Message != "" {
		err = err.Append(r.Message)
	} else if len(r.Diagnostic) > 0 {
		err = err.Append(r.Diagnostic[0])
	}
	return err
}

func (r *Result) DiagnosticText() string {
	return strings.Join(r.Diagnostic, "\n")
}
