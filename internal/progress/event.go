// Package progress defines the event stream emitted by audit workers and the
// hub that fans events out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageAuditStart Stage = "AUDIT_START"
	StageAuditDone  Stage = "AUDIT_DONE"
	StageAuditError Stage = "AUDIT_ERROR"
	StageFetchDone  Stage = "FETCH_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures one milestone in an audit's execution.
type Event struct {
	// AuditID identifies the audit being executed.
	AuditID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or fetch milestone occurred.
	Stage Stage
	// URL is the page involved, for fetch events.
	URL string
	// Score carries the composite score on AUDIT_DONE events.
	Score int
	// StatusClass groups HTTP response codes for fetch completions.
	StatusClass StatusClass
	// Dur captures execution latency for fetches and audit completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.AuditID == "" {
		return errors.New("audit id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAuditStart, StageAuditDone, StageAuditError:
	case StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch done requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
