package services

import "errors"

// Service-level error taxonomy. Validation problems never surface here: the
// engine recovers from bad user input by re-prompting. These errors cover
// the dispatcher's own failure modes.
var (
	// ErrStaleWriteConflict means the bounded CAS retry budget was
	// exhausted; the caller may redeliver the event.
	ErrStaleWriteConflict = errors.New("stale write conflict")

	// ErrUpstreamUnavailable means a collaborator (menu store, payment
	// gateway) failed; session state was left unchanged so the user can
	// retry the same action.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Outcome reports how the dispatcher handled an inbound event. It is only
// meaningful when Handle returns a nil error.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeDuplicateIgnored
	OutcomeStaleRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicateIgnored:
		return "duplicate_ignored"
	case OutcomeStaleRejected:
		return "stale_rejected"
	default:
		return "unknown"
	}
}
