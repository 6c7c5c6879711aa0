package runtime

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of the engine as this layer last observed it.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateUnsupported
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Outcome classifies one Initialize call.
type Outcome int

const (
	OutcomeNeverAttempted Outcome = iota
	OutcomeAlreadyInitialized
	OutcomeSucceeded
	OutcomeFailed
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNeverAttempted:
		return "never_attempted"
	case OutcomeAlreadyInitialized:
		return "already_initialized"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Attempt records the result of one Initialize call. The zero Attempt has
// OutcomeNeverAttempted.
//
// Err may be set on a Succeeded attempt when the engine came up but a later
// step (log level, log callback) failed.
type Attempt struct {
	At       time.Time
	Err      error
	ID       uuid.UUID
	Duration time.Duration
	Outcome  Outcome
}

func newAttempt(at time.Time) Attempt {
	return Attempt{ID: uuid.New(), At: at}
}
