package remote

import "fmt"

// State is the availability of the remote store for this account.
type State string

const (
	// StateUnavailable means the store cannot be reached right now.
	// It is also the state before the first probe.
	StateUnavailable State = "unavailable"

	// StateNoAccount means the user is not signed in to the store.
	StateNoAccount State = "noAccount"

	// StateRestricted means the account exists but may not use the store.
	StateRestricted State = "restricted"

	// StateAvailable means the store is reachable and usable.
	StateAvailable State = "available"

	// StateError means the probe failed for an unclassified reason.
	StateError State = "error"
)

// Status is the result of an account probe.
type Status struct {
	State State
	Cause error // set only for StateError
}

// Available is the status of a usable store.
var Available = Status{State: StateAvailable}

// Unavailable is the initial status, before any probe.
var Unavailable = Status{State: StateUnavailable}

// ErrorStatus builds an error status with the given cause.
func ErrorStatus(cause error) Status {
	return Status{State: StateError, Cause: cause}
}

// IsAvailable reports whether the store is usable.
func (s Status) IsAvailable() bool {
	return s.State == StateAvailable
}

// Equal reports whether two statuses describe the same situation. Error
// statuses are equal when their causes print the same.
func (s Status) Equal(o Status) bool {
	if s.State != o.State {
		return false
	}
	if s.State != StateError {
		return true
	}
	return causeText(s.Cause) == causeText(o.Cause)
}

func (s Status) String() string {
	if s.State == StateError {
		return fmt.Sprintf("error(%s)", causeText(s.Cause))
	}
	if s.State == "" {
		return string(StateUnavailable)
	}
	return string(s.State)
}

func causeText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
