package types

import "errors"

var (
	ErrNoPendingOffer  = errors.New("no pending offer")
	ErrNoActiveBooking = errors.New("no active booking")
	ErrAlreadyOnline   = errors.New("driver already online")
	ErrAlreadyOffline  = errors.New("driver already offline")
	ErrNotInPhase      = errors.New("action not allowed in current phase")

	// ErrActionInProgress is surfaced when a same-kind remote call is already
	// in flight for the current booking. The caller does not need to retry.
	ErrActionInProgress = errors.New("operation already in progress")

	ErrCoordinatorStopped = errors.New("coordinator is not running")

	ErrMalformedPayload = errors.New("malformed push payload")
)

// Booking backend failure taxonomy. All are non-fatal: the phase holds and
// the action stays retriable.
var (
	// ErrBackendUnreachable covers transport failures and timeouts. The call
	// outcome is ambiguous: it may have succeeded server-side.
	ErrBackendUnreachable = errors.New("booking backend unreachable")

	ErrBackendNotFound = errors.New("booking backend: not found")
	ErrBackendConflict = errors.New("booking backend: conflict")
	ErrBackendServer   = errors.New("booking backend: server error")
)
