package coordinator

import (
	"github.com/askarbek/ride-driver-agent/internal/domain/models"
)

type eventKind int

const (
	evToggleOnline eventKind = iota
	evToggleOffline
	evAccept
	evDecline
	evArrive
	evPickup
	evComplete
	evCancel
	evOfferReceived
	evInteraction
	evLocationFix
	evProfileResolved
	evCallResolved
)

func (k eventKind) String() string {
	switch k {
	case evToggleOnline:
		return "toggle_online"
	case evToggleOffline:
		return "toggle_offline"
	case evAccept:
		return "accept"
	case evDecline:
		return "decline"
	case evArrive:
		return "arrive"
	case evPickup:
		return "pickup"
	case evComplete:
		return "complete"
	case evCancel:
		return "cancel"
	case evOfferReceived:
		return "offer_received"
	case evInteraction:
		return "interaction"
	case evLocationFix:
		return "location_fix"
	case evProfileResolved:
		return "profile_resolved"
	case evCallResolved:
		return "call_resolved"
	default:
		return "unknown"
	}
}

// callKind identifies a remote booking call in flight.
type callKind int

const (
	callAccept callKind = iota + 1
	callComplete
	callCancel
)

func (k callKind) String() string {
	switch k {
	case callAccept:
		return "accept"
	case callComplete:
		return "complete"
	case callCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// callResult is the completion of an asynchronous gateway call, re-injected
// into the event queue.
type callResult struct {
	kind      callKind
	bookingID string
	record    *models.BookingRecord
	err       error
	// ambiguous marks a transport failure or timeout: the call may have
	// succeeded server-side, so a status re-query is required before any
	// conflicting transition.
	ambiguous bool
}

// profileResult is the completion of a passenger profile fetch for an offer.
type profileResult struct {
	bookingID string
	passenger *models.Passenger
	err       error
}

// event is a single queue entry. Exactly one payload field is set, matching
// the kind. reply is non-nil for driver actions and receives the outcome.
type event struct {
	kind    eventKind
	offer   *models.OfferMessage
	note    *models.InteractionMessage
	fix     *models.LocationFix
	call    *callResult
	profile *profileResult
	reply   chan error
}
