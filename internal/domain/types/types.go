package types

// DriverStatus is the driver's availability toggle. It is mutated only by
// the driver's explicit action, never by the backend.
type DriverStatus string

const (
	OfflineStatus DriverStatus = "OFFLINE"
	OnlineStatus  DriverStatus = "ONLINE"
)

// RidePhase is the coordinator's position in the booking lifecycle.
type RidePhase string

func (p RidePhase) String() string {
	return string(p)
}

const (
	PhaseOffline         RidePhase = "OFFLINE"
	PhaseIdle            RidePhase = "IDLE"
	PhaseOfferPending    RidePhase = "OFFER_PENDING"
	PhaseEnRouteToPickup RidePhase = "EN_ROUTE_TO_PICKUP"
	PhaseArrivedPickup   RidePhase = "ARRIVED_PICKUP"
	PhaseInTransit       RidePhase = "IN_TRANSIT"
)

// InRide reports whether the phase belongs to an accepted booking.
func (p RidePhase) InRide() bool {
	switch p {
	case PhaseEnRouteToPickup, PhaseArrivedPickup, PhaseInTransit:
		return true
	default:
		return false
	}
}

// DriverAction is an action the driver can dispatch through the control API.
type DriverAction string

const (
	ActionToggleOnline  DriverAction = "toggle_online"
	ActionToggleOffline DriverAction = "toggle_offline"
	ActionAccept        DriverAction = "accept"
	ActionDecline       DriverAction = "decline"
	ActionArrive        DriverAction = "arrive"
	ActionPickup        DriverAction = "pickup"
	ActionComplete      DriverAction = "complete"
	ActionCancel        DriverAction = "cancel"
)

// BookingStatus mirrors the backend's booking record status values. Used by
// the status re-query after an ambiguous (timed-out) call outcome.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingAccepted  BookingStatus = "ACCEPTED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// PushTransport selects the inbound notification channel implementation.
type PushTransport string

const (
	TransportAMQP      PushTransport = "amqp"
	TransportWebSocket PushTransport = "websocket"
)
