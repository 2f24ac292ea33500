package models

import "github.com/askarbek/ride-driver-agent/internal/domain/types"

// RideState is a read-only snapshot of the coordinator's aggregate state.
// The presentation layer reads snapshots and dispatches actions; it never
// mutates state directly.
//
// Invariant: at most one of PendingOffer and ActiveBooking is non-nil.
type RideState struct {
	Status         types.DriverStatus   `json:"driver_status"`
	Phase          types.RidePhase      `json:"phase"`
	CurrentFix     *LocationFix         `json:"current_fix,omitempty"`
	PendingOffer   *BookingOffer        `json:"pending_offer,omitempty"`
	ActiveBooking  *ActiveBooking       `json:"active_booking,omitempty"`
	AllowedActions []types.DriverAction `json:"allowed_actions"`
}
