package models

import (
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/types"
)

// BookingOffer is a booking proposal pushed to the driver before acceptance.
// Passenger is enriched asynchronously after the offer arrives and may still
// be empty while the profile fetch is in flight (or if it failed).
type BookingOffer struct {
	BookingID   string    `json:"booking_id"`
	PassengerID string    `json:"passenger_id"`
	Pickup      Location  `json:"pickup"`
	Dropoff     Location  `json:"dropoff"`
	Passenger   Passenger `json:"passenger"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ActiveBooking is a booking the driver has committed to and is executing.
type ActiveBooking struct {
	BookingID   string    `json:"booking_id"`
	PassengerID string    `json:"passenger_id"`
	DriverID    string    `json:"driver_id"`
	Pickup      Location  `json:"pickup"`
	Dropoff     Location  `json:"dropoff"`
	Passenger   Passenger `json:"passenger"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// BookingRecord is the backend's view of a booking, returned by the status
// endpoint. Used to reconcile after an ambiguous call outcome.
type BookingRecord struct {
	BookingID   string              `json:"booking_id"`
	DriverID    string              `json:"driver_id"`
	PassengerID string              `json:"passenger_id"`
	Status      types.BookingStatus `json:"status"`
}

type Passenger struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}
