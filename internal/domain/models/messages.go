package models

import "time"

/* ======================= push payloads ======================= */

// GeoPointMessage is one endpoint of an offered trip as carried on the wire.
type GeoPointMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// OfferMessage is the inbound push payload carrying a booking offer.
type OfferMessage struct {
	BookingID   string          `json:"bookingId"`
	PassengerID string          `json:"passengerId"`
	From        GeoPointMessage `json:"from"`
	To          GeoPointMessage `json:"to"`
}

// InteractionMessage signals that the driver interacted with a system
// notification. It is a hint only and never changes ride state.
type InteractionMessage struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

/* ======================= rabbitmq ======================= */

// LocationUpdateMessage is the best-effort location fan-out to the backend.
type LocationUpdateMessage struct {
	DriverID  string    `json:"driver_id"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}
