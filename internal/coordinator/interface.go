package coordinator

import (
	"context"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
)

// Gateway is the remote booking API as the coordinator sees it. Calls are
// issued from worker goroutines; completions re-enter the event queue.
type Gateway interface {
	Accept(ctx context.Context, driverID, bookingID string) (*models.BookingRecord, error)
	Complete(ctx context.Context, bookingID string) error
	Cancel(ctx context.Context, bookingID, driverID string) error
	Status(ctx context.Context, bookingID string) (*models.BookingRecord, error)
	Passenger(ctx context.Context, id string) (*models.Passenger, error)
	UpdateToken(ctx context.Context, driverID, pushToken string) error
}

// SamplerControl starts location sampling when the driver toggles on.
// Sampling is never stopped by the coordinator: a ride already in progress
// still wants position updates after the driver toggles off.
type SamplerControl interface {
	Start(ctx context.Context)
}

// LocationPublisher fans the latest fix out to the backend, best-effort.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, msg models.LocationUpdateMessage) error
}
