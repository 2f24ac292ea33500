package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
	"github.com/askarbek/ride-driver-agent/pkg/validator"
)

const serviceName = "driver-agent"

// Sink receives decoded inbound events. The coordinator implements it; the
// channel never touches ride state itself.
type Sink interface {
	SubmitOffer(offer models.OfferMessage)
	SubmitInteraction(models.InteractionMessage)
}

// Channel delivers inbound push payloads to a Sink until the context is
// cancelled. Implementations own their subscriptions and release them on all
// exit paths.
type Channel interface {
	Run(ctx context.Context) error
}

// Config is the explicit configuration object for a notification channel.
// There is no process-global handler state; the channel's lifecycle is
// init on startup, teardown on shutdown.
type Config struct {
	Transport types.PushTransport
	DriverID  string

	// AMQP transport
	Exchange string

	// WebSocket transport
	URL         string
	BearerToken string
}

// envelope sniffs the message type. A payload with no type field is treated
// as a booking offer, matching the raw push format.
type envelope struct {
	Type string `json:"type"`
}

// dispatch decodes a raw inbound payload and hands it to the sink. Malformed
// payloads are dropped: logged, counted, no state change.
func dispatch(ctx context.Context, raw []byte, sink Sink, log logger.Logger) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		dropMalformed(ctx, log, err)
		return fmt.Errorf("%w: %v", types.ErrMalformedPayload, err)
	}

	switch env.Type {
	case "interaction":
		// A hint only: the driver tapped a system notification. Logged and
		// ignored unless the presentation layer maps it to an explicit action.
		var msg models.InteractionMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			dropMalformed(ctx, log, err)
			return fmt.Errorf("%w: %v", types.ErrMalformedPayload, err)
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		sink.SubmitInteraction(msg)
		return nil

	case "", "booking_offer":
		offer, err := decodeOffer(raw)
		if err != nil {
			dropMalformed(ctx, log, err)
			return err
		}
		sink.SubmitOffer(offer)
		return nil

	default:
		log.Debug(ctx, "ignoring unknown push message type", "type", env.Type)
		return nil
	}
}

// decodeOffer parses and validates the raw offer payload.
func decodeOffer(raw []byte) (models.OfferMessage, error) {
	var msg models.OfferMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.OfferMessage{}, fmt.Errorf("%w: %v", types.ErrMalformedPayload, err)
	}

	v := validator.New()
	v.Check(msg.BookingID != "", "bookingId", "must be provided")
	v.Check(msg.PassengerID != "", "passengerId", "must be provided")
	v.Check(msg.From.Latitude >= -90 && msg.From.Latitude <= 90, "from.latitude", "must be a valid latitude")
	v.Check(msg.From.Longitude >= -180 && msg.From.Longitude <= 180, "from.longitude", "must be a valid longitude")
	v.Check(msg.To.Latitude >= -90 && msg.To.Latitude <= 90, "to.latitude", "must be a valid latitude")
	v.Check(msg.To.Longitude >= -180 && msg.To.Longitude <= 180, "to.longitude", "must be a valid longitude")
	if !v.Valid() {
		return models.OfferMessage{}, fmt.Errorf("%w: %v", types.ErrMalformedPayload, v.Errors)
	}

	return msg, nil
}

func dropMalformed(ctx context.Context, log logger.Logger, err error) {
	metrics.OffersDroppedTotal.WithLabelValues(serviceName, "malformed").Inc()
	log.Warn(wrap.WithAction(ctx, types.ActionOfferDropped), "dropping malformed push payload", "error", err.Error())
}
