package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
	"github.com/askarbek/ride-driver-agent/pkg/rabbit"
	"github.com/rabbitmq/amqp091-go"
)

const serviceName = "driver-agent"

// LocationProducer publishes the driver's latest fix to the backend's topic
// exchange. Publishing is best-effort: a failed publish is reported to the
// caller but never affects ride state.
type LocationProducer struct {
	client   *rabbit.RabbitMQ
	exchange string
}

func NewLocationProducer(client *rabbit.RabbitMQ, exchange string) *LocationProducer {
	return &LocationProducer{
		client:   client,
		exchange: exchange,
	}
}

// PublishLocation publishes a location update for the given driver.
func (r *LocationProducer) PublishLocation(ctx context.Context, msg models.LocationUpdateMessage) error {
	const op = "LocationProducer.PublishLocation"

	body, err := json.Marshal(msg)
	if err != nil {
		ctx = wrap.WithAction(ctx, "marshal_location")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to marshal message: %w", op, err))
	}

	key := fmt.Sprintf("driver.location.%s", msg.DriverID)

	err = r.client.Channel.PublishWithContext(
		ctx,
		r.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	metrics.RecordRabbitMQPublish(serviceName, key, err)
	if err != nil {
		ctx = wrap.WithAction(ctx, "publish_message")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to publish with context: %w", op, err))
	}

	return nil
}
