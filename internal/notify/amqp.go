package notify

import (
	"context"
	"fmt"

	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
	"github.com/askarbek/ride-driver-agent/pkg/rabbit"
)

// AMQPChannel consumes booking offers from the backend's topic exchange.
// The queue is driver-scoped and bound with a driver-specific routing key.
type AMQPChannel struct {
	client *rabbit.RabbitMQ
	cfg    Config
	sink   Sink
	log    logger.Logger
}

func NewAMQPChannel(client *rabbit.RabbitMQ, cfg Config, sink Sink, log logger.Logger) *AMQPChannel {
	return &AMQPChannel{
		client: client,
		cfg:    cfg,
		sink:   sink,
		log:    log,
	}
}

// Run declares and binds the driver's offer queue and consumes it until the
// underlying connection is closed or the context is cancelled.
func (c *AMQPChannel) Run(ctx context.Context) error {
	const op = "AMQPChannel.Run"

	queueName := fmt.Sprintf("driver.offers.%s", c.cfg.DriverID)
	bindingKey := fmt.Sprintf("booking.offer.%s", c.cfg.DriverID)

	q, err := c.client.Channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ctx = wrap.WithAction(ctx, "declare_queue")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to declare queue: %w", op, err))
	}

	if err := c.client.Channel.QueueBind(
		q.Name,
		bindingKey,
		c.cfg.Exchange,
		false,
		nil,
	); err != nil {
		ctx = wrap.WithAction(ctx, "bind_queue")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to bind queue: %w", op, err))
	}

	msgs, err := c.client.Channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		false, // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		ctx = wrap.WithAction(ctx, "consume")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to register consumer: %w", op, err))
	}

	c.log.Info(ctx, "consuming booking offers", "queue", q.Name, "binding_key", bindingKey)

	go func() {
		// The deliveries channel closes when the connection is torn down,
		// which is the shutdown path for this goroutine.
		for d := range msgs {
			err := dispatch(ctx, d.Body, c.sink, c.log)
			metrics.RecordRabbitMQConsume(serviceName, q.Name, err)
		}
		c.log.Debug(ctx, "offer consumer stopped", "queue", q.Name)
	}()

	return nil
}
