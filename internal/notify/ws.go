package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/gorilla/websocket"
)

const reconnectDelay = 5 * time.Second

// WSChannel keeps a single WebSocket connection to the backend's driver
// socket and feeds inbound messages to the sink. Lost connections are
// redialled with a fixed delay until the context is cancelled.
type WSChannel struct {
	cfg  Config
	sink Sink
	log  logger.Logger
}

func NewWSChannel(cfg Config, sink Sink, log logger.Logger) *WSChannel {
	return &WSChannel{
		cfg:  cfg,
		sink: sink,
		log:  log,
	}
}

func (c *WSChannel) Run(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "ws_channel")

	go func() {
		for {
			if err := c.connectAndListen(ctx); err != nil {
				if ctx.Err() != nil {
					c.log.Debug(ctx, "ws channel stopped")
					return
				}
				c.log.Warn(ctx, "ws connection lost, redialling",
					"error", err.Error(),
					"delay", reconnectDelay.String(),
				)
			}

			select {
			case <-ctx.Done():
				c.log.Debug(ctx, "ws channel stopped")
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	return nil
}

func (c *WSChannel) connectAndListen(ctx context.Context) error {
	const op = "WSChannel.connectAndListen"

	url := fmt.Sprintf("%s/ws/drivers/%s", c.cfg.URL, c.cfg.DriverID)

	header := http.Header{}
	if c.cfg.BearerToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("%s: dial failed: %w", op, err)
	}

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	c.log.Info(ctx, "connected to driver socket", "url", url)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%s: read failed: %w", op, err)
		}

		// Malformed payloads are already logged and counted inside dispatch;
		// they must not tear down the connection.
		_ = dispatch(ctx, raw, c.sink, c.log)
	}
}
