package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askarbek/ride-driver-agent/config"
	"github.com/askarbek/ride-driver-agent/internal/adapter/booking"
	"github.com/askarbek/ride-driver-agent/internal/adapter/http/server"
	rabbitadapter "github.com/askarbek/ride-driver-agent/internal/adapter/rabbit"
	"github.com/askarbek/ride-driver-agent/internal/auth"
	"github.com/askarbek/ride-driver-agent/internal/coordinator"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/internal/location"
	"github.com/askarbek/ride-driver-agent/internal/notify"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	"github.com/askarbek/ride-driver-agent/pkg/rabbit"
)

var (
	ErrNoDriverIdentity = errors.New("driver identity could not be resolved: set DRIVER_ID, DRIVER_PHONE or a bearer token with claims")
	ErrInvalidTransport = errors.New("invalid notify transport")
)

// App wires the agent together: booking gateway, lifecycle coordinator,
// location sampling, the push transport and the local control API.
type App struct {
	coord      *coordinator.Coordinator
	sampler    *location.Sampler
	notifyCh   notify.Channel
	rabbitMQ   *rabbit.RabbitMQ
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	gateway := booking.New(cfg.Backend.BaseURL, cfg.Backend.BearerToken, cfg.Backend.CallTimeout)

	driverID, err := resolveDriverID(ctx, cfg, gateway, log)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "driver identity resolved", "driver_id", driverID)

	positioner := location.NewSimulatedPositioner(cfg.Location.OriginLatitude, cfg.Location.OriginLongitude)
	sampler := location.NewSampler(cfg.Location.SampleInterval, positioner, log)

	app := &App{
		sampler: sampler,
		cfg:     cfg,
		log:     log,
	}

	opts := []coordinator.Option{coordinator.WithSampler(sampler)}

	notifyCfg := notify.Config{
		Transport:   cfg.Notify.Transport,
		DriverID:    driverID,
		Exchange:    cfg.Notify.Exchange,
		URL:         cfg.Notify.WSBaseURL,
		BearerToken: cfg.Backend.BearerToken,
	}

	switch cfg.Notify.Transport {
	case types.TransportAMQP:
		rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
		if err != nil {
			log.Error(ctx, "failed to connect to RabbitMQ", err)
			return nil, err
		}
		app.rabbitMQ = rabbitMQ

		if cfg.Location.PublishEnabled {
			producer := rabbitadapter.NewLocationProducer(rabbitMQ, cfg.RabbitMQ.LocationExchange)
			opts = append(opts, coordinator.WithPublisher(producer))
		}
	case types.TransportWebSocket:
		// WebSocket transport needs no broker; location fan-out is skipped.
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransport, cfg.Notify.Transport)
	}

	coord := coordinator.New(coordinator.Config{
		DriverID:    driverID,
		PushToken:   cfg.Driver.PushToken,
		CallTimeout: cfg.Backend.CallTimeout,
	}, gateway, log, opts...)
	app.coord = coord

	switch cfg.Notify.Transport {
	case types.TransportAMQP:
		app.notifyCh = notify.NewAMQPChannel(app.rabbitMQ, notifyCfg, coord, log)
	case types.TransportWebSocket:
		app.notifyCh = notify.NewWSChannel(notifyCfg, coord, log)
	}

	httpServer, err := server.New(cfg.ControlAPI, coord, coord, log)
	if err != nil {
		log.Error(ctx, "failed to setup control API server", err)
		return nil, err
	}
	app.httpServer = httpServer

	return app, nil
}

// resolveDriverID figures out who this agent acts for. Priority: explicit
// config, bearer token claims, phone lookup against the backend.
func resolveDriverID(ctx context.Context, cfg config.Config, gateway *booking.Client, log logger.Logger) (string, error) {
	if cfg.Driver.ID != "" {
		return cfg.Driver.ID, nil
	}

	if cfg.Backend.BearerToken != "" {
		claims, err := auth.Inspect(cfg.Backend.BearerToken)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			log.Warn(ctx, "bearer token is expired, backend calls will likely be rejected", "driver_id", claims.DriverID)
			return claims.DriverID, nil
		case err != nil:
			log.Warn(ctx, "bearer token carries no readable claims", "error", err.Error())
		default:
			if claims.ExpiresWithin(time.Hour) {
				log.Warn(ctx, "bearer token expires within the hour")
			}
			return claims.DriverID, nil
		}
	}

	if cfg.Driver.Phone != "" {
		driver, err := gateway.DriverByPhone(ctx, cfg.Driver.Phone)
		if err != nil {
			return "", fmt.Errorf("failed to resolve driver by phone: %w", err)
		}
		return driver.ID, nil
	}

	return "", ErrNoDriverIdentity
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.coord.Run(runCtx)
	go a.coord.ConsumeFixes(runCtx, a.sampler.Fixes())

	go func() {
		if err := a.notifyCh.Run(runCtx); err != nil {
			errCh <- fmt.Errorf("notify channel failed: %w", err)
		}
	}()

	a.httpServer.Run(runCtx, errCh)
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "driver agent closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "driver agent started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "failed to gracefully close control API server", "error", err.Error())
		}
	}

	if a.sampler != nil {
		a.sampler.Stop()
	}

	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Warn(ctx, "failed to gracefully close RabbitMQ connection", "error", err.Error())
		}
	}
}
