package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/askarbek/ride-driver-agent/config"
	"github.com/askarbek/ride-driver-agent/internal/adapter/http/handler"
	"github.com/askarbek/ride-driver-agent/internal/adapter/http/middleware"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
)

const serviceName = "driver-agent"

const serverIPAddress = "%s:%s"

// API is the local control server: the driver-facing surface of the agent.
// It binds to localhost by default since only the driver's own tooling
// should reach it.
type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type handlers struct {
	agent  *handler.Agent
	health *handler.Health
}

func New(
	cfg config.ControlAPIConfig,
	lifecycle handler.Lifecycle,
	sink handler.OfferSink,
	log logger.Logger,
) (*API, error) {
	if lifecycle == nil {
		return nil, errors.New("lifecycle service is required")
	}

	routes := &handlers{
		agent:  handler.NewAgent(lifecycle, sink, log),
		health: handler.NewHealth(serviceName, log),
	}

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      middleware.NewMiddleware(log),
		addr:   fmt.Sprintf(serverIPAddress, cfg.Host, cfg.Port),
		log:    log,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	return api, nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started control API server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start control API server: %w", err)
			return
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down control API server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down control API server completed")

	return nil
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Logging(a.m.Metrics(serviceName)(a.mux))))
}
