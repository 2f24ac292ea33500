package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	// System Health
	a.mux.HandleFunc("/health", a.routes.health.HealthCheck)

	a.mux.Handle("/metrics", promhttp.Handler())

	// Ride state
	a.mux.HandleFunc("GET /v1/state", a.routes.agent.State)

	// Availability
	a.mux.HandleFunc("POST /v1/online", a.routes.agent.ToggleOnline)
	a.mux.HandleFunc("POST /v1/offline", a.routes.agent.ToggleOffline)

	// Offer handling
	a.mux.HandleFunc("POST /v1/accept", a.routes.agent.Accept)
	a.mux.HandleFunc("POST /v1/decline", a.routes.agent.Decline)

	// Ride progression
	a.mux.HandleFunc("POST /v1/arrive", a.routes.agent.Arrive)
	a.mux.HandleFunc("POST /v1/pickup", a.routes.agent.Pickup)
	a.mux.HandleFunc("POST /v1/complete", a.routes.agent.Complete)
	a.mux.HandleFunc("POST /v1/cancel", a.routes.agent.Cancel)

	// Development aid: feed an offer without a push transport.
	a.mux.HandleFunc("POST /v1/debug/offer", a.routes.agent.InjectOffer)
}
