package handler

import (
	"context"
	"net/http"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/validator"
)

// Lifecycle is the coordinator surface the control API needs: read the
// current snapshot and dispatch driver actions.
type Lifecycle interface {
	Snapshot() models.RideState
	ToggleOnline(ctx context.Context) error
	ToggleOffline(ctx context.Context) error
	Accept(ctx context.Context) error
	Decline(ctx context.Context) error
	ConfirmArrival(ctx context.Context) error
	ConfirmPickup(ctx context.Context) error
	ConfirmDropoff(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// OfferSink accepts booking offers outside the push transport. Used by the
// debug endpoint to feed offers into the lifecycle during development.
type OfferSink interface {
	SubmitOffer(msg models.OfferMessage)
}

// Agent exposes the driver's ride state and actions over the local control
// API. It holds no state of its own.
type Agent struct {
	lifecycle Lifecycle
	sink      OfferSink
	log       logger.Logger
}

func NewAgent(lifecycle Lifecycle, sink OfferSink, log logger.Logger) *Agent {
	return &Agent{
		lifecycle: lifecycle,
		sink:      sink,
		log:       log,
	}
}

// State returns the current ride state snapshot.
func (a *Agent) State(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_state")

	if err := writeJSON(w, http.StatusOK, envelope{"state": a.lifecycle.Snapshot()}, nil); err != nil {
		a.log.Error(ctx, "failed to write state response", err)
		internalErrorResponse(w, "failed to write response")
	}
}

func (a *Agent) ToggleOnline(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionToggleOnline, a.lifecycle.ToggleOnline)
}

func (a *Agent) ToggleOffline(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionToggleOffline, a.lifecycle.ToggleOffline)
}

func (a *Agent) Accept(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionAccept, a.lifecycle.Accept)
}

func (a *Agent) Decline(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionDecline, a.lifecycle.Decline)
}

func (a *Agent) Arrive(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionArrive, a.lifecycle.ConfirmArrival)
}

func (a *Agent) Pickup(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionPickup, a.lifecycle.ConfirmPickup)
}

func (a *Agent) Complete(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionComplete, a.lifecycle.ConfirmDropoff)
}

func (a *Agent) Cancel(w http.ResponseWriter, r *http.Request) {
	a.dispatch(w, r, types.ActionCancel, a.lifecycle.Cancel)
}

// InjectOffer feeds a booking offer into the lifecycle as if it had arrived
// over the push transport. Development aid for driving the agent without a
// live backend.
func (a *Agent) InjectOffer(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "inject_offer")

	var msg models.OfferMessage
	if err := readJSON(w, r, &msg); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	v.Check(msg.BookingID != "", "bookingId", "must be provided")
	v.Check(msg.PassengerID != "", "passengerId", "must be provided")
	if !v.Valid() {
		errorResponse(w, http.StatusUnprocessableEntity, v.Errors)
		return
	}

	a.sink.SubmitOffer(msg)
	a.log.Info(wrap.WithBookingID(ctx, msg.BookingID), "offer injected")

	if err := writeJSON(w, http.StatusAccepted, envelope{"status": "queued"}, nil); err != nil {
		a.log.Error(ctx, "failed to write inject response", err)
	}
}

// dispatch runs a driver action and replies with the post-action snapshot.
// Rejected actions keep the state unchanged and map to a status code via
// GetCode.
func (a *Agent) dispatch(w http.ResponseWriter, r *http.Request, action types.DriverAction, fn func(context.Context) error) {
	ctx := wrap.WithAction(r.Context(), string(action))

	if err := fn(ctx); err != nil {
		a.log.Warn(ctx, "driver action rejected", "error", err.Error())
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	a.log.Info(ctx, "driver action applied")

	if err := writeJSON(w, http.StatusOK, envelope{"state": a.lifecycle.Snapshot()}, nil); err != nil {
		a.log.Error(ctx, "failed to write action response", err)
		internalErrorResponse(w, "failed to write response")
	}
}
