package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
)

const serviceName = "driver-agent"

const (
	defaultCallTimeout = 10 * time.Second
	defaultQueueSize   = 64
)

type Config struct {
	DriverID    string
	PushToken   string
	CallTimeout time.Duration
	QueueSize   int
}

// Coordinator owns the driver's availability and active-booking lifecycle.
// All three event sources (location fixes, push payloads, driver actions)
// feed one ordered queue; a single goroutine drains it, so ride state
// mutation is always sequential and needs no locking. Gateway calls run
// asynchronously and their completions re-enter the same queue.
type Coordinator struct {
	cfg       Config
	gw        Gateway
	sampler   SamplerControl
	publisher LocationPublisher
	log       logger.Logger

	events chan event

	// Loop-owned state. Touched only from Run's goroutine.
	status   types.DriverStatus
	phase    types.RidePhase
	fix      *models.LocationFix
	offer    *models.BookingOffer
	booking  *models.ActiveBooking
	inflight *inflightCall
	stale    *staleCall
	deferred []event

	snapMu sync.RWMutex
	snap   models.RideState
}

// inflightCall guards the single outstanding remote call per booking. The
// reply channel belongs to the driver action that started the call.
type inflightCall struct {
	kind      callKind
	bookingID string
	reply     chan error
}

// staleCall records an ambiguous (timed-out) outcome that must be reconciled
// against the backend before a conflicting transition.
type staleCall struct {
	kind      callKind
	bookingID string
}

type Option func(*Coordinator)

// WithSampler makes the coordinator start location sampling on toggle-on.
func WithSampler(s SamplerControl) Option {
	return func(c *Coordinator) { c.sampler = s }
}

// WithPublisher enables best-effort location fan-out to the backend.
func WithPublisher(p LocationPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func New(cfg Config, gw Gateway, log logger.Logger, opts ...Option) *Coordinator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	c := &Coordinator{
		cfg:    cfg,
		gw:     gw,
		log:    log,
		events: make(chan event, cfg.QueueSize),
		status: types.OfflineStatus,
		phase:  types.PhaseOffline,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rebuildSnapshot()
	return c
}

// Run drains the event queue until the context is cancelled. It must be
// called exactly once.
func (c *Coordinator) Run(ctx context.Context) {
	ctx = wrap.WithDriverID(ctx, c.cfg.DriverID)

	for {
		select {
		case <-ctx.Done():
			c.failPending(ctx)
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
			c.rebuildSnapshot()
			metrics.EventQueueDepth.WithLabelValues(serviceName).Set(float64(len(c.events)))
		}
	}
}

// failPending answers any parked cancel replies on shutdown so their callers
// do not hang.
func (c *Coordinator) failPending(ctx context.Context) {
	if c.inflight != nil && c.inflight.reply != nil {
		c.inflight.reply <- types.ErrCoordinatorStopped
		c.inflight = nil
	}
	for _, ev := range c.deferred {
		if ev.reply != nil {
			ev.reply <- types.ErrCoordinatorStopped
		}
	}
	c.deferred = nil
	c.log.Debug(ctx, "coordinator stopped")
}

/* ======================= inputs ======================= */

// Snapshot returns a copy of the current ride state for the presentation
// layer. Reads never block the event loop.
func (c *Coordinator) Snapshot() models.RideState {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// SubmitOffer enqueues an inbound booking offer. Implements notify.Sink.
func (c *Coordinator) SubmitOffer(msg models.OfferMessage) {
	c.enqueueBestEffort(event{kind: evOfferReceived, offer: &msg})
}

// SubmitInteraction enqueues a notification interaction hint. Implements
// notify.Sink.
func (c *Coordinator) SubmitInteraction(msg models.InteractionMessage) {
	c.enqueueBestEffort(event{kind: evInteraction, note: &msg})
}

// SubmitFix enqueues a location fix.
func (c *Coordinator) SubmitFix(fix models.LocationFix) {
	c.enqueueBestEffort(event{kind: evLocationFix, fix: &fix})
}

// ConsumeFixes pumps a sampler stream into the queue until ctx is done.
func (c *Coordinator) ConsumeFixes(ctx context.Context, fixes <-chan models.LocationFix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			c.SubmitFix(fix)
		}
	}
}

func (c *Coordinator) enqueueBestEffort(ev event) {
	select {
	case c.events <- ev:
	default:
		// A full queue means the loop is badly stalled. Dropping is safer
		// than blocking an event source.
		ctx := wrap.WithAction(context.Background(), types.ActionOfferDropped)
		c.log.Warn(ctx, "event queue full, dropping event", "event", ev.kind.String())
		if ev.kind == evOfferReceived {
			metrics.OffersDroppedTotal.WithLabelValues(serviceName, "queue_full").Inc()
		}
	}
}

/* ======================= driver actions ======================= */

func (c *Coordinator) ToggleOnline(ctx context.Context) error {
	return c.dispatch(ctx, evToggleOnline)
}

func (c *Coordinator) ToggleOffline(ctx context.Context) error {
	return c.dispatch(ctx, evToggleOffline)
}

func (c *Coordinator) Accept(ctx context.Context) error {
	return c.dispatch(ctx, evAccept)
}

func (c *Coordinator) Decline(ctx context.Context) error {
	return c.dispatch(ctx, evDecline)
}

func (c *Coordinator) ConfirmArrival(ctx context.Context) error {
	return c.dispatch(ctx, evArrive)
}

func (c *Coordinator) ConfirmPickup(ctx context.Context) error {
	return c.dispatch(ctx, evPickup)
}

func (c *Coordinator) ConfirmDropoff(ctx context.Context) error {
	return c.dispatch(ctx, evComplete)
}

func (c *Coordinator) Cancel(ctx context.Context) error {
	return c.dispatch(ctx, evCancel)
}

// dispatch enqueues a driver action and waits for its outcome. The wait is
// bounded by the caller's context; the action itself stays in the queue.
func (c *Coordinator) dispatch(ctx context.Context, kind eventKind) error {
	reply := make(chan error, 1)

	select {
	case c.events <- event{kind: kind, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

/* ======================= event loop ======================= */

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evToggleOnline:
		ev.reply <- c.handleToggleOnline(ctx)
	case evToggleOffline:
		ev.reply <- c.handleToggleOffline(ctx)
	case evOfferReceived:
		c.handleOffer(ctx, *ev.offer)
	case evProfileResolved:
		c.handleProfileResolved(ctx, *ev.profile)
	case evInteraction:
		// A hint only, never a state change.
		c.log.Info(ctx, "notification interaction", "kind", ev.note.Kind)
	case evLocationFix:
		c.handleFix(ctx, *ev.fix)
	case evAccept:
		c.handleAccept(ctx, ev)
	case evDecline:
		ev.reply <- c.handleDecline(ctx)
	case evArrive:
		ev.reply <- c.handleLocalTransition(ctx, types.PhaseEnRouteToPickup, types.PhaseArrivedPickup)
	case evPickup:
		ev.reply <- c.handleLocalTransition(ctx, types.PhaseArrivedPickup, types.PhaseInTransit)
	case evComplete:
		c.handleComplete(ctx, ev)
	case evCancel:
		c.handleCancel(ctx, ev)
	case evCallResolved:
		c.handleCallResolved(ctx, *ev.call)
	}
}

func (c *Coordinator) handleToggleOnline(ctx context.Context) error {
	if c.status == types.OnlineStatus {
		return types.ErrAlreadyOnline
	}

	c.status = types.OnlineStatus
	if c.phase == types.PhaseOffline {
		c.setPhase(ctx, types.PhaseIdle)
	}
	metrics.DriverOnlineGauge.WithLabelValues(serviceName).Set(1)

	if c.sampler != nil {
		c.sampler.Start(ctx)
	}

	// Push token registration is best-effort: failure never blocks the
	// toggle and is retried on the next toggle-on.
	go c.registerToken()

	c.log.Info(ctx, "driver online")
	return nil
}

func (c *Coordinator) registerToken() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()
	ctx = wrap.WithLogCtx(ctx, wrap.LogCtx{
		Action:   types.ActionTokenRegistration,
		DriverID: c.cfg.DriverID,
	})

	if err := c.gw.UpdateToken(ctx, c.cfg.DriverID, c.cfg.PushToken); err != nil {
		c.log.Warn(ctx, "push token registration failed, will retry on next toggle", "error", err.Error())
		return
	}
	c.log.Debug(ctx, "push token registered")
}

func (c *Coordinator) handleToggleOffline(ctx context.Context) error {
	if c.status == types.OfflineStatus {
		return types.ErrAlreadyOffline
	}

	// Offer-accepting is disabled, but an in-progress ride continues and
	// sampling is not stopped.
	c.status = types.OfflineStatus
	if c.phase == types.PhaseIdle {
		c.setPhase(ctx, types.PhaseOffline)
	}
	metrics.DriverOnlineGauge.WithLabelValues(serviceName).Set(0)

	c.log.Info(ctx, "driver offline")
	return nil
}

func (c *Coordinator) handleOffer(ctx context.Context, msg models.OfferMessage) {
	ctx = wrap.WithBookingID(ctx, msg.BookingID)

	// A driver who toggled off must not see stale offers surfacing later.
	if c.status != types.OnlineStatus {
		c.dropOffer(ctx, msg, "offline")
		return
	}
	// Driver is unavailable for new offers mid-ride or while an accept is
	// being resolved.
	if c.booking != nil || (c.inflight != nil && c.inflight.kind == callAccept) {
		c.dropOffer(ctx, msg, "busy")
		return
	}
	// Keep the first pending offer, discard the newer one.
	if c.offer != nil {
		c.dropOffer(ctx, msg, "offer_pending")
		return
	}

	c.offer = &models.BookingOffer{
		BookingID:   msg.BookingID,
		PassengerID: msg.PassengerID,
		Pickup: models.Location{
			Latitude:  msg.From.Latitude,
			Longitude: msg.From.Longitude,
			Address:   msg.From.Address,
		},
		Dropoff: models.Location{
			Latitude:  msg.To.Latitude,
			Longitude: msg.To.Longitude,
			Address:   msg.To.Address,
		},
		ReceivedAt: time.Now().UTC(),
	}
	c.setPhase(ctx, types.PhaseOfferPending)
	metrics.OffersReceivedTotal.WithLabelValues(serviceName).Inc()
	c.log.Info(ctx, "booking offer received", "passenger_id", msg.PassengerID)

	// Enrich the offer with the passenger profile. The offer is already
	// pending; a failed fetch only degrades its display.
	go c.fetchPassenger(msg.BookingID, msg.PassengerID)
}

func (c *Coordinator) dropOffer(ctx context.Context, msg models.OfferMessage, reason string) {
	metrics.OffersDroppedTotal.WithLabelValues(serviceName, reason).Inc()
	c.log.Debug(wrap.WithAction(ctx, types.ActionOfferDropped), "dropping booking offer", "reason", reason)
}

func (c *Coordinator) fetchPassenger(bookingID, passengerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()

	passenger, err := c.gw.Passenger(ctx, passengerID)
	c.events <- event{kind: evProfileResolved, profile: &profileResult{
		bookingID: bookingID,
		passenger: passenger,
		err:       err,
	}}
}

func (c *Coordinator) handleProfileResolved(ctx context.Context, res profileResult) {
	ctx = wrap.WithBookingID(ctx, res.bookingID)

	if res.err != nil {
		c.log.Warn(ctx, "passenger profile fetch failed, keeping offer without it", "error", res.err.Error())
		return
	}

	switch {
	case c.offer != nil && c.offer.BookingID == res.bookingID:
		c.offer.Passenger = *res.passenger
	case c.booking != nil && c.booking.BookingID == res.bookingID:
		// The offer was accepted before the profile arrived.
		c.booking.Passenger = *res.passenger
	default:
		c.log.Debug(ctx, "passenger profile arrived for a gone offer")
	}
}

func (c *Coordinator) handleFix(ctx context.Context, fix models.LocationFix) {
	c.fix = &fix

	if c.publisher != nil && (c.status == types.OnlineStatus || c.phase.InRide()) {
		msg := models.LocationUpdateMessage{
			DriverID:  c.cfg.DriverID,
			Latitude:  fix.Latitude,
			Longitude: fix.Longitude,
			Timestamp: fix.Timestamp,
		}
		go func() {
			pubCtx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
			defer cancel()
			if err := c.publisher.PublishLocation(pubCtx, msg); err != nil {
				c.log.Debug(pubCtx, "location publish failed", "error", err.Error())
			}
		}()
	}
}

func (c *Coordinator) handleAccept(ctx context.Context, ev event) {
	if c.inflight != nil {
		ev.reply <- types.ErrActionInProgress
		return
	}
	if c.offer == nil {
		ev.reply <- types.ErrNoPendingOffer
		return
	}

	c.startCall(ctx, callAccept, c.offer.BookingID, ev.reply)
}

func (c *Coordinator) handleDecline(ctx context.Context) error {
	if c.inflight != nil {
		return types.ErrActionInProgress
	}
	if c.offer == nil {
		return types.ErrNoPendingOffer
	}

	ctx = wrap.WithBookingID(ctx, c.offer.BookingID)
	c.offer = nil
	c.setPhase(ctx, c.restingPhase())
	c.log.Info(ctx, "offer declined")
	return nil
}

func (c *Coordinator) handleLocalTransition(ctx context.Context, from, to types.RidePhase) error {
	if c.inflight != nil {
		return types.ErrActionInProgress
	}
	if c.phase != from || c.booking == nil {
		return types.ErrNotInPhase
	}

	ctx = wrap.WithBookingID(ctx, c.booking.BookingID)
	c.setPhase(ctx, to)
	return nil
}

func (c *Coordinator) handleComplete(ctx context.Context, ev event) {
	if c.inflight != nil {
		ev.reply <- types.ErrActionInProgress
		return
	}
	if c.phase != types.PhaseInTransit || c.booking == nil {
		ev.reply <- types.ErrNotInPhase
		return
	}

	c.startCall(ctx, callComplete, c.booking.BookingID, ev.reply)
}

func (c *Coordinator) handleCancel(ctx context.Context, ev event) {
	if c.inflight != nil {
		if c.inflight.kind == callCancel {
			ev.reply <- types.ErrActionInProgress
			return
		}
		// A cancel requested while accept/complete is in flight is parked
		// and evaluated once the call resolves.
		c.deferred = append(c.deferred, ev)
		return
	}

	switch {
	case c.booking != nil:
		c.startCall(ctx, callCancel, c.booking.BookingID, ev.reply)
	case c.offer != nil:
		// Cancelling a not-yet-accepted offer is a local decline.
		ev.reply <- c.handleDecline(ctx)
	default:
		c.log.Warn(ctx, "cancel requested with nothing to cancel")
		ev.reply <- types.ErrNoActiveBooking
	}
}

/* ======================= gateway calls ======================= */

// startCall records the in-flight guard and issues the remote call from a
// worker goroutine. If a previous call on this booking timed out, the worker
// re-queries booking status first so an already-landed call is not repeated.
func (c *Coordinator) startCall(ctx context.Context, kind callKind, bookingID string, reply chan error) {
	c.inflight = &inflightCall{kind: kind, bookingID: bookingID, reply: reply}

	var reconcile *staleCall
	if c.stale != nil && c.stale.bookingID == bookingID {
		reconcile = &staleCall{kind: c.stale.kind, bookingID: bookingID}
	}

	c.log.Debug(wrap.WithBookingID(ctx, bookingID), "issuing booking call", "call", kind.String())

	go c.call(kind, bookingID, reconcile)
}

func (c *Coordinator) call(kind callKind, bookingID string, reconcile *staleCall) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()
	ctx = wrap.WithLogCtx(ctx, wrap.LogCtx{DriverID: c.cfg.DriverID, BookingID: bookingID})

	res := callResult{kind: kind, bookingID: bookingID}

	resolved := false
	if reconcile != nil {
		resolved = c.reconcileCall(ctx, kind, bookingID, reconcile, &res)
	}

	if !resolved {
		var err error
		switch kind {
		case callAccept:
			res.record, err = c.gw.Accept(ctx, c.cfg.DriverID, bookingID)
		case callComplete:
			err = c.gw.Complete(ctx, bookingID)
		case callCancel:
			err = c.gw.Cancel(ctx, bookingID, c.cfg.DriverID)
		}
		res.err = err
		res.ambiguous = errors.Is(err, types.ErrBackendUnreachable)
	}

	c.events <- event{kind: evCallResolved, call: &res}
}

// reconcileCall asks the backend for the booking's current status and, when
// the earlier timed-out call is visible there, resolves the present call
// without re-issuing it. Returns true when res is final.
func (c *Coordinator) reconcileCall(ctx context.Context, kind callKind, bookingID string, stale *staleCall, res *callResult) bool {
	ctx = wrap.WithAction(ctx, types.ActionReconcile)

	record, err := c.gw.Status(ctx, bookingID)
	if err != nil {
		c.log.Warn(ctx, "status re-query failed", "error", err.Error())
		res.err = err
		res.ambiguous = errors.Is(err, types.ErrBackendUnreachable)
		return true
	}

	switch {
	case stale.kind == callAccept && record.Status == types.BookingAccepted && record.DriverID == c.cfg.DriverID:
		c.log.Info(ctx, "timed-out accept had landed server-side")
		if kind == callAccept {
			res.record = record
			return true
		}
	case stale.kind == callComplete && record.Status == types.BookingCompleted:
		c.log.Info(ctx, "timed-out completion had landed server-side")
		if kind == callComplete {
			return true
		}
	case stale.kind == callCancel && record.Status == types.BookingCancelled:
		c.log.Info(ctx, "timed-out cancellation had landed server-side")
		if kind == callCancel {
			return true
		}
	}

	return false
}

func (c *Coordinator) handleCallResolved(ctx context.Context, res callResult) {
	if c.inflight == nil || c.inflight.kind != res.kind || c.inflight.bookingID != res.bookingID {
		// Stale completion (e.g. resolved after shutdown answered the caller).
		c.log.Debug(ctx, "dropping stale call completion", "call", res.kind.String())
		return
	}

	reply := c.inflight.reply
	c.inflight = nil
	ctx = wrap.WithBookingID(ctx, res.bookingID)

	if res.err != nil {
		// Phase does not advance; offer/booking retained; the guard is
		// released so an explicit user retry is possible.
		if res.ambiguous {
			c.stale = &staleCall{kind: res.kind, bookingID: res.bookingID}
		}
		c.log.Warn(wrap.WithAction(ctx, types.ActionBackendCallFailed),
			"booking call failed",
			"call", res.kind.String(),
			"ambiguous", res.ambiguous,
		)
		reply <- res.err
		c.flushDeferred(ctx)
		return
	}

	c.stale = nil

	switch res.kind {
	case callAccept:
		if c.offer != nil {
			booking := &models.ActiveBooking{
				BookingID:   c.offer.BookingID,
				PassengerID: c.offer.PassengerID,
				DriverID:    c.cfg.DriverID,
				Pickup:      c.offer.Pickup,
				Dropoff:     c.offer.Dropoff,
				Passenger:   c.offer.Passenger,
				AcceptedAt:  time.Now().UTC(),
			}
			c.offer = nil
			c.booking = booking
			c.setPhase(ctx, types.PhaseEnRouteToPickup)
			metrics.ActiveBookingGauge.WithLabelValues(serviceName).Set(1)
			c.log.Info(ctx, "booking accepted", "passenger_id", booking.PassengerID)
		}
	case callComplete:
		c.booking = nil
		c.setPhase(ctx, c.restingPhase())
		metrics.ActiveBookingGauge.WithLabelValues(serviceName).Set(0)
		c.log.Info(ctx, "booking completed")
	case callCancel:
		c.booking = nil
		c.offer = nil
		c.setPhase(ctx, c.restingPhase())
		metrics.ActiveBookingGauge.WithLabelValues(serviceName).Set(0)
		c.log.Info(ctx, "booking cancelled")
	}

	reply <- nil
	c.flushDeferred(ctx)
}

// flushDeferred re-evaluates cancels parked while a call was in flight.
func (c *Coordinator) flushDeferred(ctx context.Context) {
	if len(c.deferred) == 0 {
		return
	}
	parked := c.deferred
	c.deferred = nil
	for _, ev := range parked {
		c.handle(ctx, ev)
	}
}

/* ======================= state helpers ======================= */

// restingPhase is where the lifecycle settles when no offer or booking
// remains: IDLE while online, OFFLINE otherwise.
func (c *Coordinator) restingPhase() types.RidePhase {
	if c.status == types.OnlineStatus {
		return types.PhaseIdle
	}
	return types.PhaseOffline
}

func (c *Coordinator) setPhase(ctx context.Context, phase types.RidePhase) {
	if c.phase == phase {
		return
	}
	old := c.phase
	c.phase = phase
	c.log.Debug(wrap.WithAction(ctx, types.ActionPhaseChanged), "phase changed",
		"from", old.String(),
		"to", phase.String(),
	)
}

func (c *Coordinator) rebuildSnapshot() {
	snap := models.RideState{
		Status:         c.status,
		Phase:          c.phase,
		AllowedActions: c.allowedActions(),
	}
	if c.fix != nil {
		fix := *c.fix
		snap.CurrentFix = &fix
	}
	if c.offer != nil {
		offer := *c.offer
		snap.PendingOffer = &offer
	}
	if c.booking != nil {
		booking := *c.booking
		snap.ActiveBooking = &booking
	}

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()
}

func (c *Coordinator) allowedActions() []types.DriverAction {
	actions := make([]types.DriverAction, 0, 4)

	if c.status == types.OnlineStatus {
		actions = append(actions, types.ActionToggleOffline)
	} else {
		actions = append(actions, types.ActionToggleOnline)
	}

	busy := c.inflight != nil

	switch c.phase {
	case types.PhaseOfferPending:
		if !busy {
			actions = append(actions, types.ActionAccept, types.ActionDecline)
		}
	case types.PhaseEnRouteToPickup:
		if !busy {
			actions = append(actions, types.ActionArrive)
		}
		actions = append(actions, types.ActionCancel)
	case types.PhaseArrivedPickup:
		if !busy {
			actions = append(actions, types.ActionPickup)
		}
		actions = append(actions, types.ActionCancel)
	case types.PhaseInTransit:
		if !busy {
			actions = append(actions, types.ActionComplete)
		}
		actions = append(actions, types.ActionCancel)
	}

	return actions
}
