package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
)

const (
	testDriverID  = "d1"
	testBookingID = "b1"
)

type mockGateway struct {
	mu            sync.Mutex
	acceptCalls   int
	completeCalls int
	cancelCalls   int
	statusCalls   int

	acceptFn    func(driverID, bookingID string) (*models.BookingRecord, error)
	completeFn  func(bookingID string) error
	cancelFn    func(bookingID, driverID string) error
	statusFn    func(bookingID string) (*models.BookingRecord, error)
	passengerFn func(id string) (*models.Passenger, error)
}

func (m *mockGateway) Accept(_ context.Context, driverID, bookingID string) (*models.BookingRecord, error) {
	m.mu.Lock()
	m.acceptCalls++
	fn := m.acceptFn
	m.mu.Unlock()
	if fn != nil {
		return fn(driverID, bookingID)
	}
	return &models.BookingRecord{
		BookingID: bookingID,
		DriverID:  driverID,
		Status:    types.BookingAccepted,
	}, nil
}

func (m *mockGateway) Complete(_ context.Context, bookingID string) error {
	m.mu.Lock()
	m.completeCalls++
	fn := m.completeFn
	m.mu.Unlock()
	if fn != nil {
		return fn(bookingID)
	}
	return nil
}

func (m *mockGateway) Cancel(_ context.Context, bookingID, driverID string) error {
	m.mu.Lock()
	m.cancelCalls++
	fn := m.cancelFn
	m.mu.Unlock()
	if fn != nil {
		return fn(bookingID, driverID)
	}
	return nil
}

func (m *mockGateway) Status(_ context.Context, bookingID string) (*models.BookingRecord, error) {
	m.mu.Lock()
	m.statusCalls++
	fn := m.statusFn
	m.mu.Unlock()
	if fn != nil {
		return fn(bookingID)
	}
	return &models.BookingRecord{BookingID: bookingID, Status: types.BookingPending}, nil
}

func (m *mockGateway) Passenger(_ context.Context, id string) (*models.Passenger, error) {
	m.mu.Lock()
	fn := m.passengerFn
	m.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return &models.Passenger{ID: id}, nil
}

func (m *mockGateway) UpdateToken(_ context.Context, _, _ string) error { return nil }

func (m *mockGateway) calls() (accept, complete, cancel, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptCalls, m.completeCalls, m.cancelCalls, m.statusCalls
}

func newTestCoordinator(t *testing.T, gw Gateway) *Coordinator {
	t.Helper()

	log := logger.InitLogger("driver-agent-test", logger.LevelError)
	c := New(Config{
		DriverID:    testDriverID,
		PushToken:   "test-push-token",
		CallTimeout: 2 * time.Second,
	}, gw, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)

	return c
}

// waitForState polls the snapshot until the predicate holds. State mutation
// is asynchronous relative to the public API, so assertions go through here.
func waitForState(t *testing.T, c *Coordinator, desc string, pred func(models.RideState) bool) models.RideState {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if pred(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state: %s (last: %+v)", desc, c.Snapshot())
	return models.RideState{}
}

func testOffer(bookingID string) models.OfferMessage {
	return models.OfferMessage{
		BookingID:   bookingID,
		PassengerID: "p1",
		From:        models.GeoPointMessage{Latitude: 51.1, Longitude: 71.4, Address: "Mangilik El 55"},
		To:          models.GeoPointMessage{Latitude: 51.2, Longitude: 71.5, Address: "Turan 37"},
	}
}

func mustAccept(t *testing.T, c *Coordinator) {
	t.Helper()
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})
	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	waitForState(t, c, "en route", func(s models.RideState) bool {
		return s.Phase == types.PhaseEnRouteToPickup
	})
}

func TestToggleOnline(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatalf("toggle online failed: %v", err)
	}

	snap := waitForState(t, c, "online idle", func(s models.RideState) bool {
		return s.Status == types.OnlineStatus && s.Phase == types.PhaseIdle
	})
	if !containsAction(snap.AllowedActions, types.ActionToggleOffline) {
		t.Errorf("expected toggle_offline in allowed actions, got %v", snap.AllowedActions)
	}

	if err := c.ToggleOnline(context.Background()); !errors.Is(err, types.ErrAlreadyOnline) {
		t.Errorf("second toggle: got %v, want ErrAlreadyOnline", err)
	}
}

func TestToggleOffline_WhenAlreadyOffline(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOffline(context.Background()); !errors.Is(err, types.ErrAlreadyOffline) {
		t.Fatalf("got %v, want ErrAlreadyOffline", err)
	}
}

func TestOffer_DroppedWhileOffline(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	c.SubmitOffer(testOffer(testBookingID))

	// The offer must never surface: the driver never went online.
	time.Sleep(50 * time.Millisecond)
	snap := c.Snapshot()
	if snap.PendingOffer != nil {
		t.Errorf("offer surfaced while offline: %+v", snap.PendingOffer)
	}
	if snap.Phase != types.PhaseOffline {
		t.Errorf("phase = %s, want OFFLINE", snap.Phase)
	}
}

func TestAcceptFlow(t *testing.T) {
	gw := &mockGateway{}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))

	snap := waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending && s.PendingOffer != nil
	})
	if snap.PendingOffer.BookingID != testBookingID {
		t.Fatalf("pending offer booking = %s, want %s", snap.PendingOffer.BookingID, testBookingID)
	}
	if snap.ActiveBooking != nil {
		t.Fatal("offer and booking set at the same time")
	}

	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	snap = waitForState(t, c, "en route", func(s models.RideState) bool {
		return s.Phase == types.PhaseEnRouteToPickup
	})
	if snap.ActiveBooking == nil || snap.ActiveBooking.BookingID != testBookingID {
		t.Fatalf("active booking = %+v, want %s", snap.ActiveBooking, testBookingID)
	}
	if snap.PendingOffer != nil {
		t.Error("pending offer survived acceptance")
	}
	if snap.ActiveBooking.DriverID != testDriverID {
		t.Errorf("booking driver = %s, want %s", snap.ActiveBooking.DriverID, testDriverID)
	}
}

func TestAccept_WithoutOffer(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.Accept(context.Background()); !errors.Is(err, types.ErrNoPendingOffer) {
		t.Fatalf("got %v, want ErrNoPendingOffer", err)
	}
}

func TestAccept_SecondCallWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		acceptFn: func(driverID, bookingID string) (*models.BookingRecord, error) {
			close(started)
			<-release
			return &models.BookingRecord{BookingID: bookingID, DriverID: driverID, Status: types.BookingAccepted}, nil
		},
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Accept(context.Background()) }()
	<-started

	if err := c.Accept(context.Background()); !errors.Is(err, types.ErrActionInProgress) {
		t.Fatalf("second accept: got %v, want ErrActionInProgress", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	accepts, _, _, _ := gw.calls()
	if accepts != 1 {
		t.Errorf("accept network calls = %d, want 1", accepts)
	}
}

func TestOffer_DroppedWhileBusy(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustAccept(t, c)

	c.SubmitOffer(testOffer("b2"))

	time.Sleep(50 * time.Millisecond)
	snap := c.Snapshot()
	if snap.PendingOffer != nil {
		t.Errorf("second offer surfaced mid-ride: %+v", snap.PendingOffer)
	}
	if snap.ActiveBooking == nil || snap.ActiveBooking.BookingID != testBookingID {
		t.Errorf("active booking disturbed: %+v", snap.ActiveBooking)
	}
}

func TestOffer_FirstWins(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer("b-first"))
	c.SubmitOffer(testOffer("b-second"))

	snap := waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.PendingOffer != nil
	})
	// Second offer arrives while the first is pending and is discarded.
	time.Sleep(50 * time.Millisecond)
	snap = c.Snapshot()
	if snap.PendingOffer == nil || snap.PendingOffer.BookingID != "b-first" {
		t.Fatalf("pending offer = %+v, want b-first", snap.PendingOffer)
	}
}

func TestAccept_FailureRetainsOffer(t *testing.T) {
	fail := true
	var mu sync.Mutex
	gw := &mockGateway{}
	gw.acceptFn = func(driverID, bookingID string) (*models.BookingRecord, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, fmt.Errorf("booking.Accept: %w (status 409)", types.ErrBackendConflict)
		}
		return &models.BookingRecord{BookingID: bookingID, DriverID: driverID, Status: types.BookingAccepted}, nil
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})

	if err := c.Accept(context.Background()); !errors.Is(err, types.ErrBackendConflict) {
		t.Fatalf("got %v, want ErrBackendConflict", err)
	}

	// Phase does not advance and the offer is kept for an explicit retry.
	snap := waitForState(t, c, "offer retained", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending && s.PendingOffer != nil
	})
	if snap.ActiveBooking != nil {
		t.Fatal("active booking set after failed accept")
	}

	mu.Lock()
	fail = false
	mu.Unlock()

	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	waitForState(t, c, "en route after retry", func(s models.RideState) bool {
		return s.Phase == types.PhaseEnRouteToPickup
	})
}

func TestAccept_TimeoutReconciledOnRetry(t *testing.T) {
	gw := &mockGateway{
		acceptFn: func(_, _ string) (*models.BookingRecord, error) {
			return nil, fmt.Errorf("booking.Accept: %w: dial tcp: i/o timeout", types.ErrBackendUnreachable)
		},
		statusFn: func(bookingID string) (*models.BookingRecord, error) {
			// The timed-out accept actually landed server-side.
			return &models.BookingRecord{
				BookingID: bookingID,
				DriverID:  testDriverID,
				Status:    types.BookingAccepted,
			}, nil
		},
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})

	if err := c.Accept(context.Background()); !errors.Is(err, types.ErrBackendUnreachable) {
		t.Fatalf("first accept: got %v, want ErrBackendUnreachable", err)
	}

	// The retry re-queries booking status and resolves without a second
	// accept call.
	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	waitForState(t, c, "en route after reconcile", func(s models.RideState) bool {
		return s.Phase == types.PhaseEnRouteToPickup
	})

	accepts, _, _, statuses := gw.calls()
	if accepts != 1 {
		t.Errorf("accept network calls = %d, want 1", accepts)
	}
	if statuses != 1 {
		t.Errorf("status network calls = %d, want 1", statuses)
	}
}

func TestDecline(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})

	if err := c.Decline(context.Background()); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	waitForState(t, c, "idle after decline", func(s models.RideState) bool {
		return s.Phase == types.PhaseIdle && s.PendingOffer == nil
	})
}

func TestRideProgression(t *testing.T) {
	gw := &mockGateway{}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustAccept(t, c)

	if err := c.ConfirmArrival(context.Background()); err != nil {
		t.Fatalf("arrive failed: %v", err)
	}
	waitForState(t, c, "arrived", func(s models.RideState) bool {
		return s.Phase == types.PhaseArrivedPickup
	})

	if err := c.ConfirmPickup(context.Background()); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	waitForState(t, c, "in transit", func(s models.RideState) bool {
		return s.Phase == types.PhaseInTransit
	})

	if err := c.ConfirmDropoff(context.Background()); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	snap := waitForState(t, c, "idle after completion", func(s models.RideState) bool {
		return s.Phase == types.PhaseIdle
	})
	if snap.ActiveBooking != nil {
		t.Error("active booking survived completion")
	}

	_, completes, _, _ := gw.calls()
	if completes != 1 {
		t.Errorf("complete network calls = %d, want 1", completes)
	}
}

func TestRideProgression_OutOfOrder(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustAccept(t, c)

	// Pickup before arrival confirmation is rejected.
	if err := c.ConfirmPickup(context.Background()); !errors.Is(err, types.ErrNotInPhase) {
		t.Fatalf("pickup: got %v, want ErrNotInPhase", err)
	}
	if err := c.ConfirmDropoff(context.Background()); !errors.Is(err, types.ErrNotInPhase) {
		t.Fatalf("dropoff: got %v, want ErrNotInPhase", err)
	}
}

func TestCancel_MidRide(t *testing.T) {
	gw := &mockGateway{}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustAccept(t, c)

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	snap := waitForState(t, c, "idle after cancel", func(s models.RideState) bool {
		return s.Phase == types.PhaseIdle
	})
	if snap.ActiveBooking != nil {
		t.Error("active booking survived cancellation")
	}

	_, _, cancels, _ := gw.calls()
	if cancels != 1 {
		t.Errorf("cancel network calls = %d, want 1", cancels)
	}
}

func TestCancel_NothingToCancel(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(context.Background()); !errors.Is(err, types.ErrNoActiveBooking) {
		t.Fatalf("got %v, want ErrNoActiveBooking", err)
	}
}

func TestCancel_DeferredWhileAcceptInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		acceptFn: func(driverID, bookingID string) (*models.BookingRecord, error) {
			close(started)
			<-release
			return &models.BookingRecord{BookingID: bookingID, DriverID: driverID, Status: types.BookingAccepted}, nil
		},
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})

	acceptDone := make(chan error, 1)
	cancelDone := make(chan error, 1)
	go func() { acceptDone <- c.Accept(context.Background()) }()
	<-started
	go func() { cancelDone <- c.Cancel(context.Background()) }()

	// Give the cancel time to reach the loop and park.
	time.Sleep(30 * time.Millisecond)
	close(release)

	if err := <-acceptDone; err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := <-cancelDone; err != nil {
		t.Fatalf("deferred cancel failed: %v", err)
	}

	snap := waitForState(t, c, "idle after deferred cancel", func(s models.RideState) bool {
		return s.Phase == types.PhaseIdle
	})
	if snap.ActiveBooking != nil || snap.PendingOffer != nil {
		t.Errorf("state not cleared: %+v", snap)
	}

	accepts, _, cancels, _ := gw.calls()
	if accepts != 1 || cancels != 1 {
		t.Errorf("calls = accept %d cancel %d, want 1 and 1", accepts, cancels)
	}
}

func TestToggleOffline_RideContinues(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustAccept(t, c)

	if err := c.ToggleOffline(context.Background()); err != nil {
		t.Fatalf("toggle offline failed: %v", err)
	}

	snap := waitForState(t, c, "offline but en route", func(s models.RideState) bool {
		return s.Status == types.OfflineStatus
	})
	if snap.Phase != types.PhaseEnRouteToPickup {
		t.Fatalf("phase = %s, ride must continue after toggling off", snap.Phase)
	}

	// A new offer while offline mid-ride must not surface.
	c.SubmitOffer(testOffer("b2"))

	if err := c.ConfirmArrival(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.ConfirmPickup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.ConfirmDropoff(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The ride ended while offline, so the lifecycle settles in OFFLINE.
	waitForState(t, c, "offline after ride end", func(s models.RideState) bool {
		return s.Phase == types.PhaseOffline && s.ActiveBooking == nil && s.PendingOffer == nil
	})
}

func TestOffer_PassengerEnrichment(t *testing.T) {
	gw := &mockGateway{
		passengerFn: func(id string) (*models.Passenger, error) {
			return &models.Passenger{ID: id, FullName: "Dana K.", Rating: 4.8}, nil
		},
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))

	snap := waitForState(t, c, "enriched offer", func(s models.RideState) bool {
		return s.PendingOffer != nil && s.PendingOffer.Passenger.FullName != ""
	})
	if snap.PendingOffer.Passenger.FullName != "Dana K." {
		t.Errorf("passenger = %+v", snap.PendingOffer.Passenger)
	}
}

func TestOffer_PassengerFetchFailureKeepsOffer(t *testing.T) {
	gw := &mockGateway{
		passengerFn: func(id string) (*models.Passenger, error) {
			return nil, fmt.Errorf("booking.Passenger: %w", types.ErrBackendServer)
		},
	}
	c := newTestCoordinator(t, gw)

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))

	waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending && s.PendingOffer != nil
	})

	// The offer stays actionable without the profile.
	if err := c.Accept(context.Background()); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
}

func TestLocationFix_UpdatesSnapshot(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	c.SubmitFix(models.LocationFix{Latitude: 51.09, Longitude: 71.41, Timestamp: time.Now().UTC()})

	snap := waitForState(t, c, "fix recorded", func(s models.RideState) bool {
		return s.CurrentFix != nil
	})
	if snap.CurrentFix.Latitude != 51.09 {
		t.Errorf("fix = %+v", snap.CurrentFix)
	}
}

func TestAllowedActions_TrackPhase(t *testing.T) {
	c := newTestCoordinator(t, &mockGateway{})

	snap := c.Snapshot()
	if !containsAction(snap.AllowedActions, types.ActionToggleOnline) {
		t.Errorf("offline actions = %v, want toggle_online", snap.AllowedActions)
	}
	if containsAction(snap.AllowedActions, types.ActionAccept) {
		t.Errorf("accept offered while offline: %v", snap.AllowedActions)
	}

	if err := c.ToggleOnline(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SubmitOffer(testOffer(testBookingID))
	snap = waitForState(t, c, "offer pending", func(s models.RideState) bool {
		return s.Phase == types.PhaseOfferPending
	})
	if !containsAction(snap.AllowedActions, types.ActionAccept) || !containsAction(snap.AllowedActions, types.ActionDecline) {
		t.Errorf("offer actions = %v, want accept and decline", snap.AllowedActions)
	}

	if err := c.Accept(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap = waitForState(t, c, "en route", func(s models.RideState) bool {
		return s.Phase == types.PhaseEnRouteToPickup
	})
	if !containsAction(snap.AllowedActions, types.ActionArrive) || !containsAction(snap.AllowedActions, types.ActionCancel) {
		t.Errorf("en route actions = %v, want arrive and cancel", snap.AllowedActions)
	}
}

func containsAction(actions []types.DriverAction, want types.DriverAction) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
