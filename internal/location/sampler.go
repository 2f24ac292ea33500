package location

import (
	"context"
	"sync"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
)

const serviceName = "driver-agent"

// Positioner produces a single position fix. Implementations wrap whatever
// the platform offers (GPS daemon, simulator, replay file).
type Positioner interface {
	Position(ctx context.Context) (models.LocationFix, error)
}

// Sampler produces an infinite, restartable sequence of location fixes at a
// configured interval. It has no knowledge of ride state; consumers must
// tolerate coarse timing.
type Sampler struct {
	interval time.Duration
	pos      Positioner
	log      logger.Logger
	out      chan models.LocationFix

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewSampler(interval time.Duration, pos Positioner, log logger.Logger) *Sampler {
	return &Sampler{
		interval: interval,
		pos:      pos,
		log:      log,
		out:      make(chan models.LocationFix, 1),
	}
}

// Fixes returns the sample stream. The channel is never closed; it simply
// goes quiet while the sampler is stopped.
func (s *Sampler) Fixes() <-chan models.LocationFix {
	return s.out
}

// Start begins sampling. Calling Start on a running sampler is a no-op.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go s.loop(loopCtx)
}

// Stop suspends sampling. The sampler can be started again afterwards.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.cancel = nil
	s.running = false
}

func (s *Sampler) loop(ctx context.Context) {
	ctx = wrap.WithAction(ctx, "location_sampling")
	s.log.Debug(ctx, "location sampling started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First sample immediately, then on every tick.
	s.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Debug(ctx, "location sampling stopped")
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	fix, err := s.pos.Position(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn(ctx, "failed to read position", "error", err.Error())
		}
		return
	}

	metrics.LocationFixesTotal.WithLabelValues(serviceName).Inc()

	// Only the latest fix matters. If the consumer lags, drop the stale one.
	select {
	case s.out <- fix:
	default:
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- fix:
		default:
		}
	}
}
