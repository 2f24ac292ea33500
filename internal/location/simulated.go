package location

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
)

// SimulatedPositioner is a random-walk position source for development and
// demos, starting from a configured origin.
type SimulatedPositioner struct {
	mu   sync.Mutex
	lat  float64
	lng  float64
	step float64
	rnd  *rand.Rand
}

func NewSimulatedPositioner(originLat, originLng float64) *SimulatedPositioner {
	return &SimulatedPositioner{
		lat:  originLat,
		lng:  originLng,
		step: 0.0005, // roughly 50m per sample
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *SimulatedPositioner) Position(ctx context.Context) (models.LocationFix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lat += (p.rnd.Float64() - 0.5) * 2 * p.step
	p.lng += (p.rnd.Float64() - 0.5) * 2 * p.step

	return models.LocationFix{
		Latitude:  p.lat,
		Longitude: p.lng,
		Timestamp: time.Now().UTC(),
	}, nil
}
