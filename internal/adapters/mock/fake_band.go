package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// FakeBand simulates a smart band's pulse sensor for development
// This implements the ports.PulseSource interface
type FakeBand struct {
	smartBandID int64
	baseValue   int
	variation   int
	spikeChance float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFakeBand creates a band that returns realistic values
// baseValue: resting pulse (e.g., 72)
// variation: +/- range (e.g., 8 means 64-80)
func NewFakeBand(smartBandID int64, baseValue, variation int) *FakeBand {
	return &FakeBand{
		smartBandID: smartBandID,
		baseValue:   baseValue,
		variation:   variation,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSpikes makes roughly chance of readings jump into exercise range
func (b *FakeBand) WithSpikes(chance float64) *FakeBand {
	b.spikeChance = chance
	return b
}

// WithSeed makes the sequence reproducible
func (b *FakeBand) WithSeed(seed int64) *FakeBand {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rng = rand.New(rand.NewSource(seed))
	return b
}

// SmartBandID returns the simulated device id
func (b *FakeBand) SmartBandID() int64 {
	return b.smartBandID
}

// ReadPulse returns a simulated pulse reading
func (b *FakeBand) ReadPulse(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pulse := b.baseValue
	if b.variation > 0 {
		pulse += b.rng.Intn(2*b.variation+1) - b.variation
	}

	// Occasional exertion spike
	if b.spikeChance > 0 && b.rng.Float64() < b.spikeChance {
		pulse += 40 + b.rng.Intn(30)
	}

	// A worn band never reports a negative pulse
	if pulse < 0 {
		pulse = 0
	}

	return pulse, nil
}

// Close is a no-op for fake band
func (b *FakeBand) Close() error {
	return nil
}
