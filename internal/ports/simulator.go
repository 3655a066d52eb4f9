package ports

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Simulator periodically reads a pulse source and records the result
type Simulator struct {
	source   PulseSource
	sink     ReadingSink
	interval time.Duration
	count    int
}

// NewSimulator creates a background simulator. A count of zero runs until
// the context is cancelled.
func NewSimulator(source PulseSource, sink ReadingSink, interval time.Duration, count int) *Simulator {
	return &Simulator{
		source:   source,
		sink:     sink,
		interval: interval,
		count:    count,
	}
}

// Start records readings on every tick.
// This blocks until the context is cancelled or count readings were sent.
// It returns the number of readings recorded.
func (s *Simulator) Start(ctx context.Context) int {
	log.Info().
		Int64("smart_band_id", s.source.SmartBandID()).
		Dur("interval", s.interval).
		Int("count", s.count).
		Msg("starting band simulator")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	recorded := 0
	attempts := 0

	// Record immediately on start
	if s.recordOnce(ctx) {
		recorded++
	}
	attempts++

	for s.count == 0 || attempts < s.count {
		select {
		case <-ticker.C:
			if s.recordOnce(ctx) {
				recorded++
			}
			attempts++

		case <-ctx.Done():
			log.Info().Msg("stopping band simulator")
			return recorded
		}
	}

	return recorded
}

// recordOnce reads the source and hands the pulse to the sink
func (s *Simulator) recordOnce(ctx context.Context) bool {
	pulse, err := s.source.ReadPulse(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read pulse")
		return false
	}

	id, err := s.sink.Record(ctx, s.source.SmartBandID(), pulse)
	if err != nil {
		log.Error().Err(err).Int("pulse", pulse).Msg("failed to record reading")
		return false
	}

	log.Info().
		Int64("id", id).
		Int64("smart_band_id", s.source.SmartBandID()).
		Int("pulse", pulse).
		Msg("recorded simulated reading")
	return true
}
