package ports

import (
	"context"
)

// PulseSource defines how to read a smart band's current pulse
// This is a PORT - adapters (Mock band, real hardware) implement it
type PulseSource interface {
	// SmartBandID identifies the band the pulse comes from
	SmartBandID() int64

	// ReadPulse returns the current pulse in beats per minute
	ReadPulse(ctx context.Context) (int, error)

	// Close releases any resources
	Close() error
}

// ReadingSink accepts readings produced by a PulseSource.
// Both the local command handler and the remote API client satisfy it.
type ReadingSink interface {
	Record(ctx context.Context, smartBandID int64, pulse int) (int64, error)
}

// RecordFunc adapts a RecordHeartRateHandler into a ReadingSink
type RecordFunc func(ctx context.Context, smartBandID int64, pulse int) (int64, error)

func (f RecordFunc) Record(ctx context.Context, smartBandID int64, pulse int) (int64, error) {
	return f(ctx, smartBandID, pulse)
}

// Sink exposes the command handler as a ReadingSink
func (h *RecordHeartRateHandler) Sink() ReadingSink {
	return RecordFunc(func(ctx context.Context, smartBandID int64, pulse int) (int64, error) {
		return h.Handle(ctx, RecordHeartRate{SmartBandID: smartBandID, Pulse: pulse})
	})
}
