package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is the clinical band a pulse value falls into.
type Status string

const (
	StatusLow      Status = "LOW"
	StatusNormal   Status = "NORMAL"
	StatusElevated Status = "ELEVATED"
	StatusHigh     Status = "HIGH"
)

// Band lower bounds, inclusive. Anything below NormalMinPulse is LOW.
const (
	NormalMinPulse   = 60
	ElevatedMinPulse = 101
	HighMinPulse     = 121
)

var statuses = [...]Status{StatusLow, StatusNormal, StatusElevated, StatusHigh}

// Statuses lists every band from lowest to highest.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses[:])
	return out
}

// Classify maps a pulse in beats per minute to its status band.
// Zero and negative values are accepted and land in LOW.
func Classify(pulse int) Status {
	switch {
	case pulse >= HighMinPulse:
		return StatusHigh
	case pulse >= ElevatedMinPulse:
		return StatusElevated
	case pulse >= NormalMinPulse:
		return StatusNormal
	default:
		return StatusLow
	}
}

// Valid reports whether s is one of the known bands.
func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// HeartRateReading represents a single pulse measurement from a smart band.
// Fields are unexported so that status can only come from Classify.
type HeartRateReading struct {
	id          int64
	smartBandID int64
	pulse       int
	status      Status
	timestamp   time.Time
}

// NewHeartRateReading creates an unsaved reading. ID and timestamp are
// assigned by the repository on Save.
func NewHeartRateReading(smartBandID int64, pulse int) (*HeartRateReading, error) {
	if err := checkColumnRange("smartBandId", int64(smartBandID)); err != nil {
		return nil, err
	}
	if err := checkColumnRange("pulse", int64(pulse)); err != nil {
		return nil, err
	}

	return &HeartRateReading{
		smartBandID: smartBandID,
		pulse:       pulse,
		status:      Classify(pulse),
	}, nil
}

// RestoreHeartRateReading rebuilds a persisted reading from storage.
// The stored status must agree with the classifier; a mismatch means the
// row was written by something other than this service.
func RestoreHeartRateReading(id, smartBandID int64, pulse int, status Status, ts time.Time) (*HeartRateReading, error) {
	if want := Classify(pulse); status != want {
		return nil, fmt.Errorf("reading %d: stored status %q does not match pulse %d (%s)", id, status, pulse, want)
	}

	return &HeartRateReading{
		id:          id,
		smartBandID: smartBandID,
		pulse:       pulse,
		status:      status,
		timestamp:   ts.UTC(),
	}, nil
}

func (r *HeartRateReading) ID() int64            { return r.id }
func (r *HeartRateReading) SmartBandID() int64   { return r.smartBandID }
func (r *HeartRateReading) Pulse() int           { return r.pulse }
func (r *HeartRateReading) Status() Status       { return r.status }
func (r *HeartRateReading) Timestamp() time.Time { return r.timestamp }

// Persisted reports whether the store has assigned an identity.
func (r *HeartRateReading) Persisted() bool {
	return r.id != 0
}

// MarkPersisted records the identity and creation instant assigned by a
// repository. It may only be called once.
func (r *HeartRateReading) MarkPersisted(id int64, ts time.Time) error {
	if r.Persisted() {
		return fmt.Errorf("reading already persisted with id %d", r.id)
	}
	if id <= 0 {
		return fmt.Errorf("invalid reading id %d", id)
	}
	r.id = id
	r.timestamp = ts.UTC()
	return nil
}

// Both columns are 32-bit INTEGER in every backing store.
func checkColumnRange(field string, v int64) error {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%d is out of range", v)}
	}
	return nil
}
