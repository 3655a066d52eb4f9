package domain

import (
	"context"
)

// DefaultHistoryLimit is used when a caller does not ask for a specific
// number of readings.
const DefaultHistoryLimit = 10

// ReadingRepository defines operations for storing/retrieving readings
// This is a PORT - adapters (Postgres, SQLite, Memory) implement it
type ReadingRepository interface {
	// Save persists a new reading, assigning its ID and UTC timestamp
	Save(ctx context.Context, reading *HeartRateReading) (int64, error)

	// FindByID returns found=false, not an error, when nothing matches
	FindByID(ctx context.Context, id int64) (reading *HeartRateReading, found bool, err error)

	// FindByDevice returns up to limit readings for a band, newest first.
	// A limit <= 0 means DefaultHistoryLimit.
	FindByDevice(ctx context.Context, smartBandID int64, limit int) ([]*HeartRateReading, error)

	// Aggregate computes statistics over every reading of a band
	Aggregate(ctx context.Context, smartBandID int64) (Statistics, error)
}

// Pinger checks that the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
