package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quentinrf/smartband-edge/internal/domain"
)

// ReadingRepository implements domain.ReadingRepository with in-memory storage
// Useful for development and tests - no database setup needed
type ReadingRepository struct {
	mu       sync.RWMutex
	readings map[int64]*domain.HeartRateReading
	nextID   int64
	now      func() time.Time
}

// NewReadingRepository creates an empty in-memory repository
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		readings: make(map[int64]*domain.HeartRateReading),
		nextID:   1,
		now:      time.Now,
	}
}

// Save stores a reading in memory
func (r *ReadingRepository) Save(ctx context.Context, reading *domain.HeartRateReading) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("save reading", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	if err := reading.MarkPersisted(id, r.now().UTC()); err != nil {
		return 0, domain.NewStorageError("save reading", err)
	}
	r.nextID++

	r.readings[id] = reading
	return id, nil
}

// FindByID retrieves a reading by ID
func (r *ReadingRepository) FindByID(ctx context.Context, id int64) (*domain.HeartRateReading, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, exists := r.readings[id]
	return reading, exists, nil
}

// FindByDevice returns the latest readings of a band, newest first
func (r *ReadingRepository) FindByDevice(ctx context.Context, smartBandID int64, limit int) ([]*domain.HeartRateReading, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	results := r.byDevice(smartBandID)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Aggregate computes statistics over every reading of a band
func (r *ReadingRepository) Aggregate(ctx context.Context, smartBandID int64) (domain.Statistics, error) {
	return domain.ComputeStatistics(smartBandID, r.byDevice(smartBandID)), nil
}

// Ping always succeeds
func (r *ReadingRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *ReadingRepository) byDevice(smartBandID int64) []*domain.HeartRateReading {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.HeartRateReading, 0)
	for _, reading := range r.readings {
		if reading.SmartBandID() == smartBandID {
			results = append(results, reading)
		}
	}

	// Newest first, ties broken by id
	sort.Slice(results, func(i, j int) bool {
		ti, tj := results[i].Timestamp(), results[j].Timestamp()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return results[i].ID() > results[j].ID()
	})

	return results
}
