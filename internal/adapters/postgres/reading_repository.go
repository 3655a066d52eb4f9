package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quentinrf/smartband-edge/internal/database"
	"github.com/quentinrf/smartband-edge/internal/domain"
)

const readingColumns = `id, smart_band_id, pulse, status, "timestamp"`

// ReadingRepository implements domain.ReadingRepository with PostgreSQL
type ReadingRepository struct {
	db *database.DB
}

// NewReadingRepository creates a Postgres-backed repository on a shared pool
func NewReadingRepository(db *database.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Save inserts a reading; the store assigns id and timestamp
func (r *ReadingRepository) Save(ctx context.Context, reading *domain.HeartRateReading) (int64, error) {
	query := `
		INSERT INTO heart_rate_readings (smart_band_id, pulse, status)
		VALUES ($1, $2, $3)
		RETURNING id, "timestamp"
	`

	var (
		id int64
		ts time.Time
	)
	err := r.db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		if err := q.QueryRowContext(ctx, query, reading.SmartBandID(), reading.Pulse(), string(reading.Status())).Scan(&id, &ts); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("save reading", err)
	}

	if err := reading.MarkPersisted(id, ts); err != nil {
		return 0, domain.NewStorageError("save reading", err)
	}
	return id, nil
}

// FindByID retrieves a reading by ID
func (r *ReadingRepository) FindByID(ctx context.Context, id int64) (*domain.HeartRateReading, bool, error) {
	query := `SELECT ` + readingColumns + ` FROM heart_rate_readings WHERE id = $1`

	var reading *domain.HeartRateReading
	err := r.db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		var err error
		reading, err = scanReading(q.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, domain.NewStorageError("find reading", err)
	}

	return reading, reading != nil, nil
}

// FindByDevice returns the most recent readings of a smart band, newest first
func (r *ReadingRepository) FindByDevice(ctx context.Context, smartBandID int64, limit int) ([]*domain.HeartRateReading, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	query := `
		SELECT ` + readingColumns + `
		FROM heart_rate_readings
		WHERE smart_band_id = $1
		ORDER BY "timestamp" DESC, id DESC
		LIMIT $2
	`

	readings := make([]*domain.HeartRateReading, 0, limit)
	err := r.db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		rows, err := q.QueryContext(ctx, query, smartBandID, limit)
		if err != nil {
			return fmt.Errorf("failed to query readings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			reading, err := scanReading(rows)
			if err != nil {
				return err
			}
			readings = append(readings, reading)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, domain.NewStorageError("find readings by device", err)
	}

	return readings, nil
}

// Aggregate lets Postgres compute count/min/max/avg in one pass
func (r *ReadingRepository) Aggregate(ctx context.Context, smartBandID int64) (domain.Statistics, error) {
	query := `
		SELECT COUNT(*), MIN(pulse), MAX(pulse), AVG(pulse)::double precision
		FROM heart_rate_readings
		WHERE smart_band_id = $1
	`

	var (
		count    int64
		min, max sql.NullInt64
		avg      sql.NullFloat64
	)
	err := r.db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		if err := q.QueryRowContext(ctx, query, smartBandID).Scan(&count, &min, &max, &avg); err != nil {
			return fmt.Errorf("failed to aggregate readings: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Statistics{}, domain.NewStorageError("aggregate readings", err)
	}

	return statisticsFromRow(smartBandID, count, min, max, avg), nil
}

// Ping checks the store through a full session
func (r *ReadingRepository) Ping(ctx context.Context) error {
	return domain.NewStorageError("ping", r.db.Ping(ctx))
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReading is the single row -> entity translation for this adapter
func scanReading(row rowScanner) (*domain.HeartRateReading, error) {
	var (
		id, smartBandID int64
		pulse           int
		status          string
		ts              time.Time
	)
	if err := row.Scan(&id, &smartBandID, &pulse, &status, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	return domain.RestoreHeartRateReading(id, smartBandID, pulse, domain.Status(status), ts)
}

func statisticsFromRow(smartBandID, count int64, min, max sql.NullInt64, avg sql.NullFloat64) domain.Statistics {
	stats := domain.EmptyStatistics(smartBandID)
	if count == 0 || !min.Valid || !max.Valid || !avg.Valid {
		return stats
	}

	lo, hi, mean := int(min.Int64), int(max.Int64), avg.Float64
	stats.Count = count
	stats.Min = &lo
	stats.Max = &hi
	stats.Average = &mean
	return stats
}
