package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quentinrf/smartband-edge/internal/database"
	"github.com/quentinrf/smartband-edge/internal/domain"
)

// Fixed-width UTC layout so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrInMemory rejects in-memory databases. Each pooled connection would get
// its own empty database.
var ErrInMemory = errors.New("sqlite: in-memory databases are not supported, use the memory store")

// ReadingRepository implements domain.ReadingRepository with SQLite
type ReadingRepository struct {
	db  *database.DB
	now func() time.Time
}

// Open creates a SQLite-backed repository and bootstraps its schema
func Open(ctx context.Context, dbPath string, pool database.PoolConfig) (*ReadingRepository, *database.DB, error) {
	if strings.HasPrefix(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory") {
		return nil, nil, ErrInMemory
	}

	db, err := database.Open(ctx, "sqlite3", dsn(dbPath), pool)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return NewReadingRepository(db), db, nil
}

// dsn appends driver options, keeping any query the path already carries
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

// NewReadingRepository wraps an already opened SQLite pool
func NewReadingRepository(db *database.DB) *ReadingRepository {
	return &ReadingRepository{db: db, now: time.Now}
}

// EnsureSchema creates the table if not exists
func EnsureSchema(ctx context.Context, db *database.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS heart_rate_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			smart_band_id INTEGER NOT NULL,
			pulse INTEGER NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('LOW', 'NORMAL', 'ELEVATED', 'HIGH')),
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_heart_rate_readings_band_ts ON heart_rate_readings(smart_band_id, timestamp)`,
	}

	return db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		for _, stmt := range schema {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		return nil
	})
}

// Save stores a reading in SQLite
func (r *ReadingRepository) Save(ctx context.Context, reading *domain.HeartRateReading) (int64, error) {
	query := `INSERT INTO heart_rate_readings (smart_band_id, pulse, status, timestamp) VALUES (?, ?, ?, ?)`
	ts := r.now().UTC()

	var id int64
	err := r.db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		result, err := q.ExecContext(ctx, query, reading.SmartBandID(), reading.Pulse(), string(reading.Status()), ts.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert id: %w", err)
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
	query := `SELECT id, smart_band_id, pulse, status, timestamp FROM heart_rate_readings WHERE id = ?`

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

// FindByDevice returns the latest readings of a band, newest first
func (r *ReadingRepository) FindByDevice(ctx context.Context, smartBandID int64, limit int) ([]*domain.HeartRateReading, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	query := `
		SELECT id, smart_band_id, pulse, status, timestamp
		FROM heart_rate_readings
		WHERE smart_band_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
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

// Aggregate computes count/min/max/avg in SQL
func (r *ReadingRepository) Aggregate(ctx context.Context, smartBandID int64) (domain.Statistics, error) {
	query := `SELECT COUNT(*), MIN(pulse), MAX(pulse), AVG(pulse) FROM heart_rate_readings WHERE smart_band_id = ?`

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

	stats := domain.EmptyStatistics(smartBandID)
	if count > 0 && min.Valid && max.Valid && avg.Valid {
		lo, hi, mean := int(min.Int64), int(max.Int64), avg.Float64
		stats.Count, stats.Min, stats.Max, stats.Average = count, &lo, &hi, &mean
	}
	return stats, nil
}

// Ping checks the database file is usable
func (r *ReadingRepository) Ping(ctx context.Context) error {
	return domain.NewStorageError("ping", r.db.Ping(ctx))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*domain.HeartRateReading, error) {
	var (
		id, smartBandID int64
		pulse           int
		status, ts      string
	)
	if err := row.Scan(&id, &smartBandID, &pulse, &status, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}

	timestamp, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return domain.RestoreHeartRateReading(id, smartBandID, pulse, domain.Status(status), timestamp)
}
