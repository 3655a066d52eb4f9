package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"

	"github.com/quentinrf/smartband-edge/internal/database"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS heart_rate_readings (
		id            BIGSERIAL PRIMARY KEY,
		smart_band_id INTEGER NOT NULL,
		pulse         INTEGER NOT NULL,
		status        VARCHAR(16) NOT NULL CHECK (status IN ('LOW', 'NORMAL', 'ELEVATED', 'HIGH')),
		"timestamp"   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_heart_rate_readings_band_ts
		ON heart_rate_readings (smart_band_id, "timestamp" DESC)`,
}

// EnsureSchema creates the readings table and index if they are missing.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	return db.WithSession(ctx, func(ctx context.Context, q database.Querier) error {
		for i, stmt := range schemaStatements {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// NormalizeDSN converts a DATABASE_URL into a lib/pq connection URL.
// SQLAlchemy-style driver suffixes (postgresql+psycopg://) are dropped and
// every session is pinned to UTC.
func NormalizeDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}

	scheme, _, _ := strings.Cut(u.Scheme, "+")
	if scheme != "postgres" && scheme != "postgresql" {
		return "", fmt.Errorf("unsupported postgres scheme %q", u.Scheme)
	}
	u.Scheme = "postgres"

	q := u.Query()
	if q.Get("timezone") == "" {
		q.Set("timezone", "UTC")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Open builds the shared pool for a Postgres DATABASE_URL.
func Open(ctx context.Context, rawURL string, pool database.PoolConfig) (*database.DB, error) {
	dsn, err := NormalizeDSN(rawURL)
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, DriverName, dsn, pool)
}
