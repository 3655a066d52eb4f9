// Package database owns the process-wide connection pool and the scoped
// unit of work every repository operation runs in.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultAcquireTimeout bounds how long a session waits for a pooled connection.
const DefaultAcquireTimeout = 30 * time.Second

// PoolConfig sizes the connection pool. Zero values leave database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

// Topology describes how the service reaches the store.
type Topology string

const (
	TopologyDirect Topology = "direct"
	TopologyPooler Topology = "pooler"
)

// DetectTopology treats port 6543 (a transaction pooler in front of
// Postgres) as pooled, everything else as a direct connection.
func DetectTopology(dsn string) Topology {
	if strings.Contains(dsn, ":6543/") {
		return TopologyPooler
	}
	return TopologyDirect
}

// DefaultPoolConfig returns pool sizing for a topology. A pooler upstream
// already multiplexes server connections and drops idle ones early.
func DefaultPoolConfig(t Topology) PoolConfig {
	if t == TopologyPooler {
		return PoolConfig{
			MaxOpenConns:    8,
			MaxIdleConns:    3,
			ConnMaxLifetime: 5 * time.Minute,
			AcquireTimeout:  DefaultAcquireTimeout,
		}
	}
	return PoolConfig{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AcquireTimeout:  DefaultAcquireTimeout,
	}
}

// DB wraps the shared *sql.DB pool. It is safe for concurrent use.
type DB struct {
	conn           *sql.DB
	acquireTimeout time.Duration
}

// Open creates the pool and verifies the store is reachable.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := New(conn, pool)

	pingCtx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// New wraps an existing pool and applies sizing to it.
func New(conn *sql.DB, pool PoolConfig) *DB {
	if pool.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	timeout := pool.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	return &DB{conn: conn, acquireTimeout: timeout}
}

// Stats exposes pool counters for logging.
func (db *DB) Stats() sql.DBStats {
	return db.conn.Stats()
}

// Close tears down the pool. Call once at shutdown.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}
