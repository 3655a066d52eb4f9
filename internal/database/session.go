package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrAcquireTimeout is returned when no pooled connection became available
// within the configured acquire timeout.
var ErrAcquireTimeout = errors.New("timed out waiting for a database connection")

// Querier is satisfied by *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithSession runs fn as one unit of work on a dedicated connection:
// checkout (bounded by the acquire timeout), pre-ping, BEGIN, fn, then
// COMMIT if fn returned nil or ROLLBACK otherwise. The connection goes back
// to the pool on every exit path, panics included.
func (db *DB) WithSession(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(ctx, tx)
	return
}

// acquire checks a connection out of the pool and pings it. A stale
// connection is discarded and checkout is retried once.
func (db *DB) acquire(ctx context.Context) (*sql.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := db.checkout(ctx)
		if err != nil {
			return nil, err
		}

		if err := conn.PingContext(ctx); err != nil {
			lastErr = err
			discard(conn)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("database connection failed health check: %w", lastErr)
}

func (db *DB) checkout(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()

	conn, err := db.conn.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, db.acquireTimeout)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// discard closes the underlying driver connection instead of returning it
// to the idle pool.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

// Ping runs SELECT 1 through a full session.
func (db *DB) Ping(ctx context.Context) error {
	return db.WithSession(ctx, func(ctx context.Context, q Querier) error {
		var one int
		if err := q.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("failed to run keep-alive query: %w", err)
		}
		if one != 1 {
			return fmt.Errorf("unexpected keep-alive result %d", one)
		}
		return nil
	})
}
