package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T, pool PoolConfig) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := New(conn, pool)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithSession_CommitsOnSuccess(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO things`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, "INSERT INTO things VALUES (1)")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})
	boom := errors.New("constraint violated")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO things`).WillReturnError(boom)
	mock.ExpectRollback()

	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, "INSERT INTO things VALUES (1)")
		return err
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_RollsBackOnPanic(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_ReportsCommitFailure(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_BeginFailure(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin().WillReturnError(errors.New("too many clients"))

	called := false
	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSession_AcquireTimeout(t *testing.T) {
	db, _ := setupMockDB(t, PoolConfig{MaxOpenConns: 1, AcquireTimeout: 50 * time.Millisecond})

	held, err := db.conn.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	err = db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		t.Fatal("fn must not run without a connection")
		return nil
	})

	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// stubConnector hands out connections whose Ping results are scripted in
// open order. It counts opened and closed driver connections.
type stubConnector struct {
	mu     sync.Mutex
	pings  []error
	opens  int
	closes int
}

func (c *stubConnector) Connect(context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pingErr error
	if c.opens < len(c.pings) {
		pingErr = c.pings[c.opens]
	}
	c.opens++
	return &stubConn{owner: c, pingErr: pingErr}, nil
}

func (c *stubConnector) Driver() driver.Driver { return stubDriver{} }

func (c *stubConnector) counts() (opens, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.closes
}

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("stub driver only opens through its connector")
}

type stubConn struct {
	owner   *stubConnector
	pingErr error
}

func (c *stubConn) Ping(context.Context) error { return c.pingErr }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}

func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c *stubConn) Close() error {
	c.owner.mu.Lock()
	c.owner.closes++
	c.owner.mu.Unlock()
	return nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func TestWithSession_StaleConnectionIsReplaced(t *testing.T) {
	connector := &stubConnector{pings: []error{driver.ErrBadConn, nil}}
	db := New(sql.OpenDB(connector), PoolConfig{MaxOpenConns: 2})
	t.Cleanup(func() { db.Close() })

	called := false
	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	opens, closes := connector.counts()
	assert.Equal(t, 2, opens, "a fresh connection replaces the stale one")
	assert.Equal(t, 1, closes, "only the stale connection is closed")
}

func TestWithSession_GivesUpAfterSecondFailedPing(t *testing.T) {
	unreachable := errors.New("server closed the connection unexpectedly")
	connector := &stubConnector{pings: []error{unreachable, unreachable}}
	db := New(sql.OpenDB(connector), PoolConfig{MaxOpenConns: 2})
	t.Cleanup(func() { db.Close() })

	called := false
	err := db.WithSession(context.Background(), func(ctx context.Context, q Querier) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, unreachable)
	assert.Contains(t, err.Error(), "failed health check")
	assert.False(t, called, "fn must not run on an unhealthy connection")
	opens, closes := connector.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes, "both unhealthy connections are discarded")
}

func TestPing(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing_Failure(t *testing.T) {
	db, mock := setupMockDB(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("server closed the connection"))
	mock.ExpectRollback()

	err := db.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keep-alive")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultPoolConfig(t *testing.T) {
	tests := []struct {
		dsn      string
		topology Topology
		maxOpen  int
		lifetime time.Duration
	}{
		{
			dsn:      "postgresql://user:pw@aws-0-eu.pooler.supabase.com:6543/postgres",
			topology: TopologyPooler,
			maxOpen:  8,
			lifetime: 5 * time.Minute,
		},
		{
			dsn:      "postgresql://user:pw@db.example.com:5432/postgres",
			topology: TopologyDirect,
			maxOpen:  15,
			lifetime: 30 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.topology), func(t *testing.T) {
			topo := DetectTopology(tt.dsn)
			assert.Equal(t, tt.topology, topo)

			pool := DefaultPoolConfig(topo)
			assert.Equal(t, tt.maxOpen, pool.MaxOpenConns)
			assert.Equal(t, tt.lifetime, pool.ConnMaxLifetime)
			assert.Equal(t, DefaultAcquireTimeout, pool.AcquireTimeout)
		})
	}
}
