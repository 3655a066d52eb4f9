package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinrf/smartband-edge/internal/database"
	"github.com/quentinrf/smartband-edge/internal/domain"
)

var readingCols = []string{"id", "smart_band_id", "pulse", "status", "timestamp"}

func setupMockRepo(t *testing.T) (sqlmock.Sqlmock, *ReadingRepository, *database.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := database.New(conn, database.PoolConfig{})
	t.Cleanup(func() { db.Close() })

	return mock, NewReadingRepository(db), db
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO heart_rate_readings`).
		WithArgs(int64(1), 72, "NORMAL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(5), ts))
	mock.ExpectCommit()

	reading, err := domain.NewHeartRateReading(1, 72)
	require.NoError(t, err)

	id, err := repo.Save(context.Background(), reading)

	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, int64(5), reading.ID())
	assert.True(t, reading.Timestamp().Equal(ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_StorageFailureRollsBack(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO heart_rate_readings`).
		WillReturnError(errors.New("server closed the connection unexpectedly"))
	mock.ExpectRollback()

	reading, _ := domain.NewHeartRateReading(1, 72)
	_, err := repo.Save(context.Background(), reading)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.False(t, errors.Is(err, domain.ErrInvalidInput))
	assert.False(t, reading.Persisted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_Found(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, smart_band_id, pulse, status, "timestamp" FROM heart_rate_readings WHERE id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(readingCols).AddRow(int64(5), int64(1), 130, "HIGH", ts))
	mock.ExpectCommit()

	reading, found, err := repo.FindByID(context.Background(), 5)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), reading.SmartBandID())
	assert.Equal(t, 130, reading.Pulse())
	assert.Equal(t, domain.StatusHigh, reading.Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFoundIsNotAnError(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM heart_rate_readings WHERE id`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(readingCols))
	mock.ExpectCommit()

	reading, found, err := repo.FindByID(context.Background(), 404)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, reading)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByDevice_NewestFirst(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(readingCols).
		AddRow(int64(3), int64(1), 110, "ELEVATED", base.Add(2*time.Minute)).
		AddRow(int64(2), int64(1), 80, "NORMAL", base.Add(time.Minute))

	mock.ExpectBegin()
	mock.ExpectQuery(`ORDER BY "timestamp" DESC, id DESC`).
		WithArgs(int64(1), 2).
		WillReturnRows(rows)
	mock.ExpectCommit()

	readings, err := repo.FindByDevice(context.Background(), 1, 2)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, int64(3), readings[0].ID())
	assert.Equal(t, int64(2), readings[1].ID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByDevice_DefaultLimitAndEmpty(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM heart_rate_readings`).
		WithArgs(int64(999), domain.DefaultHistoryLimit).
		WillReturnRows(sqlmock.NewRows(readingCols))
	mock.ExpectCommit()

	readings, err := repo.FindByDevice(context.Background(), 999, 0)

	require.NoError(t, err)
	assert.NotNil(t, readings)
	assert.Len(t, readings, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByDevice_RejectsTamperedStatus(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM heart_rate_readings`).
		WillReturnRows(sqlmock.NewRows(readingCols).AddRow(int64(1), int64(1), 72, "HIGH", time.Now()))
	mock.ExpectRollback()

	_, err := repo.FindByDevice(context.Background(), 1, 5)

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\), MIN\(pulse\), MAX\(pulse\), AVG\(pulse\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min", "max", "avg"}).AddRow(int64(3), int64(60), int64(120), 90.0))
	mock.ExpectCommit()

	stats, err := repo.Aggregate(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 60, *stats.Min)
	assert.Equal(t, 120, *stats.Max)
	assert.Equal(t, 90.0, *stats.Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_EmptyBand(t *testing.T) {
	mock, repo, _ := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min", "max", "avg"}).AddRow(int64(0), nil, nil, nil))
	mock.ExpectCommit()

	stats, err := repo.Aggregate(context.Background(), 999)

	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
	assert.Nil(t, stats.Min)
	assert.Nil(t, stats.Max)
	assert.Nil(t, stats.Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, _, db := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS heart_rate_readings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS ix_heart_rate_readings_band_ts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "psycopg url from a python deployment",
			in:   "postgresql+psycopg://user:pw@db.example.com:6543/postgres",
			want: "postgres://user:pw@db.example.com:6543/postgres?timezone=UTC",
		},
		{
			name: "keeps existing parameters",
			in:   "postgres://user:pw@localhost:5432/app?sslmode=disable",
			want: "postgres://user:pw@localhost:5432/app?sslmode=disable&timezone=UTC",
		},
		{
			name:    "mysql is rejected",
			in:      "mysql://user:pw@localhost/app",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDSN(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
