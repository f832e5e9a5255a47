package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/storage"
)

func newStore(t *testing.T) (*storage.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewPostgresStoreFromDB(db, zerolog.Nop()), mock
}

func TestPostgresStore_SaveVitalSign(t *testing.T) {
	store, mock := newStore(t)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vital_signs")).
		WithArgs(ts, 36.7, 98, 71, "[0.1,0.2]").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveVitalSign(context.Background(), models.VitalSign{
		Timestamp:        ts,
		Temperature:      36.7,
		OxygenSaturation: 98,
		HeartRate:        71,
		ECGSignal:        []float64{0.1, 0.2},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore_BatchIsTransactional tests all-or-nothing semantics: a
// failing record rolls the whole batch back.
func TestPostgresStore_BatchIsTransactional(t *testing.T) {
	store, mock := newStore(t)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.VitalSign{
		{Timestamp: ts, Temperature: 36.7, OxygenSaturation: 98, HeartRate: 71},
		{Timestamp: ts.Add(time.Second), Temperature: 36.8, OxygenSaturation: 97, HeartRate: 72},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO vital_signs"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveVitalSignBatch(context.Background(), records)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore_UpsertMergesByTimestamp tests that the merge path uses
// the conflict clause rather than a plain insert.
func TestPostgresStore_UpsertMergesByTimestamp(t *testing.T) {
	store, mock := newStore(t)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("ON CONFLICT (ts) DO UPDATE"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.UpsertVitalSignBatch(context.Background(), []models.VitalSign{
		{Timestamp: ts, Temperature: 36.7, OxygenSaturation: 98, HeartRate: 71},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmptyBatchSkipsTransaction(t *testing.T) {
	store, mock := newStore(t)

	assert.NoError(t, store.SaveVitalSignBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryVitalSigns(t *testing.T) {
	store, mock := newStore(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{"ts", "temperature", "oxygen_saturation", "heart_rate", "ecg_signal"}).
		AddRow(start.Add(2*time.Hour), 36.8, 97, 72, "[0.3]").
		AddRow(start.Add(time.Hour), 36.7, 98, 71, "[]")

	mock.ExpectQuery(regexp.QuoteMeta("FROM vital_signs")).
		WithArgs(start, end, 1000).
		WillReturnRows(rows)

	records, err := store.QueryVitalSigns(context.Background(), start, end, 0)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 72, records[0].HeartRate)
	assert.Equal(t, []float64{0.3}, records[0].ECGSignal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryAlarms(t *testing.T) {
	store, mock := newStore(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{"ts", "alarm_type", "message", "severity"}).
		AddRow(start.Add(2*time.Hour), 1, "HR 190", 5).
		AddRow(start.Add(time.Hour), 0, "SpO2 85", 4)

	mock.ExpectQuery(regexp.QuoteMeta("FROM alarms")).
		WithArgs(start, end, 100).
		WillReturnRows(rows)

	alarms, err := store.QueryAlarms(context.Background(), start, end, 0)
	assert.NoError(t, err)
	assert.Len(t, alarms, 2)
	assert.Equal(t, models.AlarmHighHeartRate, alarms[0].Type)
	assert.Equal(t, models.AlarmLowOxygen, alarms[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestVitalSignNotFound(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ts DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"ts", "temperature", "oxygen_saturation", "heart_rate", "ecg_signal"}))

	_, err := store.LatestVitalSign(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresStore_DeleteOldDataReportsRows(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vital_signs")).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := store.DeleteOldData(context.Background(), 30)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
}

func TestPostgresStore_Statistics(t *testing.T) {
	store, mock := newStore(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(AVG(temperature), 0)")).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"avg_t", "avg_hr", "avg_ox", "count"}).
			AddRow(36.75, 71.5, 97.5, 2))

	stats, err := store.Statistics(context.Background(), start, end)
	assert.NoError(t, err)
	assert.Equal(t, 36.75, stats.AvgTemperature)
	assert.Equal(t, 2, stats.TotalRecords)
}
