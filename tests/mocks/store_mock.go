package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/storage"
)

// Store is a testify mock of the storage.Store interface.
type Store struct {
	mock.Mock
}

func (m *Store) SaveVitalSign(ctx context.Context, v models.VitalSign) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *Store) SaveVitalSignBatch(ctx context.Context, records []models.VitalSign) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *Store) UpsertVitalSignBatch(ctx context.Context, records []models.VitalSign) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *Store) SaveAlarm(ctx context.Context, a models.Alarm) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *Store) QueryVitalSigns(ctx context.Context, start, end time.Time, limit int) ([]models.VitalSign, error) {
	args := m.Called(ctx, start, end, limit)
	if records, ok := args.Get(0).([]models.VitalSign); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) QueryAlarms(ctx context.Context, start, end time.Time, limit int) ([]models.Alarm, error) {
	args := m.Called(ctx, start, end, limit)
	if alarms, ok := args.Get(0).([]models.Alarm); ok {
		return alarms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) LatestVitalSign(ctx context.Context) (models.VitalSign, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.VitalSign), args.Error(1)
}

func (m *Store) DeleteOldData(ctx context.Context, daysToKeep int) (int64, error) {
	args := m.Called(ctx, daysToKeep)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) Statistics(ctx context.Context, start, end time.Time) (storage.Statistics, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).(storage.Statistics), args.Error(1)
}
