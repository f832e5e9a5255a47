// Package storage provides durable local persistence for readings and
// alarms.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("storage: not found")

// Statistics summarizes a queried time range.
type Statistics struct {
	AvgTemperature float64
	AvgHeartRate   float64
	AvgOxygen      float64
	TotalRecords   int
}

// Store is the durable-storage contract. Batch saves are atomic: either
// every record in the batch lands or none do.
type Store interface {
	SaveVitalSign(ctx context.Context, v models.VitalSign) error
	SaveVitalSignBatch(ctx context.Context, records []models.VitalSign) error
	// UpsertVitalSignBatch merges downloaded history using the reading
	// timestamp as the natural key, so replayed downloads are idempotent.
	UpsertVitalSignBatch(ctx context.Context, records []models.VitalSign) error
	SaveAlarm(ctx context.Context, a models.Alarm) error
	QueryVitalSigns(ctx context.Context, start, end time.Time, limit int) ([]models.VitalSign, error)
	QueryAlarms(ctx context.Context, start, end time.Time, limit int) ([]models.Alarm, error)
	LatestVitalSign(ctx context.Context) (models.VitalSign, error)
	DeleteOldData(ctx context.Context, daysToKeep int) (int64, error)
	Statistics(ctx context.Context, start, end time.Time) (Statistics, error)
}
