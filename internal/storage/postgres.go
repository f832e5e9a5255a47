package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS vital_signs (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL UNIQUE,
	temperature DOUBLE PRECISION NOT NULL,
	oxygen_saturation INTEGER NOT NULL,
	heart_rate INTEGER NOT NULL,
	ecg_signal TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_vital_signs_ts ON vital_signs (ts);

CREATE TABLE IF NOT EXISTS alarms (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	alarm_type INTEGER NOT NULL,
	message TEXT NOT NULL,
	severity INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alarms_ts ON alarms (ts);
`

const insertVitalSignSQL = `
INSERT INTO vital_signs (ts, temperature, oxygen_saturation, heart_rate, ecg_signal)
VALUES ($1, $2, $3, $4, $5)`

const upsertVitalSignSQL = insertVitalSignSQL + `
ON CONFLICT (ts) DO UPDATE SET
	temperature = EXCLUDED.temperature,
	oxygen_saturation = EXCLUDED.oxygen_saturation,
	heart_rate = EXCLUDED.heart_rate,
	ecg_signal = EXCLUDED.ecg_signal`

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore opens the database, verifies the connection and creates
// the schema if it is missing.
func NewPostgresStore(dsn string, maxConns int, logger zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// NewPostgresStoreFromDB wraps an already-open connection pool. The caller
// keeps ownership of the pool's lifecycle and schema.
func NewPostgresStoreFromDB(db *sql.DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Close releases the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveVitalSign persists one reading.
func (s *PostgresStore) SaveVitalSign(ctx context.Context, v models.VitalSign) error {
	ecg, err := json.Marshal(v.ECGSignal)
	if err != nil {
		return fmt.Errorf("failed to encode ecg signal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertVitalSignSQL,
		v.Timestamp, v.Temperature, v.OxygenSaturation, v.HeartRate, string(ecg))
	if err != nil {
		return fmt.Errorf("failed to save vital sign: %w", err)
	}
	return nil
}

// SaveVitalSignBatch persists a batch inside one transaction.
func (s *PostgresStore) SaveVitalSignBatch(ctx context.Context, records []models.VitalSign) error {
	return s.writeBatch(ctx, records, insertVitalSignSQL)
}

// UpsertVitalSignBatch merges a batch by timestamp inside one transaction.
func (s *PostgresStore) UpsertVitalSignBatch(ctx context.Context, records []models.VitalSign) error {
	return s.writeBatch(ctx, records, upsertVitalSignSQL)
}

func (s *PostgresStore) writeBatch(ctx context.Context, records []models.VitalSign, query string) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range records {
		ecg, err := json.Marshal(v.ECGSignal)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode ecg signal: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			v.Timestamp, v.Temperature, v.OxygenSaturation, v.HeartRate, string(ecg)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write batch record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// SaveAlarm persists one alarm event.
func (s *PostgresStore) SaveAlarm(ctx context.Context, a models.Alarm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (ts, alarm_type, message, severity) VALUES ($1, $2, $3, $4)`,
		a.Timestamp, int(a.Type), a.Message, a.Severity)
	if err != nil {
		return fmt.Errorf("failed to save alarm: %w", err)
	}
	return nil
}

// QueryVitalSigns returns readings in [start, end], newest first.
func (s *PostgresStore) QueryVitalSigns(ctx context.Context, start, end time.Time, limit int) ([]models.VitalSign, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, temperature, oxygen_saturation, heart_rate, ecg_signal
		FROM vital_signs
		WHERE ts BETWEEN $1 AND $2
		ORDER BY ts DESC
		LIMIT $3`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital signs: %w", err)
	}
	defer rows.Close()

	var result []models.VitalSign
	for rows.Next() {
		var v models.VitalSign
		var ecg string
		if err := rows.Scan(&v.Timestamp, &v.Temperature, &v.OxygenSaturation, &v.HeartRate, &ecg); err != nil {
			return nil, fmt.Errorf("failed to scan vital sign: %w", err)
		}
		if err := json.Unmarshal([]byte(ecg), &v.ECGSignal); err != nil {
			s.logger.Warn().Err(err).Time("ts", v.Timestamp).Msg("Corrupt ECG payload in row, skipping signal")
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// QueryAlarms returns alarms in [start, end], newest first.
func (s *PostgresStore) QueryAlarms(ctx context.Context, start, end time.Time, limit int) ([]models.Alarm, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, alarm_type, message, severity
		FROM alarms
		WHERE ts BETWEEN $1 AND $2
		ORDER BY ts DESC
		LIMIT $3`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	var result []models.Alarm
	for rows.Next() {
		var a models.Alarm
		var alarmType int
		if err := rows.Scan(&a.Timestamp, &alarmType, &a.Message, &a.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}
		a.Type = models.AlarmType(alarmType)
		result = append(result, a)
	}
	return result, rows.Err()
}

// LatestVitalSign returns the most recent reading.
func (s *PostgresStore) LatestVitalSign(ctx context.Context) (models.VitalSign, error) {
	var v models.VitalSign
	var ecg string
	err := s.db.QueryRowContext(ctx, `
		SELECT ts, temperature, oxygen_saturation, heart_rate, ecg_signal
		FROM vital_signs
		ORDER BY ts DESC
		LIMIT 1`).Scan(&v.Timestamp, &v.Temperature, &v.OxygenSaturation, &v.HeartRate, &ecg)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("failed to query latest vital sign: %w", err)
	}
	if err := json.Unmarshal([]byte(ecg), &v.ECGSignal); err != nil {
		s.logger.Warn().Err(err).Msg("Corrupt ECG payload in latest row")
	}
	return v, nil
}

// DeleteOldData removes readings older than the retention horizon and
// returns the number of rows deleted.
func (s *PostgresStore) DeleteOldData(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	res, err := s.db.ExecContext(ctx, `DELETE FROM vital_signs WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old data: %w", err)
	}
	deleted, _ := res.RowsAffected()
	s.logger.Info().Int64("rows", deleted).Time("cutoff", cutoff).Msg("Retention sweep completed")
	return deleted, nil
}

// Statistics aggregates averages over a range.
func (s *PostgresStore) Statistics(ctx context.Context, start, end time.Time) (Statistics, error) {
	var stats Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(temperature), 0),
		       COALESCE(AVG(heart_rate), 0),
		       COALESCE(AVG(oxygen_saturation), 0),
		       COUNT(*)
		FROM vital_signs
		WHERE ts BETWEEN $1 AND $2`, start, end).
		Scan(&stats.AvgTemperature, &stats.AvgHeartRate, &stats.AvgOxygen, &stats.TotalRecords)
	if err != nil {
		return stats, fmt.Errorf("failed to query statistics: %w", err)
	}
	return stats, nil
}
