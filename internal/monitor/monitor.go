// Package monitor owns the single consumer loop that applies ingestion
// events to the display windows, the sync session and durable storage.
// Samples, alarms and connection-state changes all arrive on one channel
// and are applied in order, so the windows never see concurrent writers.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/storage"
	vsync "github.com/vitalio/vitalsync-agent/internal/sync"
	"github.com/vitalio/vitalsync-agent/internal/utils"
	"github.com/vitalio/vitalsync-agent/internal/window"
)

const eventBuffer = 1024

type event struct {
	vital     *models.VitalSign
	alarm     *models.Alarm
	connected *bool
}

// Monitor is the single owner of the display windows. All mutation happens
// on its loop goroutine.
type Monitor struct {
	trends  *window.TrendSet
	ecg     *window.ECGRing
	session *vsync.Session
	engine  *vsync.Engine
	store   storage.Store
	pool    *utils.WorkerPool
	logger  zerolog.Logger

	events chan event

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor wires the consumer loop to its collaborators.
func NewMonitor(trendCapacity int, session *vsync.Session, engine *vsync.Engine,
	store storage.Store, pool *utils.WorkerPool, logger zerolog.Logger) *Monitor {

	return &Monitor{
		trends:  window.NewTrendSet(trendCapacity),
		ecg:     window.NewECGRing(window.ECGRingSize),
		session: session,
		engine:  engine,
		store:   store,
		pool:    pool,
		logger:  logger,
		events:  make(chan event, eventBuffer),
	}
}

// Start launches the consumer loop.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return errors.New("monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runLoop()
	}()

	m.logger.Info().Msg("Monitor loop started")
	return nil
}

// Stop drains no further events and waits for the loop to exit.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return errors.New("monitor is not running")
	}

	m.cancel()
	m.wg.Wait()
	m.ctx = nil
	m.cancel = nil

	m.logger.Info().Msg("Monitor loop stopped")
	return nil
}

// OnVitalSign enqueues a reading for the consumer loop.
func (m *Monitor) OnVitalSign(v models.VitalSign) {
	m.events <- event{vital: &v}
}

// OnAlarm enqueues an alarm event.
func (m *Monitor) OnAlarm(a models.Alarm) {
	m.events <- event{alarm: &a}
}

// OnConnectionState enqueues a transport connectivity change.
func (m *Monitor) OnConnectionState(connected bool) {
	m.events <- event{connected: &connected}
}

// Trends returns the trend channels for the display layer. Reads race with
// the loop only when the loop is stopped or the caller synchronizes.
func (m *Monitor) Trends() *window.TrendSet { return m.trends }

// ECG returns the raw waveform ring.
func (m *Monitor) ECG() *window.ECGRing { return m.ecg }

func (m *Monitor) runLoop() {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Monitor) apply(ev event) {
	switch {
	case ev.vital != nil:
		m.applyVitalSign(*ev.vital)
	case ev.alarm != nil:
		m.applyAlarm(*ev.alarm)
	case ev.connected != nil:
		m.applyConnectionState(*ev.connected)
	}
}

func (m *Monitor) applyVitalSign(v models.VitalSign) {
	// Defensive re-check; the ingest boundary already validated.
	if !v.IsValid() {
		m.logger.Warn().
			Float64("temperature", v.Temperature).
			Int("heart_rate", v.HeartRate).
			Int("oxygen", v.OxygenSaturation).
			Msg("Rejected out-of-range reading")
		return
	}

	if err := m.trends.Append(v); err != nil {
		m.logger.Warn().Err(err).Time("ts", v.Timestamp).Msg("Reading arrived out of order, display skipped")
	}
	m.ecg.AppendAll(v.ECGSignal)

	if err := m.session.Submit(v); err != nil {
		m.logger.Warn().Err(err).Msg("Sync submit rejected reading")
	}

	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	if err := m.store.SaveVitalSign(ctx, v); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist reading")
	}
}

func (m *Monitor) applyAlarm(a models.Alarm) {
	m.logger.Warn().
		Str("type", a.Type.String()).
		Int("severity", a.Severity).
		Str("message", a.Message).
		Msg("Alarm received")

	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	if err := m.store.SaveAlarm(ctx, a); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist alarm")
	}

	if m.session.Authenticated() {
		m.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := m.engine.UploadAlarm(ctx, a); err != nil {
				m.logger.Warn().Err(err).Msg("Alarm upload failed")
			}
		})
	}
}

// applyConnectionState triggers a queue drain when connectivity returns,
// so offline backlog does not wait for the next timer firing.
func (m *Monitor) applyConnectionState(connected bool) {
	m.logger.Info().Bool("connected", connected).Msg("Transport connection state changed")
	if !connected || !m.session.Authenticated() {
		return
	}
	m.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := m.engine.SyncNow(ctx); err != nil && !errors.Is(err, vsync.ErrNotAuthenticated) {
			m.logger.Warn().Err(err).Msg("Reconnect sync failed")
		}
	})
}
