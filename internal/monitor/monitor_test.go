package monitor_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/monitor"
	vsync "github.com/vitalio/vitalsync-agent/internal/sync"
	"github.com/vitalio/vitalsync-agent/internal/utils"
	"github.com/vitalio/vitalsync-agent/tests/mocks"
)

func newMonitor(store *mocks.Store) (*monitor.Monitor, *vsync.Session) {
	client := new(mocks.CloudClient)
	pool := utils.NewWorkerPool(1, 8)
	session := vsync.NewSession(client, pool, zerolog.Nop())
	engine := vsync.NewEngine(session, client, store, zerolog.Nop())
	return monitor.NewMonitor(100, session, engine, store, pool, zerolog.Nop()), session
}

func reading(ts time.Time) models.VitalSign {
	return models.VitalSign{
		Timestamp:        ts,
		Temperature:      36.9,
		OxygenSaturation: 96,
		HeartRate:        74,
		ECGSignal:        []float64{0.1, 0.2, 0.3},
	}
}

// TestMonitor_ReadingFlowsToWindowsQueueAndStore tests the full apply path:
// one ingested reading lands in the trend windows, the ECG ring, the pending
// queue and durable storage.
func TestMonitor_ReadingFlowsToWindowsQueueAndStore(t *testing.T) {
	store := new(mocks.Store)
	mon, session := newMonitor(store)

	saved := make(chan struct{})
	store.On("SaveVitalSign", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(saved) }).
		Return(nil)

	assert.NoError(t, mon.Start())
	mon.OnVitalSign(reading(time.Unix(1700000000, 0)))

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("reading never reached storage")
	}
	assert.NoError(t, mon.Stop())

	assert.Equal(t, 1, mon.Trends().Temperature().Size())
	assert.Equal(t, 3, mon.ECG().Len())
	assert.Equal(t, 1, session.PendingCount())
}

// TestMonitor_OutOfRangeReadingIgnored tests the defensive validity check
// on the loop side of the channel.
func TestMonitor_OutOfRangeReadingIgnored(t *testing.T) {
	store := new(mocks.Store)
	mon, session := newMonitor(store)

	store.On("SaveVitalSign", mock.Anything, mock.Anything).Return(nil)

	assert.NoError(t, mon.Start())
	bad := reading(time.Unix(1700000000, 0))
	bad.HeartRate = 300
	mon.OnVitalSign(bad)
	mon.OnVitalSign(reading(time.Unix(1700000001, 0)))

	assert.Eventually(t, func() bool { return session.PendingCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.NoError(t, mon.Stop())

	assert.Equal(t, 1, mon.Trends().Temperature().Size())
	store.AssertNumberOfCalls(t, "SaveVitalSign", 1)
}

// TestMonitor_AlarmPersisted tests that an alarm event reaches storage even
// with a logged-out session.
func TestMonitor_AlarmPersisted(t *testing.T) {
	store := new(mocks.Store)
	mon, _ := newMonitor(store)

	saved := make(chan struct{})
	store.On("SaveAlarm", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(saved) }).
		Return(nil)

	assert.NoError(t, mon.Start())
	mon.OnAlarm(models.Alarm{
		Timestamp: time.Unix(1700000000, 0),
		Type:      models.AlarmLowOxygen,
		Message:   "SpO2 85",
		Severity:  4,
	})

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("alarm never reached storage")
	}
	assert.NoError(t, mon.Stop())
}

func TestMonitor_LifecycleGuards(t *testing.T) {
	store := new(mocks.Store)
	mon, _ := newMonitor(store)

	assert.Error(t, mon.Stop())
	assert.NoError(t, mon.Start())
	assert.Error(t, mon.Start())
	assert.NoError(t, mon.Stop())
}
