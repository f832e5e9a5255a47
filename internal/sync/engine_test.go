package sync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vitalio/vitalsync-agent/internal/models"
	vsync "github.com/vitalio/vitalsync-agent/internal/sync"
	"github.com/vitalio/vitalsync-agent/internal/utils"
	"github.com/vitalio/vitalsync-agent/pkg/cloud"
	"github.com/vitalio/vitalsync-agent/tests/mocks"
)

func newEngine(client *mocks.CloudClient, store *mocks.Store) (*vsync.Engine, *vsync.Session) {
	pool := utils.NewWorkerPool(1, 8)
	session := vsync.NewSession(client, pool, zerolog.Nop())
	return vsync.NewEngine(session, client, store, zerolog.Nop()), session
}

func authenticate(t *testing.T, client *mocks.CloudClient, session *vsync.Session) {
	t.Helper()
	client.On("Login", mock.Anything, mock.Anything, mock.Anything).Return("session-token", nil)
	assert.NoError(t, session.Authenticate(context.Background(), "nurse", "secret"))
}

// TestEngine_SyncNowRequiresAuthentication tests that a logged-out session
// cannot trigger an upload.
func TestEngine_SyncNowRequiresAuthentication(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, _ := newEngine(client, store)

	err := engine.SyncNow(context.Background())
	assert.ErrorIs(t, err, vsync.ErrNotAuthenticated)
	client.AssertNotCalled(t, "UploadBatch", mock.Anything, mock.Anything, mock.Anything)
}

// TestEngine_SyncNowUploadsDrainedBatch tests the happy path: queued records
// go out as one batch and the queue ends empty.
func TestEngine_SyncNowUploadsDrainedBatch(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	for i := 0; i < 3; i++ {
		assert.NoError(t, session.Submit(validReading(i)))
	}
	authenticate(t, client, session)

	var uploaded []models.VitalSign
	client.On("UploadBatch", mock.Anything, "session-token", mock.Anything).
		Run(func(args mock.Arguments) {
			uploaded = args.Get(2).([]models.VitalSign)
		}).
		Return(nil)

	assert.NoError(t, engine.SyncNow(context.Background()))
	assert.Len(t, uploaded, 3)
	assert.Equal(t, validReading(0).HeartRate, uploaded[0].HeartRate)
	assert.Equal(t, 0, session.PendingCount())
}

// TestEngine_FailedBatchStaysRetriable tests that an upload failure loses
// nothing: the exact batch is re-queued and a later trigger delivers it.
func TestEngine_FailedBatchStaysRetriable(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	for i := 0; i < 2; i++ {
		assert.NoError(t, session.Submit(validReading(i)))
	}
	authenticate(t, client, session)

	client.On("UploadBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("network unreachable")).Once()

	err := engine.SyncNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, session.PendingCount())

	var retried []models.VitalSign
	client.On("UploadBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			retried = args.Get(2).([]models.VitalSign)
		}).
		Return(nil).Once()

	assert.NoError(t, engine.SyncNow(context.Background()))
	assert.Len(t, retried, 2)
	assert.Equal(t, validReading(0).HeartRate, retried[0].HeartRate)
	assert.Equal(t, validReading(1).HeartRate, retried[1].HeartRate)
	assert.Equal(t, 0, session.PendingCount())
}

// TestEngine_UnauthorizedUploadDemotesSession tests that a 401 on batch
// upload demotes the session and keeps the batch queued.
func TestEngine_UnauthorizedUploadDemotesSession(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	assert.NoError(t, session.Submit(validReading(0)))
	authenticate(t, client, session)

	client.On("UploadBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(cloud.ErrUnauthorized)

	err := engine.SyncNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, vsync.StateLoggedOut, session.State())
	assert.Equal(t, 1, session.PendingCount())
}

// TestEngine_EmptyQueueReportsIdle tests that a trigger with nothing queued
// performs no remote call.
func TestEngine_EmptyQueueReportsIdle(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)
	authenticate(t, client, session)

	var statuses []models.SyncPhase
	engine.SetNotify(func(s models.SyncStatus) { statuses = append(statuses, s.Phase) })

	assert.NoError(t, engine.SyncNow(context.Background()))
	assert.Equal(t, []models.SyncPhase{models.SyncIdle}, statuses)
	client.AssertNotCalled(t, "UploadBatch", mock.Anything, mock.Anything, mock.Anything)
}

// TestEngine_DownloadRangeMergesIntoStore tests download-then-merge: fetched
// history is upserted so replays cannot duplicate rows.
func TestEngine_DownloadRangeMergesIntoStore(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)
	authenticate(t, client, session)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	remote := []models.VitalSign{validReading(0), validReading(1)}

	client.On("DownloadHistory", mock.Anything, "session-token", start, end).Return(remote, nil)
	store.On("UpsertVitalSignBatch", mock.Anything, remote).Return(nil)

	records, err := engine.DownloadRange(context.Background(), start, end)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	store.AssertExpectations(t)
}

// TestEngine_DownloadRangeSurfacesMergeFailure tests that a store failure is
// reported rather than silently dropped.
func TestEngine_DownloadRangeSurfacesMergeFailure(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)
	authenticate(t, client, session)

	client.On("DownloadHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.VitalSign{validReading(0)}, nil)
	store.On("UpsertVitalSignBatch", mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	_, err := engine.DownloadRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "history merge failed")
}

// TestEngine_UploadAlarmRequiresAuthentication tests the alarm path.
func TestEngine_UploadAlarmRequiresAuthentication(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	a := models.Alarm{Type: models.AlarmHighHeartRate, Timestamp: time.Now(), Message: "HR 190"}
	assert.ErrorIs(t, engine.UploadAlarm(context.Background(), a), vsync.ErrNotAuthenticated)

	authenticate(t, client, session)
	client.On("UploadAlarm", mock.Anything, "session-token", a).Return(nil)
	assert.NoError(t, engine.UploadAlarm(context.Background(), a))
	client.AssertExpectations(t)
}

// TestEngine_OverlappingTriggersSkip tests the in-flight guard: a second
// trigger while an upload is running is reported as skipped and never
// splits the logical batch across two remote calls.
func TestEngine_OverlappingTriggersSkip(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	assert.NoError(t, session.Submit(validReading(0)))
	authenticate(t, client, session)

	var mu sync.Mutex
	var phases []models.SyncPhase
	engine.SetNotify(func(s models.SyncStatus) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	client.On("UploadBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()

	done := make(chan error, 1)
	go func() { done <- engine.SyncNow(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first trigger never reached the upload")
	}

	assert.NoError(t, engine.SyncNow(context.Background()))
	close(release)
	assert.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, phases, models.SyncSkipped)
	client.AssertNumberOfCalls(t, "UploadBatch", 1)
}

// TestEngine_LoggedOutTickerFiringIsNoOp tests that the periodic trigger
// stays quiet on a logged-out session: no remote call, queue untouched.
func TestEngine_LoggedOutTickerFiringIsNoOp(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	assert.NoError(t, session.Submit(validReading(0)))

	assert.NoError(t, engine.SetAutoSync(true, 10*time.Millisecond))
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, engine.SetAutoSync(false, 0))

	client.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "UploadBatch", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, session.PendingCount())
}

// TestEngine_AutoSyncLifecycle tests the start/stop guard rails.
func TestEngine_AutoSyncLifecycle(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, _ := newEngine(client, store)

	assert.Error(t, engine.SetAutoSync(true, 0))
	assert.NoError(t, engine.SetAutoSync(true, time.Hour))
	assert.Error(t, engine.SetAutoSync(true, time.Hour))
	assert.NoError(t, engine.SetAutoSync(false, 0))
	assert.Error(t, engine.SetAutoSync(false, 0))
}

// TestEngine_AutoSyncFiresWhileAuthenticated tests that the periodic trigger
// actually drains the queue.
func TestEngine_AutoSyncFiresWhileAuthenticated(t *testing.T) {
	client := new(mocks.CloudClient)
	store := new(mocks.Store)
	engine, session := newEngine(client, store)

	assert.NoError(t, session.Submit(validReading(0)))
	authenticate(t, client, session)

	uploaded := make(chan struct{})
	client.On("UploadBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(uploaded) }).
		Return(nil).Once()

	assert.NoError(t, engine.SetAutoSync(true, 20*time.Millisecond))
	defer func() { _ = engine.SetAutoSync(false, 0) }()

	select {
	case <-uploaded:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-sync never uploaded the queued record")
	}
}
