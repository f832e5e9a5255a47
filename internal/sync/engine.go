package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/storage"
	"github.com/vitalio/vitalsync-agent/pkg/cloud"
)

// NotifyFunc receives sync status signals. It is invoked from sync
// goroutines and must not block.
type NotifyFunc func(models.SyncStatus)

// Engine orchestrates batch uploads, the periodic auto-sync trigger and
// download-then-merge of remote history. It performs no implicit retry
// loop: a failed batch stays queued and the next trigger (timer or manual)
// picks it up.
type Engine struct {
	session *Session
	client  cloud.Client
	store   storage.Store
	logger  zerolog.Logger

	notify   NotifyFunc
	inFlight atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	interval time.Duration
}

// NewEngine wires the engine to its session, cloud client and store.
func NewEngine(session *Session, client cloud.Client, store storage.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		session: session,
		client:  client,
		store:   store,
		logger:  logger,
		notify:  func(models.SyncStatus) {},
	}
}

// SetNotify registers the status callback. Must be called before the
// engine starts syncing.
func (e *Engine) SetNotify(fn NotifyFunc) {
	if fn != nil {
		e.notify = fn
	}
}

// SyncNow drains the pending queue and uploads it as one batch. It returns
// ErrNotAuthenticated on a logged-out session and reports a skip when an
// upload is already in flight, so concurrent triggers cannot split one
// logical batch across two uploads.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.session.Authenticated() {
		return ErrNotAuthenticated
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		e.notify(models.SyncStatus{Phase: models.SyncSkipped, Message: "sync already in flight"})
		return nil
	}
	defer e.inFlight.Store(false)

	batch := e.session.DrainQueue()
	if len(batch) == 0 {
		e.notify(models.SyncStatus{Phase: models.SyncIdle, Message: "nothing to upload"})
		return nil
	}
	return e.uploadBatch(ctx, batch)
}

// UploadBatch sends records as one remote write. On any failure the batch
// is re-queued in order, leaving the caller free to trigger again with the
// exact same records.
func (e *Engine) UploadBatch(ctx context.Context, batch []models.VitalSign) error {
	if len(batch) == 0 {
		return nil
	}
	if !e.session.Authenticated() {
		e.session.Requeue(batch)
		return ErrNotAuthenticated
	}
	return e.uploadBatch(ctx, batch)
}

func (e *Engine) uploadBatch(ctx context.Context, batch []models.VitalSign) error {
	e.notify(models.SyncStatus{Phase: models.SyncUploading, RecordCount: len(batch),
		Message: fmt.Sprintf("uploading %d records", len(batch))})

	err := e.client.UploadBatch(ctx, e.session.Token(), batch)
	if err != nil {
		if errors.Is(err, cloud.ErrUnauthorized) {
			e.session.HandleUnauthorized()
		}
		e.session.Requeue(batch)
		e.logger.Warn().Err(err).Int("records", len(batch)).Msg("Batch upload failed, batch re-queued")
		e.notify(models.SyncStatus{Phase: models.SyncFailed, RecordCount: len(batch),
			Message: "batch upload failed", Err: err})
		return fmt.Errorf("batch upload failed: %w", err)
	}

	e.logger.Info().Int("records", len(batch)).Msg("Batch uploaded")
	e.notify(models.SyncStatus{Phase: models.SyncUploaded, RecordCount: len(batch),
		Message: fmt.Sprintf("uploaded %d records", len(batch))})
	return nil
}

// UploadAlarm sends one alarm event. Alarms require an authenticated
// session and are not queued.
func (e *Engine) UploadAlarm(ctx context.Context, a models.Alarm) error {
	if !e.session.Authenticated() {
		return ErrNotAuthenticated
	}
	err := e.client.UploadAlarm(ctx, e.session.Token(), a)
	if err != nil {
		if errors.Is(err, cloud.ErrUnauthorized) {
			e.session.HandleUnauthorized()
		}
		return fmt.Errorf("alarm upload failed: %w", err)
	}
	return nil
}

// DownloadRange fetches remote records in [start, end] and merges them into
// local storage, upserting by timestamp so replays cannot duplicate rows.
func (e *Engine) DownloadRange(ctx context.Context, start, end time.Time) ([]models.VitalSign, error) {
	if !e.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	e.notify(models.SyncStatus{Phase: models.SyncDownloading, Message: "downloading history"})

	records, err := e.client.DownloadHistory(ctx, e.session.Token(), start, end)
	if err != nil {
		if errors.Is(err, cloud.ErrUnauthorized) {
			e.session.HandleUnauthorized()
		}
		e.notify(models.SyncStatus{Phase: models.SyncFailed, Message: "history download failed", Err: err})
		return nil, fmt.Errorf("history download failed: %w", err)
	}

	if err := e.store.UpsertVitalSignBatch(ctx, records); err != nil {
		e.notify(models.SyncStatus{Phase: models.SyncFailed, Message: "history merge failed", Err: err})
		return nil, fmt.Errorf("history merge failed: %w", err)
	}

	e.notify(models.SyncStatus{Phase: models.SyncDownloaded, RecordCount: len(records),
		Message: fmt.Sprintf("downloaded %d records", len(records))})
	return records, nil
}

// SetAutoSync configures the periodic trigger. Enabling starts a ticker
// goroutine; a firing with a logged-out session is a silent no-op so the
// timer keeps running regardless of auth state. Disabling stops future
// firings only; an in-flight upload is never interrupted.
func (e *Engine) SetAutoSync(enabled bool, interval time.Duration) error {
	if enabled {
		return e.startAutoSync(interval)
	}
	return e.stopAutoSync()
}

func (e *Engine) startAutoSync(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("auto-sync interval must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		e.logger.Warn().Msg("Auto-sync is already running")
		return errors.New("auto-sync is already running")
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.interval = interval

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runAutoSyncLoop()
	}()

	e.logger.Info().Dur("interval", interval).Msg("Auto-sync enabled")
	return nil
}

func (e *Engine) stopAutoSync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		e.logger.Warn().Msg("Auto-sync is not running")
		return errors.New("auto-sync is not running")
	}

	e.cancel()
	e.wg.Wait()
	e.ctx = nil
	e.cancel = nil

	e.logger.Info().Msg("Auto-sync disabled")
	return nil
}

// runAutoSyncLoop fires the sync trigger on every tick. Firings are
// serialized: the upload runs on this goroutine and the in-flight guard in
// SyncNow drops any trigger that would overlap a manual sync.
func (e *Engine) runAutoSyncLoop() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !e.session.Authenticated() {
				continue
			}
			if err := e.SyncNow(e.ctx); err != nil && !errors.Is(err, ErrNotAuthenticated) {
				e.logger.Warn().Err(err).Msg("Auto-sync attempt failed")
			}
		case <-e.ctx.Done():
			e.logger.Info().Msg("Auto-sync loop stopping")
			return
		}
	}
}
