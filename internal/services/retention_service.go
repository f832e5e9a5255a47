package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/storage"
)

// RetentionService periodically deletes readings older than the retention
// horizon so local storage does not grow without bound.
type RetentionService struct {
	KeepDays int
	Interval time.Duration
	Store    storage.Store
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionService initializes a new RetentionService.
func NewRetentionService(keepDays int, interval time.Duration, store storage.Store, logger zerolog.Logger) *RetentionService {
	return &RetentionService{
		KeepDays: keepDays,
		Interval: interval,
		Store:    store,
		Logger:   logger,
	}
}

// Start launches the sweep loop in a separate goroutine.
func (s *RetentionService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("RetentionService is already running")
		return errors.New("retention service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweepLoop()
	}()

	s.Logger.Info().Int("keep_days", s.KeepDays).Msg("RetentionService started successfully")
	return nil
}

// Stop gracefully stops the retention service.
func (s *RetentionService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("RetentionService is not running")
		return errors.New("retention service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("RetentionService stopped successfully")
	return nil
}

// runSweepLoop deletes old data at the configured interval.
func (s *RetentionService) runSweepLoop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
			deleted, err := s.Store.DeleteOldData(ctx, s.KeepDays)
			cancel()
			if err != nil {
				s.Logger.Error().Err(err).Msg("Retention sweep failed")
			} else if deleted > 0 {
				s.Logger.Info().Int64("rows", deleted).Msg("Retention sweep deleted old readings")
			}

		case <-s.ctx.Done():
			s.Logger.Info().Msg("RetentionService stopping gracefully")
			return
		}
	}
}
