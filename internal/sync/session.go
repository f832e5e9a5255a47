// Package sync implements the offline-tolerant synchronization core: the
// authentication session with its pending-upload queue, and the engine that
// drains it toward the cloud service.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/utils"
	"github.com/vitalio/vitalsync-agent/pkg/cloud"
)

// State is the authentication state of a Session.
type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateAuthenticated
)

var (
	// ErrNotAuthenticated is returned for operations that require a live
	// session token.
	ErrNotAuthenticated = errors.New("sync: not authenticated")

	// ErrAuthInProgress is returned when Authenticate is called while
	// another credential exchange is still running.
	ErrAuthInProgress = errors.New("sync: authentication already in progress")

	// ErrInvalidRecord is returned when a record fails the validity
	// predicate. Invalid records never enter the queue.
	ErrInvalidRecord = errors.New("sync: record failed validation")
)

// Session holds the authentication state and exclusively owns the
// pending-upload queue. Submit is safe to call concurrently with
// DrainQueue; neither loses nor duplicates records.
type Session struct {
	client cloud.Client
	pool   *utils.WorkerPool
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	token   string
	pending []models.VitalSign
}

// NewSession creates a logged-out session. The worker pool carries
// immediate sends so Submit never waits on network I/O.
func NewSession(client cloud.Client, pool *utils.WorkerPool, logger zerolog.Logger) *Session {
	return &Session{
		client: client,
		pool:   pool,
		logger: logger,
	}
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the current session token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether the session holds a live token. A token
// whose JWT expiry claim has passed demotes the session on the spot rather
// than letting callers retry with a dead credential.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return false
	}
	if tokenExpired(s.token) {
		s.logger.Warn().Msg("Session token expired, demoting to logged out")
		s.state = StateLoggedOut
		s.token = ""
		return false
	}
	return true
}

// Authenticate performs the credential exchange and transitions to
// Authenticated on success. On failure the session stays logged out and the
// error is surfaced to the caller.
func (s *Session) Authenticate(ctx context.Context, username, password string) error {
	s.mu.Lock()
	if s.state == StateAuthenticating {
		s.mu.Unlock()
		return ErrAuthInProgress
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	token, err := s.client.Login(ctx, username, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateLoggedOut
		s.token = ""
		return fmt.Errorf("authentication failed: %w", err)
	}

	s.state = StateAuthenticated
	s.token = token
	s.logger.Info().Msg("Session authenticated")
	return nil
}

// Logout clears the token and returns to the logged-out state. Records
// already queued stay queued.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoggedOut
	s.token = ""
	s.logger.Info().Msg("Session logged out")
}

// HandleUnauthorized demotes the session after a remote call was rejected
// with the current token.
func (s *Session) HandleUnauthorized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticated {
		s.logger.Warn().Msg("Remote rejected session token, demoting to logged out")
		s.state = StateLoggedOut
		s.token = ""
	}
}

// Submit accepts one validated reading. Logged out, it appends to the
// pending queue and returns immediately; authenticated, it hands the record
// to the worker pool for an immediate send and does not queue it. Either
// way the call is O(1) and never blocks on the network.
func (s *Session) Submit(v models.VitalSign) error {
	if !v.IsValid() {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.pending = append(s.pending, v)
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.mu.Unlock()

	if !s.pool.TrySubmit(func() { s.sendOne(token, v) }) {
		// Sender saturated; keep the record rather than wait or drop.
		s.mu.Lock()
		s.pending = append(s.pending, v)
		s.mu.Unlock()
	}
	return nil
}

// sendOne performs the immediate upload of a single record. A failed send
// re-queues the record for the next batch drain.
func (s *Session) sendOne(token string, v models.VitalSign) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.client.UploadVitalSign(ctx, token, v)
	if err == nil {
		return
	}
	if errors.Is(err, cloud.ErrUnauthorized) {
		s.HandleUnauthorized()
	}
	s.logger.Warn().Err(err).Msg("Immediate upload failed, queueing record")
	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()
}

// DrainQueue atomically moves the entire pending queue out as one ordered
// batch. It is a single slice handoff, never a copy-then-clear, so a crash
// between the two cannot duplicate a record. A logged-out session drains
// nothing.
func (s *Session) DrainQueue() []models.VitalSign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return batch
}

// Requeue puts a failed batch back at the front of the queue, preserving
// original order ahead of anything submitted since the drain.
func (s *Session) Requeue(batch []models.VitalSign) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(batch, s.pending...)
}

// PendingCount returns the number of queued records.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// tokenExpired inspects the exp claim of a JWT session token. Tokens that
// are not JWTs cannot be introspected and are assumed live until the
// server says otherwise.
func tokenExpired(token string) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return false
	}
	return time.Now().After(time.Unix(int64(exp), 0))
}
