// Package share issues and validates the time-scoped tokens that authorize
// third-party read access to a bounded data range.
package share

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// TokenLength is the hex length of an issued token.
const TokenLength = 32

// Registry owns the token-to-expiry mapping. Expiry is lazy: an expired
// token is evicted on its first failed validation, never by a background
// sweep.
type Registry struct {
	baseURL string
	tokens  cmap.ConcurrentMap[string, time.Time]
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRegistry creates a registry whose share links are rooted at baseURL.
func NewRegistry(baseURL string, logger zerolog.Logger) *Registry {
	return &Registry{
		baseURL: baseURL,
		tokens:  cmap.New[time.Time](),
		logger:  logger,
		now:     time.Now,
	}
}

// Issue derives a token from the owner, the shared range and the issuance
// instant, and registers it with an expiry of validDays from now. A
// per-issue nonce keeps two issuances distinct even within one clock tick.
// A non-positive validDays produces a token that fails its first
// validation; callers are expected to reject that at the boundary.
func (r *Registry) Issue(ownerID string, rangeStart, rangeEnd time.Time, validDays int) string {
	issuedAt := r.now()

	h := sha256.New()
	h.Write([]byte(ownerID))
	writeInstant(h, rangeStart)
	writeInstant(h, rangeEnd)
	writeInstant(h, issuedAt)
	nonce := uuid.New()
	h.Write(nonce[:])

	token := hex.EncodeToString(h.Sum(nil))[:TokenLength]
	expiry := issuedAt.AddDate(0, 0, validDays)
	r.tokens.Set(token, expiry)

	r.logger.Info().
		Str("owner", ownerID).
		Time("expiry", expiry).
		Msg("Share token issued")
	return token
}

// Validate reports whether the token grants access right now. An expired
// token is evicted so later lookups are plain misses.
func (r *Registry) Validate(token string) bool {
	expiry, ok := r.tokens.Get(token)
	if !ok {
		return false
	}
	if r.now().After(expiry) {
		r.tokens.Remove(token)
		r.logger.Debug().Msg("Expired share token evicted")
		return false
	}
	return true
}

// Revoke invalidates a token early. Revoking an absent token is a no-op.
func (r *Registry) Revoke(token string) {
	r.tokens.Remove(token)
}

// ShareLink returns the fully-qualified URL embedding the token.
func (r *Registry) ShareLink(token string) string {
	return fmt.Sprintf("%s/share?token=%s", r.baseURL, token)
}

// ActiveCount returns the number of registered tokens, expired entries
// included until their lazy eviction.
func (r *Registry) ActiveCount() int {
	return r.tokens.Count()
}

func writeInstant(h hash.Hash, t time.Time) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	h.Write(buf[:])
}
