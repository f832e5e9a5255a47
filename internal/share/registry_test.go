package share_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/vitalio/vitalsync-agent/internal/share"
)

func newRegistry() *share.Registry {
	return share.NewRegistry("https://ecg-app.com", zerolog.Nop())
}

// TestRegistry_IssueDistinctTokens tests that identical arguments at the
// same instant still yield distinct, independently valid tokens.
func TestRegistry_IssueDistinctTokens(t *testing.T) {
	r := newRegistry()
	frozen := time.Now()
	r.SetClock(func() time.Time { return frozen })

	start := frozen.Add(-24 * time.Hour)
	end := frozen

	tok1 := r.Issue("user-1", start, end, 7)
	tok2 := r.Issue("user-1", start, end, 7)

	assert.NotEqual(t, tok1, tok2)
	assert.Len(t, tok1, share.TokenLength)
	assert.Len(t, tok2, share.TokenLength)
	assert.True(t, r.Validate(tok1))
	assert.True(t, r.Validate(tok2))
}

// TestRegistry_ExpiryEvicts tests lazy expiry: a token valid for 7 days
// fails validation after a simulated advance and is evicted, so a second
// validation behaves like a never-issued token.
func TestRegistry_ExpiryEvicts(t *testing.T) {
	r := newRegistry()
	now := time.Now()
	r.SetClock(func() time.Time { return now })

	tok := r.Issue("user-1", now.Add(-time.Hour), now, 7)
	assert.True(t, r.Validate(tok))

	now = now.AddDate(0, 0, 8)
	assert.False(t, r.Validate(tok))
	assert.Equal(t, 0, r.ActiveCount())

	// Second check is a plain miss.
	assert.False(t, r.Validate(tok))
}

// TestRegistry_NonPositiveValidDays tests that issuance succeeds but the
// very next validation fails.
func TestRegistry_NonPositiveValidDays(t *testing.T) {
	r := newRegistry()
	now := time.Now()
	r.SetClock(func() time.Time { return now })

	tok := r.Issue("user-1", now.Add(-time.Hour), now, 0)
	assert.NotEmpty(t, tok)

	now = now.Add(time.Nanosecond)
	assert.False(t, r.Validate(tok))
}

// TestRegistry_Revoke tests explicit early invalidation, idempotent when
// the token is already gone.
func TestRegistry_Revoke(t *testing.T) {
	r := newRegistry()

	tok := r.Issue("user-1", time.Now().Add(-time.Hour), time.Now(), 7)
	assert.True(t, r.Validate(tok))

	r.Revoke(tok)
	assert.False(t, r.Validate(tok))

	// Revoking again is a no-op.
	r.Revoke(tok)
	assert.False(t, r.Validate(tok))
}

// TestRegistry_ShareLink tests the link format.
func TestRegistry_ShareLink(t *testing.T) {
	r := newRegistry()
	tok := r.Issue("user-1", time.Now().Add(-time.Hour), time.Now(), 7)

	assert.Equal(t, "https://ecg-app.com/share?token="+tok, r.ShareLink(tok))
}
