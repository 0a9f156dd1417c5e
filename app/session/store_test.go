package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Set(1, Session{Email: "a@b.com", AccessToken: "tok"})

	got, ok := s.Get(1)
	require.True(t, ok)
	got.Email = "mutated@b.com"

	again, _ := s.Get(1)
	assert.Equal(t, "a@b.com", again.Email)
}

func TestSetForcesChatID(t *testing.T) {
	s := NewStore()
	s.Set(42, Session{ChatID: 7, AccessToken: "tok"})

	got, ok := s.Get(42)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.ChatID)
}

func TestUpdateCreatesMissingRecord(t *testing.T) {
	s := NewStore()
	s.Update(5, func(sess *Session) {
		sess.DefaultWalletID = "w-1"
	})

	got, ok := s.Get(5)
	require.True(t, ok)
	assert.Equal(t, int64(5), got.ChatID)
	assert.Equal(t, "w-1", got.DefaultWalletID)
	assert.False(t, s.IsAuthenticated(5), "record without token is not authenticated")
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Set(1, Session{AccessToken: "tok"})
	s.Clear(1)

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Empty(t, s.Token(1))
}

func TestTokenAndAuthenticationExpiry(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return base }

	s.Set(1, Session{AccessToken: "tok", ExpireAt: base.Add(time.Hour)})
	assert.True(t, s.IsAuthenticated(1))
	assert.Equal(t, "tok", s.Token(1))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.False(t, s.IsAuthenticated(1))
	assert.Empty(t, s.Token(1))
}

func TestZeroExpiryNeverExpires(t *testing.T) {
	s := NewStore()
	s.now = func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }
	s.Set(1, Session{AccessToken: "tok"})

	assert.True(t, s.IsAuthenticated(1))
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	s := NewStore()
	s.Set(1, Session{Email: "a@b.com"})

	assert.False(t, s.IsAuthenticated(1))
	assert.Empty(t, s.Token(1))
}
