// Package session keeps per-chat authentication state in memory.
// Durability across restarts is intentionally out of scope; users re-login
// after a deploy.
package session

import (
	"sync"
	"time"
)

// Session holds what the bot knows about one authenticated chat.
// A session without an access token is equivalent to "not logged in".
type Session struct {
	ChatID          int64
	Email           string
	AccessToken     string
	RefreshToken    string
	OrganizationID  string
	DefaultWalletID string
	ExpireAt        time.Time
}

// Store is a process-wide map from chat id to session. All mutation runs
// under the store lock, so a read-modify-write on one chat never races with
// another mutation on the same chat.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the session for a chat, if one exists.
func (s *Store) Get(chatID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Set replaces the session for a chat. The chat id on the record is always
// forced to the key.
func (s *Store) Set(chatID int64, sess Session) {
	sess.ChatID = chatID
	s.mu.Lock()
	s.sessions[chatID] = &sess
	s.mu.Unlock()
}

// Update applies fn to the chat's session atomically, creating an empty
// record first if none exists. Used for in-place field updates such as
// set-default-wallet.
func (s *Store) Update(chatID int64, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &Session{ChatID: chatID}
		s.sessions[chatID] = sess
	}
	fn(sess)
	sess.ChatID = chatID
}

// Clear removes the session entirely. Called on logout and whenever the API
// reports the stored credentials invalid.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}

// Token returns the chat's access token when the session is still valid.
func (s *Store) Token(chatID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok || !s.valid(sess) {
		return ""
	}
	return sess.AccessToken
}

// IsAuthenticated reports whether the chat has a usable session: a record
// exists, carries a token, and any expiry set lies strictly in the future.
func (s *Store) IsAuthenticated(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	return ok && s.valid(sess)
}

func (s *Store) valid(sess *Session) bool {
	if sess.AccessToken == "" {
		return false
	}
	if !sess.ExpireAt.IsZero() && !sess.ExpireAt.After(s.now()) {
		return false
	}
	return true
}
