package notify

import (
	"context"
	"sync"
)

// Manager owns at most one deposit listener per chat. Login replaces any
// previous listener; logout stops it.
type Manager struct {
	cfg  Config
	auth Authorizer

	onDeposit func(chatID int64, ev DepositEvent)

	mu        sync.Mutex
	listeners map[int64]*Listener
}

// NewManager builds an empty Manager.
func NewManager(cfg Config, auth Authorizer, onDeposit func(int64, DepositEvent)) *Manager {
	return &Manager{
		cfg:       cfg,
		auth:      auth,
		onDeposit: onDeposit,
		listeners: make(map[int64]*Listener),
	}
}

// Start subscribes the chat to its organization channel. A chat without an
// organization id has no channel to watch, so it is skipped.
func (m *Manager) Start(ctx context.Context, chatID int64, token, orgID string) {
	if orgID == "" || token == "" {
		return
	}

	m.mu.Lock()
	if old, ok := m.listeners[chatID]; ok {
		delete(m.listeners, chatID)
		m.mu.Unlock()
		old.Stop()
		m.mu.Lock()
	}
	l := NewListener(m.cfg, m.auth, chatID, token, orgID, m.onDeposit)
	m.listeners[chatID] = l
	m.mu.Unlock()

	l.Start(ctx)
}

// Stop ends the chat's listener, if any.
func (m *Manager) Stop(chatID int64) {
	m.mu.Lock()
	l, ok := m.listeners[chatID]
	if ok {
		delete(m.listeners, chatID)
	}
	m.mu.Unlock()
	if ok {
		l.Stop()
	}
}

// Close stops every listener.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Listener, 0, len(m.listeners))
	for id, l := range m.listeners {
		all = append(all, l)
		delete(m.listeners, id)
	}
	m.mu.Unlock()
	for _, l := range all {
		l.Stop()
	}
}
