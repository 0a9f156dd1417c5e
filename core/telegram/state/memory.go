package state

import "sync"

type memoryManager struct {
	mu    sync.RWMutex
	convs map[int64]*Conversation
}

// NewMemoryManager constructs an in-memory Manager. Conversations do not
// survive process restarts, matching the session store's lifetime.
func NewMemoryManager() Manager {
	return &memoryManager{convs: make(map[int64]*Conversation)}
}

func (m *memoryManager) Active(chatID int64) (Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[chatID]
	if !ok {
		return Conversation{}, false
	}
	return *conv, true
}

func (m *memoryManager) Begin(chatID int64, flow Flow, step Step, data any) {
	m.mu.Lock()
	m.convs[chatID] = &Conversation{Flow: flow, Step: step, Data: data}
	m.mu.Unlock()
}

func (m *memoryManager) Transition(chatID int64, step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[chatID]; ok {
		conv.Step = step
	}
}

func (m *memoryManager) End(chatID int64) {
	m.mu.Lock()
	delete(m.convs, chatID)
	m.mu.Unlock()
}

func (m *memoryManager) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.convs[chatID]
	return ok
}
