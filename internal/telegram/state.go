package telegram

import "sync"

type SessionState int

const (
	StateIdle SessionState = iota
	StateBrowsingStyles
	StateCollectingSelfies
)

// Session holds the per-chat conversation position. Sessions live in memory
// only; a restart drops everyone back to idle.
type Session struct {
	State         SessionState
	StyleIndex    int
	StyleTitle    string
	StylePrompt   string
	SelfieFileIDs []string
}

type StateManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
	}
}

func (m *StateManager) Get(chatID int64) *Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return session
	}
	return &Session{
		State:         StateIdle,
		SelfieFileIDs: make([]string, 0),
	}
}

func (m *StateManager) Set(chatID int64, session *Session) {
	m.mu.Lock()
	m.sessions[chatID] = session
	m.mu.Unlock()
}

func (m *StateManager) Reset(chatID int64) {
	m.Set(chatID, &Session{
		State:         StateIdle,
		SelfieFileIDs: make([]string, 0),
	})
}
