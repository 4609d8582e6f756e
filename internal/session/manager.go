package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chembench/server/internal/canvas"
	"github.com/chembench/server/pkg/lab"
)

// Manager is the registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// canvasOpts are applied to every new session's canvas, letting the
	// caller hook change notifications for streaming.
	canvasOpts func(id string) []canvas.Option
}

// NewManager creates an empty session registry. canvasOpts may be nil; when
// set it supplies per-session canvas options keyed by session ID.
func NewManager(canvasOpts func(id string) []canvas.Option) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		canvasOpts: canvasOpts,
	}
}

// Create registers a new session.
func (m *Manager) Create(lang lab.Language, role lab.Role) *Session {
	id := uuid.NewString()
	var opts []canvas.Option
	if m.canvasOpts != nil {
		opts = m.canvasOpts(id)
	}
	s := newSession(id, lang, role, opts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session by ID.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneIdle removes sessions idle longer than maxIdle and returns how many
// were removed.
func (m *Manager) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	var pruned int
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}
