package terminal

import (
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/virtualfs"
)

// Manager owns the live sessions and evicts idle ones. A session survives a
// dropped connection until the idle timeout so a reconnect with the same
// token finds its program buffer intact.
type Manager struct {
	mu       sync.Mutex
	fs       *virtualfs.VFS
	sessions map[string]*Session
	done     chan struct{}
}

func NewManager(fs *virtualfs.VFS) *Manager {
	m := &Manager{
		fs:       fs,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Get returns the session for an ID, creating it on first use.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := NewSession(sessionID, m.fs)
	m.sessions[sessionID] = s
	logger.Info(logger.AreaSession, "session created: %s (%d active)", sessionID, len(m.sessions))
	return s
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops the reaper and all running programs.
func (m *Manager) Shutdown() {
	close(m.done)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Stop()
	}
	m.sessions = make(map[string]*Session)
}

func (m *Manager) reapLoop() {
	interval := time.Duration(configuration.GetInt("Server", "session_reap_minutes", 5)) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	timeout := time.Duration(configuration.GetInt("Server", "session_idle_minutes", 30)) * time.Minute
	cutoff := time.Now().Add(-timeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			s.Stop()
			delete(m.sessions, id)
			logger.Info(logger.AreaSession, "session reaped: %s (%d active)", id, len(m.sessions))
		}
	}
}
