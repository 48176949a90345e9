package live

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/renderer"
)

// Session is a persistent browser context for multi-step ACT flows
// (login → navigate → purchase), keyed by a monotonic session id
// (§4.12). Distinct from acquisition.HttpSession, which tracks
// cookie-jar state for the plain-HTTP login flows in §4.10 — this one
// owns a live renderer.RenderContext.
type Session struct {
	ID           string
	AuditID      string // stable correlation id for the audit ledger, independent of the human-facing sess-N id
	context      renderer.RenderContext
	createdAt    time.Time
	lastAccessed time.Time
	timeout      time.Duration
	mu           sync.Mutex
}

func newSession(id string, ctx renderer.RenderContext, timeout time.Duration) *Session {
	now := time.Now()
	return &Session{ID: id, AuditID: uuid.NewString(), context: ctx, createdAt: now, lastAccessed: now, timeout: timeout}
}

// IsExpired reports whether the session has gone unused past its timeout.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastAccessed) > s.timeout
}

// touch marks the session as just accessed.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
}

// Context returns the session's render context, marking it as accessed.
func (s *Session) Context() renderer.RenderContext {
	s.touch()
	return s.context
}

// Age reports how long the session has been alive.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

func (s *Session) close() error {
	return s.context.Close()
}

var sessionIDCounter int64

func nextLiveSessionID() string {
	n := atomic.AddInt64(&sessionIDCounter, 1)
	return fmt.Sprintf("sess-%d", n)
}

// SessionManager holds the active browser sessions for multi-step flows
// (§4.12): a mutex-guarded id→Session map with monotonic ids and
// expiry-on-access.
type SessionManager struct {
	mu             sync.Mutex
	sessions       map[string]*Session
	defaultTimeout time.Duration
}

// NewSessionManager creates a manager with the given default session
// timeout.
func NewSessionManager(defaultTimeout time.Duration) *SessionManager {
	return &SessionManager{
		sessions:       make(map[string]*Session),
		defaultTimeout: defaultTimeout,
	}
}

// Create registers a new session wrapping ctx and returns its id.
func (m *SessionManager) Create(ctx renderer.RenderContext) string {
	id := nextLiveSessionID()
	session := newSession(id, ctx, m.defaultTimeout)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	return id
}

// Get returns the session for id, removing and erroring if it has
// expired, or erroring with NotFound if it was never present.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, cortexerr.New(cortexerr.NotFound, "session not found: "+id, nil)
	}
	if session.IsExpired() {
		delete(m.sessions, id)
		return nil, cortexerr.New(cortexerr.NotFound, "session expired: "+id, nil)
	}
	return session, nil
}

// Close removes and closes the session for id.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return cortexerr.New(cortexerr.NotFound, "session not found: "+id, nil)
	}
	return session.close()
}

// CleanupExpired closes and removes every session past its timeout.
func (m *SessionManager) CleanupExpired() {
	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.IsExpired() {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		_ = session.close()
	}
}

// ActiveCount returns the number of tracked sessions (expired or not).
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
