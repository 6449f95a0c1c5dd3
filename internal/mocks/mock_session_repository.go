package mocks

import (
	"context"
	"sync"

	"github.com/you/tradegate/domain"
)

// MockSessionRepository implements domain.SessionRepository for testing.
// Without overrides it behaves as an in-memory store.
type MockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	SaveFunc    func(ctx context.Context, session *domain.Session) error
	FindFunc    func(ctx context.Context, sessionID string) (*domain.Session, error)
	DestroyFunc func(ctx context.Context, sessionID string) error
	PingFunc    func(ctx context.Context) error

	DestroyCalls []string
}

// NewMockSessionRepository creates a new MockSessionRepository.
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]*domain.Session)}
}

// Save stores the session in memory or delegates to SaveFunc.
func (m *MockSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

// Find returns the stored session or delegates to FindFunc.
func (m *MockSessionRepository) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Destroy removes the session and records the call.
func (m *MockSessionRepository) Destroy(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	m.DestroyCalls = append(m.DestroyCalls, sessionID)
	m.mu.Unlock()

	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Ping delegates to PingFunc; healthy by default.
func (m *MockSessionRepository) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Stored returns the session currently held for the ID, if any.
func (m *MockSessionRepository) Stored(sessionID string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// StoredCount returns the number of sessions held in memory.
func (m *MockSessionRepository) StoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Compile-time interface compliance verification
var _ domain.SessionRepository = (*MockSessionRepository)(nil)
