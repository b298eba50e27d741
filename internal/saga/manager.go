package saga

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skytrip/flight-bookings/pkg/logger"
)

const defaultSessionTTL = 45 * time.Minute

// Manager holds active booking sessions in memory, keyed by session id.
// Sessions are per-user browsing state; losing one on restart only means
// starting a new search.
type Manager struct {
	factory func(userID string) *Saga
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	saga     *Saga
	lastSeen time.Time
}

func NewManager(factory func(userID string) *Saga, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Manager{
		factory:  factory,
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// Create opens a new booking session and returns its id.
func (m *Manager) Create(userID string) (string, *Saga) {
	id := uuid.NewString()
	sg := m.factory(userID)

	m.mu.Lock()
	m.sessions[id] = &session{saga: sg, lastSeen: time.Now()}
	m.mu.Unlock()
	return id, sg
}

// Get returns the session's saga and refreshes its expiry, or nil if the
// session does not exist or has expired.
func (m *Manager) Get(id string) *Saga {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	if time.Since(sess.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return nil
	}
	sess.lastSeen = time.Now()
	return sess.saga
}

// Delete removes a session explicitly.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// StartJanitor sweeps expired sessions until the context is canceled.
func (m *Manager) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := m.sweep()
				if removed > 0 {
					logger.Debug("Expired booking sessions removed", "count", removed)
				}
			}
		}
	}()
}

func (m *Manager) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if time.Since(sess.lastSeen) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
