// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Live game sessions only exist here; finished results go to the database.
//
// Characteristics:
//   - Stores *Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - ErrNotFound is returned for missing session IDs.
//   - Sweep drops sessions a caller-supplied rule considers expired.

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/wordcollector/internal/game"
)

var ErrNotFound = errors.New("not found")

// Session is one hosted game: the engine plus who started it and how.
type Session struct {
	ID        string
	Mode      string // "classic" | "daily"
	UserID    string // set when the player was signed in
	AnonID    string // guest cookie otherwise
	Date      string // daily date key, empty for classic
	StartedAt time.Time
	Engine    *game.Engine

	lastActive atomic.Int64 // unix nanos
}

// Touch records t as the time of the latest player activity.
func (s *Session) Touch(t time.Time) { s.lastActive.Store(t.UnixNano()) }

// LastActive returns the time passed to the latest Touch.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

// OwnerID returns the user ID, or the anonymous ID for guests.
func (s *Session) OwnerID() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.AnonID
}

// NewSession wraps e in a session with a fresh random ID.
func NewSession(mode string, e *game.Engine) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		Engine:    e,
	}
	s.Touch(s.StartedAt)
	return s
}

// Store defines the persistence interface for game sessions.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns ErrNotFound if the session does not exist.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete drops a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Sweep removes every session for which expired returns true and
	// returns the removed sessions.
	Sweep(ctx context.Context, expired func(*Session) bool) []*Session

	// Len reports the number of live sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions map
	sessions map[string]*Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("store: session without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) Sweep(ctx context.Context, expired func(*Session) bool) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var gone []*Session
	for id, s := range m.sessions {
		if expired(s) {
			delete(m.sessions, id)
			gone = append(gone, s)
		}
	}
	return gone
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
