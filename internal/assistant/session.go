// Package assistant sends prompts to the model within a conversation and
// records each exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Skufu/medassist/internal/history"
)

// ErrInvalidSession is returned for IDs that are neither "default" nor a UUID.
var ErrInvalidSession = errors.New("invalid session id")

// Session is one conversation. Exchanges on a session run one at a time.
type Session struct {
	ID          string
	Instruction string

	mu         sync.Mutex
	store      history.Store
	transcript history.Transcript

	lastUsed uint64 // Sessions.clock at last Get, guarded by Sessions.mu
}

// Transcript returns a copy of the session's turns.
func (s *Session) Transcript() history.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(history.Transcript, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// DefaultSessionLimit bounds the conversations held in memory.
const DefaultSessionLimit = 1000

// Sessions holds the conversations of this process. Past the limit the least
// recently used idle session is dropped from memory; its history stays in the
// backend and is reloaded on the next Get.
type Sessions struct {
	backend history.Backend
	limit   int

	mu       sync.Mutex
	clock    uint64
	sessions map[string]*Session
	onChange func(n int)
}

// NewSessions creates a registry over backend holding at most
// DefaultSessionLimit sessions.
func NewSessions(backend history.Backend) *Sessions {
	return NewSessionsWithLimit(backend, DefaultSessionLimit)
}

// NewSessionsWithLimit is NewSessions with an explicit limit.
func NewSessionsWithLimit(backend history.Backend, limit int) *Sessions {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	return &Sessions{backend: backend, limit: limit, sessions: make(map[string]*Session)}
}

// OnChange registers a callback receiving the number of live sessions.
func (r *Sessions) OnChange(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// ValidID reports whether id may name a conversation.
func ValidID(id string) bool {
	if id == history.DefaultSession {
		return true
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// New starts a conversation with a fresh ID.
func (r *Sessions) New(ctx context.Context) (*Session, error) {
	return r.Get(ctx, uuid.NewString())
}

// Get returns the session for id, loading its transcript on first use.
func (r *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = history.DefaultSession
	}
	if !ValidID(id) {
		return nil, fmt.Errorf("%w %q", ErrInvalidSession, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	if s, ok := r.sessions[id]; ok {
		s.lastUsed = r.clock
		return s, nil
	}

	store := r.backend.Open(id)
	t, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	s := &Session{
		ID:          id,
		Instruction: SystemInstruction,
		store:       store,
		transcript:  t,
		lastUsed:    r.clock,
	}
	if len(r.sessions) >= r.limit {
		r.evictIdle()
	}
	r.sessions[id] = s
	if r.onChange != nil {
		r.onChange(len(r.sessions))
	}
	return s, nil
}

// evictIdle drops the least recently used session not in an exchange.
// r.mu must be held.
func (r *Sessions) evictIdle() {
	var victim *Session
	for _, s := range r.sessions {
		if victim == nil || s.lastUsed < victim.lastUsed {
			if s.mu.TryLock() {
				s.mu.Unlock()
				victim = s
			}
		}
	}
	if victim != nil {
		delete(r.sessions, victim.ID)
	}
}
