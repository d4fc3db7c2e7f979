// Package session holds per-user conversation state: the current mode, and
// while a screening run is active, the selected questions, the question
// cursor, and the score. Sessions live in process memory only.
package session

import (
	"sync"
	"time"

	"github.com/linyuchia/speechbot/internal/questions"
)

// Mode is a user's current conversation mode.
type Mode int

const (
	// ModeMainMenu is the default mode for new and returning users.
	ModeMainMenu Mode = iota
	// ModeScreening means the bot is waiting for the child's birthdate.
	ModeScreening
	// ModeTesting means a screening run is in progress.
	ModeTesting
	// ModeTips shows language development advice.
	ModeTips
	// ModeTreatment shows speech therapy resources.
	ModeTreatment
)

func (m Mode) String() string {
	switch m {
	case ModeScreening:
		return "screening"
	case ModeTesting:
		return "testing"
	case ModeTips:
		return "tips"
	case ModeTreatment:
		return "treatment"
	default:
		return "main_menu"
	}
}

// Session is one user's conversation state. Questions, CurrentIndex, and
// Score are meaningful only while Mode is ModeTesting; leaving testing
// discards them.
type Session struct {
	Mode         Mode
	Questions    []questions.Question
	CurrentIndex int
	Score        int
	LastActive   time.Time
}

// SetMode moves the session to a non-testing mode, discarding any
// screening-run state.
func (s *Session) SetMode(m Mode) {
	s.Mode = m
	s.Questions = nil
	s.CurrentIndex = 0
	s.Score = 0
}

// StartTesting enters testing mode with the given question list and a
// fresh cursor and score.
func (s *Session) StartTesting(qs []questions.Question) {
	s.Mode = ModeTesting
	s.Questions = qs
	s.CurrentIndex = 0
	s.Score = 0
}

// Store provides per-user session access with exclusive ownership for the
// duration of a turn.
type Store interface {
	// Do runs fn with exclusive access to the user's session, creating it
	// in ModeMainMenu on first contact. Two concurrent turns for the same
	// user serialize here instead of racing on the question cursor.
	Do(userID string, fn func(*Session))

	// SweepIdle removes sessions idle for longer than ttl and returns how
	// many were evicted.
	SweepIdle(ttl time.Duration) int
}

type entry struct {
	mu      sync.Mutex
	session Session
}

// MemoryStore is the in-memory Store implementation, keyed by platform
// user id. It does not survive restarts; the documented upgrade path for
// multi-instance deployment is an external key-value store behind the same
// interface.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Do implements Store. The entry lock is held for the whole callback, so a
// turn that blocks on the evaluator still excludes other turns for the
// same user while leaving other users fully concurrent.
func (s *MemoryStore) Do(userID string, fn func(*Session)) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{session: Session{Mode: ModeMainMenu, LastActive: s.now()}}
		s.sessions[userID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	fn(&e.session)
	e.session.LastActive = s.now()
}

// SweepIdle implements Store. Entries whose lock cannot be taken are
// mid-turn and therefore not idle; they are skipped.
func (s *MemoryStore) SweepIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	evicted := 0
	for userID, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.session.LastActive.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.sessions, userID)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
