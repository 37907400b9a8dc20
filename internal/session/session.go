// Package session tracks per-session conversation history in memory.
// History is a context-priming convenience, not durable state: restarting
// the process starts every conversation fresh.
package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

// Turn roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// DefaultMaxTurns caps retained turns when no cap is configured
// (4 exchanges).
const DefaultMaxTurns = 8

// Store holds conversation history per session, capped to the most recent
// turns. Unknown session IDs read as empty and are created on first append.
//
// Safe for concurrent use.
type Store struct {
	maxTurns int

	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore creates a session store retaining at most maxTurns turns per
// session. Zero retains nothing (every conversation reads as fresh);
// negative values fall back to DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns < 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string][]Turn),
	}
}

// NewSessionID mints a fresh session identifier.
func (s *Store) NewSessionID() string {
	return uuid.NewString()
}

// Append records turns at the end of a session's history, evicting the
// oldest turns beyond the cap. Blank turns are dropped.
func (s *Store) Append(id string, turns ...Turn) {
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[id]
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		history = append(history, t)
	}
	if excess := len(history) - s.maxTurns; excess > 0 {
		history = history[excess:]
	}
	s.sessions[id] = history
}

// History returns a copy of the session's turns, oldest first.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return nil
	}
	cp := make([]Turn, len(history))
	copy(cp, history)
	return cp
}

// Clear drops a session's history. Clearing an unknown session is a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
