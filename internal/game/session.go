package game

import (
	"github.com/google/uuid"
)

const defaultGuestName = "Guest"

// Session is the per-connection game state. It is constructed when the
// WebSocket is accepted, torn down with the connection, and owned exclusively
// by the connection's read goroutine — no locking required.
type Session struct {
	ConnID      uuid.UUID
	UserID      *uuid.UUID
	DisplayName string
	IsGuest     bool

	questionsByID map[string]Question
	questionStack []Question
	inProgress    bool
}

// NewSession creates a fresh guest session for a connection.
func NewSession(connID uuid.UUID) *Session {
	return &Session{
		ConnID:        connID,
		DisplayName:   defaultGuestName,
		IsGuest:       true,
		questionsByID: make(map[string]Question),
	}
}

// StartGame resets question state and marks a game in progress. Calling it
// mid-game discards any in-flight questions without error.
func (s *Session) StartGame() {
	s.questionStack = s.questionStack[:0]
	s.questionsByID = make(map[string]Question)
	s.inProgress = true
}

// NextQuestion generates a question, records it in both the ordered stack and
// the id index, and returns it. The server does not cap how many questions a
// session may request; the per-game count is a client contract.
func (s *Session) NextQuestion(level Level) Question {
	q := Generate(level)
	s.questionStack = append(s.questionStack, q)
	s.questionsByID[q.ID] = q
	return q
}

// Lookup resolves a question by id, falling back to positional lookup in the
// stack when the id is absent.
func (s *Session) Lookup(questionID string, index int) (Question, bool) {
	if questionID != "" {
		if q, ok := s.questionsByID[questionID]; ok {
			return q, true
		}
	}
	if index >= 0 && index < len(s.questionStack) {
		return s.questionStack[index], true
	}
	return Question{}, false
}

// SetGuestName records a free-text display name for an unauthenticated join.
func (s *Session) SetGuestName(name string) {
	if name == "" {
		name = defaultGuestName
	}
	s.DisplayName = name
	s.UserID = nil
	s.IsGuest = true
}

// SetAuthenticated records a verified identity. An empty display name falls
// back to the guest default rather than failing the join.
func (s *Session) SetAuthenticated(userID uuid.UUID, displayName string) {
	if displayName == "" {
		displayName = defaultGuestName
	}
	s.DisplayName = displayName
	s.UserID = &userID
	s.IsGuest = false
}

// InProgress reports whether a game has been started on this session.
func (s *Session) InProgress() bool {
	return s.inProgress
}

// ServedCount returns how many questions this session has handed out since
// the last StartGame.
func (s *Session) ServedCount() int {
	return len(s.questionStack)
}
