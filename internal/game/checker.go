package game

import (
	"strconv"
	"strings"
)

// UnknownAnswer is the sentinel verdict value when no question resolves for a
// submission. It is a defined degraded response, not a fault.
const UnknownAnswer = "UNKNOWN"

// Verdict is the result of grading one submission. CorrectAnswer holds the
// integer answer for resolved questions, or the UnknownAnswer sentinel.
type Verdict struct {
	Correct       bool
	CorrectAnswer interface{}
}

// Check grades a submitted answer against the session's stored question,
// resolving by id first and by stack position second. The submission is
// parsed as a float; a parse failure is simply incorrect. Check never mutates
// session state, so a duplicate submission grades identically.
func Check(s *Session, questionID string, fallbackIndex int, submitted string) Verdict {
	q, ok := s.Lookup(questionID, fallbackIndex)
	if !ok {
		return Verdict{Correct: false, CorrectAnswer: UnknownAnswer}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(submitted), 64)
	correct := err == nil && value == float64(q.Answer)
	return Verdict{Correct: correct, CorrectAnswer: q.Answer}
}
