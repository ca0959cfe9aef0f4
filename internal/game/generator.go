package game

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Level controls operand magnitude.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelNormal Level = "normal"
	LevelHard   Level = "hard"
)

// ParseLevel maps free-form client input onto a known level, defaulting to
// normal for anything unrecognized.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelEasy, LevelNormal, LevelHard:
		return Level(s)
	default:
		return LevelNormal
	}
}

// Question is a generated arithmetic problem. It lives server-side for one
// question cycle and is never persisted; only ID and Text reach the client.
type Question struct {
	ID     string
	Text   string
	Answer int
}

var operators = []byte{'+', '-', '*'}

// Generate produces one random arithmetic question for a level. Operand
// ranges: easy [1,20], normal [1,50], hard [50,149]. The operator is uniform
// over +, - and *; the answer is exact integer arithmetic.
func Generate(level Level) Question {
	var a, b int
	switch level {
	case LevelEasy:
		a = rand.IntN(20) + 1
		b = rand.IntN(20) + 1
	case LevelHard:
		a = rand.IntN(100) + 50
		b = rand.IntN(100) + 50
	default:
		a = rand.IntN(50) + 1
		b = rand.IntN(50) + 1
	}

	op := operators[rand.IntN(len(operators))]
	var answer int
	switch op {
	case '+':
		answer = a + b
	case '-':
		answer = a - b
	case '*':
		answer = a * b
	}

	return Question{
		ID:     newQuestionID(),
		Text:   fmt.Sprintf("%d %c %d", a, op, b),
		Answer: answer,
	}
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newQuestionID builds a time-prefixed identifier with a short random suffix.
// Uniqueness only matters within one session, to disambiguate stale
// submissions.
func newQuestionID() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + string(suffix)
}
