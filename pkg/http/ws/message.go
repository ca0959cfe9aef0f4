package ws

import "encoding/json"

// MessageType constants for the game WebSocket protocol.
const (
	// Client -> Server
	TypeJoin           = "join"
	TypeStartNewGame   = "start_new_game"
	TypeGetQuestion    = "get_question"
	TypeCheckAnswer    = "check_answer"
	TypeSaveGameResult = "save_game_result"
	TypeGetLeaderboard = "get_leaderboard"

	// Server -> Client
	TypeQuestion     = "question"
	TypeAnswerResult = "answer_result"
	TypeLeaderboard  = "leaderboard"
	TypeError        = "error"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Message wraps all WebSocket payloads with a type tag.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals payload into a typed message. Callers pass
// known-serializable structs; a marshal failure leaves the payload empty.
func NewMessage(msgType string, payload interface{}) Message {
	msg := Message{Type: msgType}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// Client Messages (incoming)

// JoinPayload establishes the connection's display name. Token wins over Name
// when both are present; an unverifiable token degrades to a guest join.
type JoinPayload struct {
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`
}

type GetQuestionPayload struct {
	Level string `json:"level"`
}

type CheckAnswerPayload struct {
	QuestionID    string `json:"question_id"`
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
	Level         string `json:"level,omitempty"`
}

type SaveGameResultPayload struct {
	Level          string  `json:"level"`
	CorrectCount   int     `json:"correct_count"`
	TotalTime      float64 `json:"total_time"`
	QuestionsCount int     `json:"questions_count"`
}

type GetLeaderboardPayload struct {
	Level string `json:"level"`
}

// Server Messages (outgoing)

// QuestionPayload delivers a question to the client. The answer is withheld
// until graded.
type QuestionPayload struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level string `json:"level"`
}

// AnswerResultPayload carries the grading verdict. CorrectAnswer is the
// integer answer for resolved questions and the string sentinel "UNKNOWN"
// when no question could be resolved.
type AnswerResultPayload struct {
	Correct       bool        `json:"correct"`
	CorrectAnswer interface{} `json:"correct_answer"`
}

type LeaderboardPayload struct {
	Level string           `json:"level"`
	Rows  []LeaderboardRow `json:"rows"`
}

type LeaderboardRow struct {
	Name      string  `json:"name"`
	TotalTime float64 `json:"total_time"`
	Level     string  `json:"level"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
