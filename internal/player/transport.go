package player

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

// WSTransport speaks the game protocol over a live WebSocket. Writes are
// serialized with a mutex; reads run on a dedicated goroutine that dispatches
// game events into a Loop.
type WSTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger zerolog.Logger

	// OnLeaderboard receives ranking pushes, which arrive outside the
	// question/verdict cycle. Optional.
	OnLeaderboard func(ws.LeaderboardPayload)

	// OnError receives server-reported protocol errors. Optional.
	OnError func(ws.ErrorPayload)
}

// Dial connects to the game endpoint and performs the join handshake. Pass an
// access token for an authenticated session, or a free-text name to play as a
// guest.
func Dial(ctx context.Context, url, token, name string, logger zerolog.Logger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &WSTransport{
		conn:   conn,
		logger: logger.With().Str("component", "player_transport").Logger(),
	}

	if err := t.send(ws.NewMessage(ws.TypeJoin, ws.JoinPayload{Token: token, Name: name})); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join: %w", err)
	}
	return t, nil
}

// ReadInto pumps inbound messages into the loop until the connection drops or
// ctx ends. Run it on its own goroutine.
func (t *WSTransport) ReadInto(ctx context.Context, loop *Loop) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var msg ws.Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case ws.TypeQuestion:
			var q ws.QuestionPayload
			if err := json.Unmarshal(msg.Payload, &q); err != nil {
				t.logger.Warn().Err(err).Msg("bad question payload")
				continue
			}
			loop.HandleEvent(Event{Question: &q})

		case ws.TypeAnswerResult:
			var v ws.AnswerResultPayload
			if err := json.Unmarshal(msg.Payload, &v); err != nil {
				t.logger.Warn().Err(err).Msg("bad answer result payload")
				continue
			}
			loop.HandleEvent(Event{Verdict: &v})

		case ws.TypeLeaderboard:
			if t.OnLeaderboard == nil {
				continue
			}
			var lb ws.LeaderboardPayload
			if err := json.Unmarshal(msg.Payload, &lb); err != nil {
				t.logger.Warn().Err(err).Msg("bad leaderboard payload")
				continue
			}
			t.OnLeaderboard(lb)

		case ws.TypeError:
			var e ws.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &e); err == nil {
				t.logger.Warn().Str("code", e.Code).Str("message", e.Message).Msg("server error")
				if t.OnError != nil {
					t.OnError(e)
				}
			}

		case ws.TypePong:
			// keepalive reply, nothing to do

		default:
			t.logger.Debug().Str("type", msg.Type).Msg("ignoring message")
		}
	}
}

// StartNewGame implements Transport.
func (t *WSTransport) StartNewGame() error {
	return t.send(ws.NewMessage(ws.TypeStartNewGame, nil))
}

// RequestQuestion implements Transport.
func (t *WSTransport) RequestQuestion(level string) error {
	return t.send(ws.NewMessage(ws.TypeGetQuestion, ws.GetQuestionPayload{Level: level}))
}

// SubmitAnswer implements Transport.
func (t *WSTransport) SubmitAnswer(questionID string, questionIndex int, answer string) error {
	return t.send(ws.NewMessage(ws.TypeCheckAnswer, ws.CheckAnswerPayload{
		QuestionID:    questionID,
		QuestionIndex: questionIndex,
		Answer:        answer,
	}))
}

// SaveResult implements Transport.
func (t *WSTransport) SaveResult(level string, correctCount int, totalTime float64, questionsCount int) error {
	return t.send(ws.NewMessage(ws.TypeSaveGameResult, ws.SaveGameResultPayload{
		Level:          level,
		CorrectCount:   correctCount,
		TotalTime:      totalTime,
		QuestionsCount: questionsCount,
	}))
}

// RequestLeaderboard asks for the current rankings of a level.
func (t *WSTransport) RequestLeaderboard(level string) error {
	return t.send(ws.NewMessage(ws.TypeGetLeaderboard, ws.GetLeaderboardPayload{Level: level}))
}

// Close tears down the connection.
func (t *WSTransport) Close() error {
	return t.conn.Close()
}

func (t *WSTransport) send(msg ws.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(msg)
}
