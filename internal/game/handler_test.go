package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathsprint/mathsprint/internal/auth/jwt"
	"github.com/mathsprint/mathsprint/internal/config"
	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

type fakeLeaderboards struct {
	mu      sync.Mutex
	records []recordedGame
	rows    []ws.LeaderboardRow
}

type recordedGame struct {
	name         string
	level        Level
	correctCount int
	totalTime    float64
}

func (f *fakeLeaderboards) Record(ctx context.Context, name string, level Level, correctCount int, totalTime float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedGame{name, level, correctCount, totalTime})
	return nil
}

func (f *fakeLeaderboards) TopRows(ctx context.Context, level Level, n int) ([]ws.LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeLeaderboards) recorded() []recordedGame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedGame(nil), f.records...)
}

type fakeVerifier struct {
	userID uuid.UUID
}

func (f *fakeVerifier) ValidateToken(token string) (*jwt.Claims, error) {
	if token != "good-token" {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{UserID: f.userID, DisplayName: "Rae"}, nil
}

func dialTestServer(t *testing.T, lb *fakeLeaderboards) *websocket.Conn {
	t.Helper()

	h := NewHandler(
		ws.NewHub(zerolog.Nop()),
		lb,
		&fakeVerifier{userID: uuid.New()},
		config.Game{QuestionsPerGame: 2, QuestionTimeout: 15 * time.Second},
		10,
		zerolog.Nop(),
	)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ws.NewMessage(msgType, payload)))
}

func readMsg(t *testing.T, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, wantType, msg.Type)
	return msg.Payload
}

func solveText(t *testing.T, text string) string {
	t.Helper()
	a, op, b := parseQuestionText(t, text)
	switch op {
	case "+":
		return strconv.Itoa(a + b)
	case "-":
		return strconv.Itoa(a - b)
	case "*":
		return strconv.Itoa(a * b)
	}
	t.Fatalf("unexpected operator in %q", text)
	return ""
}

func TestGuestGameFlow(t *testing.T) {
	lb := &fakeLeaderboards{rows: []ws.LeaderboardRow{{Name: "ada", TotalTime: 21.5, Level: "normal"}}}
	conn := dialTestServer(t, lb)

	// joining as a guest immediately yields the default rankings
	sendMsg(t, conn, ws.TypeJoin, ws.JoinPayload{Name: "casey"})
	var lbPayload ws.LeaderboardPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeLeaderboard), &lbPayload))
	assert.Equal(t, "normal", lbPayload.Level)
	require.Len(t, lbPayload.Rows, 1)
	assert.Equal(t, "ada", lbPayload.Rows[0].Name)

	sendMsg(t, conn, ws.TypeStartNewGame, nil)

	sendMsg(t, conn, ws.TypeGetQuestion, ws.GetQuestionPayload{Level: "easy"})
	var q ws.QuestionPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeQuestion), &q))
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "easy", q.Level)

	sendMsg(t, conn, ws.TypeCheckAnswer, ws.CheckAnswerPayload{
		QuestionID: q.ID,
		Answer:     solveText(t, q.Text),
	})
	var verdict ws.AnswerResultPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeAnswerResult), &verdict))
	assert.True(t, verdict.Correct)

	// guests cannot persist results
	sendMsg(t, conn, ws.TypeSaveGameResult, ws.SaveGameResultPayload{
		Level: "easy", CorrectCount: 1, TotalTime: 4.2, QuestionsCount: 2,
	})
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeError), &errPayload))
	assert.Equal(t, "guest_cannot_save", errPayload.Code)
	assert.Empty(t, lb.recorded())
}

func TestCheckAnswerWrongAndUnknown(t *testing.T) {
	conn := dialTestServer(t, &fakeLeaderboards{})

	sendMsg(t, conn, ws.TypeJoin, ws.JoinPayload{Name: "casey"})
	readMsg(t, conn, ws.TypeLeaderboard)
	sendMsg(t, conn, ws.TypeStartNewGame, nil)

	sendMsg(t, conn, ws.TypeGetQuestion, ws.GetQuestionPayload{Level: "easy"})
	var q ws.QuestionPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeQuestion), &q))

	sendMsg(t, conn, ws.TypeCheckAnswer, ws.CheckAnswerPayload{QuestionID: q.ID, Answer: "not a number"})
	var verdict ws.AnswerResultPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeAnswerResult), &verdict))
	assert.False(t, verdict.Correct)
	// JSON numbers decode as float64
	assert.InDelta(t, float64(solveInt(t, q.Text)), verdict.CorrectAnswer.(float64), 0.001)

	// a submission that resolves to no stored question gets the sentinel
	sendMsg(t, conn, ws.TypeCheckAnswer, ws.CheckAnswerPayload{QuestionID: "ghost", QuestionIndex: -1, Answer: "1"})
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeAnswerResult), &verdict))
	assert.False(t, verdict.Correct)
	assert.Equal(t, "UNKNOWN", verdict.CorrectAnswer)
}

func solveInt(t *testing.T, text string) int {
	t.Helper()
	n, err := strconv.Atoi(solveText(t, text))
	require.NoError(t, err)
	return n
}

func TestAuthenticatedSaveFlow(t *testing.T) {
	lb := &fakeLeaderboards{}
	conn := dialTestServer(t, lb)

	sendMsg(t, conn, ws.TypeJoin, ws.JoinPayload{Token: "good-token"})
	readMsg(t, conn, ws.TypeLeaderboard)

	sendMsg(t, conn, ws.TypeStartNewGame, nil)
	for i := 0; i < 2; i++ {
		sendMsg(t, conn, ws.TypeGetQuestion, ws.GetQuestionPayload{Level: "normal"})
		readMsg(t, conn, ws.TypeQuestion)
	}

	sendMsg(t, conn, ws.TypeSaveGameResult, ws.SaveGameResultPayload{
		Level: "normal", CorrectCount: 2, TotalTime: 12.3, QuestionsCount: 2,
	})
	readMsg(t, conn, ws.TypeLeaderboard)

	records := lb.recorded()
	require.Len(t, records, 1)
	assert.Equal(t, "Rae", records[0].name)
	assert.Equal(t, LevelNormal, records[0].level)
	assert.Equal(t, 2, records[0].correctCount)
	assert.InDelta(t, 12.3, records[0].totalTime, 0.001)
}

func TestBadTokenDegradesToGuest(t *testing.T) {
	lb := &fakeLeaderboards{}
	conn := dialTestServer(t, lb)

	sendMsg(t, conn, ws.TypeJoin, ws.JoinPayload{Token: "expired", Name: "sam"})
	readMsg(t, conn, ws.TypeLeaderboard)

	// the degraded-to-guest session cannot save
	sendMsg(t, conn, ws.TypeSaveGameResult, ws.SaveGameResultPayload{
		Level: "normal", CorrectCount: 1, TotalTime: 9.9, QuestionsCount: 2,
	})
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeError), &errPayload))
	assert.Equal(t, "guest_cannot_save", errPayload.Code)
}

func TestSaveValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload ws.SaveGameResultPayload
	}{
		{"wrong question count", ws.SaveGameResultPayload{Level: "normal", CorrectCount: 1, TotalTime: 5, QuestionsCount: 99}},
		{"negative correct count", ws.SaveGameResultPayload{Level: "normal", CorrectCount: -1, TotalTime: 5, QuestionsCount: 2}},
		{"more correct than asked", ws.SaveGameResultPayload{Level: "normal", CorrectCount: 3, TotalTime: 5, QuestionsCount: 2}},
		{"more correct than served", ws.SaveGameResultPayload{Level: "normal", CorrectCount: 2, TotalTime: 5, QuestionsCount: 2}},
		{"zero total time", ws.SaveGameResultPayload{Level: "normal", CorrectCount: 1, TotalTime: 0, QuestionsCount: 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lb := &fakeLeaderboards{}
			conn := dialTestServer(t, lb)

			sendMsg(t, conn, ws.TypeJoin, ws.JoinPayload{Token: "good-token"})
			readMsg(t, conn, ws.TypeLeaderboard)
			sendMsg(t, conn, ws.TypeStartNewGame, nil)

			// serve exactly one question so served-count checks can trip
			sendMsg(t, conn, ws.TypeGetQuestion, ws.GetQuestionPayload{Level: "normal"})
			readMsg(t, conn, ws.TypeQuestion)

			sendMsg(t, conn, ws.TypeSaveGameResult, tc.payload)
			var errPayload ws.ErrorPayload
			require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeError), &errPayload))
			assert.Equal(t, "save_rejected", errPayload.Code)
			assert.Empty(t, lb.recorded())
		})
	}
}

func TestPingPongAndUnknownType(t *testing.T) {
	conn := dialTestServer(t, &fakeLeaderboards{})

	sendMsg(t, conn, ws.TypePing, nil)
	readMsg(t, conn, ws.TypePong)

	sendMsg(t, conn, "teleport", nil)
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(readMsg(t, conn, ws.TypeError), &errPayload))
	assert.Equal(t, "unknown_message_type", errPayload.Code)
}
