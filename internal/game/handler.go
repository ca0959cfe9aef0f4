package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/auth/jwt"
	"github.com/mathsprint/mathsprint/internal/config"
	"github.com/mathsprint/mathsprint/internal/metrics"
	httperrors "github.com/mathsprint/mathsprint/pkg/http/errors"
	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

// TokenVerifier validates player access tokens on join.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// Leaderboards is the slice of the leaderboard service the game handler needs:
// recording finished games and reading current rankings.
type Leaderboards interface {
	Record(ctx context.Context, name string, level Level, correctCount int, totalTime float64) error
	TopRows(ctx context.Context, level Level, n int) ([]ws.LeaderboardRow, error)
}

// Handler owns the game WebSocket endpoint: one session per connection, all
// events processed on the connection's read goroutine.
type Handler struct {
	hub      *ws.Hub
	lb       Leaderboards
	tokens   TokenVerifier
	cfg      config.Game
	topN     int
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates the game WebSocket handler.
func NewHandler(hub *ws.Hub, lb Leaderboards, tokens TokenVerifier, cfg config.Game, topN int, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		lb:     lb,
		tokens: tokens,
		cfg:    cfg,
		topN:   topN,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client connects from the same origin the static
			// assets are served from; cross-origin REST goes through CORS.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "game_ws").Logger(),
	}
}

// HandleWebSocket upgrades the connection and runs the session loop until the
// peer disconnects. Route: GET /ws/game
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New()
	conn := ws.NewConnection(wsConn, h.logger.With().Str("conn_id", connID.String()).Logger())
	sess := NewSession(connID)

	h.hub.Register(connID, conn)
	metrics.WSConnections.Inc()
	defer func() {
		h.hub.Unregister(connID)
		metrics.WSConnections.Dec()
	}()

	go conn.WritePump()
	conn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(r.Context(), sess, msg)
	})
}

func (h *Handler) handleMessage(ctx context.Context, sess *Session, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeJoin:
		return h.handleJoin(ctx, sess, msg.Payload)
	case ws.TypeStartNewGame:
		sess.StartGame()
		return nil
	case ws.TypeGetQuestion:
		return h.handleGetQuestion(sess, msg.Payload)
	case ws.TypeCheckAnswer:
		return h.handleCheckAnswer(sess, msg.Payload)
	case ws.TypeSaveGameResult:
		return h.handleSaveGameResult(ctx, sess, msg.Payload)
	case ws.TypeGetLeaderboard:
		return h.handleGetLeaderboard(ctx, sess, msg.Payload)
	case ws.TypePing:
		return h.hub.Send(sess.ConnID, ws.NewMessage(ws.TypePong, nil))
	default:
		h.sendError(sess, httperrors.ErrCodeUnknownMessageType, "unknown message type: "+msg.Type)
		return nil
	}
}

// handleJoin binds an identity to the session. A valid token wins; a bad or
// missing token degrades to a guest join with the free-text name. Either way
// the client immediately gets the current rankings for the default level.
func (h *Handler) handleJoin(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var req ws.JoinPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.sendError(sess, httperrors.ErrCodeInvalidPayload, "invalid join payload")
			return nil
		}
	}

	if req.Token != "" {
		claims, err := h.tokens.ValidateToken(req.Token)
		if err == nil {
			sess.SetAuthenticated(claims.UserID, claims.DisplayName)
			h.logger.Info().
				Str("conn_id", sess.ConnID.String()).
				Str("user_id", claims.UserID.String()).
				Msg("authenticated join")
		} else {
			h.logger.Warn().Err(err).Str("conn_id", sess.ConnID.String()).Msg("join token rejected, continuing as guest")
			sess.SetGuestName(req.Name)
		}
	} else {
		sess.SetGuestName(req.Name)
	}

	return h.sendLeaderboard(ctx, sess, LevelNormal)
}

func (h *Handler) handleGetQuestion(sess *Session, payload json.RawMessage) error {
	var req ws.GetQuestionPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.sendError(sess, httperrors.ErrCodeInvalidPayload, "invalid question request")
			return nil
		}
	}

	level := ParseLevel(req.Level)
	q := sess.NextQuestion(level)
	metrics.QuestionsGenerated.WithLabelValues(string(level)).Inc()

	return h.hub.Send(sess.ConnID, ws.NewMessage(ws.TypeQuestion, ws.QuestionPayload{
		ID:    q.ID,
		Text:  q.Text,
		Level: string(level),
	}))
}

func (h *Handler) handleCheckAnswer(sess *Session, payload json.RawMessage) error {
	var req ws.CheckAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(sess, httperrors.ErrCodeInvalidPayload, "invalid answer submission")
		return nil
	}

	verdict := Check(sess, req.QuestionID, req.QuestionIndex, req.Answer)

	outcome := "incorrect"
	if verdict.Correct {
		outcome = "correct"
	} else if verdict.CorrectAnswer == UnknownAnswer {
		outcome = "unknown"
	}
	metrics.AnswersChecked.WithLabelValues(outcome).Inc()

	return h.hub.Send(sess.ConnID, ws.NewMessage(ws.TypeAnswerResult, ws.AnswerResultPayload{
		Correct:       verdict.Correct,
		CorrectAnswer: verdict.CorrectAnswer,
	}))
}

// handleSaveGameResult persists a finished game. Guests are rejected outright;
// implausible payloads are dropped with a logged reason rather than stored.
func (h *Handler) handleSaveGameResult(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var req ws.SaveGameResultPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(sess, httperrors.ErrCodeInvalidPayload, "invalid save payload")
		return nil
	}

	if sess.IsGuest {
		h.sendError(sess, httperrors.ErrCodeGuestCannotSave, "sign in to save results")
		return nil
	}

	level := ParseLevel(req.Level)
	if err := h.validateSave(sess, req); err != nil {
		h.logger.Warn().
			Err(err).
			Str("conn_id", sess.ConnID.String()).
			Str("level", string(level)).
			Int("correct_count", req.CorrectCount).
			Float64("total_time", req.TotalTime).
			Msg("rejected game result")
		h.sendError(sess, httperrors.ErrCodeSaveRejected, "game result failed validation")
		return nil
	}

	if err := h.lb.Record(ctx, sess.DisplayName, level, req.CorrectCount, req.TotalTime); err != nil {
		h.logger.Error().Err(err).Str("conn_id", sess.ConnID.String()).Msg("failed to save game result")
		h.sendError(sess, httperrors.ErrCodeInternalError, "failed to save game result")
		return nil
	}

	metrics.GamesSaved.WithLabelValues(string(level)).Inc()
	return h.sendLeaderboard(ctx, sess, level)
}

// validateSave applies plausibility checks against what this session actually
// served. The client computes the score, so the server only vets shape.
func (h *Handler) validateSave(sess *Session, req ws.SaveGameResultPayload) error {
	if req.QuestionsCount != h.cfg.QuestionsPerGame {
		return fmt.Errorf("question count %d does not match configured game size %d", req.QuestionsCount, h.cfg.QuestionsPerGame)
	}
	if req.CorrectCount < 0 || req.CorrectCount > req.QuestionsCount {
		return fmt.Errorf("correct count %d outside [0,%d]", req.CorrectCount, req.QuestionsCount)
	}
	if req.CorrectCount > sess.ServedCount() {
		return fmt.Errorf("correct count %d exceeds %d questions served", req.CorrectCount, sess.ServedCount())
	}
	if req.TotalTime <= 0 {
		return fmt.Errorf("non-positive total time %f", req.TotalTime)
	}
	return nil
}

func (h *Handler) handleGetLeaderboard(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var req ws.GetLeaderboardPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.sendError(sess, httperrors.ErrCodeInvalidPayload, "invalid leaderboard request")
			return nil
		}
	}
	return h.sendLeaderboard(ctx, sess, ParseLevel(req.Level))
}

func (h *Handler) sendLeaderboard(ctx context.Context, sess *Session, level Level) error {
	rows, err := h.lb.TopRows(ctx, level, h.topN)
	if err != nil {
		h.logger.Warn().Err(err).Str("level", string(level)).Msg("leaderboard fetch failed")
		h.sendError(sess, httperrors.ErrCodeLeaderboardFetchFailed, "failed to fetch leaderboard")
		return nil
	}

	return h.hub.Send(sess.ConnID, ws.NewMessage(ws.TypeLeaderboard, ws.LeaderboardPayload{
		Level: string(level),
		Rows:  rows,
	}))
}

func (h *Handler) sendError(sess *Session, code, message string) {
	_ = h.hub.Send(sess.ConnID, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
