package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/game"
	httperrors "github.com/mathsprint/mathsprint/pkg/http/errors"
)

// HTTPHandler exposes a REST read endpoint for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current top rows for a level.
// Route: GET /v1/leaderboards/{level}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/")
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" || game.ParseLevel(raw) != game.Level(raw) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownLevel, "unknown difficulty level")
		return
	}
	level := game.Level(raw)

	limit := 10
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 && parsed <= 10 {
			limit = parsed
		}
	}

	rows, err := h.svc.Top(r.Context(), level, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("level", raw).Msg("leaderboard fetch failed")
		httperrors.RespondInternalError(w, "failed to fetch leaderboard")
		return
	}

	resp := map[string]interface{}{
		"level":       raw,
		"rows":        rows,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		httperrors.RespondInternalError(w, "failed to encode response")
	}
}
