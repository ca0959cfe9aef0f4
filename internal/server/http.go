package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/auth"
	"github.com/mathsprint/mathsprint/internal/config"
)

// NewHTTPServer wires all routes for the API service: health and metrics,
// auth REST endpoints, the game WebSocket, the leaderboard read endpoint and
// the static frontend.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, authSvc *auth.Service, authHandlers *auth.HTTPHandlers, gameWSHandler http.HandlerFunc, leaderboardHandler http.HandlerFunc) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if authHandlers != nil {
		mux.HandleFunc("/v1/auth/register", authHandlers.Register)
		mux.HandleFunc("/v1/auth/login", authHandlers.Login)
		mux.HandleFunc("/v1/auth/refresh", authHandlers.RefreshToken)
		mux.HandleFunc("/v1/oauth/{provider}/start", authHandlers.OAuthStart)
		mux.HandleFunc("/v1/oauth/{provider}/callback", authHandlers.OAuthCallback)

		// bearer middleware resolves the claims GetMe reads from context
		authMW := auth.Middleware(authSvc, logger)
		mux.Handle("/v1/users/me", authMW(auth.RequireAuth(http.HandlerFunc(authHandlers.GetMe))))
	}

	if gameWSHandler != nil {
		mux.HandleFunc("/ws/game", gameWSHandler)
	}

	if leaderboardHandler != nil {
		mux.HandleFunc("/v1/leaderboards/", leaderboardHandler)
	}

	// The browser frontend is served alongside the API so the WebSocket is
	// same-origin. This must be registered last: "/" matches everything the
	// routes above do not.
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsHandler.Handler(mux),
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return redisClient.Ping(ctx).Err()
}
