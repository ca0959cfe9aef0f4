package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/db/repository"
	"github.com/mathsprint/mathsprint/internal/game"
	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

const defaultTopN = 10

// Row is one leaderboard entry sent to clients. Ranking is by total time
// ascending; correctness is not part of the ranking key.
type Row struct {
	Name      string  `json:"name"`
	TotalTime float64 `json:"total_time"`
	Level     string  `json:"level"`
}

// ResultStore is the durable storage the leaderboard is a view over.
type ResultStore interface {
	Insert(ctx context.Context, res repository.GameResult) error
	TopByLevel(ctx context.Context, level string, limit int) ([]repository.GameResult, error)
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN           int
	PubSubChannel  string
	CacheTTL       time.Duration
	RedisKeyPrefix string
}

// Service persists game results in Postgres, caches per-level top rows in
// Redis, and emits refresh events over Pub/Sub for connected clients.
type Service struct {
	store    ResultStore
	redis    *redis.Client
	logger   zerolog.Logger
	topN     int
	channel  string
	cacheTTL time.Duration
	prefix   string
}

// NewService constructs a leaderboard service instance.
func NewService(store ResultStore, redisClient *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}

	return &Service{
		store:    store,
		redis:    redisClient,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		channel:  channel,
		cacheTTL: ttl,
		prefix:   prefix,
	}
}

// Record appends one immutable result row, invalidates the level's cache and
// publishes a refresh event carrying the fresh top rows.
func (s *Service) Record(ctx context.Context, name string, level game.Level, correctCount int, totalTime float64) error {
	res := repository.GameResult{
		Name:         name,
		Level:        string(level),
		CorrectCount: correctCount,
		TotalTime:    totalTime,
	}
	if err := s.store.Insert(ctx, res); err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, s.cacheKey(level)).Err(); err != nil {
			s.logger.Warn().Err(err).Str("level", string(level)).Msg("cache invalidation failed")
		}
	}

	// Fan-out is eventually consistent; a failed publish only delays the
	// next refresh.
	go s.publishUpdate(context.Background(), level)
	return nil
}

// Top returns up to n rows for a level, fastest first. Redis serves cached
// reads; Postgres is the source of truth and the fallback when Redis misses
// or fails.
func (s *Service) Top(ctx context.Context, level game.Level, n int) ([]Row, error) {
	if n <= 0 || n > s.topN {
		n = s.topN
	}

	if rows, ok := s.cachedTop(ctx, level); ok {
		if len(rows) > n {
			rows = rows[:n]
		}
		return rows, nil
	}

	results, err := s.store.TopByLevel(ctx, string(level), s.topN)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	rows := make([]Row, 0, len(results))
	for _, res := range results {
		rows = append(rows, Row{Name: res.Name, TotalTime: res.TotalTime, Level: res.Level})
	}

	s.setCache(ctx, level, rows)

	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

// TopRows is Top projected onto wire entries, for callers speaking the
// WebSocket protocol.
func (s *Service) TopRows(ctx context.Context, level game.Level, n int) ([]ws.LeaderboardRow, error) {
	rows, err := s.Top(ctx, level, n)
	if err != nil {
		return nil, err
	}
	return ToWSRows(rows), nil
}

func (s *Service) cachedTop(ctx context.Context, level game.Level) ([]Row, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, s.cacheKey(level)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("level", string(level)).Msg("cache read failed")
		}
		return nil, false
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		s.logger.Warn().Err(err).Msg("cache payload decode failed")
		return nil, false
	}
	return rows, true
}

func (s *Service) setCache(ctx context.Context, level game.Level, rows []Row) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(level), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("level", string(level)).Msg("cache write failed")
	}
}

func (s *Service) publishUpdate(ctx context.Context, level game.Level) {
	if s.redis == nil {
		return
	}

	rows, err := s.Top(ctx, level, s.topN)
	if err != nil {
		s.logger.Warn().Err(err).Str("level", string(level)).Msg("failed to collect leaderboard update")
		return
	}

	payload := ws.LeaderboardPayload{
		Level: string(level),
		Rows:  ToWSRows(rows),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
		return
	}
	if err := s.redis.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}

func (s *Service) cacheKey(level game.Level) string {
	return fmt.Sprintf("%s:top:%s", s.prefix, level)
}

// ToWSRows converts service rows into wire entries.
func ToWSRows(rows []Row) []ws.LeaderboardRow {
	out := make([]ws.LeaderboardRow, len(rows))
	for i, r := range rows {
		out[i] = ws.LeaderboardRow{Name: r.Name, TotalTime: r.TotalTime, Level: r.Level}
	}
	return out
}
