package leaderboard

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathsprint/mathsprint/internal/db/repository"
	"github.com/mathsprint/mathsprint/internal/game"
	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

type memStore struct {
	mu      sync.Mutex
	results []repository.GameResult
}

func (m *memStore) Insert(ctx context.Context, res repository.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *memStore) TopByLevel(ctx context.Context, level string, limit int) ([]repository.GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []repository.GameResult
	for _, r := range m.results {
		if r.Level == level {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalTime < out[j].TotalTime })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *memStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &memStore{}
	svc := NewService(store, client, zerolog.Nop(), ServiceOptions{
		TopN:     3,
		CacheTTL: 10 * time.Second,
	})
	return svc, store, mr
}

func TestTopRanksByTimeAscending(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	store.Insert(ctx, repository.GameResult{Name: "slow", Level: "normal", TotalTime: 80})
	store.Insert(ctx, repository.GameResult{Name: "fast", Level: "normal", TotalTime: 20})
	store.Insert(ctx, repository.GameResult{Name: "mid", Level: "normal", TotalTime: 50})
	store.Insert(ctx, repository.GameResult{Name: "other", Level: "hard", TotalTime: 10})

	rows, err := svc.Top(ctx, game.LevelNormal, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "fast", rows[0].Name)
	assert.Equal(t, "mid", rows[1].Name)
	assert.Equal(t, "slow", rows[2].Name)
}

func TestTopServesFromCache(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()

	store.Insert(ctx, repository.GameResult{Name: "ada", Level: "easy", TotalTime: 30})

	rows, err := svc.Top(ctx, game.LevelEasy, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// new results are invisible until the cache expires
	store.Insert(ctx, repository.GameResult{Name: "grace", Level: "easy", TotalTime: 10})
	rows, err = svc.Top(ctx, game.LevelEasy, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	mr.FastForward(11 * time.Second)
	rows, err = svc.Top(ctx, game.LevelEasy, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "grace", rows[0].Name)
}

func TestRecordInvalidatesCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "ada", game.LevelNormal, 8, 42.5))

	rows, err := svc.Top(ctx, game.LevelNormal, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0].Name)

	// a second save shows up right away despite the warm cache
	require.NoError(t, svc.Record(ctx, "grace", game.LevelNormal, 10, 21.0))
	rows, err = svc.Top(ctx, game.LevelNormal, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "grace", rows[0].Name)
}

func TestRecordPublishesUpdate(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "lb:updates")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, "ada", game.LevelHard, 9, 33.3))

	select {
	case msg := <-pubsub.Channel():
		var payload ws.LeaderboardPayload
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, "hard", payload.Level)
		require.Len(t, payload.Rows, 1)
		assert.Equal(t, "ada", payload.Rows[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("no leaderboard update published")
	}
}

func TestTopFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &memStore{}
	svc := NewService(store, client, zerolog.Nop(), ServiceOptions{TopN: 3})

	ctx := context.Background()
	store.Insert(ctx, repository.GameResult{Name: "ada", Level: "normal", TotalTime: 12})

	mr.Close()

	rows, err := svc.Top(ctx, game.LevelNormal, 10)
	require.NoError(t, err, "postgres remains the source of truth when the cache is down")
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0].Name)
}

func TestTopRowsProjection(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	store.Insert(ctx, repository.GameResult{Name: "ada", Level: "normal", TotalTime: 12})

	wsRows, err := svc.TopRows(ctx, game.LevelNormal, 10)
	require.NoError(t, err)
	require.Len(t, wsRows, 1)
	assert.Equal(t, ws.LeaderboardRow{Name: "ada", TotalTime: 12, Level: "normal"}, wsRows[0])
}
