package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GameResult is one completed run's summary. Rows are append-only; the
// leaderboard is a view over them.
type GameResult struct {
	Name         string
	Level        string
	CorrectCount int
	TotalTime    float64
	CreatedAt    time.Time
}

// ResultRepository contains DB helpers for game results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository constructs a new game result repository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert appends one immutable result row.
func (r *ResultRepository) Insert(ctx context.Context, res GameResult) error {
	const q = `
		INSERT INTO game_results (name, level, correct_count, total_time)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, q, res.Name, res.Level, res.CorrectCount, res.TotalTime)
	return err
}

// TopByLevel returns the fastest results for a level, ascending by total
// time. Multiple rows per player are permitted.
func (r *ResultRepository) TopByLevel(ctx context.Context, level string, limit int) ([]GameResult, error) {
	const q = `
		SELECT name, level, correct_count, total_time, created_at
		FROM game_results
		WHERE level = $1
		ORDER BY total_time ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, q, level, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var res GameResult
		if err := rows.Scan(&res.Name, &res.Level, &res.CorrectCount, &res.TotalTime, &res.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
