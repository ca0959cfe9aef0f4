package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WSConnections tracks currently open game connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mathsprint_ws_connections",
		Help: "Currently open game WebSocket connections.",
	})

	// QuestionsGenerated counts questions handed out, by level.
	QuestionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathsprint_questions_generated_total",
		Help: "Questions generated, by difficulty level.",
	}, []string{"level"})

	// AnswersChecked counts graded submissions by outcome
	// (correct, incorrect, unknown).
	AnswersChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathsprint_answers_checked_total",
		Help: "Graded answer submissions, by outcome.",
	}, []string{"outcome"})

	// GamesSaved counts persisted game results, by level.
	GamesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathsprint_games_saved_total",
		Help: "Completed games persisted to the leaderboard, by level.",
	}, []string{"level"})
)
