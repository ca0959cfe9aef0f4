package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/player"
	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

// A headless player: connects to a running server, plays one full game
// answering every question, and prints the outcome. Useful for smoke-testing
// a deployment end to end.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/ws/game", "Game WebSocket URL")
		level   = flag.String("level", "normal", "Difficulty level: easy, normal, or hard")
		name    = flag.String("name", "bot", "Guest display name")
		token   = flag.String("token", "", "Access token for an authenticated run")
		miss    = flag.Int("miss", 0, "Number of questions to answer wrong on purpose")
		timeout = flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tp, err := player.Dial(ctx, *url, *token, *name, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer tp.Close()

	tp.OnLeaderboard = func(lb ws.LeaderboardPayload) {
		logger.Info().Str("level", lb.Level).Int("rows", len(lb.Rows)).Msg("leaderboard update")
	}

	var loop *player.Loop
	loop = player.NewLoop(player.Config{
		Level:   *level,
		IsGuest: *token == "",
	}, tp, nil, player.Hooks{
		OnQuestion: func(index int, q ws.QuestionPayload) {
			answer := solve(q.Text)
			if index <= *miss {
				answer = "wrong"
			}
			logger.Info().Int("n", index).Str("text", q.Text).Str("answer", answer).Msg("question")
			// Submit runs from the loop goroutine's hook, so hand the answer
			// back through the input channel.
			loop.Submit(answer)
		},
		OnVerdict: func(index int, v ws.AnswerResultPayload) {
			logger.Info().Int("n", index).Bool("correct", v.Correct).Msg("verdict")
		},
	}, logger)

	go func() {
		if err := tp.ReadInto(ctx, loop); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("connection closed")
		}
	}()

	sum, err := loop.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("game failed")
	}

	logger.Info().
		Int("correct", sum.CorrectCount).
		Float64("clean_time", sum.CleanTime).
		Float64("total_time", sum.TotalTime).
		Bool("saved", sum.Saved).
		Msg("game finished")
}

// solve evaluates an "a op b" question text.
func solve(text string) string {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return ""
	}
	a, err1 := strconv.Atoi(fields[0])
	b, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return ""
	}

	var result int
	switch fields[1] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	default:
		return ""
	}
	return strconv.Itoa(result)
}
