package player

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	ws "github.com/mathsprint/mathsprint/pkg/http/ws"
)

// State is the phase of one game run.
type State int

const (
	StateIdle State = iota
	StateAwaitingQuestion
	StateQuestionActive
	StateAwaitingVerdict
	StateFeedback
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingQuestion:
		return "awaiting_question"
	case StateQuestionActive:
		return "question_active"
	case StateAwaitingVerdict:
		return "awaiting_verdict"
	case StateFeedback:
		return "feedback"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Transport is the outbound half of the game protocol as the player sees it.
type Transport interface {
	StartNewGame() error
	RequestQuestion(level string) error
	SubmitAnswer(questionID string, questionIndex int, answer string) error
	SaveResult(level string, correctCount int, totalTime float64, questionsCount int) error
}

// Event is an inbound server message relevant to the game loop.
type Event struct {
	Question *ws.QuestionPayload
	Verdict  *ws.AnswerResultPayload
}

// Config tunes one game run.
type Config struct {
	Level            string
	QuestionsPerGame int
	QuestionTimeout  time.Duration
	TimerTick        time.Duration
	FeedbackDelay    time.Duration
	FinishDelay      time.Duration
	AwaitTimeout     time.Duration
	PenaltySeconds   float64
	IsGuest          bool
}

func (c *Config) applyDefaults() {
	if c.Level == "" {
		c.Level = "normal"
	}
	if c.QuestionsPerGame <= 0 {
		c.QuestionsPerGame = 10
	}
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = 15 * time.Second
	}
	if c.TimerTick <= 0 {
		c.TimerTick = 100 * time.Millisecond
	}
	if c.FeedbackDelay <= 0 {
		c.FeedbackDelay = 2 * time.Second
	}
	if c.FinishDelay <= 0 {
		c.FinishDelay = 1500 * time.Millisecond
	}
	if c.AwaitTimeout <= 0 {
		c.AwaitTimeout = 10 * time.Second
	}
	if c.PenaltySeconds <= 0 {
		c.PenaltySeconds = 5
	}
}

// Hooks are optional observer callbacks, invoked on the loop goroutine.
type Hooks struct {
	OnQuestion  func(index int, q ws.QuestionPayload)
	OnCountdown func(remaining time.Duration)
	OnVerdict   func(index int, v ws.AnswerResultPayload)
	OnFinished  func(sum Summary)
}

// Summary is the outcome of one completed run. CleanTime is the wall-clock
// seconds from game start to the close of the last feedback window; TotalTime
// adds the per-miss penalty and is what ranks on the leaderboard.
type Summary struct {
	CorrectCount int
	CleanTime    float64
	TotalTime    float64
	Saved        bool
}

// Loop drives one game as a client-side state machine. All state lives on the
// Run goroutine; Submit and Advance communicate through channels, and every
// phase has exactly one pending timer so fake-clock tests stay deterministic.
type Loop struct {
	cfg    Config
	tp     Transport
	clock  clockwork.Clock
	hooks  Hooks
	logger zerolog.Logger

	events  chan Event
	submits chan string
	advance chan struct{}

	state     State
	questionN int
	current   ws.QuestionPayload
	remaining time.Duration

	startedAt    time.Time
	correctCount int
	penalties    int
	final        Summary

	timer   clockwork.Timer
	timerCh <-chan time.Time
}

// NewLoop creates a game loop. A nil clock means the real one.
func NewLoop(cfg Config, tp Transport, clock clockwork.Clock, hooks Hooks, logger zerolog.Logger) *Loop {
	cfg.applyDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		cfg:     cfg,
		tp:      tp,
		clock:   clock,
		hooks:   hooks,
		logger:  logger.With().Str("component", "player_loop").Logger(),
		events:  make(chan Event, 16),
		submits: make(chan string, 1),
		advance: make(chan struct{}, 1),
		state:   StateIdle,
	}
}

// HandleEvent feeds an inbound server message into the loop.
func (l *Loop) HandleEvent(evt Event) {
	select {
	case l.events <- evt:
	default:
		l.logger.Warn().Msg("event queue full, dropping server event")
	}
}

// Submit offers the player's answer for the active question. Blank input is
// dropped so the countdown keeps running; only the timeout path submits an
// empty answer. Submissions outside the active-question phase are ignored.
func (l *Loop) Submit(answer string) {
	if strings.TrimSpace(answer) == "" {
		return
	}
	select {
	case l.submits <- answer:
	default:
	}
}

// Advance skips the remainder of the feedback pause.
func (l *Loop) Advance() {
	select {
	case l.advance <- struct{}{}:
	default:
	}
}

// State returns the loop's current phase. Only meaningful from hooks or after
// Run returns; the loop goroutine owns it.
func (l *Loop) State() State {
	return l.state
}

// Run plays one full game and returns its summary. It blocks until the game
// finishes, the transport fails, or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	if err := l.tp.StartNewGame(); err != nil {
		return Summary{}, fmt.Errorf("start game: %w", err)
	}
	l.startedAt = l.clock.Now()
	if err := l.nextQuestion(); err != nil {
		return Summary{}, err
	}

	for {
		select {
		case <-ctx.Done():
			l.stopTimer()
			return Summary{}, ctx.Err()

		case evt := <-l.events:
			if err := l.onEvent(evt); err != nil {
				return Summary{}, err
			}

		case answer := <-l.submits:
			if l.state != StateQuestionActive {
				continue
			}
			if err := l.submit(answer); err != nil {
				return Summary{}, err
			}

		case <-l.advance:
			if l.state != StateFeedback {
				continue
			}
			done, err := l.afterFeedback()
			if err != nil {
				return Summary{}, err
			}
			if done {
				return l.final, nil
			}

		case <-l.timerCh:
			done, err := l.onTimer()
			if err != nil {
				return Summary{}, err
			}
			if done {
				return l.final, nil
			}
		}
	}
}

func (l *Loop) onEvent(evt Event) error {
	switch {
	case evt.Question != nil:
		if l.state != StateAwaitingQuestion {
			l.logger.Warn().Str("state", l.state.String()).Msg("unexpected question, ignoring")
			return nil
		}
		l.current = *evt.Question
		l.questionN++
		l.remaining = l.cfg.QuestionTimeout
		l.setState(StateQuestionActive)
		l.resetTimer(l.cfg.TimerTick)
		if l.hooks.OnQuestion != nil {
			l.hooks.OnQuestion(l.questionN, l.current)
		}

	case evt.Verdict != nil:
		if l.state != StateAwaitingVerdict {
			l.logger.Warn().Str("state", l.state.String()).Msg("unexpected verdict, ignoring")
			return nil
		}
		if evt.Verdict.Correct {
			l.correctCount++
		} else {
			l.penalties++
		}
		l.setState(StateFeedback)
		l.resetTimer(l.cfg.FeedbackDelay)
		// hooks fire after the phase timer is armed
		if l.hooks.OnVerdict != nil {
			l.hooks.OnVerdict(l.questionN, *evt.Verdict)
		}
	}
	return nil
}

// onTimer handles the single pending timer for whatever phase we are in.
func (l *Loop) onTimer() (bool, error) {
	switch l.state {
	case StateQuestionActive:
		l.remaining -= l.cfg.TimerTick
		if l.hooks.OnCountdown != nil {
			l.hooks.OnCountdown(l.remaining)
		}
		if l.remaining <= 0 {
			// Out of time: auto-submit an empty answer, graded as wrong.
			return false, l.submit("")
		}
		l.resetTimer(l.cfg.TimerTick)
		return false, nil

	case StateAwaitingQuestion, StateAwaitingVerdict:
		l.stopTimer()
		return false, fmt.Errorf("timed out waiting for server in state %s", l.state)

	case StateFeedback:
		return l.afterFeedback()

	case StateFinished:
		l.stopTimer()
		return true, nil

	default:
		return false, nil
	}
}

func (l *Loop) submit(answer string) error {
	l.setState(StateAwaitingVerdict)
	l.resetTimer(l.cfg.AwaitTimeout)

	if err := l.tp.SubmitAnswer(l.current.ID, l.questionN-1, answer); err != nil {
		l.stopTimer()
		return fmt.Errorf("submit answer: %w", err)
	}
	return nil
}

// afterFeedback moves on to the next question or wraps up the game. The bool
// result reports game completion.
func (l *Loop) afterFeedback() (bool, error) {
	if l.questionN >= l.cfg.QuestionsPerGame {
		return false, l.finish()
	}
	return false, l.nextQuestion()
}

func (l *Loop) nextQuestion() error {
	l.setState(StateAwaitingQuestion)
	l.resetTimer(l.cfg.AwaitTimeout)
	if err := l.tp.RequestQuestion(l.cfg.Level); err != nil {
		l.stopTimer()
		return fmt.Errorf("request question: %w", err)
	}
	return nil
}

func (l *Loop) finish() error {
	l.setState(StateFinished)

	// Clean time is wall time since the game started, captured here so the
	// post-save linger below does not count against the player.
	l.final = l.summarize()
	sum := l.final
	if !l.cfg.IsGuest {
		if err := l.tp.SaveResult(l.cfg.Level, sum.CorrectCount, sum.TotalTime, l.cfg.QuestionsPerGame); err != nil {
			l.logger.Warn().Err(err).Msg("failed to save game result")
		}
	}
	if l.hooks.OnFinished != nil {
		l.hooks.OnFinished(sum)
	}

	// Linger so the save and the final leaderboard refresh land before the
	// loop reports completion.
	l.resetTimer(l.cfg.FinishDelay)
	return nil
}

func (l *Loop) summarize() Summary {
	clean := l.clock.Since(l.startedAt).Seconds()
	return Summary{
		CorrectCount: l.correctCount,
		CleanTime:    clean,
		TotalTime:    clean + float64(l.penalties)*l.cfg.PenaltySeconds,
		Saved:        !l.cfg.IsGuest,
	}
}

func (l *Loop) setState(s State) {
	l.state = s
}

// resetTimer replaces the pending timer. Stopping before replacing keeps the
// fake clock's waiter count at exactly one.
func (l *Loop) resetTimer(d time.Duration) {
	l.stopTimer()
	l.timer = l.clock.NewTimer(d)
	l.timerCh = l.timer.Chan()
}

func (l *Loop) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
		l.timerCh = nil
	}
}
