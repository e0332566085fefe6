package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// Guard errors shared by the conversational controllers
var (
	ErrBusy       = errors.New("a submit is already in flight")
	ErrEmptyInput = errors.New("empty input")
	ErrNoSession  = errors.New("no active session")
)

// Display delays between feedback and the next question. Practice mode gives
// the candidate time to read the evaluation; interview mode moves on quickly.
const (
	defaultPracticeDelay = 8 * time.Second
	defaultStrictDelay   = 2 * time.Second
)

// InterviewOption configures an InterviewController
type InterviewOption func(*InterviewController)

// WithDelays overrides the post-feedback next-question delays
func WithDelays(practice, strict time.Duration) InterviewOption {
	return func(c *InterviewController) {
		c.practiceDelay = practice
		c.strictDelay = strict
	}
}

// WithDefaultDifficulty overrides the seed difficulty for sessions that do
// not request one. Non-positive levels leave the built-in default.
func WithDefaultDifficulty(level int) InterviewOption {
	return func(c *InterviewController) {
		if level > 0 {
			c.defaultDifficulty = entities.ClampDifficulty(level)
		}
	}
}

// WithScheduler replaces the timer used for delayed next-question loading
func WithScheduler(schedule func(time.Duration, func())) InterviewOption {
	return func(c *InterviewController) {
		c.schedule = schedule
	}
}

// WithTurnListener registers a listener invoked for every appended turn
func WithTurnListener(fn func(entities.Turn)) InterviewOption {
	return func(c *InterviewController) {
		c.onTurn = fn
	}
}

// WithDifficultyListener registers a listener for difficulty level changes
func WithDifficultyListener(fn func(level int)) InterviewOption {
	return func(c *InterviewController) {
		c.onDifficulty = fn
	}
}

// WithInterviewArchive persists finished session transcripts to the archive
func WithInterviewArchive(archive repositories.TranscriptArchive) InterviewOption {
	return func(c *InterviewController) {
		c.archive = archive
	}
}

// InterviewController orchestrates one mock-interview session: it combines
// the recognizer and speaker with the remote turn-based interview API,
// manages turn-taking and the loading guard, and renders evaluation feedback
// into the transcript. At most one submit is in flight at a time.
type InterviewController struct {
	backend    repositories.InterviewBackend
	speaker    *Speaker
	recognizer *Recognizer
	archive    repositories.TranscriptArchive
	logger     *zap.Logger

	practiceDelay     time.Duration
	strictDelay       time.Duration
	defaultDifficulty int
	schedule          func(time.Duration, func())
	onTurn            func(entities.Turn)
	onDifficulty      func(int)

	mu              sync.Mutex
	config          entities.InterviewConfig
	transcript      *entities.Transcript
	currentQuestion string
	difficulty      int
	loading         bool
	sessionGen      int
}

// NewInterviewController wires an interview controller. speaker and
// recognizer may be nil when voice is unsupported; the session then degrades
// to text-only.
func NewInterviewController(
	backend repositories.InterviewBackend,
	speaker *Speaker,
	recognizer *Recognizer,
	logger *zap.Logger,
	opts ...InterviewOption,
) *InterviewController {
	c := &InterviewController{
		backend:           backend,
		speaker:           speaker,
		recognizer:        recognizer,
		logger:            logger,
		practiceDelay:     defaultPracticeDelay,
		strictDelay:       defaultStrictDelay,
		defaultDifficulty: entities.DefaultDifficulty,
	}
	c.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession begins a new interview session with the given configuration.
// The opening question is appended to the transcript and spoken. A backend
// failure is surfaced as a system turn and returned; the session stays open
// for a manual retry.
func (c *InterviewController) StartSession(ctx context.Context, config entities.InterviewConfig) error {
	if strings.TrimSpace(config.Role) == "" {
		return errors.New("target role is required")
	}
	if config.Mode == "" {
		config.Mode = entities.ModePractice
	}
	if config.Difficulty == 0 {
		config.Difficulty = c.defaultDifficulty
	}
	config.Difficulty = entities.ClampDifficulty(config.Difficulty)

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.sessionGen++
	c.config = config
	c.difficulty = config.Difficulty
	c.currentQuestion = ""
	c.transcript = entities.NewTranscript(config.Language)
	c.mu.Unlock()

	label := "Practice"
	if config.Mode == entities.ModeInterview {
		label = "Mock Interview"
	}
	c.append(entities.RoleSystem, fmt.Sprintf("Starting %s for %s Role.", label, config.Role))

	question, err := c.backend.StartInterview(ctx, config)

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("interview start failed",
			zap.String("role", config.Role),
			zap.Error(err))
		c.append(entities.RoleSystem, "Connection error. Please check the portal backend.")
		return err
	}

	c.mu.Lock()
	c.currentQuestion = question.Text
	if question.Difficulty != 0 {
		c.difficulty = entities.ClampDifficulty(question.Difficulty)
	}
	c.mu.Unlock()

	c.append(entities.RoleAssistant, question.Text)
	c.speak(ctx, question.Text)
	return nil
}

// Submit sends the candidate's answer (and optional code payload) for
// evaluation. Empty input is rejected before any network call; a second
// submit while one is in flight returns ErrBusy. An active recognition
// session is stopped first so the submitted text cannot be mutated by
// ongoing recognition.
func (c *InterviewController) Submit(ctx context.Context, answer, code string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" && code == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.transcript == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	config := c.config
	question := c.currentQuestion
	difficulty := c.difficulty
	generation := c.sessionGen
	c.mu.Unlock()

	if c.recognizer != nil && c.recognizer.IsListening() {
		c.recognizer.StopListening()
	}
	if answer == "" {
		answer = "Here is my code solution."
	}

	c.append(entities.RoleUser, answer)
	if c.recognizer != nil {
		c.recognizer.SetTranscript("")
	}

	result, err := c.backend.SubmitAnswer(ctx, repositories.AnswerSubmission{
		Role:              config.Role,
		Question:          question,
		Answer:            answer,
		Code:              code,
		Mode:              config.Mode,
		Language:          config.Language,
		CurrentDifficulty: difficulty,
	})

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("interview submit failed",
			zap.String("role", config.Role),
			zap.Error(err))
		c.append(entities.RoleSystem, "Connection error. Your answer was not evaluated; please submit again.")
		return err
	}

	var delay time.Duration
	if config.Mode == entities.ModePractice {
		c.appendFeedback(result.Evaluation)
		delay = c.practiceDelay
	} else {
		c.append(entities.RoleSystem, "Response recorded.")
		delay = c.strictDelay
	}

	// The display delay outlives the submit call, so the continuation must
	// not die with the caller's context.
	next := result.NextQuestion
	cont := context.WithoutCancel(ctx)
	c.schedule(delay, func() {
		c.loadNextQuestion(cont, generation, next)
	})
	return nil
}

// loadNextQuestion applies a difficulty change, then appends and speaks the
// next question. It no-ops when the session was reset while the display
// delay was pending.
func (c *InterviewController) loadNextQuestion(ctx context.Context, generation int, question repositories.Question) {
	c.mu.Lock()
	if generation != c.sessionGen {
		c.mu.Unlock()
		return
	}

	var notice string
	var changed int
	if question.Difficulty != 0 {
		level := entities.ClampDifficulty(question.Difficulty)
		if level > c.difficulty {
			notice = fmt.Sprintf("Level up! Difficulty increased to %d/10.", level)
		} else if level < c.difficulty {
			notice = fmt.Sprintf("Adjusting pace. Difficulty lowered to %d/10.", level)
		}
		if level != c.difficulty {
			c.difficulty = level
			changed = level
		}
	}
	c.currentQuestion = question.Text
	c.mu.Unlock()

	if changed != 0 && c.onDifficulty != nil {
		c.onDifficulty(changed)
	}
	if notice != "" {
		c.append(entities.RoleSystem, notice)
	}
	c.append(entities.RoleAssistant, question.Text)
	c.speak(ctx, question.Text)
}

// EndSession stops voice I/O, archives the transcript when an archive is
// configured, and invalidates any pending next-question timer
func (c *InterviewController) EndSession(ctx context.Context) error {
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	if c.recognizer != nil {
		c.recognizer.StopListening()
	}

	c.mu.Lock()
	c.sessionGen++
	transcript := c.transcript
	c.transcript = nil
	c.currentQuestion = ""
	c.loading = false
	c.mu.Unlock()

	if transcript == nil {
		return ErrNoSession
	}
	if c.archive != nil && len(transcript.Turns) > 0 {
		if err := c.archive.Create(ctx, transcript); err != nil {
			c.logger.Error("transcript archive failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// Turns returns a copy of the transcript so far
func (c *InterviewController) Turns() []entities.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcript == nil {
		return nil
	}
	turns := make([]entities.Turn, len(c.transcript.Turns))
	copy(turns, c.transcript.Turns)
	return turns
}

// Difficulty returns the current difficulty level
func (c *InterviewController) Difficulty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.difficulty
}

// CurrentQuestion returns the question awaiting an answer
func (c *InterviewController) CurrentQuestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentQuestion
}

// IsLoading reports whether a start or submit is in flight
func (c *InterviewController) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *InterviewController) append(role entities.Role, content string) {
	c.mu.Lock()
	if c.transcript == nil {
		c.mu.Unlock()
		return
	}
	turn := c.transcript.Append(role, content)
	listener := c.onTurn
	c.mu.Unlock()

	if listener != nil {
		listener(turn)
	}
}

func (c *InterviewController) appendFeedback(eval entities.Evaluation) {
	c.mu.Lock()
	if c.transcript == nil {
		c.mu.Unlock()
		return
	}
	turn := c.transcript.AppendFeedback(eval)
	listener := c.onTurn
	c.mu.Unlock()

	if listener != nil {
		listener(turn)
	}
}

func (c *InterviewController) speak(ctx context.Context, text string) {
	if c.speaker == nil {
		return
	}
	c.mu.Lock()
	language := c.config.Language
	c.mu.Unlock()
	c.speaker.Speak(ctx, text, nil, entities.LanguageTag(language))
}
