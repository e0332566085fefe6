package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/keranlabs/keran/adapters/storage"
	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

type fakeInterviewBackend struct {
	mu           sync.Mutex
	startResult  repositories.Question
	startErr     error
	submitResult repositories.SubmissionResult
	submitErr    error
	configs      []entities.InterviewConfig
	submissions  []repositories.AnswerSubmission

	// When set, SubmitAnswer blocks until the channel is closed.
	block chan struct{}
	// Closed once SubmitAnswer has been entered.
	entered chan struct{}
}

func (f *fakeInterviewBackend) StartInterview(ctx context.Context, config entities.InterviewConfig) (repositories.Question, error) {
	f.mu.Lock()
	f.configs = append(f.configs, config)
	f.mu.Unlock()
	return f.startResult, f.startErr
}

func (f *fakeInterviewBackend) SubmitAnswer(ctx context.Context, submission repositories.AnswerSubmission) (repositories.SubmissionResult, error) {
	f.mu.Lock()
	f.submissions = append(f.submissions, submission)
	entered := f.entered
	block := f.block
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		f.mu.Lock()
		f.entered = nil
		f.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	return f.submitResult, f.submitErr
}

// synchronous scheduler so next-question loading happens inline
func immediateScheduler(d time.Duration, fn func()) {
	fn()
}

func TestInterviewStartSession(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Tell me about yourself.", Difficulty: 5},
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t))

	err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk", Language: "English"})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	turns := c.Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != entities.RoleSystem || turns[0].Content != "Starting Practice for Clerk Role." {
		t.Errorf("Unexpected system turn: %+v", turns[0])
	}
	if turns[1].Role != entities.RoleAssistant || turns[1].Content != "Tell me about yourself." {
		t.Errorf("Unexpected question turn: %+v", turns[1])
	}
	if c.Difficulty() != entities.DefaultDifficulty {
		t.Errorf("Expected default difficulty, got %d", c.Difficulty())
	}
	if c.CurrentQuestion() != "Tell me about yourself." {
		t.Errorf("Unexpected current question %q", c.CurrentQuestion())
	}
}

func TestInterviewConfiguredDefaultDifficulty(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1", Difficulty: 3},
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithDefaultDifficulty(3))

	err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	backend.mu.Lock()
	sent := backend.configs[0].Difficulty
	backend.mu.Unlock()
	if sent != 3 {
		t.Errorf("Expected configured difficulty 3 sent to backend, got %d", sent)
	}
	if c.Difficulty() != 3 {
		t.Errorf("Expected difficulty 3, got %d", c.Difficulty())
	}

	// An explicit request still wins over the configured default.
	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk", Difficulty: 9}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	backend.mu.Lock()
	sent = backend.configs[1].Difficulty
	backend.mu.Unlock()
	if sent != 9 {
		t.Errorf("Expected explicit difficulty 9, got %d", sent)
	}
}

func TestInterviewStartRequiresRole(t *testing.T) {
	c := NewInterviewController(&fakeInterviewBackend{}, nil, nil, zaptest.NewLogger(t))
	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "  "}); err == nil {
		t.Error("Expected error for empty role")
	}
}

func TestInterviewStartBackendFailure(t *testing.T) {
	backend := &fakeInterviewBackend{startErr: errors.New("dial tcp: refused")}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t))

	err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"})
	if err == nil {
		t.Fatal("Expected backend error to propagate")
	}

	turns := c.Turns()
	last := turns[len(turns)-1]
	if last.Role != entities.RoleSystem || last.Content != "Connection error. Please check the portal backend." {
		t.Errorf("Expected connection error turn, got %+v", last)
	}
	if c.IsLoading() {
		t.Error("Expected loading cleared after failure")
	}
}

func TestInterviewSubmitPracticeFeedbackAndDifficultyUp(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1", Difficulty: 5},
		submitResult: repositories.SubmissionResult{
			Evaluation: entities.Evaluation{
				ContentScore:      90,
				PresentationScore: 85,
				Feedback:          "Excellent answer.",
			},
			NextQuestion: repositories.Question{Text: "Q2", Difficulty: 6},
		},
	}

	var levels []int
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(immediateScheduler),
		WithDifficultyListener(func(level int) { levels = append(levels, level) }))

	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := c.Submit(context.Background(), "I would structure the ledger by scheme.", ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if c.Difficulty() != 6 {
		t.Errorf("Expected difficulty 6, got %d", c.Difficulty())
	}
	if len(levels) != 1 || levels[0] != 6 {
		t.Errorf("Expected difficulty listener with level 6, got %v", levels)
	}

	turns := c.Turns()
	// system, Q1, answer, feedback, level-up notice, Q2
	if len(turns) != 6 {
		t.Fatalf("Expected 6 turns, got %d: %+v", len(turns), turns)
	}
	if turns[3].Role != entities.RoleFeedback || turns[3].Evaluation == nil {
		t.Errorf("Expected feedback turn with evaluation, got %+v", turns[3])
	}
	if turns[4].Content != "Level up! Difficulty increased to 6/10." {
		t.Errorf("Unexpected notice %q", turns[4].Content)
	}
	if turns[5].Content != "Q2" {
		t.Errorf("Expected next question turn, got %+v", turns[5])
	}
	if c.CurrentQuestion() != "Q2" {
		t.Errorf("Unexpected current question %q", c.CurrentQuestion())
	}
}

func TestInterviewSubmitStrictModeWithholdsFeedback(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1", Difficulty: 5},
		submitResult: repositories.SubmissionResult{
			Evaluation:   entities.Evaluation{ContentScore: 30, Feedback: "Weak."},
			NextQuestion: repositories.Question{Text: "Q2", Difficulty: 4},
		},
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(immediateScheduler))

	config := entities.InterviewConfig{Role: "Clerk", Mode: entities.ModeInterview}
	if err := c.StartSession(context.Background(), config); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := c.Submit(context.Background(), "short answer", ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for _, turn := range c.Turns() {
		if turn.Role == entities.RoleFeedback {
			t.Error("Strict mode must not surface feedback turns")
		}
		if turn.Content == "Response recorded." && turn.Role != entities.RoleSystem {
			t.Errorf("Unexpected role for ack turn: %+v", turn)
		}
	}
	if c.Difficulty() != 4 {
		t.Errorf("Expected difficulty lowered to 4, got %d", c.Difficulty())
	}

	var sawNotice bool
	for _, turn := range c.Turns() {
		if turn.Content == "Adjusting pace. Difficulty lowered to 4/10." {
			sawNotice = true
		}
	}
	if !sawNotice {
		t.Error("Expected difficulty-lowered notice")
	}
}

func TestInterviewSubmitGuards(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1"},
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(func(time.Duration, func()) {}))

	if err := c.Submit(context.Background(), "answer", ""); err != ErrNoSession {
		t.Errorf("Expected ErrNoSession before start, got %v", err)
	}
	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := c.Submit(context.Background(), "   ", ""); err != ErrEmptyInput {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestInterviewDoubleSubmitRejected(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1"},
		block:       make(chan struct{}),
		entered:     make(chan struct{}),
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(func(time.Duration, func()) {}))

	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	entered := backend.entered
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Submit(context.Background(), "first answer", "")
	}()
	<-entered

	if err := c.Submit(context.Background(), "second answer", ""); err != ErrBusy {
		t.Errorf("Expected ErrBusy for concurrent submit, got %v", err)
	}

	close(backend.block)
	if err := <-errCh; err != nil {
		t.Errorf("First submit failed: %v", err)
	}
}

func TestInterviewCodeOnlySubmit(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Write a dedup function."},
	}
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(func(time.Duration, func()) {}))

	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Developer"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := c.Submit(context.Background(), "", "func dedup() {}"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	backend.mu.Lock()
	submission := backend.submissions[0]
	backend.mu.Unlock()
	if submission.Answer != "Here is my code solution." {
		t.Errorf("Expected placeholder answer, got %q", submission.Answer)
	}
	if submission.Code != "func dedup() {}" {
		t.Errorf("Expected code payload, got %q", submission.Code)
	}
}

func TestInterviewEndSessionArchivesAndInvalidatesTimer(t *testing.T) {
	var pending func()
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1"},
		submitResult: repositories.SubmissionResult{
			NextQuestion: repositories.Question{Text: "Q2"},
		},
	}
	archive := storage.NewMemoryTranscriptArchive()
	c := NewInterviewController(backend, nil, nil, zaptest.NewLogger(t),
		WithScheduler(func(d time.Duration, fn func()) { pending = fn }),
		WithInterviewArchive(archive))

	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := c.Submit(context.Background(), "answer", ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := c.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	// The delayed next-question load fires after the session ended and must
	// not resurrect it.
	pending()
	if len(c.Turns()) != 0 {
		t.Error("Expected no turns after session end")
	}

	archived, err := archive.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("Expected 1 archived transcript, got %d", len(archived))
	}

	if err := c.EndSession(context.Background()); err != ErrNoSession {
		t.Errorf("Expected ErrNoSession on second end, got %v", err)
	}
}

func TestInterviewNextQuestionSurvivesCallerCancel(t *testing.T) {
	backend := &fakeInterviewBackend{
		startResult: repositories.Question{Text: "Q1", Difficulty: 5},
		submitResult: repositories.SubmissionResult{
			Evaluation:   entities.Evaluation{Feedback: "Good."},
			NextQuestion: repositories.Question{Text: "Q2", Difficulty: 5},
		},
	}
	synth := &fakeSynthesizer{voices: []repositories.Voice{{ID: "v1", Name: "Samantha", Language: "en-US", Default: true}}}
	speaker := NewSpeaker(context.Background(), synth, &collectingSink{}, zaptest.NewLogger(t))

	var pending func()
	c := NewInterviewController(backend, speaker, nil, zaptest.NewLogger(t),
		WithScheduler(func(d time.Duration, fn func()) { pending = fn }))

	if err := c.StartSession(context.Background(), entities.InterviewConfig{Role: "Clerk"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	// Playback runs on a goroutine; wait for Q1's synthesis request so the
	// request indices below are deterministic.
	synth.channel(t, 0)

	submitCtx, cancel := context.WithCancel(context.Background())
	if err := c.Submit(submitCtx, "My answer.", ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// The handler's context dies while the display delay is still pending.
	cancel()
	if pending == nil {
		t.Fatal("Expected a scheduled next-question callback")
	}
	pending()

	turns := c.Turns()
	last := turns[len(turns)-1]
	if last.Role != entities.RoleAssistant || last.Content != "Q2" {
		t.Errorf("Expected Q2 to be appended, got %+v", last)
	}

	// Q1 was spoken on start; Q2 must still be synthesized on a live context.
	synth.channel(t, 1)
	synth.mu.Lock()
	q2Ctx := synth.ctxs[1]
	q2Text := synth.requests[1]
	synth.mu.Unlock()
	if q2Text != "Q2" {
		t.Errorf("Expected Q2 synthesis request, got %q", q2Text)
	}
	if q2Ctx.Err() != nil {
		t.Errorf("Next question was synthesized on a dead context: %v", q2Ctx.Err())
	}
}
