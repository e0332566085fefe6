package entities

import (
	"testing"
)

func TestTranscriptAppend(t *testing.T) {
	transcript := NewTranscript("English")

	if transcript.ID == "" {
		t.Error("Expected transcript ID to be set")
	}
	if transcript.Language != "English" {
		t.Errorf("Expected language English, got %s", transcript.Language)
	}
	if len(transcript.Turns) != 0 {
		t.Errorf("Expected empty transcript, got %d turns", len(transcript.Turns))
	}

	turn := transcript.Append(RoleUser, "What schemes am I eligible for?")

	if len(transcript.Turns) != 1 {
		t.Errorf("Expected 1 turn, got %d", len(transcript.Turns))
	}
	if turn.Role != RoleUser {
		t.Errorf("Expected user role, got %s", turn.Role)
	}
	if turn.Content != "What schemes am I eligible for?" {
		t.Errorf("Unexpected content %q", turn.Content)
	}
	if turn.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	transcript.Append(RoleAssistant, "Here are the schemes for you.")

	last, ok := transcript.Last()
	if !ok {
		t.Fatal("Expected Last to find a turn")
	}
	if last.Role != RoleAssistant {
		t.Errorf("Expected assistant role, got %s", last.Role)
	}
}

func TestTranscriptAppendFeedback(t *testing.T) {
	transcript := NewTranscript("English")

	eval := Evaluation{
		ContentScore:      85,
		PresentationScore: 70,
		Feedback:          "Strong answer with concrete examples.",
		Tips:              []string{"Slow down slightly"},
	}
	turn := transcript.AppendFeedback(eval)

	if turn.Role != RoleFeedback {
		t.Errorf("Expected feedback role, got %s", turn.Role)
	}
	if turn.Content != eval.Feedback {
		t.Errorf("Expected content to mirror feedback text, got %q", turn.Content)
	}
	if turn.Evaluation == nil {
		t.Fatal("Expected evaluation to be attached")
	}
	if turn.Evaluation.ContentScore != 85 {
		t.Errorf("Expected content score 85, got %d", turn.Evaluation.ContentScore)
	}
}

func TestTranscriptReset(t *testing.T) {
	transcript := NewTranscript("English")
	transcript.Append(RoleUser, "hello")
	oldID := transcript.ID

	transcript.Reset("Tamil")

	if len(transcript.Turns) != 0 {
		t.Errorf("Expected empty transcript after reset, got %d turns", len(transcript.Turns))
	}
	if transcript.Language != "Tamil" {
		t.Errorf("Expected language Tamil, got %s", transcript.Language)
	}
	if transcript.ID == oldID {
		t.Error("Expected a fresh session identity after reset")
	}

	if _, ok := transcript.Last(); ok {
		t.Error("Expected Last to report empty after reset")
	}
}
