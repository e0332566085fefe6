package usecase

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/keranlabs/keran/adapters/storage"
)

func TestVoiceSessionUpdateDoesNotPersist(t *testing.T) {
	store := storage.NewMemorySessionStore()
	svc := NewVoiceSessionService(store, zaptest.NewLogger(t))

	if err := svc.UpdateField("priya", "fullName", "Priya Kumar"); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if got := svc.Snapshot("priya").FullName; got != "Priya Kumar" {
		t.Errorf("Snapshot fullName = %q, want Priya Kumar", got)
	}

	// Updates stay in memory until an explicit save.
	persisted, err := store.Load("priya")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if persisted.FullName != "" {
		t.Errorf("Expected store untouched before save, got %q", persisted.FullName)
	}
}

func TestVoiceSessionSaveAndRestore(t *testing.T) {
	store := storage.NewMemorySessionStore()
	svc := NewVoiceSessionService(store, zaptest.NewLogger(t))

	if err := svc.UpdateField("priya", "occupation", "farmer"); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if err := svc.SaveSession("priya"); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	restored := NewVoiceSessionService(store, zaptest.NewLogger(t))
	if got := restored.Snapshot("priya").Occupation; got != "farmer" {
		t.Errorf("Restored occupation = %q, want farmer", got)
	}
}

func TestVoiceSessionReset(t *testing.T) {
	store := storage.NewMemorySessionStore()
	svc := NewVoiceSessionService(store, zaptest.NewLogger(t))

	if err := svc.UpdateField("priya", "income", "12000"); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if err := svc.SaveSession("priya"); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := svc.ResetForm("priya"); err != nil {
		t.Fatalf("ResetForm failed: %v", err)
	}

	if got := svc.Snapshot("priya").Income; got != "" {
		t.Errorf("Expected empty income after reset, got %q", got)
	}
	persisted, err := store.Load("priya")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if persisted.Income != "" {
		t.Errorf("Expected persisted record cleared, got %q", persisted.Income)
	}
}

func TestVoiceSessionUsersAreIsolated(t *testing.T) {
	store := storage.NewMemorySessionStore()
	svc := NewVoiceSessionService(store, zaptest.NewLogger(t))

	if err := svc.UpdateField("priya", "fullName", "Priya Kumar"); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if err := svc.UpdateField("ravi", "fullName", "Ravi Shankar"); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	if got := svc.Snapshot("priya").FullName; got != "Priya Kumar" {
		t.Errorf("priya fullName = %q, want Priya Kumar", got)
	}
	if got := svc.Snapshot("ravi").FullName; got != "Ravi Shankar" {
		t.Errorf("ravi fullName = %q, want Ravi Shankar", got)
	}

	// Resetting one user must leave the other's record intact.
	if err := svc.ResetForm("ravi"); err != nil {
		t.Fatalf("ResetForm failed: %v", err)
	}
	if got := svc.Snapshot("ravi").FullName; got != "" {
		t.Errorf("Expected ravi cleared, got %q", got)
	}
	if got := svc.Snapshot("priya").FullName; got != "Priya Kumar" {
		t.Errorf("Expected priya untouched, got %q", got)
	}
}

func TestVoiceSessionUnknownField(t *testing.T) {
	svc := NewVoiceSessionService(storage.NewMemorySessionStore(), zaptest.NewLogger(t))
	if err := svc.UpdateField("priya", "panNumber", "x"); err == nil {
		t.Error("Expected error for unknown field")
	}
}
