package entities

import "testing"

func TestVoiceSessionFieldRoundTrip(t *testing.T) {
	session := NewVoiceSession()

	for _, name := range VoiceSessionFields {
		if err := session.SetField(name, "value-"+name); err != nil {
			t.Errorf("SetField(%s) failed: %v", name, err)
		}
	}

	for _, name := range VoiceSessionFields {
		value, err := session.Field(name)
		if err != nil {
			t.Errorf("Field(%s) failed: %v", name, err)
		}
		if value != "value-"+name {
			t.Errorf("Field(%s) = %q, want %q", name, value, "value-"+name)
		}
	}
}

func TestVoiceSessionUnknownField(t *testing.T) {
	session := NewVoiceSession()

	if err := session.SetField("aadhaar", "x"); err == nil {
		t.Error("Expected error for unknown field on SetField")
	}
	if _, err := session.Field("aadhaar"); err == nil {
		t.Error("Expected error for unknown field on Field")
	}
}

func TestClampDifficulty(t *testing.T) {
	if got := ClampDifficulty(0); got != MinDifficulty {
		t.Errorf("ClampDifficulty(0) = %d, want %d", got, MinDifficulty)
	}
	if got := ClampDifficulty(11); got != MaxDifficulty {
		t.Errorf("ClampDifficulty(11) = %d, want %d", got, MaxDifficulty)
	}
	if got := ClampDifficulty(7); got != 7 {
		t.Errorf("ClampDifficulty(7) = %d, want 7", got)
	}
}

func TestLanguageTag(t *testing.T) {
	if got := LanguageTag("Tamil"); got != "ta-IN" {
		t.Errorf("LanguageTag(Tamil) = %s, want ta-IN", got)
	}
	if got := LanguageTag("Malayalam"); got != "ml-IN" {
		t.Errorf("LanguageTag(Malayalam) = %s, want ml-IN", got)
	}
	if got := LanguageTag("English"); got != "en-US" {
		t.Errorf("LanguageTag(English) = %s, want en-US", got)
	}
	if got := LanguageTag("Hindi"); got != "en-US" {
		t.Errorf("LanguageTag(Hindi) = %s, want en-US fallback", got)
	}
}

func TestIsVoiceSessionField(t *testing.T) {
	for _, name := range VoiceSessionFields {
		if !IsVoiceSessionField(name) {
			t.Errorf("Expected %q to be a session field", name)
		}
	}
	if IsVoiceSessionField("aadhaar") {
		t.Error("Expected aadhaar to be unknown")
	}
	if IsVoiceSessionField("") {
		t.Error("Expected empty name to be unknown")
	}
}
