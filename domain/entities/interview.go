package entities

// InterviewMode selects how answer feedback is surfaced to the candidate
type InterviewMode string

const (
	// ModePractice shows full evaluation feedback after each answer
	ModePractice InterviewMode = "practice"
	// ModeInterview withholds feedback until the session ends
	ModeInterview InterviewMode = "interview"
)

// Difficulty bounds for interview questions
const (
	MinDifficulty     = 1
	MaxDifficulty     = 10
	DefaultDifficulty = 5
)

// InterviewConfig holds the session parameters chosen on the setup screen
type InterviewConfig struct {
	Role       string        `json:"role"`
	Mode       InterviewMode `json:"mode"`
	Language   string        `json:"language"`
	Difficulty int           `json:"difficulty"`
}

// ClampDifficulty forces a server-provided level into the valid range
func ClampDifficulty(level int) int {
	if level < MinDifficulty {
		return MinDifficulty
	}
	if level > MaxDifficulty {
		return MaxDifficulty
	}
	return level
}

// LanguageTag maps a display language name to its BCP 47 speech tag.
// Unknown languages fall back to English.
func LanguageTag(language string) string {
	switch language {
	case "Tamil":
		return "ta-IN"
	case "Malayalam":
		return "ml-IN"
	default:
		return "en-US"
	}
}
