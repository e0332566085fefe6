// Package config provides the configuration schema and loader for the Keran
// voice gateway.
package config

import (
	"time"

	"github.com/keranlabs/keran/domain/entities"
)

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the gateway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// then overridden from the environment with [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Portal    PortalConfig    `yaml:"portal"`
	Speech    SpeechConfig    `yaml:"speech"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Storage   StorageConfig   `yaml:"storage"`
	Interview InterviewConfig `yaml:"interview"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// PortalConfig points the gateway at the scheme portal backend.
// When BaseURL is empty the chat surface falls back to the configured LLM
// and the interview surface is disabled.
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds each backend call. Zero means 30s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SpeechConfig selects recognition and synthesis providers.
type SpeechConfig struct {
	// DefaultLanguage is the BCP-47 tag used before a client picks one.
	DefaultLanguage string `yaml:"default_language"`

	// SampleRate of inbound client audio in hertz.
	SampleRate int `yaml:"sample_rate"`

	// GoogleCredentialsFile points at a service account JSON file for
	// the recognition API. Empty uses application default credentials.
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// ElevenLabsAPIKey authenticates synthesis requests.
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`

	// VoicePreferences orders synthesis voice names tried for English
	// sessions. Empty uses the built-in preference list.
	VoicePreferences []string `yaml:"voice_preferences"`
}

// GeminiConfig configures the fallback chat model.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// StorageConfig selects where sessions and transcripts persist.
type StorageConfig struct {
	// StateDir holds the voice session file. Empty defaults to the
	// working directory.
	StateDir string `yaml:"state_dir"`

	// MongoURI enables the transcript archive when non-empty.
	MongoURI string `yaml:"mongo_uri"`

	// MongoDatabase names the archive database. Empty means "keran".
	MongoDatabase string `yaml:"mongo_database"`
}

// InterviewConfig tunes the interview controller.
type InterviewConfig struct {
	// PracticeDelay is the pause before the next question in practice
	// mode. Zero means 8s.
	PracticeDelay time.Duration `yaml:"practice_delay"`

	// StrictDelay is the pause in mock interview mode. Zero means 2s.
	StrictDelay time.Duration `yaml:"strict_delay"`

	// DefaultDifficulty seeds new sessions. Zero means 5.
	DefaultDifficulty int `yaml:"default_difficulty"`
}

// AuthConfig holds JWT settings for the websocket and API surfaces.
type AuthConfig struct {
	// JWTSecret signs access tokens. Required when auth is enabled.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL bounds token lifetime. Zero means 24h.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// Disabled turns authentication off entirely. Intended for local
	// development only.
	Disabled bool `yaml:"disabled"`
}

// Default returns a Config with every zero value replaced by its
// documented default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Portal: PortalConfig{
			RequestTimeout: 30 * time.Second,
		},
		Speech: SpeechConfig{
			DefaultLanguage: "en-US",
			SampleRate:      16000,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			MongoDatabase: "keran",
		},
		Interview: InterviewConfig{
			PracticeDelay:     8 * time.Second,
			StrictDelay:       2 * time.Second,
			DefaultDifficulty: entities.DefaultDifficulty,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}
