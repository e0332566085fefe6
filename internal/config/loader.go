package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. A missing file is not an
// error; defaults plus environment variables apply instead.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			ApplyEnv(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults.
// Useful in tests where configs are constructed from string literals.
// The result is not validated; callers run [Validate] themselves.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from environment variables. Secrets are
// expected to arrive this way in deployment rather than living in the
// YAML file.
func ApplyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Server.ListenAddr, "KERAN_LISTEN_ADDR")
	if v := os.Getenv("KERAN_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	setString(&cfg.Portal.BaseURL, "KERAN_PORTAL_URL")
	setString(&cfg.Speech.DefaultLanguage, "KERAN_DEFAULT_LANGUAGE")
	setString(&cfg.Speech.GoogleCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Speech.ElevenLabsAPIKey, "ELEVEN_LABS_API_KEY")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Storage.StateDir, "KERAN_STATE_DIR")
	setString(&cfg.Storage.MongoURI, "MONGODB_URI")
	setString(&cfg.Storage.MongoDatabase, "MONGODB_DATABASE")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("KERAN_AUTH_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Disabled = b
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Speech.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("speech.sample_rate %d must be positive", cfg.Speech.SampleRate))
	}
	if cfg.Portal.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("portal.request_timeout %s must not be negative", cfg.Portal.RequestTimeout))
	}
	if d := cfg.Interview.PracticeDelay; d < 0 || d > time.Minute {
		errs = append(errs, fmt.Errorf("interview.practice_delay %s is out of range [0, 1m]", d))
	}
	if d := cfg.Interview.StrictDelay; d < 0 || d > time.Minute {
		errs = append(errs, fmt.Errorf("interview.strict_delay %s is out of range [0, 1m]", d))
	}
	if n := cfg.Interview.DefaultDifficulty; n < 0 || n > 10 {
		errs = append(errs, fmt.Errorf("interview.default_difficulty %d is out of range [1, 10]", n))
	}
	if !cfg.Auth.Disabled && cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required unless auth.disabled is set"))
	}

	return errors.Join(errs...)
}
