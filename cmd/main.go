package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keranlabs/keran/adapters/llm"
	adaptermongo "github.com/keranlabs/keran/adapters/mongo"
	"github.com/keranlabs/keran/adapters/portal"
	"github.com/keranlabs/keran/adapters/storage"
	"github.com/keranlabs/keran/adapters/stt"
	"github.com/keranlabs/keran/adapters/tts"
	"github.com/keranlabs/keran/domain/repositories"
	"github.com/keranlabs/keran/internal/api"
	"github.com/keranlabs/keran/internal/auth"
	"github.com/keranlabs/keran/internal/config"
	"github.com/keranlabs/keran/internal/metrics"
	"github.com/keranlabs/keran/internal/websocket"
	"github.com/keranlabs/keran/usecase"
)

func main() {
	configPath := flag.String("config", "keran.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Optional .env file for local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Metrics provider with Prometheus bridge
	metricsShutdown, err := metrics.InitProvider(ctx, metrics.ProviderConfig{
		ServiceName: "keran",
	})
	if err != nil {
		logger.Fatal("failed to init metrics provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", zap.Error(err))
		}
	}()
	met, err := metrics.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		logger.Fatal("failed to create metrics", zap.Error(err))
	}

	// Speech recognition; disabled unless Google credentials are present
	var recognizer repositories.SpeechRecognizer
	if cfg.Speech.GoogleCredentialsFile != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Speech.GoogleCredentialsFile)
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		recognizer = stt.NewGoogleSpeechRecognizer(logger)
	} else {
		logger.Warn("no Google credentials configured, speech recognition disabled")
	}

	// Speech synthesis; disabled unless an ElevenLabs key is present
	var synthesizer repositories.SpeechSynthesizer
	ttsConfig := tts.NewElevenLabsConfigFromEnv()
	if cfg.Speech.ElevenLabsAPIKey != "" {
		ttsConfig.APIKey = cfg.Speech.ElevenLabsAPIKey
	}
	if ttsConfig.APIKey != "" {
		synth, err := tts.NewElevenLabsSynthesizer(ttsConfig, logger)
		if err != nil {
			logger.Fatal("failed to create synthesizer", zap.Error(err))
		}
		synthesizer = synth
	} else {
		logger.Warn("no ElevenLabs API key configured, speech synthesis disabled")
	}

	// Conversation backends. The portal serves both chat and interviews;
	// without it chat degrades to the Gemini assistant and interviews are
	// unavailable.
	var (
		interviewBackend repositories.InterviewBackend
		chatBackend      repositories.ChatBackend
		authBackend      repositories.AuthBackend
	)
	if cfg.Portal.BaseURL != "" {
		client := portal.NewClient(cfg.Portal.BaseURL, logger,
			portal.WithHTTPClient(&http.Client{Timeout: cfg.Portal.RequestTimeout}),
			portal.WithRequestObserver(func(op, status string, elapsed time.Duration) {
				met.RecordBackendRequest(context.Background(), op, status, elapsed.Seconds())
			}))
		interviewBackend = client
		chatBackend = client
		authBackend = client
	} else if cfg.Gemini.APIKey != "" {
		model, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create Gemini client", zap.Error(err))
		}
		chatBackend = llm.NewChatAssistant(model)
		logger.Info("portal not configured, chat runs on Gemini directly")
	} else {
		logger.Fatal("either portal.base_url or gemini.api_key must be configured")
	}

	// Voice session persistence
	store, err := storage.NewFileSessionStore(cfg.Storage.StateDir, logger)
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	sessions := usecase.NewVoiceSessionService(store, logger)

	// Transcript archive; Mongo when configured, in-memory otherwise
	var archive repositories.TranscriptArchive = storage.NewMemoryTranscriptArchive()
	if cfg.Storage.MongoURI != "" {
		mongoClient, err := adaptermongo.NewClient(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Close(closeCtx); err != nil {
				logger.Warn("mongo close failed", zap.Error(err))
			}
		}()
		archive = adaptermongo.NewTranscriptRepository(mongoClient.Database)
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	hub := websocket.NewHub(websocket.Dependencies{
		Recognizer:        recognizer,
		Synthesizer:       synthesizer,
		Interview:         interviewBackend,
		Chat:              chatBackend,
		Sessions:          sessions,
		Archive:           archive,
		Metrics:           met,
		DefaultLanguage:   cfg.Speech.DefaultLanguage,
		SampleRate:        cfg.Speech.SampleRate,
		VoicePreferences:  cfg.Speech.VoicePreferences,
		PracticeDelay:     cfg.Interview.PracticeDelay,
		StrictDelay:       cfg.Interview.StrictDelay,
		DefaultDifficulty: cfg.Interview.DefaultDifficulty,
	}, logger)
	go hub.Run()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Hub:          hub,
		Issuer:       issuer,
		Sessions:     sessions,
		Synthesizer:  synthesizer,
		Archive:      archive,
		Auth:         authBackend,
		TokenTTL:     cfg.Auth.TokenTTL,
		AuthDisabled: cfg.Auth.Disabled,
	}, logger)

	go func() {
		if err := e.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("voice gateway started", zap.String("addr", cfg.Server.ListenAddr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(level config.LogLevel) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	switch level {
	case config.LogDebug:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case config.LogWarn:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case config.LogError:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return zapConfig.Build()
}
