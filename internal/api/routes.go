// Package api wires the gateway's HTTP surface: health, token issuance, the
// voice session form, transcript history, and the websocket upgrade.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
	"github.com/keranlabs/keran/internal/auth"
	"github.com/keranlabs/keran/internal/websocket"
	"github.com/keranlabs/keran/usecase"
)

// Dependencies bundles what the HTTP handlers need. Synthesizer, Archive, and
// Auth may be nil; the corresponding endpoints then report unavailability.
type Dependencies struct {
	Hub         *websocket.Hub
	Issuer      *auth.TokenIssuer
	Sessions    *usecase.VoiceSessionService
	Synthesizer repositories.SpeechSynthesizer
	Archive     repositories.TranscriptArchive
	Auth        repositories.AuthBackend
	TokenTTL    time.Duration

	// AuthDisabled skips token validation on /ws and the user-scoped REST
	// routes. Local development only.
	AuthDisabled bool
}

// userIDKey is the echo context key the auth middleware stores the validated
// user ID under
const userIDKey = "user_id"

// requireUser validates the gateway token on user-scoped routes and stashes
// the token's user ID on the request context. With AuthDisabled every
// request acts as the "local" user.
func requireUser(deps Dependencies, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deps.AuthDisabled {
				c.Set(userIDKey, "local")
				return next(c)
			}
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required",
				})
			}
			claims, err := deps.Issuer.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Warn("request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}
			c.Set(userIDKey, claims.UserID)
			return next(c)
		}
	}
}

// requestUserID returns the user ID requireUser stored for this request
func requestUserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "keran-gateway",
		})
	})

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, deps, logger)
	})
	v1.POST("/auth/login", func(c echo.Context) error {
		return login(c, deps, logger)
	})

	// The form record and transcript history belong to a user, so these
	// routes demand a valid gateway token.
	authn := requireUser(deps, logger)

	v1.GET("/session", func(c echo.Context) error {
		return c.JSON(http.StatusOK, deps.Sessions.Snapshot(requestUserID(c)))
	}, authn)
	v1.GET("/session/fields", func(c echo.Context) error {
		return c.JSON(http.StatusOK, entities.VoiceSessionFields)
	})
	v1.PUT("/session/fields/:name", func(c echo.Context) error {
		return updateField(c, deps, logger)
	}, authn)
	v1.POST("/session/save", func(c echo.Context) error {
		userID := requestUserID(c)
		if err := deps.Sessions.SaveSession(userID); err != nil {
			logger.Error("failed to save session", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "save_failed",
				Message: "Failed to persist session",
			})
		}
		return c.JSON(http.StatusOK, deps.Sessions.Snapshot(userID))
	}, authn)
	v1.POST("/session/reset", func(c echo.Context) error {
		userID := requestUserID(c)
		if err := deps.Sessions.ResetForm(userID); err != nil {
			logger.Error("failed to reset session", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "reset_failed",
				Message: "Failed to reset session",
			})
		}
		return c.JSON(http.StatusOK, deps.Sessions.Snapshot(userID))
	}, authn)

	v1.GET("/voices", func(c echo.Context) error {
		return listVoices(c, deps, logger)
	})

	v1.GET("/history", func(c echo.Context) error {
		return listHistory(c, deps, logger)
	}, authn)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps, c, logger)
	})
}

func issueToken(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "user_id is required",
		})
	}

	token, err := deps.Issuer.Issue(req.UserID)
	if err != nil {
		logger.Error("failed to issue token",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		UserID:    req.UserID,
	})
}

// login proxies credentials to the portal backend and, on success, issues a
// gateway token alongside the portal identity.
func login(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	if deps.Auth == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "auth_unavailable",
			Message: "Portal authentication is not configured",
		})
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "email and password are required",
		})
	}

	identity, err := deps.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrBadCredentials) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "bad_credentials",
				Message: "Incorrect email or password",
			})
		}
		logger.Error("portal login failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "login_failed",
			Message: "Portal authentication failed",
		})
	}

	token, err := deps.Issuer.Issue(identity.Email)
	if err != nil {
		logger.Error("failed to issue token",
			zap.String("email", identity.Email),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Token:       token,
		ExpiresAt:   time.Now().Add(ttl),
		PortalToken: identity.Token,
		Name:        identity.Name,
		Email:       identity.Email,
		Role:        identity.Role,
		ImageURL:    identity.ImageURL,
	})
}

func updateField(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	var req FieldUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	userID := requestUserID(c)
	name := c.Param("name")
	if err := deps.Sessions.UpdateField(userID, name, req.Value); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_field",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, deps.Sessions.Snapshot(userID))
}

func listVoices(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	if deps.Synthesizer == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "synthesis_unavailable",
			Message: "Speech synthesis is not configured",
		})
	}
	voices, err := deps.Synthesizer.Voices(c.Request().Context())
	if err != nil {
		logger.Error("failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "voices_failed",
			Message: "Failed to fetch voice catalogue",
		})
	}
	return c.JSON(http.StatusOK, voices)
}

func listHistory(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	if deps.Archive == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "archive_unavailable",
			Message: "Transcript archive is not configured",
		})
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be in [1, 100]",
			})
		}
		limit = n
	}
	transcripts, err := deps.Archive.ListRecent(c.Request().Context(), limit)
	if err != nil {
		logger.Error("failed to list transcripts", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to fetch transcript history",
		})
	}
	return c.JSON(http.StatusOK, transcripts)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(deps Dependencies, c echo.Context, logger *zap.Logger) error {
	if deps.AuthDisabled {
		return websocket.Serve(deps.Hub, c, "local", logger)
	}

	// Browsers cannot set headers on websocket upgrades, so the token is
	// also accepted as a query parameter.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		logger.Warn("websocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := deps.Issuer.Validate(token)
	if err != nil {
		logger.Warn("websocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	logger.Info("websocket connection authenticated",
		zap.String("user_id", claims.UserID))

	return websocket.Serve(deps.Hub, c, claims.UserID, logger)
}
