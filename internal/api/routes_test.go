package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/keranlabs/keran/adapters/storage"
	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/internal/auth"
	"github.com/keranlabs/keran/usecase"
)

func newTestServer(t *testing.T, authDisabled bool) (*echo.Echo, *auth.TokenIssuer) {
	t.Helper()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	e := echo.New()
	InitRoutes(e, Dependencies{
		Issuer:       issuer,
		Sessions:     usecase.NewVoiceSessionService(storage.NewMemorySessionStore(), zaptest.NewLogger(t)),
		AuthDisabled: authDisabled,
	}, zaptest.NewLogger(t))
	return e, issuer
}

func bearer(t *testing.T, issuer *auth.TokenIssuer, userID string) string {
	t.Helper()
	token, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return "Bearer " + token
}

func TestSessionRoutesRejectMissingToken(t *testing.T) {
	e, _ := newTestServer(t, false)

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/session"},
		{http.MethodPut, "/api/v1/session/fields/fullName"},
		{http.MethodPost, "/api/v1/session/save"},
		{http.MethodPost, "/api/v1/session/reset"},
		{http.MethodGet, "/api/v1/history"},
	} {
		req := httptest.NewRequest(route.method, route.path, strings.NewReader("{}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", route.method, route.path, rec.Code)
		}
	}
}

func TestSessionRoutesRejectInvalidToken(t *testing.T) {
	e, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestSessionRecordsAreScopedPerUser(t *testing.T) {
	e, issuer := newTestServer(t, false)

	put := func(token, value string) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/session/fields/fullName",
			strings.NewReader(`{"value":"`+value+`"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("PUT field = %d, want 200", rec.Code)
		}
	}
	get := func(token string) entities.VoiceSession {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET session = %d, want 200", rec.Code)
		}
		var session entities.VoiceSession
		if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
			t.Fatalf("Failed to decode session: %v", err)
		}
		return session
	}

	priya := bearer(t, issuer, "priya")
	ravi := bearer(t, issuer, "ravi")

	put(priya, "Priya Kumar")
	put(ravi, "Ravi Shankar")

	if got := get(priya).FullName; got != "Priya Kumar" {
		t.Errorf("priya sees fullName %q, want Priya Kumar", got)
	}
	if got := get(ravi).FullName; got != "Ravi Shankar" {
		t.Errorf("ravi sees fullName %q, want Ravi Shankar", got)
	}
}

func TestSessionRoutesOpenWhenAuthDisabled(t *testing.T) {
	e, _ := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestFieldCatalogueNeedsNoToken(t *testing.T) {
	e, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/fields", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for the field catalogue, got %d", rec.Code)
	}
}
