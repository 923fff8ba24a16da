package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentverse-backend/internal/models"
	"rentverse-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubTokens map[string]*services.Claims

func (s stubTokens) ValidateToken(token string) (*services.Claims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, errors.New("token is expired")
}

func newAuthRouter(tokens TokenValidator) *gin.Engine {
	auth := NewAuthMiddleware(tokens)
	r := gin.New()
	r.GET("/me", auth.AuthRequired(), func(c *gin.Context) {
		id, ok := GetUserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	r.GET("/admin", auth.AuthRequired(), auth.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	r := newAuthRouter(stubTokens{
		"good": {UserID: userID, Role: models.RoleUser},
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired token"},
		{"valid", "Bearer good", http.StatusOK, userID.String()},
		{"lowercase scheme", "bearer good", http.StatusOK, userID.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := do(r, http.MethodGet, "/me", headers)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	r := newAuthRouter(stubTokens{
		"user":  {UserID: uuid.New(), Role: models.RoleUser},
		"admin": {UserID: uuid.New(), Role: models.RoleAdmin},
	})

	w := do(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer user"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_ROLE")

	w = do(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer admin"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = do(r, http.MethodGet, "/", nil)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(quietLogger()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRequestLogging(t *testing.T) {
	logger := logrus.New()
	hook := &captureHook{}
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	r := gin.New()
	r.Use(RequestLogging(logger))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	do(r, http.MethodGet, "/missing", nil)
	require.Len(t, hook.entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.entries[0].Level)
	assert.Equal(t, http.StatusNotFound, hook.entries[0].Data["status"])
}

type captureHook struct {
	entries []*logrus.Entry
}

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *captureHook) Fire(e *logrus.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.Use(limiter.Middleware())
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", nil).Code)

	w := do(r, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", nil).Code)
}

func TestRateLimiter_DropsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("10.0.0.1"))
	now = now.Add(11 * time.Minute)
	assert.True(t, limiter.allow("10.0.0.2"))
	assert.Len(t, limiter.visitors, 1)
}

type stubChecker map[string]bool

func (s stubChecker) IsBlocked(_ context.Context, ip string) bool { return s[ip] }

func TestBlockedIPGuard(t *testing.T) {
	r := gin.New()
	r.Use(BlockedIPGuard(stubChecker{"192.0.2.1": true}, quietLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	// httptest requests come from 192.0.2.1
	w := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "IP_BLOCKED")

	r2 := gin.New()
	r2.Use(BlockedIPGuard(stubChecker{}, quietLogger()))
	r2.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, do(r2, http.MethodGet, "/", nil).Code)
}
