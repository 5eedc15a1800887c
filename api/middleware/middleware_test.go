package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
	"storefront/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]*services.Claims

func (s stubTokens) ParseToken(token string) (*services.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, services.ErrInvalidToken
}

func newAuthRouter() *gin.Engine {
	tokens := stubTokens{
		"user-token":  {UserID: "u1", Role: models.RoleUser},
		"admin-token": {UserID: "a1", Role: models.RoleAdmin},
	}
	r := gin.New()
	authed := r.Group("/", Auth(tokens))
	authed.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAuth(t *testing.T) {
	r := newAuthRouter()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
		body   string
	}{
		{"missing token", "/me", "", http.StatusUnauthorized, ""},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized, ""},
		{"header token", "/me", "Bearer user-token", http.StatusOK, "u1"},
		{"query token", "/me?token=user-token", "", http.StatusOK, "u1"},
		{"non admin", "/admin", "Bearer user-token", http.StatusForbidden, ""},
		{"admin", "/admin", "Bearer admin-token", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	log, hook := test.NewNullLogger()
	rl := NewRateLimiter(1, 2, log)

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Len(t, hook.AllEntries(), 1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code, "limits are per caller")

	rl.Cleanup(0)
	assert.Empty(t, rl.limiters)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(m.Handler())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/items/1", "/items/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	w := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `storefront_http_requests_total{method="GET",route="/items/:id",status="200"} 2`)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, "storefront_http_requests_in_flight 0")
}

func TestLoggerSetsRequestID(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(Logger(log))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	if assert.Len(t, hook.AllEntries(), 1) {
		assert.Equal(t, 200, hook.LastEntry().Data["status"])
	}
}
