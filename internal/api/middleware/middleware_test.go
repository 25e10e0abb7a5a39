package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRecoveryReturnsJSON(t *testing.T) {
	r := newEngine(Recovery())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(32))

	assert.Equal(t, http.StatusOK, post(r, `{"a":1}`).Code)

	w := post(r, `{"message":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
}

func TestDeduplicationWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }
	r := newEngine(Deduplication(d))

	assert.Equal(t, http.StatusOK, post(r, `{"message":"hi"}`).Code)

	w := post(r, `{"message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "DUPLICATE_REQUEST")

	assert.Equal(t, http.StatusOK, post(r, `{"message":"hello"}`).Code, "different body is not a duplicate")

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusOK, post(r, `{"message":"hi"}`).Code, "window elapsed")

	now = now.Add(time.Minute)
	d.cleanup()
	assert.Empty(t, d.requests)
}

func TestRateLimitPerClient(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"), "buckets are per client")

	now = now.Add(30 * time.Second)
	assert.True(t, limiter.Allow("a"), "one token refilled after half the window")
	assert.False(t, limiter.Allow("a"))

	now = now.Add(5 * time.Minute)
	limiter.prune()
	assert.Equal(t, 0, limiter.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	r := newEngine(RateLimit(limiter))

	assert.Equal(t, http.StatusOK, post(r, `{"n":1}`).Code)

	w := post(r, `{"n":2}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
