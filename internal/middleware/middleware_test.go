// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestResolveLanguage(t *testing.T) {
	assert.Equal(t, "pt_BR", ResolveLanguage("pt-BR,pt;q=0.9,en;q=0.8", "en"))
	assert.Equal(t, "pt_BR", ResolveLanguage("pt", "en"))
	assert.Equal(t, "en", ResolveLanguage("en-US", "pt_BR"))
	assert.Equal(t, "en", ResolveLanguage("fr-FR", "en"))
	assert.Equal(t, "pt_BR", ResolveLanguage("", "pt_BR"))
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(rate.Every(time.Hour), 2).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Every(time.Second), 1)
	rl.now = func() time.Time { return now }

	rl.getVisitor("10.0.0.1")
	now = now.Add(10 * time.Minute)
	rl.getVisitor("10.0.0.2")

	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestActorAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), ActorFromHeaders())

	var actorID, requestID string
	r.GET("/", func(c *gin.Context) {
		actorID = c.GetString("actor_id")
		requestID = c.GetString("request_id")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, "ops-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "ops-1", actorID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(HeaderRequestID))
}
