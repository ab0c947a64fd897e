package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	contextPkg "FocusTracker/pkg/context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestApp(cfg Config) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := New(logger, cfg)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewCORSMiddleware())
	app.Use(m.NewLoggingMiddleware())
	app.Post("/echo", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	return app
}

func TestRequestID(t *testing.T) {
	app := newTestApp(DefaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(contextPkg.HeaderRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "req-123", string(body))
	assert.Equal(t, "req-123", resp.Header.Get(contextPkg.HeaderRequestID))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/echo", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Len(t, string(body), 26)
	assert.Equal(t, string(body), resp.Header.Get(contextPkg.HeaderRequestID))
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(DefaultConfig())

	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), "POST")
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), fiber.HeaderContentType)
}

func TestRateLimiter(t *testing.T) {
	app := newTestApp(Config{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/echo", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/echo", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"code":"RATE_LIMITED"`)
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(rate.Limit(50), 100)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now
	require.Equal(t, minLimiterIdleTTL, rl.idleTTL)

	for i := 0; i < 100; i++ {
		rl.GetLimiterFrom(fmt.Sprintf("10.0.0.%d", i))
	}
	active := rl.GetLimiterFrom("10.0.1.1")
	require.Len(t, rl.bucket, 101)

	now = now.Add(6 * time.Minute)
	assert.Same(t, active, rl.GetLimiterFrom("10.0.1.1"))

	now = now.Add(5 * time.Minute)
	assert.Same(t, active, rl.GetLimiterFrom("10.0.1.1"))
	assert.Len(t, rl.bucket, 1)
}

func TestRateLimiter_IdleTTLCoversRefill(t *testing.T) {
	rl := newRateLimiter(rate.Limit(0.001), 2)
	assert.Equal(t, 2000*time.Second, rl.idleTTL)
}

func TestSanitizeRequestBody(t *testing.T) {
	got := sanitizeRequestBody(fiber.MIMEApplicationJSON,
		[]byte(`{"sessionId":"s1","imageBase64":"`+strings.Repeat("A", 40)+`","token":"abc"}`))

	assert.Contains(t, got, `"imageBase64":"[IMAGE 40 chars]"`)
	assert.Contains(t, got, `"token":"[SECRET]"`)
	assert.Contains(t, got, `"sessionId":"s1"`)
	assert.NotContains(t, got, "AAAA")

	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody(fiber.MIMETextPlain, []byte("hello")))
	assert.Equal(t, "[multipart body 5 bytes]", sanitizeRequestBody("multipart/form-data; boundary=x", []byte("12345")))
}
