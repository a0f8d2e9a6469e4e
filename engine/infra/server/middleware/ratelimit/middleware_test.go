package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func buildRouterForTest(t *testing.T, m *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.POST("/api/v0/meetings/transcript", func(c *gin.Context) { c.String(http.StatusCreated, "ok") })
	r.GET("/api/v0/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func doReq(r *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	r.ServeHTTP(w, req)
	return w
}

func testConfig(limit int64, period time.Duration) *Config {
	cfg := DefaultConfig()
	cfg.Rate = RateConfig{Limit: limit, Period: period}
	cfg.Prefix = "test:ratelimit:"
	cfg.MaxRetry = 1
	return cfg
}

func TestManager_Middleware(t *testing.T) {
	const path = "/api/v0/meetings/transcript"

	t.Run("Should block the second request from the same client", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m, err := NewManager(testConfig(1, time.Second), nil, reg)
		require.NoError(t, err)
		r := buildRouterForTest(t, m)

		require.Equal(t, http.StatusCreated, doReq(r, http.MethodPost, path, "1.2.3.4").Code)
		res := doReq(r, http.MethodPost, path, "1.2.3.4")

		require.Equal(t, http.StatusTooManyRequests, res.Code)
		assert.Equal(t, "TOO_MANY_REQUESTS", gjson.Get(res.Body.String(), "error.code").String())
		assert.NotEmpty(t, res.Header().Get("Retry-After"))
		assert.InDelta(t, 1, testutil.ToFloat64(m.blocked.WithLabelValues(path)), 0)
	})

	t.Run("Should budget each client separately", func(t *testing.T) {
		m, err := NewManager(testConfig(1, time.Minute), nil, nil)
		require.NoError(t, err)
		r := buildRouterForTest(t, m)

		require.Equal(t, http.StatusCreated, doReq(r, http.MethodPost, path, "10.0.0.1").Code)
		assert.Equal(t, http.StatusCreated, doReq(r, http.MethodPost, path, "10.0.0.2").Code)
	})

	t.Run("Should refill after the period", func(t *testing.T) {
		m, err := NewManager(testConfig(1, 100*time.Millisecond), nil, nil)
		require.NoError(t, err)
		r := buildRouterForTest(t, m)

		require.Equal(t, http.StatusCreated, doReq(r, http.MethodPost, path, "5.6.7.8").Code)
		require.Equal(t, http.StatusTooManyRequests, doReq(r, http.MethodPost, path, "5.6.7.8").Code)
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, http.StatusCreated, doReq(r, http.MethodPost, path, "5.6.7.8").Code)
	})

	t.Run("Should set rate limit headers", func(t *testing.T) {
		m, err := NewManager(testConfig(2, time.Minute), nil, nil)
		require.NoError(t, err)
		r := buildRouterForTest(t, m)

		res := doReq(r, http.MethodPost, path, "9.9.9.9")

		require.Equal(t, http.StatusCreated, res.Code)
		assert.Equal(t, "2", res.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", res.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, res.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("Should never limit excluded paths", func(t *testing.T) {
		m, err := NewManager(testConfig(1, time.Minute), nil, nil)
		require.NoError(t, err)
		r := buildRouterForTest(t, m)

		for range 3 {
			res := doReq(r, http.MethodGet, "/api/v0/health", "4.4.4.4")
			require.Equal(t, http.StatusOK, res.Code)
			assert.Empty(t, res.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("Should share the budget through redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cfg := testConfig(1, time.Minute)

		first, err := NewManager(cfg, client, nil)
		require.NoError(t, err)
		second, err := NewManager(cfg, client, nil)
		require.NoError(t, err)

		require.Equal(t, http.StatusCreated, doReq(buildRouterForTest(t, first), http.MethodPost, path, "7.7.7.7").Code)
		assert.Equal(t, http.StatusTooManyRequests,
			doReq(buildRouterForTest(t, second), http.MethodPost, path, "7.7.7.7").Code)
	})
}

func TestConfig(t *testing.T) {
	t.Run("Should reject non-positive limits", func(t *testing.T) {
		_, err := NewManager(testConfig(0, time.Minute), nil, nil)
		require.Error(t, err)
	})

	t.Run("Should fall back to defaults for zero values", func(t *testing.T) {
		cfg := ConfigFrom(nil)
		assert.Equal(t, DefaultConfig().Rate, cfg.Rate)
	})
}
