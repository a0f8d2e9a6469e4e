package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/infra/server/router"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Manager applies a per-client-IP request budget.
type Manager struct {
	cfg     *Config
	limiter *limiter.Limiter
	blocked *prometheus.CounterVec
}

// NewManager builds a limiter backed by client, or by process memory when
// client is nil. The blocked request counter is registered on reg when set.
func NewManager(cfg *Config, client redis.UniversalClient, reg prometheus.Registerer) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	storeOpts := limiter.StoreOptions{Prefix: cfg.Prefix, MaxRetry: cfg.MaxRetry}
	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, storeOpts)
		if err != nil {
			return nil, fmt.Errorf("creating redis rate limit store: %w", err)
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(storeOpts)
	}
	m := &Manager{
		cfg:     cfg,
		limiter: limiter.New(store, cfg.Rate.ToLimiterRate()),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minutemate",
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by the API rate limiter.",
		}, []string{"route"}),
	}
	if reg != nil {
		if err := reg.Register(m.blocked); err != nil {
			return nil, fmt.Errorf("registering rate limit metrics: %w", err)
		}
	}
	return m, nil
}

// Middleware rejects requests over budget with 429. Store failures let the
// request through.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		res, err := m.limiter.Get(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("Rate limit store unavailable", "error", err)
			c.Next()
			return
		}
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))
		if !res.Reached {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.blocked.WithLabelValues(route).Inc()
		h.Set("Retry-After", strconv.FormatInt(retryAfter(res.Reset), 10))
		router.RespondWithError(c, http.StatusTooManyRequests,
			router.NewRequestError(http.StatusTooManyRequests, "rate limit exceeded", nil))
	}
}

// retryAfter returns whole seconds until the unix reset time, at least one.
func retryAfter(reset int64) int64 {
	secs := int64(math.Ceil(time.Until(time.Unix(reset, 0)).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (m *Manager) excluded(path string) bool {
	for _, p := range m.cfg.ExcludedPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
