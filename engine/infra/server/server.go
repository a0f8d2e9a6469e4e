package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/engine/infra/server/middleware/ratelimit"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	httpReadTimeout       = 15 * time.Second
	httpWriteTimeout      = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg        *config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	limiter    *ratelimit.Manager
}

type Option func(*Server)

// WithRateLimiter bounds API requests per client with m.
func WithRateLimiter(m *ratelimit.Manager) Option {
	return func(s *Server) {
		s.limiter = m
	}
}

// NewServer builds the HTTP surface. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(
	ctx context.Context,
	cfg *config.ServerConfig,
	state *appstate.State,
	gatherer prometheus.Gatherer,
	opts ...Option,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server configuration is required")
	}
	if state == nil {
		return nil, fmt.Errorf("app state is required")
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	var apiMiddleware []gin.HandlerFunc
	if s.limiter != nil {
		apiMiddleware = append(apiMiddleware, s.limiter.Middleware())
	}
	s.router = buildRouter(logger.FromContext(ctx), state, gatherer, cfg.MaxBodyBytes, apiMiddleware...)
	return s, nil
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  durationOr(s.cfg.ReadTimeout, httpReadTimeout),
		WriteTimeout: durationOr(s.cfg.WriteTimeout, httpWriteTimeout),
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", s.Addr()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Debug("Received shutdown signal, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		durationOr(s.cfg.ShutdownTimeout, serverShutdownTimeout),
	)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
