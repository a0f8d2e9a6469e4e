package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/minutemate/minutemate/engine/extraction"
	"github.com/minutemate/minutemate/engine/infra/cache"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/engine/infra/server/middleware/ratelimit"
	"github.com/minutemate/minutemate/engine/infra/sqlite"
	llmadapter "github.com/minutemate/minutemate/engine/llm/adapter"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/pipeline"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/minutemate/minutemate/engine/ticket/jira"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	indexDriverRedis  = "redis"
	indexDriverMemory = "memory"
)

// App holds the wired collaborators of one process.
type App struct {
	Store        *sqlite.Store
	Directory    *sqlite.DirectoryRepo
	Tasks        *sqlite.TaskRepo
	Registry     *prometheus.Registry
	Orchestrator *pipeline.Orchestrator
	// Redis is set when the fingerprint index runs on Redis.
	Redis *cache.Redis

	checks   map[string]appstate.HealthCheck
	cleanups []func() error
}

// OpenStore opens the SQLite database and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	store, err := sqlite.NewStore(ctx, sqlite.ConfigFrom(&cfg.Database))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return store, nil
}

// BuildApp wires the pipeline from configuration. Close must be called on
// the returned App, also when only part of it was used.
func BuildApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.FromContext(ctx)
	app := &App{checks: make(map[string]appstate.HealthCheck)}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	app.Store, err = OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	app.cleanups = append(app.cleanups, func() error { return app.Store.Close(ctx) })
	app.checks["sqlite"] = app.Store.HealthCheck
	app.Directory = sqlite.NewDirectoryRepo(app.Store.DB())
	app.Tasks = sqlite.NewTaskRepo(app.Store.DB())

	model, err := llmadapter.NewModel(ctx, &cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", cfg.LLM.Provider, err)
	}
	extractor, err := extraction.New(model,
		extraction.WithJSONMode(llmadapter.SupportsJSONMode(cfg.LLM.Provider)),
		extraction.WithTemperature(cfg.LLM.Temperature),
		extraction.WithTimeout(cfg.LLM.Timeout),
	)
	if err != nil {
		return nil, err
	}

	index, err := app.buildIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tracker, err := jira.New(jira.ConfigFrom(&cfg.Jira))
	if err != nil {
		return nil, err
	}
	router := ticket.NewRouter(index, tracker,
		ticket.WithKeys(ticket.Keys{Prefix: cfg.Index.Prefix}),
		ticket.WithClaimTTL(cfg.Index.ClaimTTL),
		ticket.WithClaimWait(cfg.Index.ClaimWait),
		ticket.WithRetention(cfg.Index.Retention),
		ticket.WithAccountResolver(tracker),
	)

	var sender notify.Sender
	if cfg.Mail.Host == "" {
		log.Warn("No SMTP host configured, notifications are logged only")
		sender = notify.NewLogSender(cfg.Mail.From)
	} else {
		sender, err = notify.NewSMTPSender(&cfg.Mail)
		if err != nil {
			return nil, err
		}
	}
	dispatcher, err := notify.NewDispatcher(sender)
	if err != nil {
		return nil, err
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := pipeline.NewMetrics(app.Registry)
	if err != nil {
		return nil, err
	}

	app.Orchestrator, err = pipeline.New(pipeline.Deps{
		Extractor: extractor,
		Directory: app.Directory,
		Router:    router,
		Notifier:  dispatcher,
		Index:     index,
		Store:     app.Tasks,
		Metrics:   metrics,
	}, pipeline.SettingsFrom(cfg))
	if err != nil {
		return nil, err
	}
	log.Debug("Pipeline wired",
		"llm_provider", cfg.LLM.Provider,
		"index_driver", cfg.Index.Driver,
		"database", cfg.Database.Path,
	)
	return app, nil
}

func (a *App) buildIndex(ctx context.Context, cfg *config.Config) (ticket.Index, error) {
	switch cfg.Index.Driver {
	case indexDriverMemory:
		logger.FromContext(ctx).Warn("Using in-process fingerprint index; duplicates are only prevented within this process")
		return ticket.NewMemoryIndex(), nil
	case indexDriverRedis, "":
		r, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting fingerprint index: %w", err)
		}
		a.Redis = r
		a.cleanups = append(a.cleanups, r.Close)
		a.checks["redis"] = r.HealthCheck
		return ticket.NewRedisIndex(r), nil
	default:
		return nil, fmt.Errorf("unsupported index driver: %s", cfg.Index.Driver)
	}
}

// RateLimiter builds the API request limiter. Budgets are shared through
// Redis when the app has a connection, so replicas enforce one limit.
func (a *App) RateLimiter(cfg *config.RateLimitConfig) (*ratelimit.Manager, error) {
	var client redis.UniversalClient
	if a.Redis != nil {
		client = a.Redis.Client()
	}
	return ratelimit.NewManager(ratelimit.ConfigFrom(cfg), client, a.Registry)
}

// RegisterHealthChecks adds the probes of the opened backends to state.
func (a *App) RegisterHealthChecks(state *appstate.State) {
	for name, check := range a.checks {
		state.AddHealthCheck(name, check)
	}
}

// Close releases every opened backend in reverse order.
func (a *App) Close(_ context.Context) error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
