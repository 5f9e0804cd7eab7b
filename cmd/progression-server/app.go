package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/curriculumfile"
	mem "github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	redisAdapter "github.com/samir777-eng/ebad-academy-sub001/adapters/redis"
	sqlxAdapter "github.com/samir777-eng/ebad-academy-sub001/adapters/sqlx"
	"github.com/samir777-eng/ebad-academy-sub001/analytics"
	"github.com/samir777-eng/ebad-academy-sub001/api/httpapi"
	"github.com/samir777-eng/ebad-academy-sub001/config"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/gamify"
	"github.com/samir777-eng/ebad-academy-sub001/integrations/webhook"
	"github.com/samir777-eng/ebad-academy-sub001/leaderboard"
	"github.com/samir777-eng/ebad-academy-sub001/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Tracing     tracingShutdown
	Hub         *realtime.Hub
	Progression *gamify.Progression
	Board       *leaderboard.SkipList
	Funnel      *analytics.Funnel
	Activity    *analytics.DAU
	Handler     http.Handler
	Server      *http.Server
	Metrics     *metricsServer
}

// metricsServer serves Prometheus metrics; Server is nil when disabled.
type metricsServer struct {
	*http.Server
}

// provideConfig honours PROGRESSION_CONFIG_FILE, then a named profile under
// PROGRESSION_CONFIG_DIR, then plain environment variables.
func provideConfig() (*config.Config, error) {
	if path := os.Getenv("PROGRESSION_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	if profile := os.Getenv("PROGRESSION_PROFILE"); profile != "" && profile != "default" {
		return config.LoadProfile(os.Getenv("PROGRESSION_CONFIG_DIR"), profile)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideBoard() *leaderboard.SkipList {
	return leaderboard.NewSkipList()
}

func provideFunnel() *analytics.Funnel {
	return analytics.NewFunnel()
}

func provideActivity() *analytics.DAU {
	return analytics.NewDAU()
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// provideHooks collects the analytics consumers of engine events. The
// leaderboard reloads standings from storage, so it survives restarts.
func provideHooks(cfg *config.Config, reg *prometheus.Registry, funnel *analytics.Funnel, dau *analytics.DAU,
	board *leaderboard.SkipList, storage engine.Storage) ([]analytics.Hook, error) {
	prom, err := analytics.NewPrometheusHook(reg, cfg.Metrics.Namespace)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return []analytics.Hook{prom, funnel, dau, leaderboard.NewTracker(board, storage)}, nil
}

// provideNotifier returns a webhook sink, or nil when no endpoint is configured.
func provideNotifier(cfg *config.Config) engine.Notifier {
	if len(cfg.Notifications.WebhookURLs) == 0 {
		return nil
	}
	return webhook.New(cfg.Notifications.WebhookURLs,
		webhook.WithClient(&http.Client{Timeout: cfg.Notifications.Timeout}))
}

// provideStorage opens the configured store, optionally behind the Redis
// curriculum cache.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	var (
		store   engine.Storage
		closers []func() error
	)
	switch cfg.Storage.Adapter {
	case "memory":
		store = mem.New()
	case "sql":
		db, err := sqlxAdapter.Open(ctx, cfg.Storage.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql storage: %w", err)
		}
		store = db
		closers = append(closers, db.Close)
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}

	if cfg.Cache.Enabled {
		client, err := redisAdapter.NewClient(cfg.Cache.Redis)
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, err
		}
		cache := redisAdapter.NewCache(store, client, cfg.Cache.Redis, logger)
		store = cache
		closers = append(closers, cache.Close)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("storage close failed", "error", err)
			}
		}
	}
	return store, cleanup, nil
}

// provideProgression builds the engine, seeds the curriculum and attaches
// subscribers. The cleanup drains the event bus.
func provideProgression(ctx context.Context, cfg *config.Config, logger *slog.Logger, storage engine.Storage,
	hub *realtime.Hub, hooks []analytics.Hook, notifier engine.Notifier) (*gamify.Progression, func(), error) {
	mode := engine.DispatchAsync
	if cfg.Events.Mode == "sync" {
		mode = engine.DispatchSync
	}
	opts := []gamify.Option{
		gamify.WithStorage(storage),
		gamify.WithLogger(logger),
		gamify.WithDispatchMode(mode,
			engine.WithQueueSize(cfg.Events.QueueSize),
			engine.WithWorkers(cfg.Events.Workers),
			engine.WithDropHandler(func(ev core.Event) {
				logger.Warn("event dropped", "event_type", string(ev.Type), "user_id", string(ev.UserID))
			})),
		gamify.WithRealtime(hub),
		gamify.WithHooks(hooks...),
		gamify.WithNotifier(notifier),
	}
	if path := cfg.Curriculum.Path; path != "" {
		cur, err := curriculumfile.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load curriculum %s: %w", path, err)
		}
		logger.Info("seeding curriculum", "path", path,
			"levels", len(cur.Levels), "lessons", len(cur.Lessons), "badges", len(cur.Badges))
		opts = append(opts, gamify.WithCurriculum(cur))
	}
	p, err := gamify.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func provideHandler(cfg *config.Config, p *gamify.Progression, hub *realtime.Hub, board *leaderboard.SkipList,
	funnel *analytics.Funnel, dau *analytics.DAU, logger *slog.Logger) http.Handler {
	return httpapi.NewMux(p.Service, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		CORSOrigins:      cfg.Server.CORSOrigins,
		WSOrigins:        cfg.Security.AllowedOrigins,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitIdle:    cfg.Security.RateLimit.CleanupInterval,
		Leaderboard:      board,
		KPIs:             funnel,
		Activity:         dau,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func provideMetricsServer(cfg *config.Config, reg *prometheus.Registry) *metricsServer {
	if !cfg.Metrics.Enabled {
		return &metricsServer{}
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &metricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// serve runs srv until it is shut down; ErrServerClosed is not an error.
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
