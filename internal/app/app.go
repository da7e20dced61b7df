// Package app assembles the audit engine process: configuration, the Redis
// connection, the engine itself and the admin HTTP surface. One App may be
// active per process at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditsvc "auditlog/internal/audit"
	"auditlog/internal/audit/handler"
	"auditlog/internal/platform/config"
	"auditlog/internal/platform/httpserver"
	"auditlog/internal/platform/metrics"
	platformredis "auditlog/internal/platform/redis"
	audit "auditlog/pkg/platform/audit"
	"auditlog/pkg/platform/audit/fallback"
	auditredis "auditlog/pkg/platform/audit/store/redis"
	"auditlog/pkg/platform/circuit"
	"auditlog/pkg/platform/httputil"
	"auditlog/pkg/platform/sentinel"
)

// ErrAlreadyActive is returned by New while another App is still active.
var ErrAlreadyActive = fmt.Errorf("audit engine already active: %w", sentinel.ErrInvalidState)

var active atomic.Bool

// App owns every long-lived resource of the process.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	redis       *platformredis.Client
	service     *auditsvc.Service
	server      *http.Server
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTP
	closed      atomic.Bool
}

// Option configures an App.
type Option func(*options)

type options struct {
	factoryOpts []audit.FactoryOption
	storeOpts   []auditredis.Option
}

// WithClock sets the clock used for entries and store date arithmetic.
func WithClock(c audit.Clock) Option {
	return func(o *options) {
		o.factoryOpts = append(o.factoryOpts, audit.WithClock(c))
		o.storeOpts = append(o.storeOpts, auditredis.WithClock(c))
	}
}

// New builds the process. It fails with ErrAlreadyActive if an earlier App
// has not been shut down.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrAlreadyActive
	}
	a, err := build(cfg, logger, opts...)
	if err != nil {
		active.Store(false)
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Audit.Location()
	if err != nil {
		return nil, err
	}

	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	registry := metrics.NewRegistry()

	node := audit.ResolveNodeIdentity(cfg.Audit.VMSource, cfg.Audit.VMName)
	factory := audit.NewFactory(node, append([]audit.FactoryOption{audit.WithLocation(loc)}, o.factoryOpts...)...)

	var store *auditredis.Store
	storeOpts := append([]auditredis.Option{
		auditredis.WithRetention(cfg.Audit.Retention()),
		auditredis.WithLookbackDays(cfg.Audit.LookbackDays),
		auditredis.WithLocation(loc),
	}, o.storeOpts...)
	if client != nil {
		store = auditredis.New(client.Client, storeOpts...)
	} else {
		logger.Warn("REDIS_URL not set; audit entries will only reach the fallback files")
		store = auditredis.New(nil, storeOpts...)
	}

	fb := fallback.New(cfg.Audit.FallbackDir,
		fallback.WithClock(factory.Clock()),
		fallback.WithLocation(loc),
		fallback.WithLogger(logger),
	)

	breaker := circuit.New("audit-store",
		circuit.WithFailureThreshold(cfg.Audit.BreakerThreshold),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(cfg.Audit.BreakerCooldown),
	)

	service := auditsvc.New(factory, store, fb,
		auditsvc.WithLogger(logger),
		auditsvc.WithMetrics(auditsvc.NewMetrics(registry)),
		auditsvc.WithBreaker(breaker),
		auditsvc.WithBatchSize(cfg.Audit.BatchSize),
		auditsvc.WithBatchTimeout(cfg.Audit.BatchTimeout),
	)

	a := &App{
		cfg:         cfg,
		logger:      logger,
		redis:       client,
		service:     service,
		registry:    registry,
		httpMetrics: metrics.NewHTTP(registry),
	}
	a.server = httpserver.New(cfg.Server.Addr, a.Router())

	logger.Info("audit engine ready",
		"vm_name", node.VMName,
		"vm_source", node.VMSource,
		"batch_size", cfg.Audit.BatchSize,
		"batch_timeout", cfg.Audit.BatchTimeout,
		"retention_days", cfg.Audit.RetentionDays,
		"fallback_dir", cfg.Audit.FallbackDir,
		"timezone", loc.String(),
	)
	return a, nil
}

// Service returns the engine for in-process callers.
func (a *App) Service() *auditsvc.Service { return a.service }

// Router builds the HTTP surface: health, metrics and the admin routes.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(a.httpMetrics.Middleware)
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	handler.New(a.service, a.logger, a.cfg.Server.AdminToken).Register(r)
	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.redis.Health(ctx); err != nil {
		a.logger.WarnContext(ctx, "health check failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves HTTP until ctx is cancelled and then shuts the process down.
// The returned function suits errgroup.Group.Go.
func (a *App) Run(ctx context.Context) func() error {
	return func() error {
		ln, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.server.Addr, err)
		}
		a.logger.Info("admin http listening", "addr", ln.Addr().String())

		serveErr := make(chan error, 1)
		go func() { serveErr <- a.server.Serve(ln) }()

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server, drains the engine and only then releases
// the Redis connection. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	if a.closed.Swap(true) {
		return nil
	}
	defer active.Store(false)

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.service.Close(ctx)
	if err := a.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	a.logger.Info("audit engine stopped")
	return errors.Join(errs...)
}
