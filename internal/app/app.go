package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bankcap/internal/config"
	apierrors "bankcap/internal/errors"
	"bankcap/internal/etl"
	"bankcap/internal/exporter"
	"bankcap/internal/infrastructure"
	customMiddleware "bankcap/internal/middleware"
	"bankcap/internal/pipeline"
	"bankcap/internal/services"
	"bankcap/internal/storage"
	httpHandlers "bankcap/internal/transport/http"
	ws "bankcap/internal/websocket"
)

// Application holds every long-lived component of the process
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Scheduler     *pipeline.Scheduler
	Runs          *services.RunService
	Health        *services.HealthService
	WebSocketHub  *ws.Hub
	Router        chi.Router
	Server        *http.Server

	tableSink *storage.TableSink
	progress  *pipeline.FileProgressLog
	redis     goredis.UniversalClient

	closeOnce sync.Once
	closeErr  error
}

// NewApplication loads configuration from path, initializes the global logger and builds the application
func NewApplication(path string) (*Application, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires the application from an already validated configuration.
// On error every component opened so far is closed again.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, infrastructure.NewMetricsRegistry(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := a.initializeServices(); err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices opens the stores and sinks and builds the scheduler and services on top
func (a *Application) initializeServices() error {
	cfg := a.Config

	handoff, err := a.newHandoffStore()
	if err != nil {
		return err
	}

	progress, err := pipeline.OpenFileProgressLog(cfg.Logging.ProgressPath)
	if err != nil {
		return err
	}
	a.progress = progress

	sink, err := storage.OpenTableSink(cfg.Load.DBPath, a.Logger)
	if err != nil {
		return err
	}
	a.tableSink = sink

	var xlsx *exporter.XLSXWriter
	if cfg.Load.XLSXPath != "" {
		xlsx = exporter.NewXLSXWriter("", a.Logger)
	}
	loader := etl.NewLoader(
		exporter.NewCSVWriter("", a.Logger),
		xlsx,
		sink,
		etl.LoadOptionsFromConfig(cfg.Load, cfg.Transform),
		a.Logger,
	)

	registry := pipeline.NewRegistry()
	if err := etl.RegisterStages(registry, cfg, etl.Dependencies{
		Fetcher:  etl.NewFetcher(cfg.Source, a.Logger),
		Loader:   loader,
		Queries:  sink,
		Progress: progress,
		Logger:   a.Logger,
	}); err != nil {
		return fmt.Errorf("failed to register stages: %w", err)
	}

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	a.Scheduler = pipeline.NewScheduler(registry, handoff, progress, schedulerConfig(cfg.Retry),
		pipeline.WithEventSink(hub),
		pipeline.WithLogger(a.Logger),
	)

	a.Runs = services.NewRunService(a.Scheduler, services.RunServiceOptions{
		MaxConcurrentRuns: cfg.Schedule.MaxConcurrentRuns,
		HistorySize:       cfg.Schedule.HistorySize,
	}, services.NewRunMetrics(a.OTelProviders.Registry), a.Logger)

	checks := map[string]services.Pinger{"table_sink": sink}
	if a.redis != nil {
		checks["handoff_redis"] = redisPinger{a.redis}
	}
	a.Health = services.NewHealthService(config.AppVersion, a.Runs, checks, hub.ClientCount, a.Logger)

	return nil
}

// newHandoffStore returns the store selected by handoff.backend
func (a *Application) newHandoffStore() (pipeline.HandoffStore, error) {
	cfg := a.Config.Handoff
	if cfg.Backend != "redis" {
		return pipeline.NewMemoryHandoffStore(), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	a.redis = client

	a.Logger.Info("Handoff store ready",
		slog.String("backend", cfg.Backend),
		slog.String("addr", cfg.RedisAddr),
		slog.Duration("ttl", cfg.TTL))
	return pipeline.NewRedisHandoffStore(client, cfg.KeyPrefix, cfg.TTL), nil
}

func schedulerConfig(retry config.RetryConfig) *pipeline.Config {
	return pipeline.NewConfigBuilder().
		WithRetryPolicy(retry.MaxAttempts, retry.Delay).
		WithAttemptTimeout(retry.AttemptTimeout).
		Build()
}

type redisPinger struct {
	client goredis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errHandler := apierrors.NewErrorHandler(a.Logger, false)

	r.Use(customMiddleware.RequestID)
	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)

	// the websocket upgrade must see the raw ResponseWriter
	r.HandleFunc("/ws", ws.Handler(a.WebSocketHub, a.Logger))
	r.Handle("/metrics", a.OTelProviders.MetricsHandler())

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware()
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errHandler))

		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Mount("/runs", httpHandlers.NewRunsHandler(a.Runs, errHandler, a.Logger).Routes())
			r.Mount("/health", httpHandlers.NewHealthHandler(a.Health, a.Logger).Routes())
		})
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run executes one pipeline run and waits for it
func (a *Application) Run(ctx context.Context) (*services.RunRecord, error) {
	a.Logger.InfoContext(ctx, "Starting run",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("source", a.Config.Source.URL))

	return a.Runs.Execute(ctx, pipeline.TriggerManual)
}

// Serve runs the HTTP server and, when enabled, the interval trigger until ctx is done.
// Shutdown is graceful within server.shutdown_timeout.
func (a *Application) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *Application) serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", ln.Addr().String()),
			slog.String("version", config.AppVersion))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.Config.Schedule.Enabled {
		g.Go(func() error {
			return a.Runs.Start(gctx, a.Config.Schedule.Interval, a.Config.Schedule.RunOnStart)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close stops the run service and releases every resource. It is safe to call more than once.
func (a *Application) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close(ctx)
	})
	return a.closeErr
}

func (a *Application) close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.Runs != nil {
		if err := a.Runs.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("run service: %w", err))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.tableSink != nil {
		if err := a.tableSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("table sink: %w", err))
		}
	}
	if a.progress != nil {
		if err := a.progress.Close(); err != nil {
			errs = append(errs, fmt.Errorf("progress log: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}
