// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chromedpbrowser "github.com/terminwatch/terminwatch/internal/browser/chromedp"
	"github.com/terminwatch/terminwatch/internal/checker"
	checkerpostgres "github.com/terminwatch/terminwatch/internal/checker/postgres"
	"github.com/terminwatch/terminwatch/internal/config"
	"github.com/terminwatch/terminwatch/internal/extract"
	"github.com/terminwatch/terminwatch/internal/navigator"
	"github.com/terminwatch/terminwatch/internal/notify"
	notifypostgres "github.com/terminwatch/terminwatch/internal/notify/postgres"
	"github.com/terminwatch/terminwatch/internal/notify/telegram"
	"github.com/terminwatch/terminwatch/internal/pkg/ctxlog"
	"github.com/terminwatch/terminwatch/internal/pkg/httputil"
	"github.com/terminwatch/terminwatch/internal/pkg/metrics"
	"github.com/terminwatch/terminwatch/internal/pkg/postgres"
	"github.com/terminwatch/terminwatch/internal/subscriptions"
	subscriptionspostgres "github.com/terminwatch/terminwatch/internal/subscriptions/postgres"
	"github.com/terminwatch/terminwatch/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	scheduler     *checker.Scheduler
	orchestrator  *checker.Orchestrator
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: workerCancel,
	}

	go app.collectDBMetrics(workerCtx)

	router, err := app.setup(workerCtx)
	if err != nil {
		db.Close()
		workerCancel()
		return nil, fmt.Errorf("setup application: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()

	// Stop the scheduler before the servers so no check is cut mid-flight
	// by a closing database pool.
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the check scheduler instance. Used in tests.
func (a *App) Scheduler() *checker.Scheduler {
	return a.scheduler
}

func (a *App) setup(ctx context.Context) (*chi.Mux, error) {
	// Check pipeline: browser -> navigator -> orchestrator.
	launcher := chromedpbrowser.NewLauncher(chromedpbrowser.Config{
		Headless:  a.config.Browser.Headless,
		ExecPath:  a.config.Browser.ExecPath,
		UserAgent: a.config.Browser.UserAgent,
	})

	snapshots, err := navigator.NewFileSnapshotStore(a.config.Navigator.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	driver := navigator.New(launcher, extract.NewEngine(), snapshots, navigator.Config{
		StepTimeout:       a.config.Navigator.StepTimeout,
		StepRetries:       a.config.Navigator.StepRetries,
		RetryBackoff:      a.config.Navigator.RetryBackoff,
		BackoffMultiplier: a.config.Navigator.BackoffMultiplier,
	})

	// Notification pipeline: renderer -> telegram -> deduper.
	sender, err := telegram.NewSender(telegram.Config{
		Enabled:   a.config.Telegram.Enabled,
		BotToken:  a.config.Telegram.BotToken,
		RateLimit: a.config.Telegram.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if !a.config.Telegram.Enabled {
		slog.Warn("telegram sender is disabled: appointment notifications will not be sent")
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	deduper := notify.NewDeduper(
		notifypostgres.NewRepository(a.db),
		sender,
		renderer,
		notify.Config{Cooldown: a.config.Notify.Cooldown},
	)

	a.orchestrator = checker.NewOrchestrator(
		checkerpostgres.NewRepository(a.db),
		driver,
		deduper,
		checker.Config{
			CheckGap:          a.config.Checker.CheckGap,
			StaleLockTimeout:  a.config.Checker.StaleLockTimeout,
			MaxRetries:        a.config.Checker.MaxRetries,
			RetryBackoff:      a.config.Checker.RetryBackoff,
			BackoffMultiplier: a.config.Checker.BackoffMultiplier,
			JitterFraction:    a.config.Checker.JitterFraction,
			CheckBudget:       a.config.Checker.CheckBudget,
		},
	)

	a.scheduler = checker.NewScheduler(checker.SchedulerConfig{
		PollInterval: a.config.Checker.PollInterval,
	}, a.orchestrator)
	a.scheduler.Start(ctx)

	subscriptionsService := subscriptions.NewService(
		subscriptionspostgres.NewRepository(a.db),
		subscriptions.Config{MinInterval: a.config.Subscriptions.MinInterval},
	)
	subscriptionsHandler := subscriptions.NewHandler(subscriptionsService, a.orchestrator)

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Minute))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Route("/api/v1", func(r chi.Router) {
		subscriptionsHandler.RegisterRoutes(r)
		r.Post("/checks/run", a.runChecksHandler)
	})

	return r, nil
}

// runChecksHandler triggers a due-subscription pass outside the schedule.
// The pass runs in the background; the handler acknowledges immediately.
func (a *App) runChecksHandler(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := a.orchestrator.RunDue(context.Background()); err != nil {
			slog.Error("manual check run failed", "error", err)
		}
	}()
	httputil.Success(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
