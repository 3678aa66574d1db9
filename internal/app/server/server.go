package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hris/internal/domain/auth"
	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
	"hris/internal/platform/config"
	"hris/internal/platform/db"
	"hris/internal/platform/docstore"
	"hris/internal/platform/email"
	"hris/internal/platform/jobs"
	"hris/internal/platform/lock"
	"hris/internal/platform/metrics"
	"hris/internal/transport/http/api"
	financehandler "hris/internal/transport/http/handlers/finance"
	maintenancehandler "hris/internal/transport/http/handlers/maintenance"
	payrollhandler "hris/internal/transport/http/handlers/payroll"
	"hris/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Router  http.Handler
	Finance *finance.Service
	Payroll *payroll.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	ready   func(context.Context) error
	closers []func() error
	cancel  context.CancelFunc
}

// Stores bundles the persistence chosen by STORE_DRIVER.
type Stores struct {
	Finance finance.StoreAPI
	Payroll payroll.StoreAPI
	Ready   func(context.Context) error
	Close   func() error
}

// OpenStores connects to Postgres or opens the bolt file according to cfg.
func OpenStores(ctx context.Context, cfg config.Config) (Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverBolt:
		if dir := filepath.Dir(cfg.BoltPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Stores{}, err
			}
		}
		bdb, err := docstore.Open(cfg.BoltPath, finance.CollectionFinancialRequests, payroll.CollectionPayrollRecords)
		if err != nil {
			return Stores{}, fmt.Errorf("open bolt store: %w", err)
		}
		return Stores{
			Finance: finance.NewBoltStore(bdb),
			Payroll: payroll.NewBoltStore(bdb),
			Ready:   func(context.Context) error { return nil },
			Close:   bdb.Close,
		}, nil
	default:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return Stores{}, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return Stores{}, fmt.Errorf("migrations: %w", err)
			}
		}
		return Stores{
			Finance: finance.NewStore(pool),
			Payroll: payroll.NewStore(pool),
			Ready:   pool.Ping,
			Close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}
}

// NewLocker returns a Redis locker when REDIS_ADDR is set, otherwise an
// in-process one.
func NewLocker(ctx context.Context, cfg config.Config) (lock.Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemory(), func() error { return nil }, nil
	}
	locker, err := lock.NewRedis(ctx, lock.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.LockTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return locker, locker.Close, nil
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	locker, closeLocker, err := NewLocker(ctx, cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	collector := metrics.New()
	financeSvc := finance.NewService(stores.Finance, locker,
		finance.WithNotifier(finance.NewMailNotifier(email.New(cfg), cfg.EmailFrom)),
		finance.WithRecoveryRecorder(collector),
	)
	payrollSvc := payroll.NewService(stores.Payroll, financeSvc, locker)

	runCtx, cancel := context.WithCancel(context.Background())
	runner := jobs.New(collector)
	runner.Start(runCtx)

	perms := auth.NewStaticPermissions()
	maintenance := maintenancehandler.NewHandler(financeSvc, payrollSvc, runner, collector, perms)
	runner.Schedule(runCtx, jobs.JobRepairInstallments, cfg.RepairInterval, maintenance.RepairJob())

	app := &App{
		Config:  cfg,
		Finance: financeSvc,
		Payroll: payrollSvc,
		Jobs:    runner,
		Metrics: collector,
		ready:   stores.Ready,
		closers: []func() error{closeLocker, stores.Close},
		cancel:  cancel,
	}
	app.Router = app.routes(
		financehandler.NewHandler(financeSvc, payrollSvc, perms),
		payrollhandler.NewHandler(payrollSvc, perms),
		maintenance,
	)
	return app, nil
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func (a *App) routes(handlers ...routeRegistrar) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", middleware.HeaderAPIKey, middleware.HeaderTenantID},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.APIKey(cfg.PayrollAPIKeyHash))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
		for _, h := range handlers {
			h.RegisterRoutes(r)
		}
	})
	return router
}

// Close stops background jobs and releases the store and lock backends.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	// An in-flight job may still be writing to the stores.
	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Run() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("shutdown cleanup failed", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("hris server listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "err", err)
		}
	}
}
