package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/khata-app/khata/internal/app"
	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/observability"
	"github.com/khata-app/khata/internal/platform/cache"
	"github.com/khata-app/khata/internal/receipt"
	"github.com/khata-app/khata/internal/shared"
	"github.com/khata-app/khata/internal/view"
	"github.com/khata-app/khata/jobs"
	"github.com/khata-app/khata/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("khata stopped", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// run wires the API and serves until ctx is cancelled. Every resource it opens
// is closed before it returns.
func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	opened, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opened.Close(closeCtx); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if err := metrics.Registerer().Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("register go collector: %w", err)
	}
	if err := metrics.Registerer().Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("register process collector: %w", err)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(opened.Store, tokens,
		auth.WithDenylist(auth.NewRedisDenylist(redisClient)),
		auth.WithWelcomeEnqueuer(jobClient),
		auth.WithLogger(logger),
	)
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())

	locker := shared.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait)
	ledger := khata.NewService(opened.Store, locker, metrics, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	receipts := receipt.NewRenderer(templates, reportClient, cfg.StoreName)
	sessionHandler := khata.NewHandler(logger, ledger, receipts)

	checks := map[string]app.HealthCheck{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	if opened.Ping != nil {
		checks["store"] = opened.Ping
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    authHandler,
		SessionHandler: sessionHandler,
		ReportHandler:  report.NewHandler(reportClient, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		HealthChecks:   checks,
	})

	listener, err := net.Listen("tcp", cfg.AppAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.AppAddr, err)
	}

	server := &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", listener.Addr().String()), slog.String("store", cfg.StoreDriver))
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
