package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/larknotice/card-dispatch/internal/api"
	"github.com/larknotice/card-dispatch/internal/config"
	"github.com/larknotice/card-dispatch/internal/db"
	"github.com/larknotice/card-dispatch/internal/httpclient"
	"github.com/larknotice/card-dispatch/internal/metrics"
	"github.com/larknotice/card-dispatch/internal/provider"
	"github.com/larknotice/card-dispatch/internal/queue"
	"github.com/larknotice/card-dispatch/internal/ratelimiter"
	"github.com/larknotice/card-dispatch/internal/repository"
	"github.com/larknotice/card-dispatch/internal/service"
	"github.com/larknotice/card-dispatch/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- outbound delivery client ----
	// Built once and shared by every worker. A TLS context that cannot be
	// assembled is a broken runtime environment, so it is fatal here.
	var proxy httpclient.ProxyFunc
	if cfg.ProxyURL != nil {
		proxy = http.ProxyURL(cfg.ProxyURL)
		logger.Info("webhook traffic routed through proxy", zap.String("proxy", cfg.ProxyURL.Host))
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate validation is DISABLED for webhook delivery; test environments only")
	}
	deliveryClient, err := httpclient.NewWithOptions(proxy, cfg.InsecureSkipVerify)
	if err != nil {
		logger.Fatal("failed to build delivery client", zap.Error(err))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	q := queue.New()
	m := metrics.New(reg, q.Depths)
	repo := repository.NewPgNotificationRepository(pool)
	prov := provider.NewLarkProvider(deliveryClient, cfg.DeliveryTimeout)
	limiter := ratelimiter.New(cfg.RateLimitPerHost)
	svc := service.NewNotificationService(repo, q, logger)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onFailed := m.WorkerHooks()
	dispatchPool := worker.NewPool(cfg, q, repo, prov, limiter, logger, worker.MetricHooks{
		OnSent:   onSent,
		OnFailed: onFailed,
	})
	dispatchPool.Start(workerCtx)

	schedulerW := worker.NewSchedulerWorker(repo, q, cfg.SchedulerInterval, logger)
	go schedulerW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop processing new queue items.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current card.
	dispatchPool.Wait()

	logger.Info("server stopped cleanly")
}
