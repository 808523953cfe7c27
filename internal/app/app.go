package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/skylark-travel/flightpay/internal/api"
	"github.com/skylark-travel/flightpay/internal/api/middleware"
	"github.com/skylark-travel/flightpay/internal/config"
	"github.com/skylark-travel/flightpay/internal/db"
	"github.com/skylark-travel/flightpay/internal/gateway"
	"github.com/skylark-travel/flightpay/internal/idempotency"
	"github.com/skylark-travel/flightpay/internal/notification"
	"github.com/skylark-travel/flightpay/internal/observability"
	"github.com/skylark-travel/flightpay/internal/repository"
	"github.com/skylark-travel/flightpay/internal/service"
	"github.com/skylark-travel/flightpay/internal/worker"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
	store := repository.NewStore(pool)
	locker := redislock.New(redisClient)
	notifier := notification.NewRedisNotifier(redisClient, cfg.NotificationQueue)

	paymentGateway := gateway.NewMockGateway()
	ledgerSvc := service.NewLedgerService(store)
	bookingSvc := service.NewBookingService(ledgerSvc)
	webhookSvc := service.NewWebhookService(store, bookingSvc, notifier, cfg.WebhookHMACKey, cfg.WebhookSkipSignature)
	voucherSvc := service.NewVoucherService(store)
	creditSvc := service.NewCreditService(store)
	reconSvc := service.NewReconciliationService(store, paymentGateway, webhookSvc, locker)

	reconWorker := worker.NewReconciliationWorker(reconSvc).
		WithInterval(cfg.ReconciliationInterval).
		WithBatchSize(cfg.ReconciliationBatchSize)
	expiryWorker := worker.NewCreditExpiryWorker(creditSvc).
		WithInterval(cfg.CreditExpiryInterval)

	stopRecon := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started",
		zap.Duration("interval", cfg.ReconciliationInterval),
		zap.Int32("batch", cfg.ReconciliationBatchSize),
	)
	stopExpiry := expiryWorker.Run(ctx)
	logger.Info("credit expiry worker started", zap.Duration("interval", cfg.CreditExpiryInterval))

	router := api.NewRouter(cfg, logger, pool, store, idemStore, redisClient,
		ledgerSvc, voucherSvc, creditSvc, webhookSvc, reconWorker)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopRecon()
	stopExpiry()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
