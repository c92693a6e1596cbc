package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	botinfra "github.com/dmoreira/financas-familia-go/internal/bot/infra"
	botservice "github.com/dmoreira/financas-familia-go/internal/bot/service"
	"github.com/dmoreira/financas-familia-go/internal/config"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/handler"
	"github.com/dmoreira/financas-familia-go/internal/infra/cache"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/infra/resilience"
	"github.com/dmoreira/financas-familia-go/internal/infra/supabase"
	"github.com/dmoreira/financas-familia-go/internal/port"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("autopay_enabled", cfg.AutoPayEnabled),
		zap.Duration("autopay_interval", cfg.AutoPayInterval),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "financas-familia")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	familyCache := cache.New[[]domain.Account](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		resilience.NewCircuitBreaker("supabase"),
		resilienceCfg,
		logger,
	)

	// --- Telegram (optional) ---
	var notifier port.Notifier
	var telegram *botinfra.TelegramClient
	if cfg.TelegramToken != "" {
		telegram = botinfra.NewTelegramClient(
			httpClient,
			cfg.TelegramAPIURL,
			cfg.TelegramToken,
			resilience.NewCircuitBreaker("telegram"),
			resilienceCfg,
			logger,
		)
		notifier = botservice.NewChatNotifier(store, telegram, logger)
		logger.Info("telegram bot enabled")
	} else {
		logger.Warn("telegram bot: no token configured, webhook and notifications disabled")
	}

	// --- Services ---
	statementSvc := service.NewStatementService(store, familyCache, metrics, logger)
	settlementSvc := service.NewSettlementService(store, metrics, logger)
	autopaySvc := service.NewAutoPayService(store, settlementSvc, notifier, cfg.MaxConcurrency, metrics, logger)

	var botSvc *botservice.BotService
	if telegram != nil {
		botSvc = botservice.NewBotService(store, statementSvc, settlementSvc, autopaySvc, telegram, metrics, logger)
	}

	// --- Router ---
	router := handler.NewRouter(store, statementSvc, settlementSvc, autopaySvc, botSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Scheduler ---
	// One tick immediately and then every interval. Duplicate work
	// across ticks or restarts is absorbed by the processing log.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	if cfg.AutoPayEnabled {
		go func() {
			runOnce := func() {
				ctx, cancel := context.WithTimeout(schedulerCtx, 5*time.Minute)
				defer cancel()
				if err := autopaySvc.RunScheduled(ctx, time.Now()); err != nil {
					logger.Error("scheduled autopay run failed", zap.Error(err))
				}
			}

			runOnce()
			ticker := time.NewTicker(cfg.AutoPayInterval)
			defer ticker.Stop()
			for {
				select {
				case <-schedulerCtx.Done():
					return
				case <-ticker.C:
					runOnce()
				}
			}
		}()
	}

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
