package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexmatch_backend/internal/cases"
	"lexmatch_backend/internal/email"
	"lexmatch_backend/internal/events"
	apphttp "lexmatch_backend/internal/http"
	"lexmatch_backend/internal/http/router"
	"lexmatch_backend/internal/notification"
	"lexmatch_backend/internal/notification/inapp"
	"lexmatch_backend/internal/scheduler"
	"lexmatch_backend/migrations"
	"lexmatch_backend/platform/config"
	"lexmatch_backend/platform/db"
	"lexmatch_backend/platform/logger"
	"lexmatch_backend/platform/redislock"
	"lexmatch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const caseLockPrefix = "lexmatch:case:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	agents, err := cases.NewAgents(cfg)
	if err != nil {
		log.Error("failed to initialize ai agents", "error", err)
		panic("failed to initialize ai agents: " + err.Error())
	}
	if !cfg.IsAIEnabled() {
		log.Warn("MOONSHOT_API_KEY not configured; case analysis and matching use rule-based fallbacks")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to case events
	notificationModule := notification.New(inapp.NewRepository(pool), sender, log)
	notificationModule.RegisterHandlers(eventBus)

	casesModule := cases.NewModule(pool, eventBus, agents, cfg, val, log)

	if locker, closeLocker := initCaseLocker(cfg, log); locker != nil {
		defer closeLocker()
		casesModule.Service().SetCaseLocker(locker)
	}

	if dispatcher, closeDispatcher := initDispatcher(cfg, log); dispatcher != nil {
		defer closeDispatcher()
		casesModule.Service().SetDispatcher(dispatcher)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			casesModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		// In-process analyses and event handlers finish before the pool closes.
		casesModule.Service().Wait()
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initCaseLocker(cfg config.LockConfig, log *logger.Logger) (*redislock.Locker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; case locks are process-local")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url for case locks", "error", err)
		return nil, nil
	}

	client := redis.NewClient(opt)
	return redislock.New(client, caseLockPrefix, cfg.GetCaseLockTTL()), func() {
		_ = client.Close()
	}
}

func initDispatcher(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; case analysis and matching run in-process")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize case task dispatcher", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
