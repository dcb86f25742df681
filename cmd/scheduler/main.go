package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lexmatch_backend/internal/cases"
	"lexmatch_backend/internal/cases/repository"
	"lexmatch_backend/internal/email"
	"lexmatch_backend/internal/events"
	"lexmatch_backend/internal/notification"
	"lexmatch_backend/internal/notification/inapp"
	"lexmatch_backend/internal/scheduler"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	notificationModule := notification.New(inapp.NewRepository(pool), sender, log)
	notificationModule.RegisterHandlers(eventBus)

	agents, err := cases.NewAgents(cfg)
	if err != nil {
		log.Error("failed to initialize ai agents", "error", err)
		panic("failed to initialize ai agents: " + err.Error())
	}

	// Worker-side case wiring (no HTTP handlers required).
	casesModule := cases.NewModule(pool, eventBus, agents, cfg, validator.New(), log)

	// The API and the worker share case leases so analysis never races a
	// client action on the same case.
	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		panic("failed to parse redis url: " + err.Error())
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()
	casesModule.Service().SetCaseLocker(redislock.New(redisClient, caseLockPrefix, cfg.GetCaseLockTTL()))

	cleanupInterval := getDurationEnv("AI_CALL_LOG_CLEANUP_INTERVAL", time.Hour)
	retention := time.Duration(getPositiveIntEnv("AI_CALL_LOG_RETENTION_DAYS", 30)) * 24 * time.Hour
	aiCallLogCleanup := scheduler.NewAICallLogCleanup(repository.NewPostgres(pool), log, cleanupInterval, retention)
	go aiCallLogCleanup.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, casesModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)

	casesModule.Service().Wait()
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
