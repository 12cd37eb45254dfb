package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"mingle/internal/infrastructure/config"
	"mingle/internal/infrastructure/database"
	"mingle/internal/infrastructure/repository"
	"mingle/internal/infrastructure/scheduler"
	httpRouter "mingle/internal/interfaces/http"
	"mingle/internal/shared/logger"
	syncScheduler "mingle/internal/sync/scheduler"
)

func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting calendar sync worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	service, err := httpRouter.BuildIntegrationService(database.Get(), redisClient, cfg, log)
	if err != nil {
		log.Fatalw("failed to build integration service", "error", err)
	}

	accountRepo := repository.NewAccountRepository(database.Get())
	interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	accountTimeout := time.Duration(cfg.Sync.AccountTimeoutSeconds) * time.Second

	runner := syncScheduler.NewRunner(
		accountRepo,
		service.RunAccountSync,
		cfg.Sync.BatchSize,
		accountTimeout,
		log,
	)

	manager, err := scheduler.NewManager(log)
	if err != nil {
		log.Fatalw("failed to create scheduler", "error", err)
	}

	// A cycle may include every account in the batch, so give it the full
	// interval before it is cut off.
	if err := manager.RegisterSyncJob(runner, interval, interval); err != nil {
		log.Fatalw("failed to register sync job", "error", err)
	}

	manager.Start()
	log.Infow("calendar sync worker started",
		"interval", interval,
		"batch_size", cfg.Sync.BatchSize,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Infow("received signal, shutting down", "signal", sig)

	if err := manager.Stop(); err != nil {
		log.Errorw("scheduler shutdown failed", "error", err)
	}

	log.Infow("calendar sync worker stopped")
}
