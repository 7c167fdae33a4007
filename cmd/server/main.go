package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadflow/internal/api"
	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/config"
	"github.com/ignite/leadflow/internal/dispatch"
	"github.com/ignite/leadflow/internal/pkg/distlock"
	"github.com/ignite/leadflow/internal/pkg/logger"
	"github.com/ignite/leadflow/internal/ratelimit"
	"github.com/ignite/leadflow/internal/render"
	"github.com/ignite/leadflow/internal/sequence"
	"github.com/ignite/leadflow/internal/transport"
)

func main() {
	if err := run(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.SetRedactPII(strings.EqualFold(cfg.Environment, "production"))
	logger.Info("starting leadflow",
		"environment", cfg.Environment,
		"transport", cfg.Transport.Provider,
		"tick_interval", cfg.Automation.TickInterval().String())

	ctx := context.Background()

	seq, err := sequence.Load(cfg.Automation.SequencePath)
	if err != nil {
		return fmt.Errorf("load sequence: %w", err)
	}
	logger.Info("drip sequence loaded", "messages", len(seq.Messages))

	tr, err := buildTransport(ctx, cfg.Transport)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	store, cleanup, err := buildStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer cleanup()

	var tickLock distlock.DistLock
	if redisClient != nil && cfg.Database.URL != "" {
		// multiple replicas share the queue only when it is durable
		tickLock = distlock.NewRedisLock(redisClient, "leadflow:scheduler:tick", 2*cfg.Automation.TickInterval())
	}

	disp := dispatch.New(render.NewRenderer(), tr, cfg.Transport.FromEmail, cfg.Transport.FromName)

	engine := automation.NewEngine(store, seq, disp, automation.Options{
		TickInterval: cfg.Automation.TickInterval(),
		MaxAttempts:  cfg.Automation.MaxAttempts,
		TickLock:     tickLock,
	})
	if err := engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	var limiter *ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.New(redisClient, "leadflow:subscribe", cfg.Redis.SubscribeLimit, cfg.Redis.SubscribeWindow())
	}

	srv := api.NewServer(cfg.Server.Addr(), api.NewHandlers(engine, limiter, cfg.Environment))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		engine.Stop()
		return err
	}

	// stop accepting new signups first, then let the scheduler finish its tick
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	engine.Stop()

	logger.Info("shutdown complete")
	return nil
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}
	return ""
}

func buildTransport(ctx context.Context, cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Provider {
	case "", "log":
		return transport.NewLogTransport(), nil
	case "ses":
		return transport.NewSESTransport(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
	case "sparkpost":
		if cfg.SparkPost.APIKey == "" {
			return nil, fmt.Errorf("sparkpost transport requires an api key")
		}
		return transport.NewSparkPostTransport(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown transport provider %q", cfg.Provider)
	}
}

func buildStore(cfg config.DatabaseConfig) (automation.Store, func(), error) {
	if cfg.URL == "" {
		logger.Info("using in-memory store")
		return automation.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(automation.Schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("using postgres store")
	return automation.NewPGStore(db), func() { db.Close() }, nil
}
