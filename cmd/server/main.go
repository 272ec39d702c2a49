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

	"github.com/lalith-99/huddle/internal/api"
	"github.com/lalith-99/huddle/internal/config"
	"github.com/lalith-99/huddle/internal/db"
	"github.com/lalith-99/huddle/internal/notify"
	"github.com/lalith-99/huddle/internal/observ"
	"github.com/lalith-99/huddle/internal/realtime"
	"github.com/lalith-99/huddle/internal/repository/postgres"
	"github.com/lalith-99/huddle/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres (migrations run inside db.New)
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// 4. Connect to Redis. Optional: without it events stay on this
	//    instance and mention notifications are not emitted.
	// ---------------------------------------------------------------
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("redis connection established", zap.String("addr", opts.Addr))
	} else {
		logger.Warn("REDIS_URL empty, running single-instance without mention notifications")
	}

	// ---------------------------------------------------------------
	// 5. Repositories, metrics, realtime hub
	// ---------------------------------------------------------------
	pool := database.Pool()
	repos := service.Repos{
		Spaces:   postgres.NewSpaceStore(pool),
		Members:  postgres.NewMembershipStore(pool),
		Users:    postgres.NewUserStore(pool),
		Channels: postgres.NewChannelStore(pool),
		Messages: postgres.NewMessageStore(pool),
	}

	metrics := observ.NewMetrics()

	hub := realtime.NewHub(metrics, logger)
	go hub.Run()
	defer hub.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	opts := service.Options{
		EditWindow:    cfg.EditWindow,
		MaxTextLength: cfg.MaxMessageLength,
		Publisher:     hub,
		Metrics:       metrics,
	}
	if rdb != nil {
		bridge := realtime.NewRedisBridge(rdb, hub, logger)
		g.Go(func() error { return bridge.Run(gctx) })
		opts.Publisher = bridge
		opts.Notifier = notify.NewStreamNotifier(rdb, notify.DefaultStream)
	}
	svc := service.New(repos, opts, logger)

	// ---------------------------------------------------------------
	// 6. HTTP server
	// ---------------------------------------------------------------
	router := api.NewRouter(api.Deps{
		Services:  svc,
		Hub:       hub,
		Metrics:   metrics,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
		Health: func(ctx context.Context) error {
			if err := database.Health(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting huddle",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Duration("edit_window", cfg.EditWindow),
	)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Shut down on signal or when any component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
