package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/CoreyFoshee/thatsamorepizza/internal/app"
	"github.com/CoreyFoshee/thatsamorepizza/internal/config"
	"github.com/CoreyFoshee/thatsamorepizza/internal/database"
	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	"github.com/CoreyFoshee/thatsamorepizza/internal/logging"
	"github.com/CoreyFoshee/thatsamorepizza/internal/memory"
	"github.com/CoreyFoshee/thatsamorepizza/internal/ratelimit"
	"github.com/CoreyFoshee/thatsamorepizza/internal/realtime"
	"github.com/CoreyFoshee/thatsamorepizza/internal/redis"
	"github.com/CoreyFoshee/thatsamorepizza/internal/server"
	"github.com/CoreyFoshee/thatsamorepizza/internal/websocket"
)

func setupConfig() *config.Config {
	// Missing .env is fine; containers inject the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Redis ping failed", "error", err)
		os.Exit(1)
	}

	return client
}

func setupDB(cfg *config.Config) *database.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func runGracefulShutdown(srv *server.Server, cleanup func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cleanup()
		close(done)
	}()

	return done
}

type voteStorage interface {
	domain.TallyStore
	domain.VoteGuard
	domain.AdminStore
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	// Storage: Redis when configured, with an in-memory fallback for
	// outages. Without Redis the in-memory store carries everything.
	var (
		store       voteStorage
		redisClient *redis.Client
		pubsub      *redis.PubSub
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		pubsub = redis.NewPubSub(redisClient)
		store = app.NewFallbackStore(redis.NewStore(redisClient), memory.NewStore())
		slog.Info("Using Redis storage", "fallback", "in-memory")
	} else {
		store = memory.NewStore()
		slog.Warn("REDIS_URL not set, votes will not survive a restart")
	}

	// Vote audit trail is optional; without Postgres accepted votes are
	// simply not recorded.
	var (
		db    *database.DB
		audit domain.AuditSink = database.NoopAuditSink{}
	)
	if cfg.DatabaseURL != "" {
		db = setupDB(cfg)
		defer db.Close()
		audit = database.NewAuditRepo(db)
		slog.Info("Vote audit trail enabled")
	}

	limiter := ratelimit.NewSlidingWindow(cfg.VoteLimitPerWindow, cfg.VoteWindow, clock)
	stopPruning := limiter.StartPruneTimer()
	defer stopPruning()

	hub := websocket.NewHub(cfg.MaxDisplayClients, clock)

	var broadcaster *realtime.Broadcaster
	if pubsub != nil {
		broadcaster = realtime.NewRedisBroadcaster(hub, pubsub)
	} else {
		broadcaster = realtime.NewBroadcaster(hub)
	}

	appSvc := app.NewService(store, store, limiter, store, broadcaster, audit, clock, cfg.TallyCacheTTL)

	var redisCheck, dbCheck server.Pinger
	if redisClient != nil {
		redisCheck = redisClient
	}
	if db != nil {
		dbCheck = db
	}
	srv := server.NewServer(cfg, appSvc, hub, redisCheck, dbCheck)

	done := runGracefulShutdown(srv, func() {
		broadcaster.Close()
		hub.Stop()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	})

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
