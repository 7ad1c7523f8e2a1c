package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/api"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/config"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/inference"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/rpc"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "session_store", cfg.SessionStore)

	// Root context cancelled by OS signal. Worker and servers both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Model ─────────────────────────────────────────────────────────────────
	// The server refuses to start without a usable model contract.
	predictor, err := loadPredictor(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("model: %w", err)
	}
	logger.Info("model loaded", "columns", predictor.Contract().Len())

	// ── Sessions ──────────────────────────────────────────────────────────────
	sessions, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer closeStore()
	logger.Info("session store ready", "backend", cfg.SessionStore)

	// ── Assessment ────────────────────────────────────────────────────────────
	assembler := features.NewAssembler(features.NewNormalizer(questionnaire.OSMI), logger)
	svc := assessment.New(
		questionnaire.NewMachine(questionnaire.OSMI),
		assembler,
		predictor,
		sessions,
		logger,
		assessment.WithPredictDelay(cfg.PredictDelay),
	)

	// ── Worker ────────────────────────────────────────────────────────────────
	sweep := worker.NewSweep(sessions, cfg.SessionTTL, nil, logger)
	runner := worker.NewRunner(sweep, worker.RunnerConfig{Interval: cfg.SweepInterval}, logger)
	workerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(workerDone)
	}()

	// ── HTTP + gRPC on one port ───────────────────────────────────────────────
	httpServer := &http.Server{
		Handler: api.NewServer(svc, api.Config{
			Env:            cfg.Env,
			CORSOrigin:     cfg.CORSOrigin,
			RequestTimeout: 30*time.Second + cfg.PredictDelay,
		}, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60*time.Second + cfg.PredictDelay,
		IdleTimeout:  120 * time.Second,
	}
	grpcServer := rpc.NewGRPCServer(rpc.NewServer(svc, logger), logger)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Give in-flight requests up to 20 seconds to finish.
	serveErr := rpc.Serve(ctx, lis, grpcServer, httpServer, 20*time.Second, logger)

	stop()
	<-workerDone
	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// loadPredictor builds the predictor from config. With both a manifest and a
// model server, the server is primary and the local model the fallback.
func loadPredictor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (inference.Predictor, error) {
	var local, remote inference.Predictor

	if cfg.ModelPath != "" {
		l, err := inference.LoadLinear(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		local = l
	}

	if cfg.ModelServerURL != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		r, err := inference.NewRemote(fetchCtx, cfg.ModelServerURL, nil)
		if err != nil {
			return nil, err
		}
		remote = r
	}

	switch {
	case local != nil && remote != nil:
		logger.Info("model: using model server with local fallback")
		return inference.NewFallback(remote, local, logger)
	case remote != nil:
		logger.Info("model: using model server only")
		return remote, nil
	default:
		logger.Info("model: using local manifest", "path", cfg.ModelPath)
		return local, nil
	}
}

// openStore returns the configured session store and a func that releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config) (store.Sessions, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return store.NewRedis(client, cfg.SessionTTL), func() { client.Close() }, nil

	case config.StorePostgres:
		pool, err := openDB(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, func() { pool.Close() }, nil

	default:
		return store.NewMemory(), func() {}, nil
	}
}

// openDB opens and verifies the connection pool.
func openDB(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(maxConns)
	pool.SetMaxIdleConns(max(maxConns/2, 1))
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	// Verify the connection is reachable before proceeding.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
