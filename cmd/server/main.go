// Command server runs the batch verification and bulk issuance API.
// main wires dependencies from configuration and keeps the server lifecycle
// small; business logic lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	bulkclient "vcbatch/internal/bulkissue/client"
	bulkhandler "vcbatch/internal/bulkissue/handler"
	bulkmetrics "vcbatch/internal/bulkissue/metrics"
	bulkservice "vcbatch/internal/bulkissue/service"
	"vcbatch/internal/bulkissue/store/batch"
	"vcbatch/internal/bulkissue/store/statuscache"
	"vcbatch/internal/events"
	httpapi "vcbatch/internal/http"
	"vcbatch/internal/platform/config"
	"vcbatch/internal/platform/httpserver"
	"vcbatch/internal/platform/kafka"
	"vcbatch/internal/platform/logger"
	platformredis "vcbatch/internal/platform/redis"
	"vcbatch/internal/token"
	verifclient "vcbatch/internal/verification/client"
	verifhandler "vcbatch/internal/verification/handler"
	verifmetrics "vcbatch/internal/verification/metrics"
	"vcbatch/internal/verification/scheduler"
	verifservice "vcbatch/internal/verification/service"
	"vcbatch/internal/verification/store/run"
)

const statusCacheTTL = 5 * time.Minute

func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []httpapi.Check

	// Postgres is optional; without it history lives in memory.
	var runStore run.Store = run.NewMemory()
	var batchStore batch.Store = batch.NewMemory()
	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("failed to open postgres connection", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := applySchemas(ctx, pool, db); err != nil {
			log.Error("failed to apply schemas", "error", err)
			os.Exit(1)
		}

		runStore = run.NewPostgres(pool)
		batchStore = batch.NewPostgres(db)
		checks = append(checks, httpapi.Check{Name: "postgres", Probe: pool.Ping})
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var cacheOpt []bulkservice.Option
	if redisClient != nil {
		defer redisClient.Close()
		cacheOpt = append(cacheOpt,
			bulkservice.WithStatusCache(statuscache.New(redisClient.Client, statusCacheTTL)))
		checks = append(checks, httpapi.Check{Name: "redis", Probe: redisClient.Health})
	}

	var publisher events.Publisher = events.NewMemoryPublisher()
	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer)
	}

	runs := verifservice.New(
		verifclient.NewHTTP(cfg.Verifier),
		runStore,
		scheduler.Options{
			ChunkSize:       cfg.Scheduler.ChunkSize,
			InterChunkDelay: cfg.Scheduler.InterChunkDelay,
		},
		verifservice.WithLogger(log),
		verifservice.WithPublisher(publisher),
		verifservice.WithMetrics(verifmetrics.New()),
	)

	bulkOpts := append([]bulkservice.Option{
		bulkservice.WithLogger(log),
		bulkservice.WithPublisher(publisher),
		bulkservice.WithMetrics(bulkmetrics.New()),
	}, cacheOpt...)
	bulk := bulkservice.New(bulkclient.NewHTTP(cfg.Issuance), batchStore, bulkOpts...)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		Tokens:       token.NewService(cfg.Server.JWTSigningKey, "vcbatch"),
		AdminKeyHash: cfg.Server.AdminKeyHash,
		Runs:         verifhandler.New(runs, log),
		Bulk:         bulkhandler.New(bulk, log),
		Checks:       checks,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func applySchemas(ctx context.Context, pool *pgxpool.Pool, db *sql.DB) error {
	if _, err := pool.Exec(ctx, run.Schema); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, batch.Schema); err != nil {
		return err
	}
	return nil
}
