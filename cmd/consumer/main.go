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

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/threat-ingestor/internal/adapter/inference"
	"github.com/user/threat-ingestor/internal/adapter/kafka"
	"github.com/user/threat-ingestor/internal/adapter/metrics"
	"github.com/user/threat-ingestor/internal/adapter/notifier"
	postgresrepo "github.com/user/threat-ingestor/internal/adapter/repository/postgres"
	redisrepo "github.com/user/threat-ingestor/internal/adapter/repository/redis"
	"github.com/user/threat-ingestor/internal/domain"
	"github.com/user/threat-ingestor/internal/pkg/config"
	"github.com/user/threat-ingestor/internal/pkg/logger"
	"github.com/user/threat-ingestor/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting ingestion worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping worker...")
		cancel()
	}()

	// Connect to PostgreSQL. Failure here is unrecoverable by design.
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// The dedup cache is optional; the pipeline is correct without it.
	var cache domain.DedupCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, running without dedup cache", "error", err)
		} else {
			cache = redisrepo.NewDedupCache(redisClient, cfg.DedupCacheTTL, log)
			log.Info("connected to redis dedup cache")
		}
		defer redisClient.Close()
	}

	var notify domain.Notifier
	if cfg.SlackWebhookURL != "" {
		notify = notifier.NewSlackNotifier(cfg.SlackWebhookURL, log)
	} else {
		log.Warn("no slack webhook configured, alerts go to stdout")
		notify = notifier.NewStdoutNotifier()
	}

	m := metrics.NewPipelineMetrics()
	store := postgresrepo.NewRecordRepository(db, log)
	enricher := inference.NewClient(cfg.InferenceURL, cfg.InferenceAPIKey, cfg.InferenceTimeout, m.InferenceLatency, log)
	classifier := usecase.NewClassifier(cfg.NormalTrafficLabel, cfg.AnomalyThreshold)
	pipeline := usecase.NewProcessBatchUseCase(store, enricher, classifier, cache, notify, log)

	consumer, err := kafka.NewConsumer(kafka.Config{
		Brokers:           cfg.KafkaBrokers,
		GroupID:           cfg.KafkaGroupID,
		BatchSize:         cfg.KafkaBatchSize,
		BatchWait:         cfg.KafkaBatchWait,
		CommitCheckpoints: cfg.KafkaCommitCheckpoints,
	}, pipeline, m, log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	opsServer := newOpsServer(cfg.OpsServerAddr)
	go func() {
		log.Info("ops server listening", "addr", cfg.OpsServerAddr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", "error", err)
		}
	}()

	log.Info("worker started, consuming",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.KafkaTopic,
		"group", cfg.KafkaGroupID,
		"commit_checkpoints", cfg.KafkaCommitCheckpoints,
	)
	if err := consumer.Start(ctx, cfg.KafkaTopic); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server shutdown failed", "error", err)
	}

	log.Info("worker shut down gracefully")
}

// newOpsServer serves health and metrics for operators and scrapers.
func newOpsServer(addr string) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &http.Server{Addr: addr, Handler: router}
}
