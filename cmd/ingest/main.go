// Command ingest consumes raw queries from Kafka and stages them in the
// queries table for internal/embedding to backfill, the concrete
// Go-native stand-in for spec.md's "dataset loader" external
// collaborator. Adapted from services/processor-svc/main.go.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/harooos/tdrcluster/internal/common"
	"github.com/harooos/tdrcluster/internal/ingest"
	"github.com/harooos/tdrcluster/internal/store"
)

type cliConfig struct {
	Port               string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	DatabaseURL        string
	BatchSize          int
	FlushIntervalMS    int
	DLQBrokers         []string
	DLQTopic           string
}

func loadConfig() cliConfig {
	cfg := cliConfig{
		Port:               common.GetenvOrDefault("PORT", "8080"),
		KafkaBrokers:       common.SplitCommaSeparated(common.RequireEnv("KAFKA_BROKERS")),
		KafkaTopic:         common.RequireEnv("KAFKA_TOPIC"),
		KafkaConsumerGroup: common.GetenvOrDefault("KAFKA_CONSUMER_GROUP", "tdrcluster-ingest"),
		DatabaseURL:        common.RequireEnv("DATABASE_URL"),
		BatchSize:          common.GetenvOrDefaultInt("INGEST_BATCH_SIZE", 100),
		FlushIntervalMS:    common.GetenvOrDefaultInt("INGEST_FLUSH_INTERVAL_MS", 500),
		DLQTopic:           common.GetenvOrDefault("DLQ_TOPIC", "tdrcluster.ingest.dlq"),
	}
	if raw := os.Getenv("DLQ_BROKERS"); raw != "" {
		cfg.DLQBrokers = common.SplitCommaSeparated(raw)
	}
	return cfg
}

func main() {
	logLevel := common.InitSlog()
	cfg := loadConfig()

	db, err := store.ConnectWithRetry(context.Background(), cfg.DatabaseURL, logLevel, 10, 3*time.Second)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.RunMigrations(db); err != nil {
		slog.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}
	sqlDB, err := store.RegisterMetrics(db, "tdrcluster_ingest_db")
	if err != nil {
		slog.Error("failed to register database metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("failed to close sql db", "error", err)
		}
	}()
	sink := store.NewDataset(db)

	var ready atomic.Bool
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.KafkaBrokers...),
		kgo.WithLogger(ingest.NewKafkaLogger("kafka", logLevel)),
		kgo.ConsumerGroup(cfg.KafkaConsumerGroup),
		kgo.ConsumeTopics(cfg.KafkaTopic),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(ctx context.Context, cl *kgo.Client, assigned map[string][]int32) {
			if ready.CompareAndSwap(false, true) {
				slog.Info("consumer partitions assigned", "assignments", assigned)
			}
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
			if ready.CompareAndSwap(true, false) {
				slog.Info("consumer partitions revoked", "assignments", revoked)
			}
		}),
		kgo.OnPartitionsLost(func(ctx context.Context, cl *kgo.Client, lost map[string][]int32) {
			if ready.CompareAndSwap(true, false) {
				slog.Warn("consumer partitions lost", "assignments", lost)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create kafka client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	var dlqClient *kgo.Client
	if len(cfg.DLQBrokers) > 0 {
		dlqClient, err = kgo.NewClient(
			kgo.SeedBrokers(cfg.DLQBrokers...),
			kgo.WithLogger(ingest.NewKafkaLogger("kafka_dlq", logLevel)),
		)
		if err != nil {
			slog.Error("failed to create DLQ producer client", "error", err)
			os.Exit(1)
		}
		defer dlqClient.Close()
	} else {
		slog.Warn("DLQ_BROKERS not set, malformed records will only be logged")
	}

	consumer := ingest.NewConsumer(client, sink, dlqClient, cfg.DLQTopic, cfg.BatchSize, time.Duration(cfg.FlushIntervalMS)*time.Millisecond)

	kafkaCtx, kafkaCancel := context.WithCancel(context.Background())
	go consumer.Run(kafkaCtx)
	go ingest.WatchReadiness(kafkaCtx, client, &ready)

	e := echo.New()
	common.SetupEchoDefaults(e, "tdrcluster-ingest", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, func(c echo.Context) error {
		if !ready.Load() {
			return c.String(http.StatusServiceUnavailable, "not ready")
		}
		return c.NoContent(http.StatusOK)
	})

	echoErrChan := make(chan error, 1)
	go func() {
		slog.Info("starting ingest service", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			echoErrChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("shutting down")
	case err := <-echoErrChan:
		slog.Error("echo failed to start", "error", err)
		os.Exit(1)
	}

	ready.Store(false)
	kafkaCancel()
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("echo shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
}
