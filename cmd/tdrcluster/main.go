// Command tdrcluster runs the partition -> review -> dispatch control
// loop to completion for one dataset and writes the resulting category
// assignments, the `tdrcluster run` CLI described in spec.md §6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/harooos/tdrcluster/internal/cluster"
	"github.com/harooos/tdrcluster/internal/common"
	"github.com/harooos/tdrcluster/internal/config"
	"github.com/harooos/tdrcluster/internal/embedding"
	"github.com/harooos/tdrcluster/internal/loop"
	"github.com/harooos/tdrcluster/internal/review"
	"github.com/harooos/tdrcluster/internal/serialize"
	"github.com/harooos/tdrcluster/internal/store"
)

func main() {
	logLevel := common.InitSlog()

	configPath := flag.String("config", "", "path to a YAML config file overriding defaults")
	dataset := flag.String("dataset", "", "dataset name to cluster (overrides runtime.dataset)")
	outputDir := flag.String("output-dir", "output", "directory to write run artifacts to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataset != "" {
		cfg.Runtime.Dataset = *dataset
	}
	if cfg.Runtime.Dataset == "" {
		cfg.Runtime.Dataset = "banking77"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	e := echo.New()
	common.SetupEchoDefaults(e, "tdrcluster-run", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, func(c echo.Context) error {
		if !ready.Load() {
			return c.String(http.StatusServiceUnavailable, "not ready")
		}
		return c.NoContent(http.StatusOK)
	})
	echoErrChan := make(chan error, 1)
	go func() {
		slog.Info("starting run observability server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			echoErrChan <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("echo shutdown error", "error", err)
		}
	}()

	if err := run(ctx, cfg, *outputDir, logLevel, &ready); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, outputDir, logLevel string, ready *atomic.Bool) error {
	db, err := store.ConnectWithRetry(ctx, cfg.DatabaseURL, logLevel, 10, 3*time.Second)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	if err := store.RunMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	sqlDB, err := store.RegisterMetrics(db, "tdrcluster_run_db")
	if err != nil {
		return fmt.Errorf("register database metrics: %w", err)
	}
	defer sqlDB.Close()

	dataset := store.NewDataset(db)

	if cfg.Embedding.APIKey != "" {
		if err := embedPending(ctx, dataset, cfg); err != nil {
			return fmt.Errorf("embed pending queries: %w", err)
		}
	}

	loader := store.NewLoader(dataset)
	queries, err := loader.Load(ctx, cfg.Runtime.Dataset, cfg.Runtime.SampleSize)
	if err != nil {
		return fmt.Errorf("load dataset %q: %w", cfg.Runtime.Dataset, err)
	}
	if len(queries) == 0 {
		return fmt.Errorf("no embedded queries found for dataset %q", cfg.Runtime.Dataset)
	}

	reviewer, closeReviewer, err := buildReviewer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build reviewer: %w", err)
	}
	defer closeReviewer()

	ready.Store(true)

	runID := uuid.NewString()
	slog.Info("starting run", "run_id", runID, "dataset", cfg.Runtime.Dataset, "queries", len(queries))

	finalState, err := loop.Run(ctx, queries, cfg.Runtime.Dataset, cfg.MinClusterSizeFor, reviewer, loop.Params{
		InitialK:             cfg.Clustering.InitialK,
		MaxSamplesPerCluster: cfg.Clustering.MaxSamplesPerCluster,
		RecursionLimit:       cfg.System.RecursionLimit,
	})
	ready.Store(false)
	if err != nil {
		return fmt.Errorf("control loop: %w", err)
	}

	if err := dataset.PersistResults(ctx, runID, cfg.Runtime.Dataset, finalState); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}

	if err := writeArtifacts(finalState, cfg.Runtime.Dataset, outputDir, runID); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	slog.Info("run complete", "run_id", runID, "categories", finalState.Categories.Len())
	return nil
}

// embedPending backfills embeddings for any queries the ingest consumer
// staged since the last run, so the loader only ever sees fully embedded
// rows (spec.md §6 "Embedding provider contract").
func embedPending(ctx context.Context, dataset *store.Dataset, cfg config.Config) error {
	pending, err := dataset.PendingContents(ctx, cfg.Runtime.Dataset)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	provider, err := embedding.NewGenaiProvider(ctx, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BatchSize, 5)
	if err != nil {
		return err
	}

	slog.Info("embedding pending queries", "dataset", cfg.Runtime.Dataset, "count", len(pending))
	if _, err := dataset.IngestAndEmbed(ctx, cfg.Runtime.Dataset, pending, provider); err != nil {
		return err
	}
	return nil
}

// buildReviewer wires the LLM client, prompt templates, and (when
// REDIS_ADDR is set) the batch-signature decision cache into a single
// loop.Reviewer, returning a cleanup func for the underlying connections.
func buildReviewer(ctx context.Context, cfg config.Config) (loop.Reviewer, func(), error) {
	prompts, err := review.LoadPrompts()
	if err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, reviewer stage will fail on first non-empty batch")
	}
	client, err := review.NewClient(ctx, cfg.LLM.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create genai client: %w", err)
	}

	base := review.NewReviewer(prompts, client, cfg.Runtime.HighLevelGoal, cfg.Runtime.TargetCategoryRange, cfg.LLM.MaxRetries, cfg.LLM.BackoffBaseSeconds)

	if cfg.RedisAddr == "" {
		return base, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cache := store.NewDecisionCache(rdb)
	cached := review.NewCachedReviewer(base, cache)
	return cached, func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}, nil
}

func writeArtifacts(s *cluster.State, dataset, outputDir, runID string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	tabularPath := filepath.Join(outputDir, fmt.Sprintf("%s_%s_clustering.csv", dataset, runID))
	tabular, err := os.Create(tabularPath)
	if err != nil {
		return err
	}
	defer tabular.Close()
	if err := serialize.WriteTabular(tabular, s, dataset, time.Now()); err != nil {
		return fmt.Errorf("write tabular artifact: %w", err)
	}

	summaryPath := filepath.Join(outputDir, fmt.Sprintf("%s_%s_summary.json", dataset, runID))
	summary, err := os.Create(summaryPath)
	if err != nil {
		return err
	}
	defer summary.Close()
	if err := serialize.WriteSummary(summary, s); err != nil {
		return fmt.Errorf("write summary artifact: %w", err)
	}

	slog.Info("wrote run artifacts", "tabular", tabularPath, "summary", summaryPath)
	return nil
}
