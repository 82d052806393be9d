package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/config"
	"github.com/weeklypulls/primecache/internal/db"
	"github.com/weeklypulls/primecache/internal/executor"
	"github.com/weeklypulls/primecache/internal/metrics"
	"github.com/weeklypulls/primecache/internal/provider"
	"github.com/weeklypulls/primecache/internal/ratelimiter"
	"github.com/weeklypulls/primecache/internal/recorder"
	"github.com/weeklypulls/primecache/internal/repository"
	"github.com/weeklypulls/primecache/internal/scheduler"
	"github.com/weeklypulls/primecache/internal/selector"
)

var (
	limit        int
	dryRun       bool
	forceVolumes bool
)

var rootCmd = &cobra.Command{
	Use:   "primecache",
	Short: "Prime the series metadata cache within the catalog API budget",
	Long: `Fetches missing or expired series metadata from the catalog API,
highest-value work first, until the per-run request budget is spent.
Safe to re-run: every invocation re-derives its work from persisted state.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().IntVar(&limit, "limit", 180, "maximum catalog API requests this run (non-negative)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log planned fetches without making API calls or writes")
	rootCmd.Flags().BoolVar(&forceVolumes, "force-volumes", false, "re-admit series with recorded API failures")
}

func run(ctx context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("run_id", uuid.New().String()))

	if limit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", limit)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !dryRun && cfg.CatalogAPIKey == "" {
		return fmt.Errorf("COMICVINE_API_KEY is required unless --dry-run is set")
	}

	// Cooperative cancellation: SIGINT/SIGTERM stop the run after the
	// in-flight candidate, never mid-call.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr, reg, logger)
	}

	repo := repository.NewPgCatalogRepository(pool)
	catalog := provider.NewComicVineClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey, cfg.CatalogTimeout)
	gate := ratelimiter.NewWithInterval(cfg.FetchBaseInterval + cfg.FetchSafetyMargin)
	exec := executor.New(catalog, gate, logger)
	rec := recorder.New(repo, logger)
	sel := selector.New(repo, logger)

	sched := scheduler.New(sel, exec, rec, logger, m.SchedulerHooks())

	report, err := sched.Run(ctx, scheduler.Options{
		Budget:       limit,
		DryRun:       dryRun,
		ForceVolumes: forceVolumes,
	})
	if err != nil {
		// Selection failed before any budget was spent: the one fatal path.
		return err
	}
	m.ObserveRun(report.Elapsed)

	// Completed and Halted both exit 0: partial progress is committed and
	// the next trigger picks up the remainder.
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
