// Command warc-dedup rewrites a WARC file, replacing responses already held by
// the Internet Archive with revisit records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/thesavant42/warc-dedup/internal/api"
	"github.com/thesavant42/warc-dedup/internal/config"
	"github.com/thesavant42/warc-dedup/internal/db"
	"github.com/thesavant42/warc-dedup/internal/dedup"
	"github.com/thesavant42/warc-dedup/internal/models"
	"github.com/thesavant42/warc-dedup/internal/oplog"
	"github.com/thesavant42/warc-dedup/internal/ui"
	"github.com/thesavant42/warc-dedup/internal/warc"
)

type flags struct {
	output      string
	cache       string
	envFile     string
	concurrency int
	debug       bool
	noProgress  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "warc-dedup SOURCE",
		Short: "Deduplicate a WARC file against the Internet Archive",
		Long: `Reads a .warc or .warc.gz file and writes SOURCE.deduplicated.warc[.gz]
next to it. Responses whose payload the Internet Archive already holds are
replaced by revisit records; everything else is copied unchanged. A log of
the run is appended to the output as a resource record.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output path (default derived from SOURCE)")
	cmd.Flags().StringVar(&f.cache, "cache", "", "SQLite capture cache path (overrides "+config.EnvCache+")")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "environment file to load")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "c", 0, "simultaneous lookups (overrides "+config.EnvConcurrency+")")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "log every pipeline event")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress spinner")

	return cmd
}

func run(ctx context.Context, source string, f flags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "warc-dedup",
	})
	if f.debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}
	if f.cache != "" {
		cfg.CachePath = f.cache
	}
	if f.concurrency != 0 {
		cfg.Concurrency = f.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	events := oplog.New(logger)
	client := api.NewCDXClient(cfg.LookupOptions(), logger, events)

	if cfg.CachePath != "" {
		database, err := openCache(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		client.WithCache(database)
	}

	pipeline, err := dedup.NewPipeline(source, client, dedup.Options{
		Target: f.output,
		Log:    events,
		Logger: logger,
	})
	if err != nil {
		if errors.Is(err, warc.ErrTargetExists) {
			return fmt.Errorf("%w; remove it or choose another --output", err)
		}
		return err
	}

	logger.Info("Deduplicating", "source", source, "target", pipeline.Target(), "endpoint", cfg.Endpoint, "concurrency", cfg.Concurrency)

	start := time.Now()
	stats, err := runPipeline(ctx, pipeline, logger, showProgress(f))
	if err != nil {
		return err
	}

	logger.Info("Finished", "elapsed", time.Since(start).Round(time.Millisecond), "revisits", stats.Matched, "passthrough", stats.Passthrough)
	ui.PrintSummary(stats, pipeline.Target())
	ui.PrintSuccess(fmt.Sprintf("Wrote %s", pipeline.Target()))
	return nil
}

// runPipeline runs p, behind a spinner when progress is on
func runPipeline(ctx context.Context, p *dedup.Pipeline, logger *log.Logger, progress bool) (models.DedupStats, error) {
	if !progress {
		return p.Run(ctx)
	}

	defer quietLogger(logger)()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats models.DedupStats
	err := ui.RunWithSpinner(func() string {
		return ui.ProgressTitle(p.Progress())
	}, cancel, func() error {
		var runErr error
		stats, runErr = p.Run(ctx)
		return runErr
	})
	return stats, err
}

// quietLogger raises logger to error level while the spinner owns stderr
// and returns a func restoring the previous level
func quietLogger(logger *log.Logger) func() {
	prev := logger.GetLevel()
	if prev < log.ErrorLevel {
		logger.SetLevel(log.ErrorLevel)
	}
	return func() { logger.SetLevel(prev) }
}

// openCache opens the capture cache and prunes entries past the configured
// age
func openCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (*db.DB, error) {
	database, err := db.New(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture cache: %w", err)
	}

	if cfg.CacheMaxAge > 0 {
		pruned, err := database.PruneCaptures(ctx, time.Now().Add(-cfg.CacheMaxAge))
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to prune capture cache: %w", err)
		}
		if pruned > 0 {
			logger.Info("Pruned capture cache", "removed", pruned, "max_age", cfg.CacheMaxAge)
		}
	}

	if count, err := database.CaptureCount(ctx); err == nil {
		logger.Debug("Capture cache ready", "path", cfg.CachePath, "captures", count)
	}
	return database, nil
}

// showProgress reports whether the spinner should run. Debug output and
// non-terminal stderr both disable it.
func showProgress(f flags) bool {
	if f.noProgress || f.debug {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
