package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/wealthsim/archive"
	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/sim"
	"github.com/pthm-cable/wealthsim/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = time-based)")
	steps := flag.Int("steps", -1, "Override num_time_steps (-1 = use config)")
	population := flag.Int("population", 0, "Override total_population (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, reports and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	archivePath := flag.String("archive", "", "SQLite database to archive the run in")
	runID := flag.String("run-id", "", "Run identifier (empty = random UUID)")
	replay := flag.String("replay", "", "Re-run a saved snapshot and report whether it reproduces")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	debug := flag.Bool("debug", false, "Enable per-step debug logging")
	printConfig := flag.Bool("print-config", false, "Print the effective config as YAML and exit")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *replay != "" {
		if err := runReplay(ctx, *replay); err != nil {
			slog.Error("replay failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *steps >= 0 {
		cfg.NumTimeSteps = *steps
	}
	if *population > 0 {
		cfg.TotalPopulation = *population
	}

	if *printConfig {
		if err := writeConfig(cfg); err != nil {
			slog.Error("failed to print config", "error", err)
			os.Exit(1)
		}
		return
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
		os.Exit(1)
	}

	s, err := sim.New(cfg, sim.Options{
		Seed:     rngSeed,
		LogStats: *logStats,
		Output:   output,
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	slog.Info("starting simulation",
		"run_id", id,
		"seed", rngSeed,
		"population", cfg.TotalPopulation,
		"steps", cfg.NumTimeSteps,
	)
	start := time.Now()

	reports, err := s.RunContext(ctx)
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	if err := output.WriteReports(reports); err != nil {
		slog.Error("failed to write reports", "error", err)
		os.Exit(1)
	}

	snap := s.Snapshot(id)
	if *snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(snap, *snapshotDir)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot saved", "path", path)
	}

	if *archivePath != "" {
		if err := archiveRun(*archivePath, snap); err != nil {
			slog.Error("failed to archive run", "error", err)
			os.Exit(1)
		}
	}

	logSummary(s, time.Since(start))
}

func runReplay(ctx context.Context, path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	reports, err := sim.Run(ctx, snap.Config, snap.RNGSeed)
	if err != nil {
		return err
	}

	diverged := telemetry.FirstDivergence(snap.Reports, reports)
	slog.Info("replay complete",
		"run_id", snap.RunID,
		"seed", snap.RNGSeed,
		"steps", len(reports),
		"reproduced", diverged < 0,
		"first_divergence", diverged,
	)
	if diverged >= 0 {
		return fmt.Errorf("replay diverged at step %d", diverged)
	}
	return nil
}

func archiveRun(path string, snap *telemetry.Snapshot) error {
	db, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.SaveRun(snap)
	return err
}

func writeConfig(cfg *config.Config) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

func logSummary(s *sim.Simulation, elapsed time.Duration) {
	totals := s.Totals()
	final := s.Population()

	var gini float64
	if reports := s.Reports(); len(reports) > 0 {
		gini = reports[len(reports)-1].GiniIndex
	}

	slog.Info("simulation complete",
		"steps", totals.Steps,
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"final_population", humanize.Comma(int64(final.Len())),
		"births", humanize.Comma(int64(totals.Births)),
		"deaths", humanize.Comma(int64(totals.Deaths)),
		"migrations", humanize.Comma(int64(totals.Migrations)),
		"total_wealth", humanize.FormatFloat("#,###.##", final.TotalWealth()),
		"tax_collected", humanize.FormatFloat("#,###.##", totals.TaxTotal),
		"state_collections", humanize.FormatFloat("#,###.##", s.StatePool()),
		"final_gini", gini,
	)
}
