// Command bitshrink re-encodes audio files whose format differs from the
// chosen output extension or whose bit rate exceeds a ceiling.
//
// It parses flags, validates configuration, and either runs system
// diagnostics (--check) or the scan → classify → convert pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/backmassage/bitshrink/internal/audit"
	"github.com/backmassage/bitshrink/internal/check"
	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/display"
	"github.com/backmassage/bitshrink/internal/ffmpeg"
	"github.com/backmassage/bitshrink/internal/logging"
	"github.com/backmassage/bitshrink/internal/metrics"
	"github.com/backmassage/bitshrink/internal/pipeline"
	"github.com/backmassage/bitshrink/internal/probe"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "1.0.0"

// exitInterrupted follows the shell convention for death by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr via fmt.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, version); err != nil {
		fmt.Fprintf(os.Stderr, "bitshrink: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "bitshrink: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bitshrink: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available; all output goes through log from here on.
	display.PrintBanner(os.Stdout, version)

	if cfg.CheckOnly {
		check.RunCheck(&cfg, log)
		return 0
	}

	// Fail fast if ffprobe, ffmpeg or the output encoder are unavailable.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	var store *audit.Store
	if cfg.AuditDB != "" {
		store, err = audit.Open(cfg.AuditDB)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		defer store.Close()
	}

	// Phase 3: Signal handling. Cancel on SIGINT/SIGTERM: no new conversion
	// starts, running encoders finish their file.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received interrupt, finishing running conversions…")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Phase 4: Run pipeline and always report.
	runner := &pipeline.Runner{
		Cfg:     &cfg,
		Log:     log,
		Prober:  probe.Prober{Bin: cfg.FFprobeBin},
		Encoder: ffmpeg.NewEncoder(ffmpeg.OptionsFromConfig(&cfg)),
		Metrics: rec,
		Audit:   store,
	}
	summary := runner.Run(ctx).Snapshot()

	log.Raw(pipeline.Report(summary) + "\n")

	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn("Cannot write metrics to %s: %v", cfg.MetricsFile, err)
	}

	if summary.Interrupted {
		return exitInterrupted
	}
	return 0
}
