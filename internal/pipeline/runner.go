package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/backmassage/bitshrink/internal/audit"
	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/display"
	"github.com/backmassage/bitshrink/internal/ffmpeg"
	"github.com/backmassage/bitshrink/internal/logging"
	"github.com/backmassage/bitshrink/internal/metrics"
	"github.com/backmassage/bitshrink/internal/planner"
)

// Runner wires one run together. Metrics and Audit are optional.
type Runner struct {
	Cfg     *config.Config
	Log     *logging.Logger
	Prober  planner.Prober
	Encoder Encoder
	Metrics *metrics.Recorder
	Audit   *audit.Store
}

// Run scans every root, classifies each path in order on the calling
// goroutine, and feeds selected files to the worker pool. It returns once
// the pool has drained or ctx is cancelled and every running conversion
// has finished. The returned Stats are complete in both cases.
func (r *Runner) Run(ctx context.Context) *Stats {
	cfg := r.Cfg
	stats := NewStats(cfg.DryRun)

	size, ok := PoolSize(cfg.Workers)
	if !ok {
		r.Log.Warn("Cannot determine CPU count, using 1 worker")
	}
	r.logHeader(size)

	aud := r.beginAudit(ctx, size)

	tasks := make(chan Task, size)
	drained := make(chan struct{})
	if cfg.DryRun {
		close(drained)
	} else {
		conv := &Converter{Encoder: r.Encoder}
		pool := &Pool{Size: size, Work: func(ctx context.Context, worker int, t Task) {
			r.convert(ctx, conv, stats, aud, worker, t)
		}}
		go func() {
			pool.Run(ctx, tasks)
			close(drained)
		}()
	}

	r.produce(ctx, stats, aud, tasks)
	close(tasks)
	<-drained

	if ctx.Err() != nil {
		stats.MarkInterrupted()
	}
	r.finishAudit(aud, stats.Snapshot())
	return stats
}

// produce is the single producer: scan → classify → record → dispatch.
// Each output path is claimed by the first file that maps to it; a later
// file with the same stem (song.wav after song.flac) fails without being
// encoded, so no output is overwritten and no source is lost.
func (r *Runner) produce(ctx context.Context, stats *Stats, aud *audit.Store, tasks chan<- Task) {
	cfg := r.Cfg
	claimed := make(map[string]string) // target → source
	for c := range Scan(cfg.Paths, cfg.Recursive) {
		if ctx.Err() != nil {
			return
		}
		if c.Err != nil {
			stats.RecordScanError()
			r.Metrics.ObserveFile(FailureScan.String())
			r.Log.Error("%v", c.Err)
			r.record(aud, audit.Event{Path: c.Path, Stage: "scan", Result: FailureScan.String(), Detail: c.Err.Error()})
			continue
		}

		res := planner.Classify(ctx, r.Prober, c.Path, cfg.OutputExt, cfg.BitrateKbps)
		if res.Kind == planner.ProbeFailed && ctx.Err() != nil {
			// The probe was cut short by the interrupt, not by the file.
			return
		}
		stats.RecordClassification(res)
		r.Metrics.ObserveFile(res.Kind.String())
		r.logClassification(res)
		ev := audit.Event{
			Path:        res.Path,
			Stage:       "classify",
			Result:      res.Kind.String(),
			BitrateKbps: res.BitrateKbps,
		}
		if res.Selected() {
			ev.Reason = res.Reason.String()
		}
		if res.Err != nil {
			ev.Detail = res.Err.Error()
		}
		r.record(aud, ev)

		if !res.Selected() {
			continue
		}

		t := Task{
			Path:        res.Path,
			OutputExt:   cfg.OutputExt,
			CeilingKbps: cfg.BitrateKbps,
			DeleteAfter: cfg.DeleteAfter,
			Reason:      res.Reason,
		}
		target := config.TargetPath(t.Path, t.OutputExt)
		if owner, dup := claimed[target]; dup {
			r.reject(stats, aud, collisionOutcome(t, target, owner))
			continue
		}
		claimed[target] = t.Path

		if cfg.DryRun {
			r.Log.Success("[DRY] Would convert (%s): %s", res.Reason, res.Path)
			stats.RecordOutcome(Outcome{Task: t, Converted: true, Target: target})
			continue
		}
		select {
		case tasks <- t:
		case <-ctx.Done():
			return
		}
	}
}

// convert runs on a worker goroutine.
func (r *Runner) convert(ctx context.Context, conv *Converter, stats *Stats, aud *audit.Store, worker int, t Task) {
	r.Metrics.WorkerBusy()
	defer r.Metrics.WorkerIdle()

	r.Log.Info("[worker %2d] %s", worker, t.Path)
	o := conv.Convert(ctx, t)
	stats.RecordOutcome(o)
	r.Metrics.ObserveConversion(t.Reason.String(), o.Converted, o.Duration)

	ev := audit.Event{
		Path:     t.Path,
		Stage:    "convert",
		Reason:   t.Reason.String(),
		ExitCode: o.ExitCode,
		Detail:   o.Detail(),
		Duration: o.Duration,
	}
	if o.Converted {
		ev.Result = "converted"
	} else {
		ev.Result = o.Kind.String()
	}
	r.record(aud, ev)

	if !o.Converted {
		r.Log.Error("Conversion failed: %s", t.Path)
		r.logFailure(o)
		return
	}

	ratio := int64(100)
	if o.InBytes > 0 {
		ratio = o.OutBytes * 100 / o.InBytes
	}
	r.Log.Success("Converted in %s (%d%% of original): %s", display.FormatDuration(o.Duration), ratio, filepath.Base(o.Target))
	if o.DeleteErr != nil {
		r.Log.Warn("Cannot remove original %s: %v", t.Path, o.DeleteErr)
	}
}

// reject records a task that is never dispatched.
func (r *Runner) reject(stats *Stats, aud *audit.Store, o Outcome) {
	stats.RecordOutcome(o)
	r.record(aud, audit.Event{
		Path:   o.Task.Path,
		Stage:  "convert",
		Result: o.Kind.String(),
		Reason: o.Task.Reason.String(),
		Detail: o.Detail(),
	})
	r.Log.Error("Not converted: %s (%s)", o.Task.Path, o.Detail())
}

// --- Logging helpers ---

func (r *Runner) logHeader(workers int) {
	cfg := r.Cfg
	r.Log.Info("Output: %s, ceiling %s, %d worker(s)",
		strings.ToUpper(cfg.OutputExt), display.FormatBitrateLabel(int64(cfg.BitrateKbps)), workers)
	if cfg.Recursive {
		r.Log.Info("Scanning %d root(s) recursively", len(cfg.Paths))
	} else {
		r.Log.Info("Scanning %d root(s)", len(cfg.Paths))
	}
	if cfg.DryRun {
		r.Log.Info("Dry run: nothing will be written")
	}
	if cfg.DeleteAfter {
		r.Log.Info("Originals are deleted after a successful format change")
	}
}

func (r *Runner) logClassification(res planner.Result) {
	verbose := r.Cfg.Verbose
	switch res.Kind {
	case planner.NotAudio:
		r.Log.Debug(verbose, "Skip (not audio): %s", res.Path)
	case planner.ProbeFailed:
		r.Log.Error("Cannot determine bit rate: %s", res.Path)
		r.Log.Debug(verbose, "  %v", res.Err)
	case planner.AlreadyCorrectFormat:
		r.Log.Debug(verbose, "%d kbps: %s", res.BitrateKbps, res.Path)
	case planner.NeedsConversion:
		if res.Reason == planner.BitrateExceeded {
			r.Log.Debug(verbose, "%d kbps: %s", res.BitrateKbps, res.Path)
		}
	}
}

func (r *Runner) logFailure(o Outcome) {
	if !r.Cfg.Verbose {
		return
	}
	var encErr *ffmpeg.EncodeError
	if errors.As(o.Err, &encErr) {
		if hint := encErr.Hint(); hint != "" {
			r.Log.Error("  %s", hint)
		}
	}
	if o.Output == "" {
		r.Log.Error("  %s", o.Detail())
		return
	}
	lines := strings.Split(strings.TrimSpace(o.Output), "\n")
	start := 0
	if len(lines) > 20 {
		start = len(lines) - 20
	}
	for _, l := range lines[start:] {
		r.Log.Error("  %s", l)
	}
}

// --- Audit helpers ---

func (r *Runner) beginAudit(ctx context.Context, workers int) *audit.Store {
	if r.Audit == nil {
		return nil
	}
	cfg := r.Cfg
	_, err := r.Audit.BeginRun(ctx, audit.RunInfo{
		Roots:       cfg.Paths,
		OutputExt:   cfg.OutputExt,
		BitrateKbps: cfg.BitrateKbps,
		Workers:     workers,
		DryRun:      cfg.DryRun,
	})
	if err != nil {
		r.Log.Warn("Audit log disabled: %v", err)
		return nil
	}
	return r.Audit
}

func (r *Runner) record(aud *audit.Store, ev audit.Event) {
	if aud == nil {
		return
	}
	if err := aud.Record(context.Background(), ev); err != nil {
		r.Log.Warn("Audit: %v", err)
	}
}

func (r *Runner) finishAudit(aud *audit.Store, s Summary) {
	if aud == nil {
		return
	}
	err := aud.FinishRun(context.Background(), audit.RunSummary{
		Scanned:     s.Scanned,
		Converted:   s.Converted(),
		Errors:      s.Errors(),
		NonAudio:    s.NonAudio,
		Unchanged:   s.Unchanged,
		Interrupted: s.Interrupted,
	})
	if err != nil {
		r.Log.Warn("Audit: %v", err)
	}
}
