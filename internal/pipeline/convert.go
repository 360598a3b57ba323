package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/ffmpeg"
	"github.com/backmassage/bitshrink/internal/planner"
)

// Swappable so tests can force rename failures.
var renameFunc = os.Rename

// tempMarker appears in every temporary output name; the scanner skips
// such files.
const tempMarker = ".bitshrink-"

// ErrTargetCollision reports a task whose output path was already claimed
// by another file in the same run.
var ErrTargetCollision = errors.New("output path already claimed")

// Encoder performs one re-encode. A non-nil error means Output must not be
// trusted.
type Encoder interface {
	Encode(ctx context.Context, job ffmpeg.Job) error
}

// Task is one file selected for conversion.
type Task struct {
	Path        string
	OutputExt   string
	CeilingKbps int
	DeleteAfter bool
	Reason      planner.Reason
}

// FailureKind classifies a failed Outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureProbe
	FailureEncode
	FailureScan
)

func (k FailureKind) String() string {
	switch k {
	case FailureProbe:
		return "probe_error"
	case FailureEncode:
		return "encode_error"
	case FailureScan:
		return "scan_error"
	}
	return "none"
}

// Outcome is the result of converting one Task.
type Outcome struct {
	Task      Task
	Converted bool
	Kind      FailureKind
	Err       error
	Target    string
	ExitCode  int
	Output    string // captured encoder output on failure
	InBytes   int64
	OutBytes  int64
	Duration  time.Duration
	DeleteErr error // source removal failed after a successful conversion
}

// Detail returns a one-line description of the failure, or "".
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Converter re-encodes files in place via a temporary file.
type Converter struct {
	Encoder Encoder
}

// Convert encodes t.Path into a fresh temporary file next to it and, on
// success, renames that file over the target path. The temporary file is
// removed on every other path; the source is only touched by the final
// rename (same extension) or by the optional delete-after.
func (c *Converter) Convert(ctx context.Context, t Task) Outcome {
	start := time.Now()
	out := Outcome{Task: t, Target: config.TargetPath(t.Path, t.OutputExt)}
	fail := func(err error) Outcome {
		out.Kind = FailureEncode
		out.Err = err
		out.Duration = time.Since(start)
		var encErr *ffmpeg.EncodeError
		if errors.As(err, &encErr) {
			out.ExitCode = encErr.ExitCode
			out.Output = encErr.Stderr
		}
		return out
	}

	fi, err := os.Stat(t.Path)
	if err != nil {
		return fail(err)
	}
	out.InBytes = fi.Size()

	dir, base := filepath.Split(t.Path)
	tmp, err := os.CreateTemp(dir, "."+base+tempMarker+"*."+config.NormalizeExt(t.OutputExt))
	if err != nil {
		return fail(fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	job := ffmpeg.Job{
		Input:       t.Path,
		Output:      tmpName,
		OutputExt:   t.OutputExt,
		BitrateKbps: t.CeilingKbps,
	}
	if err := c.Encoder.Encode(ctx, job); err != nil {
		return fail(err)
	}

	if err := renameFunc(tmpName, out.Target); err != nil {
		return fail(fmt.Errorf("move %s into place: %w", filepath.Base(out.Target), err))
	}
	renamed = true

	if fi, err := os.Stat(out.Target); err == nil {
		out.OutBytes = fi.Size()
	}
	if t.DeleteAfter && out.Target != t.Path {
		out.DeleteErr = os.Remove(t.Path)
	}

	out.Converted = true
	out.Duration = time.Since(start)
	return out
}

// collisionOutcome is the failed Outcome for t when owner already claimed
// target. t is never encoded and its source is left alone.
func collisionOutcome(t Task, target, owner string) Outcome {
	return Outcome{
		Task:   t,
		Kind:   FailureEncode,
		Target: target,
		Err:    fmt.Errorf("%s: %w by %s", filepath.Base(target), ErrTargetCollision, filepath.Base(owner)),
	}
}
