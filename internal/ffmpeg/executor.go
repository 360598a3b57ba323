package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
)

// Encoder runs ffmpeg re-encodes with fixed options.
type Encoder struct {
	Opts Options
}

// NewEncoder returns an Encoder for opts.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{Opts: opts}
}

// Encode runs job and blocks until ffmpeg exits. The encode is never
// killed by ctx cancellation: the child runs detached from ctx and in its
// own process group, so a terminal ^C reaches only this process and the
// encode finishes its output file. Callers decide whether to start it.
func (e *Encoder) Encode(ctx context.Context, job Job) error {
	args, err := Build(e.Opts, job)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), args[0], args[1:]...)
	detach(cmd)

	var stderrBuf bytes.Buffer
	cmd.Stdout = &stderrBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		return newEncodeError(job.Input, stderrBuf.String(), err)
	}
	return nil
}
