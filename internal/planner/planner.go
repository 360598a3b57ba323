package planner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/backmassage/bitshrink/internal/config"
)

// Prober reports the audio bit rate of a file in bits/sec.
type Prober interface {
	AudioBitRate(ctx context.Context, path string) (int64, error)
}

// Classify decides what to do with path. Only same-format audio files are
// probed; an extension change always converts. The bit rate is compared in
// integer-truncated kbit/s and must strictly exceed ceilingKbps.
func Classify(ctx context.Context, p Prober, path, outputExt string, ceilingKbps int) Result {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	res := Result{Path: path, Ext: ext}

	if !config.IsAudioExtension(ext) {
		res.Kind = NotAudio
		return res
	}
	if ext != config.NormalizeExt(outputExt) {
		res.Kind = NeedsConversion
		res.Reason = FormatMismatch
		return res
	}

	bps, err := p.AudioBitRate(ctx, path)
	if err != nil {
		res.Kind = ProbeFailed
		res.Err = &ProbeError{Path: path, Err: err}
		return res
	}

	res.BitrateKbps = bps / 1000
	if res.BitrateKbps > int64(ceilingKbps) {
		res.Kind = NeedsConversion
		res.Reason = BitrateExceeded
	} else {
		res.Kind = AlreadyCorrectFormat
	}
	return res
}
