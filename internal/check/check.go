// Package check provides system diagnostics (--check mode) and pre-pipeline
// dependency validation (CheckDeps) for ffmpeg, ffprobe, and the audio
// encoders behind each output extension.
package check

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/ffmpeg"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFfmpegNotFound     = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound    = errors.New("ffprobe not found on PATH")
	ErrEncoderUnavailable = errors.New("ffmpeg lacks the audio encoder for the output extension")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...any)
	Success(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
}

// RunCheck runs the interactive --check flow: prints the ffmpeg and ffprobe
// versions, which output extensions have a usable encoder, and the result
// of a short test encode for the configured output extension.
// This is informational only; it does not stop on failure.
func RunCheck(cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkVersion(log, cfg.FFprobeBin)
	if !checkVersion(log, cfg.FFmpegBin) {
		return
	}
	encoders, err := listEncoders(cfg.FFmpegBin)
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return
	}
	checkExtensions(log, encoders)
	checkTestEncode(log, cfg)
}

// checkVersion verifies bin is on PATH and logs its version line.
func checkVersion(log Logger, bin string) bool {
	if _, err := exec.LookPath(bin); err != nil {
		log.Error("%s not found", bin)
		return false
	}
	out, err := exec.Command(bin, "-version").Output()
	if err != nil {
		log.Warn("%s found but -version failed: %v", bin, err)
		return false
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Success("%s", firstLine)
	return true
}

// checkExtensions reports encoder availability per output extension.
func checkExtensions(log Logger, encoders map[string]bool) {
	log.Info("Output extensions:")
	exts := append([]string(nil), config.AudioExtensions...)
	sort.Strings(exts)
	for _, ext := range exts {
		codec, ok := ffmpeg.CodecFor(ext)
		if !ok {
			continue
		}
		if encoders[codec.Encoder] {
			log.Success("  %-5s %s", ext, codec.Encoder)
		} else {
			log.Warn("  %-5s %s (missing)", ext, codec.Encoder)
		}
	}
}

// checkTestEncode runs a minimal encode with the configured output codec.
func checkTestEncode(log Logger, cfg *config.Config) {
	codec, ok := ffmpeg.CodecFor(cfg.OutputExt)
	if !ok {
		return
	}
	log.Info("Testing %s encoder...", codec.Encoder)
	if runSilent(cfg.FFmpegBin, testEncodeArgs(codec)...) {
		log.Success("%s encoder works", codec.Encoder)
	} else {
		log.Error("%s test encode failed", codec.Encoder)
	}
}

// CheckDeps is the pre-pipeline validation: ffprobe must be on PATH and,
// unless this is a dry run, ffmpeg must be on PATH and list the encoder
// for the output extension. Returns a sentinel error (possibly wrapped) on
// failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFprobeBin); err != nil {
		return ErrFfprobeNotFound
	}
	if cfg.DryRun {
		return nil
	}
	if _, err := exec.LookPath(cfg.FFmpegBin); err != nil {
		return ErrFfmpegNotFound
	}

	codec, ok := ffmpeg.CodecFor(cfg.OutputExt)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEncoderUnavailable, cfg.OutputExt)
	}
	encoders, err := listEncoders(cfg.FFmpegBin)
	if err != nil {
		return fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	if !encoders[codec.Encoder] {
		return fmt.Errorf("%w: %s needs %s", ErrEncoderUnavailable, cfg.OutputExt, codec.Encoder)
	}
	return nil
}

// --- internal helpers ---

func listEncoders(bin string) (map[string]bool, error) {
	out, err := exec.Command(bin, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, err
	}
	return ParseEncoders(string(out)), nil
}

// ParseEncoders extracts audio encoder names from `ffmpeg -encoders`
// output. Each listing line is a six-character capability field whose
// first character is 'A' for audio, followed by the encoder name.
func ParseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	listing := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if !listing {
			listing = len(fields) == 1 && strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) >= 2 && len(fields[0]) == 6 && fields[0][0] == 'A' {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// testEncodeArgs returns the ffmpeg arguments for a minimal test encode.
func testEncodeArgs(codec ffmpeg.Codec) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", codec.Encoder,
		"-f", "null", "-",
	}
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	return exec.Command(name, args...).Run() == nil
}
