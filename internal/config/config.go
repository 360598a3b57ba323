// Package config holds runtime configuration: defaults, CLI flag parsing, and
// validation. The defaults target portable players: 128 kb/s stereo MP3
// at 44.1 kHz.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// AudioExtensions lists the recognized audio file extensions (lowercase,
// without leading dot). Anything else is counted as a non-audio file.
var AudioExtensions = []string{
	"mp3", "aac", "ac3", "mp2", "wma", "wav", "mka", "m4a", "ogg", "oga", "flac",
}

// IsAudioExtension reports whether ext (with or without a leading dot, any
// case) is one of [AudioExtensions].
func IsAudioExtension(ext string) bool {
	return slices.Contains(AudioExtensions, NormalizeExt(ext))
}

// NormalizeExt lowercases ext and strips a single leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then mutated by [ParseFlags] before being passed (by pointer) to packages
// that need it.
type Config struct {
	// Inputs (set from positional args).
	Paths     []string
	Recursive bool

	// Conversion settings.
	OutputExt   string // Default: "mp3". Lowercase, no leading dot.
	BitrateKbps int    // Default: 128. Ceiling for same-format files and target for the encoder.
	DeleteAfter bool   // Remove the source after a successful format change.
	SampleRate  int    // Fixed: 44100 Hz.
	Channels    int    // Fixed: 2 (stereo).

	// Behavior flags.
	DryRun  bool
	Workers int // 0 = one per CPU.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.

	// Optional outputs.
	MetricsFile string // Prometheus textfile written at the end of a run.
	AuditDB     string // SQLite file receiving per-file events.

	// External tools (not user-configurable).
	FFmpegBin  string
	FFprobeBin string
}

// DefaultConfig returns a Config with all defaults applied. Used as the base
// before [ParseFlags] applies CLI overrides.
func DefaultConfig() Config {
	return Config{
		OutputExt:   "mp3",
		BitrateKbps: 128,
		SampleRate:  44100,
		Channels:    2,
		ColorMode:   ColorAuto,
		FFmpegBin:   "ffmpeg",
		FFprobeBin:  "ffprobe",
	}
}

// Validate checks the output extension, bit rate, and worker count. When
// not in CheckOnly mode it also requires at least one input path.
func (c *Config) Validate() error {
	ext := NormalizeExt(c.OutputExt)
	if !IsAudioExtension(ext) {
		return fmt.Errorf("unsupported output extension %q (use one of: %s)",
			c.OutputExt, strings.Join(AudioExtensions, ", "))
	}
	c.OutputExt = ext

	if c.BitrateKbps <= 0 {
		return fmt.Errorf("invalid bitrate %d (use a positive kb/s value, e.g. 128)", c.BitrateKbps)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count %d", c.Workers)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.Paths) == 0 {
		return errors.New("need at least one path (file or directory)")
	}
	for _, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			return errors.New("empty path argument")
		}
	}
	return nil
}

// TargetPath returns the path a converted file is written to: the source
// path with its extension replaced by ext. When the source already carries
// ext (in any case) the source path itself is returned.
func TargetPath(src, ext string) string {
	srcExt := filepath.Ext(src)
	if NormalizeExt(srcExt) == NormalizeExt(ext) {
		return src
	}
	return strings.TrimSuffix(src, srcExt) + "." + NormalizeExt(ext)
}
