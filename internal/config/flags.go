package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into conversion, behavior, display, and utility.
// Flags and positional paths may be interleaved; "--" ends flag parsing.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrHelp is returned by [ParseArgs] when --help or --version was handled
// and the caller should exit successfully.
var ErrHelp = flag.ErrHelp

// ParseFlags parses os.Args into cfg. On --help or --version it prints and exits.
// On error it returns non-nil (e.g. unknown flag, bad value).
func ParseFlags(cfg *Config, version string) error {
	err := ParseArgs(cfg, version, os.Args[1:], os.Stdout, os.Stderr)
	if err == ErrHelp {
		os.Exit(0)
	}
	return err
}

// ParseArgs is the testable core of [ParseFlags]: it parses args into cfg,
// writing help to stderr and version to stdout. It returns [ErrHelp] after
// printing help or version.
func ParseArgs(cfg *Config, version string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("bitshrink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var u utilityFlags

	defineConversionFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &u)
	defineUtilityFlags(fs, cfg, &u)

	// flag stops at the first positional argument; keep parsing the rest so
	// "bitshrink music/ -r" works like "bitshrink -r music/".
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			if err == flag.ErrHelp {
				printUsage(stderr, version)
				return ErrHelp
			}
			return err
		}
		consumed := len(rest) - len(fs.Args())
		if consumed > 0 && rest[consumed-1] == "--" {
			positional = append(positional, fs.Args()...)
			break
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	applyUtilityFlags(cfg, &u)

	if u.showHelp {
		printUsage(stderr, version)
		return ErrHelp
	}
	if u.showVersion {
		fmt.Fprintln(stdout, "bitshrink v"+version)
		return ErrHelp
	}

	cfg.Paths = positional
	return nil
}

// utilityFlags holds boolean flags that are applied after Parse.
// They either override ColorMode or trigger an early exit.
type utilityFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineConversionFlags registers -b/--bitrate, -e/--output-extension, --delete-after.
func defineConversionFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.BitrateKbps, "bitrate", cfg.BitrateKbps, "Bit rate ceiling in kb/s")
	fs.IntVar(&cfg.BitrateKbps, "b", cfg.BitrateKbps, "Same as --bitrate")
	fs.Var(&extensionValue{&cfg.OutputExt}, "output-extension", "Output extension")
	fs.Var(&extensionValue{&cfg.OutputExt}, "e", "Same as --output-extension")
	fs.BoolVar(&cfg.DeleteAfter, "delete-after", false, "Delete originals after a format change")
}

// defineBehaviorFlags registers recursive, dry-run, workers.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Recursive, "recursive", false, "Browse directories recursively")
	fs.BoolVar(&cfg.Recursive, "r", false, "Same as --recursive")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Only classify and print stats")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel encoders (0 = one per CPU)")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "Same as --workers")
}

// defineDisplayFlags registers --color, --no-color, verbose, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, u *utilityFlags) {
	fs.BoolVar(&u.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&u.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
}

// defineUtilityFlags registers --check, output files, tool paths, --version and --help.
func defineUtilityFlags(fs *flag.FlagSet, cfg *Config, u *utilityFlags) {
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to file")
	fs.StringVar(&cfg.AuditDB, "audit-db", "", "Record per-file events in SQLite file")
	fs.StringVar(&cfg.FFmpegBin, "ffmpeg", cfg.FFmpegBin, "ffmpeg executable")
	fs.StringVar(&cfg.FFprobeBin, "ffprobe", cfg.FFprobeBin, "ffprobe executable")
	fs.BoolVar(&u.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&u.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&u.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&u.showHelp, "h", false, "Same as --help")
}

// applyUtilityFlags copies color overrides into cfg. --no-color wins over --color.
func applyUtilityFlags(cfg *Config, u *utilityFlags) {
	if u.noColor {
		cfg.ColorMode = ColorNever
	} else if u.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// printUsage writes the help text to w. Column-aligned for readability.
func printUsage(w io.Writer, version string) {
	const col1 = 30 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "bitshrink v" + version + " - shrink audio libraries to a target format and bit rate"},
		{"", ""},
		{"  bitshrink [OPTIONS] <path>...", ""},
		{"", ""},
		{"Conversion", ""},
		{"  -e, --output-extension <ext>", "Output format (default: mp3)"},
		{"", "  one of: " + strings.Join(AudioExtensions, ", ")},
		{"  -b, --bitrate <kbps>", "Bit rate ceiling and target (default: 128)"},
		{"  --delete-after", "Delete originals after a format change"},
		{"", ""},
		{"Behavior", ""},
		{"  -r, --recursive", "Browse directories recursively"},
		{"  -d, --dry-run", "Classify only; do not convert"},
		{"  -w, --workers <n>", "Parallel encoders (default: one per CPU)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Print bit rates and error details"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  --metrics-file <path>", "Write Prometheus textfile metrics"},
		{"  --audit-db <path>", "Record per-file events in SQLite"},
		{"  --ffmpeg <path>", "ffmpeg executable (default: ffmpeg)"},
		{"  --ffprobe <path>", "ffprobe executable (default: ffprobe)"},
		{"  -c, --check", "System diagnostics (ffmpeg, ffprobe, encoders)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			padding := 0
			if strings.HasPrefix(l.desc, "  ") {
				padding = col1
			}
			fmt.Fprintf(w, "%*s%s\n", padding, "", l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// extensionValue is a flag.Value adapter that only accepts recognized audio extensions.
type extensionValue struct{ p *string }

func (e *extensionValue) String() string {
	if e.p == nil {
		return ""
	}
	return *e.p
}

func (e *extensionValue) Set(s string) error {
	ext := NormalizeExt(s)
	if !IsAudioExtension(ext) {
		return fmt.Errorf("invalid output extension %q (use one of: %s)", s, strings.Join(AudioExtensions, ", "))
	}
	*e.p = ext
	return nil
}
