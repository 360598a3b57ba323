// Package term decides whether output is colored and holds the ANSI
// palette the logger, banner and run report draw from.
//
// The palette is process-wide and set once by [Configure]. With colors off
// every sequence is "", so painting a string returns it unchanged.
package term

import (
	"os"
	"strings"

	"github.com/backmassage/bitshrink/internal/config"
)

// Palette holds one ANSI sequence per log level plus an accent for the
// banner and a reset sequence.
type Palette struct {
	Info    string
	Success string
	Warn    string
	Error   string
	Debug   string
	Accent  string
	Reset   string
}

var ansi = Palette{
	Info:    "\033[1;94m",
	Success: "\033[1;92m",
	Warn:    "\033[1;93m",
	Error:   "\033[1;91m",
	Debug:   "\033[1;96m",
	Accent:  "\033[1;95m",
	Reset:   "\033[0m",
}

var current Palette

// Configure resolves mode against stdout and the environment and installs
// the matching palette. It reports whether colors are on.
func Configure(mode config.ColorMode) bool {
	return configure(mode, IsTerminal(os.Stdout), os.Getenv)
}

func configure(mode config.ColorMode, tty bool, getenv func(string) string) bool {
	if wantColor(mode, tty, getenv) {
		current = ansi
	} else {
		current = Palette{}
	}
	return Enabled()
}

// Colors returns the active palette.
func Colors() Palette { return current }

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return current.Reset != "" }

// Paint wraps s in seq and a reset; s is returned as is when seq is empty.
func Paint(seq, s string) string {
	if seq == "" {
		return s
	}
	return seq + s + current.Reset
}

// wantColor applies the precedence explicit flag, NO_COLOR, FORCE_COLOR,
// TERM=dumb, then TTY detection (https://no-color.org).
func wantColor(mode config.ColorMode, tty bool, getenv func(string) string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	if strings.EqualFold(getenv("TERM"), "dumb") {
		return false
	}
	return tty
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
