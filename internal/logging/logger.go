// Package logging provides the leveled, optionally colored logger shared by
// the CLI, the dependency check and the conversion pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/term"
)

const timeLayout = "2006-01-02 15:04:05"

type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarn
	levelError
	levelDebug
)

var levelNames = [...]string{"INFO", "SUCCESS", "WARN", "ERROR", "DEBUG"}

func (lv level) String() string { return levelNames[lv] }

func (lv level) color(p term.Palette) string {
	switch lv {
	case levelSuccess:
		return p.Success
	case levelWarn:
		return p.Warn
	case levelError:
		return p.Error
	case levelDebug:
		return p.Debug
	}
	return p.Info
}

// Logger writes one timestamped line per call. Workers share a single
// Logger; the mutex keeps their lines whole. ERROR lines go to the error
// stream, everything else to the output stream, and every line is mirrored
// uncolored to the log file when one is open.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	file   *os.File
	now    func() time.Time
}

// NewLogger installs the color palette for cfg.ColorMode and opens
// cfg.LogFile for appending when set. Call Close when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)
	l := New(os.Stdout, os.Stderr)
	if cfg.LogFile == "" {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	return l, nil
}

// New returns a Logger without a file sink. Colors follow the palette
// installed by [term.Configure].
func New(out, errOut io.Writer) *Logger {
	return &Logger{out: out, errOut: errOut, now: time.Now}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) log(lv level, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	ts := l.now().Format(timeLayout)
	tag := "[" + lv.String() + "]"

	dst := l.out
	if lv == levelError {
		dst = l.errOut
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(dst, "%s %s %s\n", ts, term.Paint(lv.color(term.Colors()), tag), msg)
	if l.file != nil {
		_, _ = fmt.Fprintf(l.file, "%s %s %s\n", ts, tag, msg)
	}
}

// Raw writes text unchanged to the output stream and the log file. The run
// report goes through here.
func (l *Logger) Raw(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, text)
	if l.file != nil {
		_, _ = io.WriteString(l.file, text)
	}
}

func (l *Logger) Info(format string, args ...any)    { l.log(levelInfo, format, args) }
func (l *Logger) Success(format string, args ...any) { l.log(levelSuccess, format, args) }
func (l *Logger) Warn(format string, args ...any)    { l.log(levelWarn, format, args) }

// Error logs to the error stream.
func (l *Logger) Error(format string, args ...any) { l.log(levelError, format, args) }

// Debug logs only when verbose is set.
func (l *Logger) Debug(verbose bool, format string, args ...any) {
	if verbose {
		l.log(levelDebug, format, args)
	}
}
