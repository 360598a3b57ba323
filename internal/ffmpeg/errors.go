package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Pre-compiled regexes for classifying ffmpeg stderr output. Checked in
// order by [EncodeError.Hint]; the first match wins.
var (
	reUnknownEncoder = regexp.MustCompile(
		`(?i)Unknown encoder|Encoder .* not found|Error selecting an encoder`)

	reInvalidInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`could not find codec parameters|` +
			`Output file (#\d+ )?does not contain any stream`)

	reDiskFull = regexp.MustCompile(`(?i)No space left on device`)
)

// EncodeError reports a failed ffmpeg run. Stderr holds the captured
// diagnostic output.
type EncodeError struct {
	Input    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed on %q", e.Input)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Hint returns a short operator-facing explanation for well-known
// failures, or "".
func (e *EncodeError) Hint() string {
	switch {
	case reUnknownEncoder.MatchString(e.Stderr):
		return "ffmpeg lacks the encoder for this output format"
	case reInvalidInput.MatchString(e.Stderr):
		return "input is not decodable audio"
	case reDiskFull.MatchString(e.Stderr):
		return "disk full"
	}
	return ""
}

func newEncodeError(input, stderr string, err error) *EncodeError {
	e := &EncodeError{Input: input, Stderr: stderr, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}
	return e
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
