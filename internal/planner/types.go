package planner

import "fmt"

// Kind is the classification of a single candidate path.
type Kind int

const (
	NotAudio Kind = iota
	AlreadyCorrectFormat
	NeedsConversion
	ProbeFailed
)

func (k Kind) String() string {
	switch k {
	case NotAudio:
		return "not_audio"
	case AlreadyCorrectFormat:
		return "unchanged"
	case NeedsConversion:
		return "needs_conversion"
	case ProbeFailed:
		return "probe_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reason explains why a file needs conversion.
type Reason int

const (
	ReasonNone Reason = iota
	FormatMismatch
	BitrateExceeded
)

func (r Reason) String() string {
	switch r {
	case FormatMismatch:
		return "format"
	case BitrateExceeded:
		return "bitrate"
	}
	return "none"
}

// Result is the classification of one path. BitrateKbps is set only when
// the file was probed successfully; Err only when Kind is ProbeFailed.
type Result struct {
	Path        string
	Ext         string // lower-cased, no dot
	Kind        Kind
	Reason      Reason
	BitrateKbps int64
	Err         error
}

// Selected reports whether the file should be handed to the converter.
func (r Result) Selected() bool { return r.Kind == NeedsConversion }

// ProbeError reports that the audio bit rate of Path could not be
// determined.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
