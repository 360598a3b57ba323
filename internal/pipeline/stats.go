package pipeline

import (
	"sync"

	"github.com/backmassage/bitshrink/internal/planner"
)

// Summary is a point-in-time copy of a run's counters.
type Summary struct {
	Scanned          int
	NonAudio         int
	Unchanged        int
	SelectedFormat   int
	SelectedBitrate  int
	ConvertedFormat  int
	ConvertedBitrate int
	ProbeErrors      int
	EncodeErrors     int
	ScanErrors       int
	TotalInputBytes  int64
	TotalOutputBytes int64
	DryRun           bool
	Interrupted      bool
}

// Stats aggregates counters across concurrent workers. One instance per
// run; all mutation goes through the Record methods.
type Stats struct {
	mu sync.Mutex
	s  Summary
}

// NewStats returns empty counters. In dry-run mode the runner records
// every file it would convert as a converted Outcome.
func NewStats(dryRun bool) *Stats {
	return &Stats{s: Summary{DryRun: dryRun}}
}

// RecordScanError counts an unreadable directory.
func (st *Stats) RecordScanError() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Scanned++
	st.s.ScanErrors++
}

// RecordClassification counts one classified path.
func (st *Stats) RecordClassification(r planner.Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Scanned++
	switch r.Kind {
	case planner.NotAudio:
		st.s.NonAudio++
	case planner.AlreadyCorrectFormat:
		st.s.Unchanged++
	case planner.ProbeFailed:
		st.s.ProbeErrors++
	case planner.NeedsConversion:
		if r.Reason == planner.BitrateExceeded {
			st.s.SelectedBitrate++
		} else {
			st.s.SelectedFormat++
		}
	}
}

// RecordOutcome counts one finished conversion. Every failure, including
// a rejected target collision, is an encode error.
func (st *Stats) RecordOutcome(o Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !o.Converted {
		st.s.EncodeErrors++
		return
	}
	if o.Task.Reason == planner.BitrateExceeded {
		st.s.ConvertedBitrate++
	} else {
		st.s.ConvertedFormat++
	}
	st.s.TotalInputBytes += o.InBytes
	st.s.TotalOutputBytes += o.OutBytes
}

// MarkInterrupted flags the run as cut short.
func (st *Stats) MarkInterrupted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Interrupted = true
}

// Snapshot returns a copy of the current counters.
func (st *Stats) Snapshot() Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// AudioFiles counts classified audio files. Probe failures are errors,
// not audio files.
func (s Summary) AudioFiles() int {
	return s.Unchanged + s.SelectedFormat + s.SelectedBitrate
}

// ByFormat returns files converted (in dry-run, that would be) because of
// an extension change.
func (s Summary) ByFormat() int { return s.ConvertedFormat }

// ByBitrate returns files converted (in dry-run, that would be) because the
// bit rate exceeded the ceiling.
func (s Summary) ByBitrate() int { return s.ConvertedBitrate }

// Converted returns ByFormat + ByBitrate.
func (s Summary) Converted() int { return s.ByFormat() + s.ByBitrate() }

// Errors returns the total of every error category.
func (s Summary) Errors() int { return s.ProbeErrors + s.EncodeErrors + s.ScanErrors }

// NotProcessed returns selected files that never ran because the run was
// interrupted.
func (s Summary) NotProcessed() int {
	return s.SelectedFormat + s.SelectedBitrate - s.ConvertedFormat - s.ConvertedBitrate - s.EncodeErrors
}

// Accounted sums every terminal bucket. It equals Scanned for any run.
func (s Summary) Accounted() int {
	return s.NonAudio + s.Unchanged + s.Converted() + s.Errors() + s.NotProcessed()
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s Summary) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}
