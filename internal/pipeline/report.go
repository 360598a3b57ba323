package pipeline

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/bitshrink/internal/display"
	"github.com/backmassage/bitshrink/internal/term"
)

type reportStyles struct {
	box, title, label, bad, good lipgloss.Style
}

func newReportStyles() reportStyles {
	st := reportStyles{
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		title: lipgloss.NewStyle(),
		label: lipgloss.NewStyle().Width(24),
		bad:   lipgloss.NewStyle(),
		good:  lipgloss.NewStyle(),
	}
	if term.Enabled() {
		st.box = st.box.BorderForeground(lipgloss.Color("6"))
		st.title = st.title.Bold(true)
		st.bad = st.bad.Foreground(lipgloss.Color("9"))
		st.good = st.good.Foreground(lipgloss.Color("10"))
	}
	return st
}

// Report renders the end-of-run statistics block. Every error category is
// listed even when zero.
func Report(s Summary) string {
	st := newReportStyles()

	var b strings.Builder
	row := func(label string, value any, style lipgloss.Style) {
		b.WriteString("\n")
		b.WriteString(st.label.Render(label))
		b.WriteString(style.Render(fmt.Sprint(value)))
	}

	title := "collected statistics"
	if s.DryRun {
		title += " (dry run)"
	}
	if s.Interrupted {
		title += " (interrupted)"
	}
	b.WriteString(st.title.Render(title))

	verb := "converted"
	if s.DryRun {
		verb = "to convert"
	}
	plain := lipgloss.NewStyle()
	row("Entries scanned:", s.Scanned, plain)
	row("Audio files:", s.AudioFiles(), plain)
	row("Unchanged:", s.Unchanged, plain)
	row("Files "+verb+":", s.Converted(), st.good)
	row("  by format:", s.ByFormat(), plain)
	row("  by bit rate:", s.ByBitrate(), plain)

	errStyle := plain
	if s.Errors() > 0 {
		errStyle = st.bad
	}
	row("Errors:", s.Errors(), errStyle)
	row("  probe:", s.ProbeErrors, plain)
	row("  encode:", s.EncodeErrors, plain)
	row("  scan:", s.ScanErrors, plain)
	row("Non-audio skipped:", s.NonAudio, plain)

	if n := s.NotProcessed(); n > 0 {
		row("Not processed:", n, st.bad)
	}
	if !s.DryRun && s.TotalInputBytes > 0 {
		saved := s.SpaceSaved()
		pct := saved * 100 / s.TotalInputBytes
		row("Space saved:", fmt.Sprintf("%s (%d%%)", display.FormatBytes(saved), pct), plain)
	}

	return st.box.Render(b.String())
}
