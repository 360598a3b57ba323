package display

import (
	"fmt"
	"io"

	"github.com/backmassage/bitshrink/internal/term"
)

const banner = ` _     _ _       _          _       _
| |__ (_) |_ ___| |__  _ __(_)_ __ | | __
| '_ \| | __/ __| '_ \| '__| | '_ \| |/ /
| |_) | | |_\__ \ | | | |  | | | | |   <
|_.__/|_|\__|___/_| |_|_|  |_|_| |_|_|\_\
`

// PrintBanner writes the ASCII art banner and version to w, in the accent
// color when colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Paint(term.Colors().Accent, banner))
	fmt.Fprintf(w, "%*s\n\n", 41, "v"+version)
}
