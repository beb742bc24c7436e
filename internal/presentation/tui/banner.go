package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Tollgate ASCII art banner.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _____     _ _             _       ", "#34d399"},
		{"|_   _|__ | | | __ _  __ _| |_ ___ ", "#2dd4bf"},
		{"  | |/ _ \\| | |/ _` |/ _` | __/ _ \\", "#22d3ee"},
		{"  | | (_) | | | (_| | (_| | ||  __/", "#38bdf8"},
		{"  |_|\\___/|_|_|\\__, |\\__,_|\\__\\___|", "#60a5fa"},
		{"               |___/               ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
