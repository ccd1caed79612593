package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the taxgraph banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"  _                                    _     ", "#818cf8"},
		{" | |_ __ ___  ____ _ _ __ __ _ _ __  | |__  ", "#a78bfa"},
		{" | __/ _` \\ \\/ / _` | '__/ _` | '_ \\ | '_ \\ ", "#c084fc"},
		{" | || (_| |>  < (_| | | | (_| | |_) || | | |", "#e879f9"},
		{"  \\__\\__,_/_/\\_\\__, |_|  \\__,_| .__/ |_| |_|", "#f472b6"},
		{"               |___/         |_|            ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintf(w, "  %s\n\n", out.String("v"+version).Faint())
}
