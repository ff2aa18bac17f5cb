package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the samctl banner to w, colored for the terminal profile.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  ___  __ _ _ __ ___", "#34d399"},
		{" / __|/ _` | '_ ` _ \\", "#2dd4bf"},
		{" \\__ \\ (_| | | | | | |", "#22d3ee"},
		{" |___/\\__,_|_| |_| |_|", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
