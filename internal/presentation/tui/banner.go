package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the pageflow banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Teal/Cyan)
	lines := []struct {
		text  string
		color string
	}{
		{"  ___  ___ _ __ _  ___  / _| | _____      __", "#2dd4bf"},
		{" | _ \\/ _` / _` |/ -_)|  _| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{" |  _/\\__,_\\__, |\\___||_| |_|\\___/\\_/\\_/_/ ", "#38bdf8"},
		{" |_|       |___/                            ", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status formats a short colored status word ("ok", "fail") for CLI output.
func Status(w io.Writer, ok bool) string {
	out := termenv.NewOutput(w)
	if ok {
		return out.String("ok").Foreground(out.Color("#22c55e")).Bold().String()
	}
	return out.String("fail").Foreground(out.Color("#ef4444")).Bold().String()
}
