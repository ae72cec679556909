package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{" _  __              _       ", "#34d399"},
	{"(_)/ _| __ _  __ _| |_ ___ ", "#2dd4bf"},
	{"| | |_ / _` |/ _` | __/ _ \\", "#22d3ee"},
	{"| |  _| (_| | (_| | ||  __/", "#38bdf8"},
	{"|_|_|  \\__, |\\__,_|\\__\\___|", "#60a5fa"},
	{"       |___/              ", "#818cf8"},
}

// PrintBanner writes the ifgate banner and version to w.
// Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, out.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}

// Prompt returns the styled input prompt for w.
func Prompt(w io.Writer) string {
	out := termenv.NewOutput(w)
	return out.String("> ").Bold().Foreground(out.Color("#34d399")).String()
}

// Notice formats a dim status line, such as the marker printed after a partial turn.
func Notice(w io.Writer, msg string) string {
	out := termenv.NewOutput(w)
	return out.String(msg).Faint().Italic().String()
}
