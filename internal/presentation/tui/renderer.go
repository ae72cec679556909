package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Styled output detects the terminal background; otherwise the plain "notty" style is used.
func NewRenderer(width int, styled bool) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("notty")}
	if styled {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// TranscriptMarkdown formats one transcript page as markdown.
// Interpreter output goes into fenced blocks so story text is never read as markup.
func TranscriptMarkdown(sessionID string, p domain.TranscriptPage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", sessionID)
	fmt.Fprintf(&b, "Page %d of %d, %d turns in total.\n\n", p.Page, max(p.TotalPages, 1), p.TotalTurns)

	if len(p.Turns) == 0 {
		b.WriteString("_No turns on this page._\n")
		return b.String()
	}

	for _, t := range p.Turns {
		if t.Seq == 0 {
			fmt.Fprintf(&b, "## Start\n\n")
		} else {
			fmt.Fprintf(&b, "## Turn %d: `%s`\n\n", t.Seq, strings.ReplaceAll(t.Command, "`", "'"))
		}
		fmt.Fprintf(&b, "_%s_", t.Timestamp.UTC().Format("2006-01-02 15:04:05.000 MST"))
		if t.Partial {
			b.WriteString(" (partial)")
		}
		b.WriteString("\n\n```text\n")
		b.WriteString(strings.TrimRight(t.Output, "\n"))
		b.WriteString("\n```\n\n")
	}
	return b.String()
}
