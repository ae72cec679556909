package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")

	out := buf.String()
	assert.Contains(t, out, "v1.2.3")
	assert.NotContains(t, out, "\x1b[")
}

func TestPromptAndNotice(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "> ", Prompt(&buf))
	assert.Equal(t, "[partial]", Notice(&buf, "[partial]"))
}

func TestTranscriptMarkdown(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	md := TranscriptMarkdown("s-1", domain.TranscriptPage{
		Page: 1, Limit: 20, TotalPages: 1, TotalTurns: 2,
		Turns: []domain.Turn{
			{Seq: 0, Output: "West of House\n", Timestamp: ts},
			{Seq: 1, Command: "open `mailbox`", Output: "Opened.", Partial: true, Timestamp: ts},
		},
	})

	assert.Contains(t, md, "# Session s-1")
	assert.Contains(t, md, "Page 1 of 1, 2 turns in total.")
	assert.Contains(t, md, "## Start")
	assert.Contains(t, md, "## Turn 1: `open 'mailbox'`")
	assert.Contains(t, md, "(partial)")
	assert.Contains(t, md, "```text\nWest of House\n```")
}

func TestTranscriptMarkdown_Empty(t *testing.T) {
	md := TranscriptMarkdown("s-1", domain.TranscriptPage{Page: 3, Limit: 20})
	assert.Contains(t, md, "Page 3 of 1, 0 turns in total.")
	assert.Contains(t, md, "No turns on this page")
}

func TestRenderer_Plain(t *testing.T) {
	render, err := NewRenderer(80, false)
	require.NoError(t, err)

	out, err := render("## Turn 1\n\n```text\nYou see a lamp.\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Turn 1")
	assert.Contains(t, out, "You see a lamp.")
	assert.NotContains(t, strings.ToLower(out), "\x1b[")
}
