package framer_test

import (
	"strings"
	"testing"

	"github.com/aretw0/ifgate/pkg/framer"
	"github.com/stretchr/testify/assert"
)

func TestFramer_PromptCompletesTurn(t *testing.T) {
	f := framer.New()
	f.Reset("look")

	assert.Equal(t, framer.ActionNone, f.Feed("West of House\nYou are standing "))
	assert.Equal(t, framer.Accumulating, f.Phase())

	assert.Equal(t, framer.ActionComplete, f.Feed("in an open field.\n\n> "))
	assert.Equal(t, framer.Complete, f.Phase())
	assert.Equal(t, "West of House\nYou are standing in an open field.", f.Output())
}

func TestFramer_StripsEcho(t *testing.T) {
	tests := []struct {
		name    string
		command string
		stream  string
		want    string
	}{
		{"Exact Echo", "look", "look\nWest of House\n>", "West of House"},
		{"Case Insensitive", "LOOK", "look\r\nWest of House\n>", "West of House"},
		{"Leading Blank Line", "look", "\nlook\nWest of House\n>", "West of House"},
		{"No Echo", "look", "West of House\n>", "West of House"},
		{"Echo Only", "wait", "wait\n>", ""},
		{"Only First Line", "look", "look\nlook\n>", "look"},
		{"Startup Turn Keeps Text", "", "ZORK I\n>", "ZORK I"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := framer.New()
			f.Reset(tt.command)
			assert.Equal(t, framer.ActionComplete, f.Feed(tt.stream))
			assert.Equal(t, tt.want, f.Output())
		})
	}
}

func TestFramer_PaginationContinues(t *testing.T) {
	f := framer.New()
	f.Reset("read leaflet")

	assert.Equal(t, framer.ActionContinue, f.Feed("WELCOME TO ZORK!\n***MORE***  "))
	assert.Equal(t, framer.Accumulating, f.Phase())

	// The marker is gone: feeding more text must not trigger another continuation.
	assert.Equal(t, framer.ActionNone, f.Feed("\nZORK is a game of adventure"))
	assert.Equal(t, framer.ActionContinue, f.Feed(", danger ***MORE***"))
	assert.Equal(t, framer.ActionComplete, f.Feed(" and low cunning.\n>"))

	out := f.Output()
	assert.NotContains(t, out, "MORE")
	assert.Equal(t, "WELCOME TO ZORK!\nZORK is a game of adventure, danger and low cunning.", out)
	assert.Equal(t, 1, strings.Count(out, "danger"), "continuation fragments must not be duplicated")
}

func TestFramer_MarkerSplitAcrossChunks(t *testing.T) {
	f := framer.New()
	f.Reset("")

	assert.Equal(t, framer.ActionNone, f.Feed("Page one\n***MO"))
	assert.Equal(t, framer.ActionContinue, f.Feed("RE***"))
	assert.Equal(t, framer.ActionComplete, f.Feed("\nPage two\n>"))
	assert.Equal(t, "Page one\nPage two", f.Output())
}

func TestFramer_PromptMustEndBuffer(t *testing.T) {
	f := framer.New()
	f.Reset("")

	// A '>' inside the text is not a prompt.
	assert.Equal(t, framer.ActionNone, f.Feed("Type 'north' -> to go north.\n"))
	assert.Equal(t, framer.ActionComplete, f.Feed(">"))
	assert.Equal(t, "Type 'north' -> to go north.", f.Output())
}

func TestFramer_Expire(t *testing.T) {
	f := framer.New()
	f.Reset("wait")

	f.Feed("  Time passes...  ")
	assert.Equal(t, "Time passes...", f.Expire())
	assert.Equal(t, framer.TimedOut, f.Phase())

	// Late output is discarded.
	assert.Equal(t, framer.ActionNone, f.Feed("\n>"))
	assert.Equal(t, "Time passes...", f.Output())
}

func TestFramer_ExpireEmpty(t *testing.T) {
	f := framer.New()
	f.Reset("")
	assert.Equal(t, "", f.Expire())
	assert.Equal(t, framer.TimedOut, f.Phase())
}

func TestFramer_ExpireAfterComplete(t *testing.T) {
	f := framer.New()
	f.Reset("look")
	f.Feed("Kitchen\n>")
	assert.Equal(t, "Kitchen", f.Expire())
	assert.Equal(t, framer.Complete, f.Phase())
}

func TestFramer_ResetClearsState(t *testing.T) {
	f := framer.New()
	f.Reset("look")
	f.Feed("Kitchen\n>")

	f.Reset("inventory")
	assert.Equal(t, framer.Accumulating, f.Phase())
	assert.Equal(t, "", f.Output())
	assert.Equal(t, framer.ActionComplete, f.Feed("You are empty-handed.\n>"))
	assert.Equal(t, "You are empty-handed.", f.Output())
}

func TestFramer_CustomMarkers(t *testing.T) {
	f := framer.New(framer.WithPagerMarker("[MORE]"), framer.WithPromptMarker("$"))
	f.Reset("")

	assert.Equal(t, framer.ActionContinue, f.Feed("one [MORE]"))
	assert.Equal(t, framer.ActionNone, f.Feed(" two >"))
	assert.Equal(t, framer.ActionComplete, f.Feed("\n$ "))
	assert.Equal(t, "one two >", f.Output())
}
