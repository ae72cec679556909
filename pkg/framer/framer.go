package framer

import (
	"strings"
)

const (
	// DefaultPagerMarker is the banner dfrotz prints when it waits for a key to show more text.
	DefaultPagerMarker = "***MORE***"
	// DefaultPromptMarker is the character dfrotz prints when it is ready for the next command.
	DefaultPromptMarker = ">"
)

// Phase is the framing state of the current turn.
type Phase int

const (
	Accumulating Phase = iota
	Complete
	TimedOut
)

func (p Phase) String() string {
	switch p {
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Action tells the caller what to do after feeding a chunk.
type Action int

const (
	// ActionNone means keep reading.
	ActionNone Action = iota
	// ActionContinue means a pagination break was consumed; write one newline to the interpreter.
	ActionContinue
	// ActionComplete means the prompt was seen and Output holds the turn's text.
	ActionComplete
)

// Framer reconstructs command/response boundaries from an interpreter's free-text output.
// It holds no I/O and is not safe for concurrent use; each process handle owns one.
type Framer struct {
	pager   string
	prompt  string
	command string
	buf     strings.Builder
	phase   Phase
	output  string
}

// Option configures the Framer.
type Option func(*Framer)

// WithPagerMarker overrides the pagination sentinel.
func WithPagerMarker(marker string) Option {
	return func(f *Framer) {
		if marker != "" {
			f.pager = marker
		}
	}
}

// WithPromptMarker overrides the input prompt sentinel.
func WithPromptMarker(marker string) Option {
	return func(f *Framer) {
		if marker != "" {
			f.prompt = marker
		}
	}
}

// New creates a Framer in the Accumulating phase.
func New(opts ...Option) *Framer {
	f := &Framer{
		pager:  DefaultPagerMarker,
		prompt: DefaultPromptMarker,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Reset starts a new turn for command. The empty command is the startup turn.
func (f *Framer) Reset(command string) {
	f.buf.Reset()
	f.command = command
	f.phase = Accumulating
	f.output = ""
}

// Phase returns the current phase.
func (f *Framer) Phase() Phase {
	return f.phase
}

// Output returns the framed text once the turn reached a terminal phase.
func (f *Framer) Output() string {
	return f.output
}

// Feed appends chunk to the turn buffer and evaluates the transition rules.
// Chunks fed after the turn completed or timed out are discarded.
func (f *Framer) Feed(chunk string) Action {
	if f.phase != Accumulating {
		return ActionNone
	}
	f.buf.WriteString(chunk)
	text := f.buf.String()

	if strings.Contains(text, f.pager) {
		text = strings.TrimRight(strings.ReplaceAll(text, f.pager, ""), whitespace)
		f.buf.Reset()
		f.buf.WriteString(text)
		return ActionContinue
	}

	trimmed := strings.TrimRight(text, whitespace)
	if !strings.HasSuffix(trimmed, f.prompt) {
		return ActionNone
	}

	body := strings.TrimRight(strings.TrimSuffix(trimmed, f.prompt), whitespace)
	f.output = strings.TrimSpace(stripEcho(body, f.command))
	f.phase = Complete
	return ActionComplete
}

// Expire ends an accumulating turn on the deadline and returns what was gathered.
// On a turn that already completed it returns the completed output unchanged.
func (f *Framer) Expire() string {
	if f.phase == Accumulating {
		f.output = strings.TrimSpace(f.buf.String())
		f.phase = TimedOut
	}
	return f.output
}

const whitespace = " \t\r\n"

// stripEcho removes a first line that repeats command, ignoring case.
func stripEcho(body, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return body
	}
	body = strings.TrimLeft(body, whitespace)
	first, rest, found := strings.Cut(body, "\n")
	if !strings.EqualFold(strings.TrimSpace(first), command) {
		return body
	}
	if !found {
		return ""
	}
	return rest
}
