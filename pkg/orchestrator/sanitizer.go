package orchestrator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/ifgate/pkg/domain"
)

// DefaultMaxCommandSize is 4KB (conservative default)
const DefaultMaxCommandSize = 4096

// SanitizeCommand cleans a player command by enforcing the size limit,
// validating UTF-8 and stripping control characters. Line breaks are removed
// too: a command is exactly one line of interpreter input.
func SanitizeCommand(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxCommandSize
	}
	if len(input) > limit {
		// Reject rather than truncate: a truncated command is a different command.
		return "", fmt.Errorf("%w: command size=%d limit=%d", domain.ErrInvalidArgument, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", fmt.Errorf("%w: command contains invalid UTF-8 sequences", domain.ErrInvalidArgument)
	}

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' {
			clean = false
			break
		}
	}
	if clean {
		return strings.TrimSpace(input), nil
	}

	// Slow path: build clean string
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\t':
			b.WriteRune(r)
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case !unicode.IsControl(r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
