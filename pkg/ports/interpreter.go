package ports

import (
	"context"

	"github.com/aretw0/ifgate/pkg/domain"
)

// Interpreter is a running interactive program driven one command at a time.
// Implementations are not required to be safe for concurrent Send calls;
// the session registry serializes turns.
type Interpreter interface {
	// Send writes command and blocks until the response is framed or the turn deadline elapses.
	// A deadline is not an error: the returned Output is flagged Partial.
	Send(ctx context.Context, command string) (domain.Output, error)

	// Terminate kills the process and releases its pipes. It is idempotent.
	Terminate() error
}

// Launcher starts interpreters.
type Launcher interface {
	// Launch starts an interpreter for the story at gamePath and returns it with its startup output.
	// On error no process is left running.
	Launch(ctx context.Context, gamePath string) (Interpreter, domain.Output, error)
}
