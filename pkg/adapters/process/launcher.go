package process

import (
	"context"
	"slices"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
)

// DefaultInterpreter is the dumb-terminal Z-machine interpreter.
const DefaultInterpreter = "dfrotz"

// DefaultInterpreterArgs keeps dfrotz from pausing on its own [MORE] prompts.
var DefaultInterpreterArgs = []string{"-p"}

// Launcher starts one Handle per game. It implements ports.Launcher.
type Launcher struct {
	command string
	args    []string
	opts    []Option
}

// NewLauncher creates a Launcher that runs command with args followed by the game path.
// An empty command selects DefaultInterpreter with DefaultInterpreterArgs.
func NewLauncher(command string, args []string, opts ...Option) *Launcher {
	if command == "" {
		command = DefaultInterpreter
		if args == nil {
			args = DefaultInterpreterArgs
		}
	}
	return &Launcher{
		command: command,
		args:    slices.Clone(args),
		opts:    opts,
	}
}

// Launch spawns the interpreter on gamePath and returns it with its startup output.
func (l *Launcher) Launch(ctx context.Context, gamePath string) (ports.Interpreter, domain.Output, error) {
	h := NewHandle(l.opts...)
	args := append(slices.Clone(l.args), gamePath)
	out, err := h.Start(ctx, l.command, args...)
	if err != nil {
		return nil, domain.Output{}, err
	}
	return h, out, nil
}
