package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/framer"
)

// DefaultTurnTimeout bounds every framed turn.
const DefaultTurnTimeout = 5 * time.Second

// chunkBuffer is how many stdout reads may queue between turns before the reader blocks.
const chunkBuffer = 64

// ExitError reports that the interpreter exited while a turn was being framed.
// It matches domain.ErrProcessExited with errors.Is.
type ExitError struct {
	Code int
	// Output is whatever the interpreter printed during the turn before exiting.
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interpreter process exited with code %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("interpreter process exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return domain.ErrProcessExited
}

// Handle owns one interpreter child process, its pipes and its Framer.
// Turns must not overlap; Send serializes them.
type Handle struct {
	timeout time.Duration
	env     []string
	dir     string
	logger  *slog.Logger
	framer  *framer.Framer

	turnMu sync.Mutex // held for the whole of a framed turn
	stale  bool       // guarded by turnMu; the last turn ended before its prompt

	mu         sync.Mutex // guards the lifecycle fields below
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	terminated bool

	chunks  chan string   // stdout reads; closed on EOF or read error
	stop    chan struct{} // closed by Terminate to unblock the reader
	done    chan struct{} // closed once the process was reaped
	readErr error         // written by the reader before closing chunks
	exitErr error         // written by the reaper before closing done
}

// Option configures a Handle.
type Option func(*Handle)

// WithTurnTimeout sets the per-turn deadline.
func WithTurnTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithEnv appends KEY=VALUE entries to the inherited environment.
func WithEnv(env ...string) Option {
	return func(h *Handle) {
		h.env = append(h.env, env...)
	}
}

// WithDir sets the working directory of the interpreter.
func WithDir(dir string) Option {
	return func(h *Handle) {
		h.dir = dir
	}
}

// WithMarkers overrides the pager and prompt sentinels.
func WithMarkers(pager, prompt string) Option {
	return func(h *Handle) {
		h.framer = framer.New(framer.WithPagerMarker(pager), framer.WithPromptMarker(prompt))
	}
}

// WithLogger configures a logger for interpreter stderr and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}

// NewHandle creates an unstarted Handle.
func NewHandle(opts ...Option) *Handle {
	h := &Handle{
		timeout: DefaultTurnTimeout,
		logger:  logging.NewNop(),
		framer:  framer.New(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start spawns the interpreter and frames its startup banner as the first turn.
// A process that prints nothing before the deadline yields an empty, partial output.
func (h *Handle) Start(ctx context.Context, path string, args ...string) (domain.Output, error) {
	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	if err := h.spawn(path, args); err != nil {
		return domain.Output{}, err
	}

	out, err := h.turn(ctx, "", false)
	if err != nil {
		_ = h.Terminate()
		return domain.Output{}, err
	}
	return out, nil
}

func (h *Handle) spawn(path string, args []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd != nil || h.terminated {
		return fmt.Errorf("%w: handle already used", domain.ErrSpawn)
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = h.dir
	cmd.Env = append(cmd.Environ(), h.env...)

	// Track created pipes for cleanup on error
	var created []io.Closer
	cleanup := func() {
		for _, c := range created {
			_ = c.Close()
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdin pipe: %w", domain.ErrSpawn, err)
	}
	created = append(created, stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return fmt.Errorf("%w: create stdout pipe: %w", domain.ErrSpawn, err)
	}
	created = append(created, stdout)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cleanup()
		return fmt.Errorf("%w: create stderr pipe: %w", domain.ErrSpawn, err)
	}
	created = append(created, stderr)

	if err := cmd.Start(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s: %w", domain.ErrSpawn, path, err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.chunks = make(chan string, chunkBuffer)
	h.logger = h.logger.With("pid", cmd.Process.Pid)
	h.logger.Debug("Interpreter started", "path", path, "args", args)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		h.pump(stdout)
	}()
	go func() {
		defer readers.Done()
		h.drainStderr(stderr)
	}()
	// Wait must not run before the pipes are fully read.
	go func() {
		readers.Wait()
		h.exitErr = cmd.Wait()
		close(h.done)
	}()

	return nil
}

// pump is the only reader of stdout.
func (h *Handle) pump(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case h.chunks <- string(buf[:n]):
			case <-h.stop:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				h.readErr = err
			}
			close(h.chunks)
			return
		}
	}
}

func (h *Handle) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			h.logger.Warn("Interpreter stderr", "line", line)
		}
	}
}

// Send writes command and frames the response. After a turn that timed out, Send
// first waits up to one turn timeout for the interpreter to finish that turn.
func (h *Handle) Send(ctx context.Context, command string) (domain.Output, error) {
	if strings.ContainsAny(command, "\r\n") {
		return domain.Output{}, fmt.Errorf("%w: command must be a single line", domain.ErrInvalidArgument)
	}

	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	h.mu.Lock()
	live := h.cmd != nil && !h.terminated
	h.mu.Unlock()
	if !live {
		return domain.Output{}, domain.ErrNoSuchProcess
	}

	return h.turn(ctx, command, true)
}

// turn drives the framer until the prompt, the deadline, the caller's cancellation or process exit.
func (h *Handle) turn(ctx context.Context, command string, write bool) (domain.Output, error) {
	if h.stale {
		if err := h.settle(); err != nil {
			return domain.Output{}, err
		}
	}
	h.framer.Reset(command)
	if !h.discardStray() {
		return domain.Output{}, h.closedErr()
	}

	if write {
		if err := h.write(command + "\n"); err != nil {
			return domain.Output{}, err
		}
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-h.chunks:
			if !ok {
				return domain.Output{}, h.closedErr()
			}
			switch h.framer.Feed(chunk) {
			case framer.ActionContinue:
				if err := h.write("\n"); err != nil {
					return domain.Output{}, err
				}
			case framer.ActionComplete:
				return domain.Output{Text: h.framer.Output()}, nil
			}
		case <-timer.C:
			text := h.framer.Expire()
			h.logger.Debug("Turn timed out", "command", command, "timeout", h.timeout, "bytes", len(text))
			h.stale = true
			return domain.Output{Text: text, Partial: true}, nil
		case <-ctx.Done():
			h.framer.Expire()
			h.stale = true
			return domain.Output{}, ctx.Err()
		}
	}
}

// settle consumes the rest of a turn that ended before its prompt, answering
// any pager on the way, so that none of it is framed into the next turn.
// An interpreter that stays silent for a whole turn timeout is taken as settled.
func (h *Handle) settle() error {
	h.stale = false
	h.framer.Reset("")

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-h.chunks:
			if !ok {
				h.framer.Reset("")
				return h.closedErr()
			}
			switch h.framer.Feed(chunk) {
			case framer.ActionContinue:
				if err := h.write("\n"); err != nil {
					return err
				}
			case framer.ActionComplete:
				h.logger.Debug("Discarded late interpreter output", "bytes", len(h.framer.Output()))
				return nil
			}
		case <-timer.C:
			h.logger.Debug("No prompt after an expired turn", "timeout", h.timeout)
			return nil
		}
	}
}

// discardStray drops output that arrived outside any turn.
// It returns false when stdout is already closed.
func (h *Handle) discardStray() bool {
	for {
		select {
		case chunk, ok := <-h.chunks:
			if !ok {
				return false
			}
			h.logger.Debug("Discarding late interpreter output", "bytes", len(chunk))
		default:
			return true
		}
	}
}

func (h *Handle) write(s string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.terminated {
		return domain.ErrNoSuchProcess
	}
	if h.stdin == nil {
		return domain.ErrStdinUnavailable
	}
	if _, err := io.WriteString(h.stdin, s); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStdinUnavailable, err)
	}
	return nil
}

// closedErr classifies a closed stdout.
func (h *Handle) closedErr() error {
	select {
	case <-h.done:
	case <-time.After(h.timeout):
		return fmt.Errorf("%w: stdout closed while the process is still running", domain.ErrStdoutUnavailable)
	}

	h.mu.Lock()
	terminated := h.terminated
	h.mu.Unlock()
	if terminated {
		return domain.ErrNoSuchProcess
	}
	if h.readErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrStdoutUnavailable, h.readErr)
	}

	exit := &ExitError{Code: exitCode(h.exitErr), Output: h.framer.Expire()}
	var execErr *exec.ExitError
	if h.exitErr != nil && !errors.As(h.exitErr, &execErr) {
		exit.Err = h.exitErr
	}
	h.logger.Info("Interpreter exited", "code", exit.Code)
	return exit
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var execErr *exec.ExitError
	if errors.As(err, &execErr) {
		return execErr.ExitCode()
	}
	return -1
}

// Terminate kills the interpreter and releases its pipes.
// It is idempotent and safe to call while a turn is in flight; that turn fails with domain.ErrNoSuchProcess.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	if h.terminated {
		h.mu.Unlock()
		return nil
	}
	h.terminated = true
	if h.cmd == nil {
		h.mu.Unlock()
		return nil
	}
	close(h.stop)
	_ = h.stdin.Close()
	proc := h.cmd.Process
	h.mu.Unlock()

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill interpreter: %w", err)
	}

	select {
	case <-h.done:
		h.logger.Debug("Interpreter terminated")
	case <-time.After(DefaultTurnTimeout):
		h.logger.Warn("Interpreter not reaped after kill")
	}
	return nil
}

// PID returns the interpreter's process ID, or 0 before Start.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
