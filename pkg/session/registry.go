package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
)

// commitTimeout bounds the store write of one turn.
const commitTimeout = 10 * time.Second

// CommitFunc persists a turn. Dispatch runs it while still holding the session's
// turn slot, so commits of one session happen in Seq order.
type CommitFunc func(ctx context.Context, turn domain.Turn) error

// entry is one live session.
type entry struct {
	id     string
	interp ports.Interpreter
	closed chan struct{} // closed when the entry leaves the registry

	// Guarded by Registry.mu. The turn slot is held while busy; waiters are
	// handed the slot in arrival order by closing their channel.
	busy         bool
	waiters      []chan struct{}
	lastActivity time.Time

	// Guarded by the turn slot.
	seq    int
	lastTS time.Time
}

// queued counts the running turn and the waiting ones.
func (e *entry) queued() int {
	n := len(e.waiters)
	if e.busy {
		n++
	}
	return n
}

// stamp returns a timestamp strictly after the previous turn of this session.
func (e *entry) stamp(now time.Time) time.Time {
	if !now.After(e.lastTS) {
		now = e.lastTS.Add(time.Microsecond)
	}
	e.lastTS = now
	return now
}

// Registry maps session IDs to live interpreters and serializes their turns.
type Registry struct {
	launcher ports.Launcher

	mu      sync.Mutex // Global lock for the map
	entries map[string]*entry
	closed  bool

	maxQueue int
	now      func() time.Time
	hooks    Hooks
	logger   *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithMaxQueue bounds how many turns may be pending on one session, the running one included.
// Further requests fail with domain.ErrSessionBusy. Zero means unbounded.
func WithMaxQueue(n int) Option {
	return func(r *Registry) {
		r.maxQueue = n
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks Hooks) Option {
	return func(r *Registry) {
		r.hooks = hooks
	}
}

// NewRegistry creates an empty Registry that starts interpreters with launcher.
func NewRegistry(launcher ports.Launcher, opts ...Option) *Registry {
	r := &Registry{
		launcher: launcher,
		entries:  make(map[string]*entry),
		now:      time.Now,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create launches an interpreter for gamePath under id and returns its startup turn (Seq 0).
// The process is started outside the registry lock; on any failure nothing is registered.
func (r *Registry) Create(ctx context.Context, id, gamePath string) (domain.Turn, error) {
	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		return domain.Turn{}, domain.ErrRegistryClosed
	case r.entries[id] != nil:
		r.mu.Unlock()
		return domain.Turn{}, domain.ErrSessionExists
	}
	r.mu.Unlock()

	interp, out, err := r.launcher.Launch(ctx, gamePath)
	if err != nil {
		r.hooks.failed(id, err)
		return domain.Turn{}, fmt.Errorf("failed to launch interpreter for %s: %w", gamePath, err)
	}

	now := r.now()
	e := &entry{
		id:           id,
		interp:       interp,
		closed:       make(chan struct{}),
		lastActivity: now,
		lastTS:       now,
	}

	r.mu.Lock()
	if r.closed || r.entries[id] != nil {
		err := domain.ErrSessionExists
		if r.closed {
			err = domain.ErrRegistryClosed
		}
		r.mu.Unlock()
		_ = interp.Terminate()
		return domain.Turn{}, err
	}
	r.entries[id] = e
	r.mu.Unlock()

	r.logger.Info("Session created", "session_id", id, "game", gamePath, "partial", out.Partial)
	r.hooks.created(id)

	return domain.Turn{
		SessionID: id,
		Seq:       0,
		Output:    out.Text,
		Partial:   out.Partial,
		Timestamp: now,
	}, nil
}

// Dispatch runs command as the next turn of session id. Concurrent calls for the same
// session queue in arrival order. ctx bounds only the wait in the queue. A non-nil commit is called with the finished turn
// before the next queued turn may start; a commit error is returned with the turn.
//
// Fatal process errors (see domain.IsFatal) remove the session.
func (r *Registry) Dispatch(ctx context.Context, id, command string, commit CommitFunc) (domain.Turn, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return domain.Turn{}, domain.ErrSessionNotFound
	}
	if r.maxQueue > 0 && e.queued() >= r.maxQueue {
		r.mu.Unlock()
		return domain.Turn{}, domain.ErrSessionBusy
	}
	var wait chan struct{}
	if e.busy {
		wait = make(chan struct{})
		e.waiters = append(e.waiters, wait)
	} else {
		e.busy = true
	}
	r.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-e.closed:
			r.abandon(e, wait)
			return domain.Turn{}, domain.ErrSessionNotFound
		case <-ctx.Done():
			r.abandon(e, wait)
			return domain.Turn{}, ctx.Err()
		}
	}
	defer r.handoff(e)

	// Terminated while this turn was queued.
	select {
	case <-e.closed:
		return domain.Turn{}, domain.ErrSessionNotFound
	default:
	}

	// Once written, a command runs to its prompt or the turn deadline whatever
	// happens to the caller, and its turn is committed.
	turnCtx := context.WithoutCancel(ctx)

	start := r.now()
	out, err := e.interp.Send(turnCtx, command)
	if err != nil {
		if domain.IsFatal(err) && r.detach(e) {
			_ = e.interp.Terminate()
			r.logger.Warn("Session lost its interpreter", "session_id", id, "err", err)
			r.hooks.failed(id, err)
		}
		r.hooks.turned(TurnEvent{SessionID: id, Duration: r.now().Sub(start), Err: err})
		return domain.Turn{}, fmt.Errorf("session %s: %w", id, err)
	}

	e.seq++
	turn := domain.Turn{
		SessionID: id,
		Seq:       e.seq,
		Command:   command,
		Output:    out.Text,
		Partial:   out.Partial,
		Timestamp: e.stamp(r.now()),
	}

	r.mu.Lock()
	e.lastActivity = turn.Timestamp
	r.mu.Unlock()

	event := TurnEvent{SessionID: id, Seq: turn.Seq, Partial: turn.Partial, Duration: r.now().Sub(start)}
	if commit != nil {
		commitCtx, cancel := context.WithTimeout(turnCtx, commitTimeout)
		err := commit(commitCtx, turn)
		cancel()
		if err != nil {
			event.Err = err
			r.hooks.turned(event)
			return turn, fmt.Errorf("failed to commit turn %d: %w", turn.Seq, err)
		}
	}
	r.hooks.turned(event)
	return turn, nil
}

// Terminate removes session id and kills its interpreter. Queued turns fail with domain.ErrSessionNotFound.
func (r *Registry) Terminate(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok || !r.detach(e) {
		return domain.ErrSessionNotFound
	}

	err := e.interp.Terminate()
	r.logger.Info("Session terminated", "session_id", id)
	r.hooks.terminated(id)
	if err != nil {
		return fmt.Errorf("failed to terminate session %s: %w", id, err)
	}
	return nil
}

// SweepIdle evicts sessions idle for longer than maxIdle that have no pending turn.
// It returns the evicted IDs, sorted.
func (r *Registry) SweepIdle(maxIdle time.Duration) []string {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var victims []*entry
	for id, e := range r.entries {
		if e.queued() == 0 && e.lastActivity.Before(cutoff) {
			delete(r.entries, id)
			close(e.closed)
			victims = append(victims, e)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(victims))
	for _, e := range victims {
		if err := e.interp.Terminate(); err != nil {
			r.logger.Warn("Failed to terminate idle session", "session_id", e.id, "err", err)
		}
		r.logger.Info("Session evicted", "session_id", e.id, "idle_for", maxIdle)
		r.hooks.evicted(e.id)
		ids = append(ids, e.id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns the live session IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close terminates every session. Create fails with domain.ErrRegistryClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	victims := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		delete(r.entries, id)
		close(e.closed)
		victims = append(victims, e)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range victims {
		if err := e.interp.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", e.id, err))
		}
		r.hooks.terminated(e.id)
	}
	return errors.Join(errs...)
}

// detach removes e if it is still registered under its ID.
func (r *Registry) detach(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[e.id] != e {
		return false
	}
	delete(r.entries, e.id)
	close(e.closed)
	return true
}

// handoff passes the turn slot of e to the oldest waiter, or frees it.
func (r *Registry) handoff(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(e.waiters) == 0 {
		e.busy = false
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}

// abandon withdraws a waiter. If the slot was already handed to it, the slot moves on.
func (r *Registry) abandon(e *entry, wait chan struct{}) {
	r.mu.Lock()
	for i, w := range e.waiters {
		if w == wait {
			e.waiters = slices.Delete(e.waiters, i, i+1)
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()
	r.handoff(e)
}
