package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/aretw0/ifgate/pkg/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	// MaxLimit is the largest transcript page served.
	MaxLimit = 500
)

const tracerName = "github.com/aretw0/ifgate/pkg/orchestrator"

// Sessions is the part of session.Registry the orchestrator drives.
type Sessions interface {
	Create(ctx context.Context, id, gamePath string) (domain.Turn, error)
	Dispatch(ctx context.Context, id, command string, commit session.CommitFunc) (domain.Turn, error)
	Terminate(id string) error
	Len() int
	Close() error
}

// CreateResult is returned by CreateSession.
type CreateResult struct {
	SessionID string `json:"sessionId"`
	Output    string `json:"output"`
	Partial   bool   `json:"partial,omitempty"`
}

// CommandResult is returned by SendCommand.
type CommandResult struct {
	Output  string `json:"output"`
	Partial bool   `json:"partial"`
	Seq     int    `json:"seq"`
}

// Service composes the game catalog, the live session registry and the transcript store
// into the operations exposed by the API surfaces.
type Service struct {
	sessions Sessions
	store    ports.TranscriptStore
	catalog  ports.GameCatalog

	newID          func() (string, error)
	now            func() time.Time
	tracer         trace.Tracer
	maxCommandSize int
	logger         *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator replaces the UUIDv7 session id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithTracer replaces the tracer taken from the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithMaxCommandSize sets the largest accepted command, in bytes.
func WithMaxCommandSize(n int) Option {
	return func(s *Service) {
		s.maxCommandSize = n
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(sessions Sessions, store ports.TranscriptStore, catalog ports.GameCatalog, opts ...Option) *Service {
	s := &Service{
		sessions:       sessions,
		store:          store,
		catalog:        catalog,
		newID:          newUUIDv7,
		now:            time.Now,
		tracer:         otel.Tracer(tracerName),
		maxCommandSize: DefaultMaxCommandSize,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateSession starts gameID under a new session and records its startup output as turn 0.
func (s *Service) CreateSession(ctx context.Context, gameID string) (res CreateResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ifgate.CreateSession", trace.WithAttributes(attribute.String("ifgate.game", gameID)))
	defer func() { endSpan(span, err) }()

	game, err := s.catalog.Resolve(gameID)
	if err != nil {
		return CreateResult{}, err
	}

	id, err := s.newID()
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to generate session id: %w", err)
	}
	span.SetAttributes(attribute.String("ifgate.session_id", id))

	info := domain.SessionInfo{ID: id, GameID: game.ID, CreatedAt: s.now().UTC()}
	if err := s.store.CreateSession(ctx, info); err != nil {
		return CreateResult{}, fmt.Errorf("failed to record session: %w", err)
	}

	startup, err := s.sessions.Create(ctx, id, game.Path)
	if err != nil {
		s.discard(id)
		return CreateResult{}, err
	}

	if err := s.store.AppendTurn(ctx, startup); err != nil {
		_ = s.sessions.Terminate(id)
		s.discard(id)
		return CreateResult{}, fmt.Errorf("failed to record startup turn: %w", err)
	}

	s.logger.Info("Session started", "session_id", id, "game", game.ID)
	return CreateResult{SessionID: id, Output: startup.Output, Partial: startup.Partial}, nil
}

// discard removes a session row whose process never became usable.
func (s *Service) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("Failed to delete abandoned session", "session_id", id, "err", err)
	}
}

// SendCommand runs command on the live session and records the turn.
func (s *Service) SendCommand(ctx context.Context, sessionID, command string) (res CommandResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ifgate.SendCommand", trace.WithAttributes(attribute.String("ifgate.session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	clean, err := SanitizeCommand(command, s.maxCommandSize)
	if err != nil {
		return CommandResult{}, err
	}

	turn, err := s.sessions.Dispatch(ctx, sessionID, clean, s.store.AppendTurn)
	if err != nil {
		return CommandResult{}, err
	}

	span.SetAttributes(attribute.Int("ifgate.seq", turn.Seq), attribute.Bool("ifgate.partial", turn.Partial))
	return CommandResult{Output: turn.Output, Partial: turn.Partial, Seq: turn.Seq}, nil
}

// Transcript returns one page of a session's turns. Zero page or limit take the defaults.
// Transcripts stay readable after the session ended.
func (s *Service) Transcript(ctx context.Context, sessionID string, page, limit int) (p domain.TranscriptPage, err error) {
	ctx, span := s.tracer.Start(ctx, "ifgate.Transcript", trace.WithAttributes(attribute.String("ifgate.session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 || limit < 1 {
		return domain.TranscriptPage{}, fmt.Errorf("%w: page and limit must be at least 1", domain.ErrInvalidArgument)
	}
	if limit > MaxLimit {
		return domain.TranscriptPage{}, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidArgument, MaxLimit)
	}

	return s.store.Transcript(ctx, sessionID, page, limit)
}

// Session returns the stored record of a session.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	return s.store.GetSession(ctx, sessionID)
}

// TerminateSession kills the session's process, if it is still running, and marks the session ended.
// Terminating an already ended session is not an error.
func (s *Service) TerminateSession(ctx context.Context, sessionID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "ifgate.TerminateSession", trace.WithAttributes(attribute.String("ifgate.session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	if err := s.sessions.Terminate(sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}

	if err := s.store.EndSession(ctx, sessionID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark session ended: %w", err)
	}
	return nil
}

// Games lists the playable games.
func (s *Service) Games() ([]ports.Game, error) {
	return s.catalog.List()
}

// ActiveSessions returns the number of live interpreter processes.
func (s *Service) ActiveSessions() int {
	return s.sessions.Len()
}

// Close terminates every live session.
func (s *Service) Close() error {
	return s.sessions.Close()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LifecycleHooks marks sessions ended in store whenever the registry loses their process:
// idle eviction, a fatal interpreter error, or shutdown.
func LifecycleHooks(store ports.TranscriptStore, logger *slog.Logger) session.Hooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	end := func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := store.EndSession(ctx, id, time.Now().UTC())
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warn("Failed to mark session ended", "session_id", id, "err", err)
		}
	}
	return session.Hooks{
		OnEvict:     end,
		OnTerminate: end,
		OnFailure:   func(id string, _ error) { end(id) },
	}
}
