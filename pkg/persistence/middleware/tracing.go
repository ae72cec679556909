package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingMiddleware struct {
	next    ports.TranscriptStore
	tracer  trace.Tracer
	backend string
}

// NewTracingMiddleware creates a middleware that records one client span per store call.
// backend names the store in the db.system attribute.
func NewTracingMiddleware(tracer trace.Tracer, backend string) Middleware {
	return func(next ports.TranscriptStore) ports.TranscriptStore {
		return &tracingMiddleware{next: next, tracer: tracer, backend: backend}
	}
}

func (m *tracingMiddleware) start(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", m.backend),
			attribute.String("db.operation", op),
			attribute.String("ifgate.session_id", sessionID),
		),
	)
}

// finish ends span. Not-found lookups are expected and do not mark the span failed.
func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (m *tracingMiddleware) CreateSession(ctx context.Context, info domain.SessionInfo) (err error) {
	ctx, span := m.start(ctx, "CreateSession", info.ID)
	defer func() { finish(span, err) }()
	return m.next.CreateSession(ctx, info)
}

func (m *tracingMiddleware) GetSession(ctx context.Context, sessionID string) (_ domain.SessionInfo, err error) {
	ctx, span := m.start(ctx, "GetSession", sessionID)
	defer func() { finish(span, err) }()
	return m.next.GetSession(ctx, sessionID)
}

func (m *tracingMiddleware) DeleteSession(ctx context.Context, sessionID string) (err error) {
	ctx, span := m.start(ctx, "DeleteSession", sessionID)
	defer func() { finish(span, err) }()
	return m.next.DeleteSession(ctx, sessionID)
}

func (m *tracingMiddleware) EndSession(ctx context.Context, sessionID string, at time.Time) (err error) {
	ctx, span := m.start(ctx, "EndSession", sessionID)
	defer func() { finish(span, err) }()
	return m.next.EndSession(ctx, sessionID, at)
}

func (m *tracingMiddleware) AppendTurn(ctx context.Context, turn domain.Turn) (err error) {
	ctx, span := m.start(ctx, "AppendTurn", turn.SessionID)
	span.SetAttributes(attribute.Int("ifgate.seq", turn.Seq))
	defer func() { finish(span, err) }()
	return m.next.AppendTurn(ctx, turn)
}

func (m *tracingMiddleware) Transcript(ctx context.Context, sessionID string, page, limit int) (_ domain.TranscriptPage, err error) {
	ctx, span := m.start(ctx, "Transcript", sessionID)
	span.SetAttributes(attribute.Int("ifgate.page", page), attribute.Int("ifgate.limit", limit))
	defer func() { finish(span, err) }()
	return m.next.Transcript(ctx, sessionID, page, limit)
}
