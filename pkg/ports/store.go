package ports

import (
	"context"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
)

// TranscriptStore persists sessions and their turns.
// Each session owns one append-only log ordered by turn Seq; past turns are never rewritten.
type TranscriptStore interface {
	// CreateSession records a new session. Returns domain.ErrSessionExists on a duplicate ID.
	CreateSession(ctx context.Context, info domain.SessionInfo) error

	// GetSession returns the session record or domain.ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (domain.SessionInfo, error)

	// DeleteSession removes the session and its turns. Used to roll back a failed creation.
	DeleteSession(ctx context.Context, sessionID string) error

	// EndSession marks the session terminated at the given time. Ending twice keeps the first time.
	EndSession(ctx context.Context, sessionID string, at time.Time) error

	// AppendTurn appends one turn to the session's log.
	// Returns domain.ErrSessionNotFound for unknown sessions and domain.ErrDuplicateTurn when Seq was already recorded.
	AppendTurn(ctx context.Context, turn domain.Turn) error

	// Transcript returns one page (1-based) of turns ordered by Seq ascending.
	Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error)
}
