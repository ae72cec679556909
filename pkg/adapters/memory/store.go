package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
)

type record struct {
	info  domain.SessionInfo
	turns []domain.Turn
	seqs  map[int]struct{}
}

// Store implements ports.TranscriptStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*record
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*record),
	}
}

// CreateSession records a new session.
func (s *Store) CreateSession(ctx context.Context, info domain.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[info.ID]; ok {
		return domain.ErrSessionExists
	}
	info.EndedAt = copyTime(info.EndedAt)
	s.data[info.ID] = &record{
		info: info,
		seqs: make(map[int]struct{}),
	}
	return nil
}

// GetSession returns a copy of the session record.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[sessionID]
	if !ok {
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	}
	info := rec.info
	info.EndedAt = copyTime(info.EndedAt)
	return info, nil
}

// DeleteSession removes the session and its turns.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// EndSession marks the session terminated.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if rec.info.EndedAt == nil {
		rec.info.EndedAt = &at
	}
	return nil
}

// AppendTurn appends a turn, keeping the log ordered by Seq.
func (s *Store) AppendTurn(ctx context.Context, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[turn.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if _, dup := rec.seqs[turn.Seq]; dup {
		return domain.ErrDuplicateTurn
	}
	rec.seqs[turn.Seq] = struct{}{}

	// Turns arrive in order from the registry; insert in place otherwise.
	i := len(rec.turns)
	for i > 0 && rec.turns[i-1].Seq > turn.Seq {
		i--
	}
	rec.turns = append(rec.turns, domain.Turn{})
	copy(rec.turns[i+1:], rec.turns[i:])
	rec.turns[i] = turn
	return nil
}

// Transcript returns one page of turns.
func (s *Store) Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[sessionID]
	if !ok {
		return domain.TranscriptPage{}, domain.ErrSessionNotFound
	}

	p, offset := domain.NewTranscriptPage(page, limit, len(rec.turns))
	if offset >= len(rec.turns) {
		return p, nil
	}
	end := domain.PageEnd(offset, limit, len(rec.turns))
	p.Turns = append(p.Turns, rec.turns[offset:end]...)
	return p, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
