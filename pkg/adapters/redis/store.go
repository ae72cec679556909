package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.TranscriptStore using Redis.
//
// Layout per session (prefix defaults to "ifgate:"):
//
//	<prefix>session:<id>  HASH  id, game_id, created_at, ended_at
//	<prefix>turns:<id>    LIST  JSON turns in append order
//	<prefix>seqs:<id>     SET   recorded sequence numbers
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for session records and transcripts.
// The TTL is refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromURL creates a store from a redis:// or rediss:// URL and checks the connection.
func NewFromURL(ctx context.Context, rawURL string, opts ...Option) (*Store, error) {
	options, err := backend.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := backend.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewFromClient(client, opts...), nil
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "ifgate:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *Store) turnsKey(id string) string   { return s.prefix + "turns:" + id }
func (s *Store) seqsKey(id string) string    { return s.prefix + "seqs:" + id }

var createScript = backend.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end
	redis.call("HSET", KEYS[1], "id", ARGV[1], "game_id", ARGV[2], "created_at", ARGV[3])
	if tonumber(ARGV[4]) > 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[4])
	end
	return 1
`)

var appendScript = backend.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return -1
	end
	if redis.call("SADD", KEYS[2], ARGV[1]) == 0 then
		return -2
	end
	redis.call("RPUSH", KEYS[3], ARGV[2])
	if tonumber(ARGV[3]) > 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[3])
		redis.call("PEXPIRE", KEYS[2], ARGV[3])
		redis.call("PEXPIRE", KEYS[3], ARGV[3])
	end
	return 1
`)

var endScript = backend.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	redis.call("HSETNX", KEYS[1], "ended_at", ARGV[1])
	return 1
`)

// CreateSession records a new session.
func (s *Store) CreateSession(ctx context.Context, info domain.SessionInfo) error {
	created, err := createScript.Run(ctx, s.client,
		[]string{s.sessionKey(info.ID)},
		info.ID, info.GameID, formatTime(info.CreatedAt), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	if created == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

// GetSession retrieves the session record.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	}

	info := domain.SessionInfo{
		ID:     fields["id"],
		GameID: fields["game_id"],
	}
	if info.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return domain.SessionInfo{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if raw, ok := fields["ended_at"]; ok {
		ended, err := parseTime(raw)
		if err != nil {
			return domain.SessionInfo{}, fmt.Errorf("failed to parse ended_at: %w", err)
		}
		info.EndedAt = &ended
	}
	return info, nil
}

// DeleteSession removes the session and its turns.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.client.Del(ctx, s.sessionKey(sessionID), s.turnsKey(sessionID), s.seqsKey(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// EndSession marks the session terminated.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	found, err := endScript.Run(ctx, s.client, []string{s.sessionKey(sessionID)}, formatTime(at)).Int()
	if err != nil {
		return fmt.Errorf("failed to end session in redis: %w", err)
	}
	if found == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AppendTurn appends the turn to the session's list.
// The registry appends in Seq order, so list order is Seq order.
func (s *Store) AppendTurn(ctx context.Context, turn domain.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	res, err := appendScript.Run(ctx, s.client,
		[]string{s.sessionKey(turn.SessionID), s.seqsKey(turn.SessionID), s.turnsKey(turn.SessionID)},
		turn.Seq, data, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to append turn to redis: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrSessionNotFound
	case -2:
		return domain.ErrDuplicateTurn
	}
	return nil
}

// Transcript returns one page of turns.
func (s *Store) Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error) {
	pipe := s.client.Pipeline()
	exists := pipe.Exists(ctx, s.sessionKey(sessionID))
	length := pipe.LLen(ctx, s.turnsKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return domain.TranscriptPage{}, fmt.Errorf("failed to read transcript from redis: %w", err)
	}
	if exists.Val() == 0 {
		return domain.TranscriptPage{}, domain.ErrSessionNotFound
	}

	p, offset := domain.NewTranscriptPage(page, limit, int(length.Val()))
	if offset >= p.TotalTurns {
		return p, nil
	}

	raw, err := s.client.LRange(ctx, s.turnsKey(sessionID), int64(offset), int64(domain.PageEnd(offset, limit, p.TotalTurns)-1)).Result()
	if err != nil {
		return domain.TranscriptPage{}, fmt.Errorf("failed to read transcript from redis: %w", err)
	}
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return domain.TranscriptPage{}, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		p.Turns = append(p.Turns, turn)
	}
	return p, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
