// Package sqlite provides a SQLite-backed transcript store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/ifgate/internal/sqlitemigrate"
	"github.com/aretw0/ifgate/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/ifgate/pkg/domain"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists sessions and turns in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Timestamps are stored as Unix nanoseconds so that turns recorded within the
// same millisecond keep distinct, ordered values.
func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// Open opens a SQLite transcript store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts one session row.
func (s *Store) CreateSession(ctx context.Context, info domain.SessionInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(info.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	var endedAt sql.NullInt64
	if info.EndedAt != nil {
		endedAt = sql.NullInt64{Int64: toNanos(*info.EndedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, game_id, created_at, ended_at) VALUES (?, ?, ?, ?)`,
		info.ID, info.GameID, toNanos(info.CreatedAt), endedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session row.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionInfo{}, err
	}

	var (
		info      domain.SessionInfo
		createdAt int64
		endedAt   sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, game_id, created_at, ended_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&info.ID, &info.GameID, &createdAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("get session: %w", err)
	}
	info.CreatedAt = fromNanos(createdAt)
	if endedAt.Valid {
		ended := fromNanos(endedAt.Int64)
		info.EndedAt = &ended
	}
	return info, nil
}

// DeleteSession removes the session and its turns.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// EndSession sets ended_at once.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`, toNanos(at), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AppendTurn inserts one turn row.
func (s *Store) AppendTurn(ctx context.Context, turn domain.Turn) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var found int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, turn.SessionID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, command, response, partial, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.Seq, turn.Command, turn.Output, turn.Partial, toNanos(turn.Timestamp),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTurn
		}
		return fmt.Errorf("append turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Transcript returns one page of turns ordered by seq.
func (s *Store) Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return domain.TranscriptPage{}, err
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID,
	).Scan(&total); err != nil {
		return domain.TranscriptPage{}, fmt.Errorf("count turns: %w", err)
	}

	p, offset := domain.NewTranscriptPage(page, limit, total)
	if offset >= total {
		return p, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, command, response, partial, timestamp
		   FROM turns
		  WHERE session_id = ?
		  ORDER BY seq ASC
		  LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return domain.TranscriptPage{}, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		turn := domain.Turn{SessionID: sessionID}
		var ts int64
		if err := rows.Scan(&turn.Seq, &turn.Command, &turn.Output, &turn.Partial, &ts); err != nil {
			return domain.TranscriptPage{}, fmt.Errorf("scan turn: %w", err)
		}
		turn.Timestamp = fromNanos(ts)
		p.Turns = append(p.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return domain.TranscriptPage{}, fmt.Errorf("iterate turns: %w", err)
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
