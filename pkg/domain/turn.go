package domain

import "time"

// Output is the framed response of the interpreter to one command.
type Output struct {
	Text string `json:"text"`
	// Partial is set when the turn ended on the deadline instead of a prompt.
	Partial bool `json:"partial,omitempty"`
}

// Turn is one command paired with the interpreter's response.
// Seq 0 is the implicit startup turn, whose Command is empty.
type Turn struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Partial   bool      `json:"partial,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionInfo is the durable record of a session, independent of its process.
type SessionInfo struct {
	ID        string     `json:"id"`
	GameID    string     `json:"game_id"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the session was terminated.
func (s SessionInfo) Ended() bool {
	return s.EndedAt != nil
}

// TranscriptPage is a window over a session's turns, ordered by Seq ascending.
type TranscriptPage struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
	TotalTurns int    `json:"total_turns"`
	Turns      []Turn `json:"turns"`
}

// NewTranscriptPage computes the page bounds for total turns.
// It returns the offset of the first turn on the page; a page past the end yields total.
// page and limit must be at least 1.
func NewTranscriptPage(page, limit, total int) (TranscriptPage, int) {
	p := TranscriptPage{
		Page:       page,
		Limit:      limit,
		TotalTurns: total,
		Turns:      []Turn{},
	}
	if limit < 1 || page < 1 {
		return p, total
	}
	full := total / limit
	p.TotalPages = full
	if total%limit != 0 {
		p.TotalPages++
	}
	if page-1 > full {
		return p, total
	}
	return p, (page - 1) * limit
}

// PageEnd returns the end of the window starting at offset, clamped to total.
func PageEnd(offset, limit, total int) int {
	return offset + min(limit, total-offset)
}
