package domain

import "errors"

// ErrSessionNotFound is returned when a session ID is unknown to the registry or the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when a session ID is registered twice.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionBusy is returned when a session's turn queue is full.
var ErrSessionBusy = errors.New("session busy")

// ErrRegistryClosed is returned when sessions are created after shutdown began.
var ErrRegistryClosed = errors.New("session registry closed")

// Process-level failures. All of them are fatal to the session that hit them.
var (
	ErrSpawn             = errors.New("interpreter could not be started")
	ErrProcessExited     = errors.New("interpreter process exited")
	ErrNoSuchProcess     = errors.New("interpreter process already terminated")
	ErrStdinUnavailable  = errors.New("interpreter stdin unavailable")
	ErrStdoutUnavailable = errors.New("interpreter stdout unavailable")
)

// ErrGameNotFound is returned when a game ID cannot be resolved to a story file.
var ErrGameNotFound = errors.New("game not found")

// ErrInvalidArgument is returned for malformed caller input (bad page, oversized command...).
var ErrInvalidArgument = errors.New("invalid argument")

// ErrDuplicateTurn is returned by stores when a turn sequence number is appended twice.
var ErrDuplicateTurn = errors.New("turn already recorded")

// IsFatal reports whether err leaves the interpreter unusable, so the session must be torn down.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProcessExited) ||
		errors.Is(err, ErrNoSuchProcess) ||
		errors.Is(err, ErrStdinUnavailable) ||
		errors.Is(err, ErrStdoutUnavailable)
}
