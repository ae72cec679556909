// Package orchestrator implements the session use cases behind the HTTP and MCP surfaces:
// create a session for a game, send it commands, read its transcript and terminate it.
//
// The Service owns no processes itself. Live interpreters belong to a session.Registry and
// transcripts to a ports.TranscriptStore; the Service keeps the two consistent.
package orchestrator
