/*
Package domain contains the core models shared by every ifgate component.

It is kept free of I/O: the process supervisor, the registry, the stores and the
transport adapters all speak in these types.

# Key Entities

  - Output: the framed text produced by one turn, flagged Partial when the deadline cut it short.
  - Turn: one command and its response, numbered by Seq within a session.
  - SessionInfo: the durable record of a session, outliving its interpreter process.
  - TranscriptPage: a paginated window over a session's turns.

The sentinel errors in errors.go form the failure taxonomy. Callers compare them with errors.Is.
*/
package domain
