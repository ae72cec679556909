/*
Package framer turns an interpreter's terminal byte stream into discrete turns.

Terminal interpreters interleave pagination breaks and input prompts in one
character stream with no structured delimiter. The Framer watches two sentinels:

  - the pager marker ("***MORE***"): stripped, and the caller writes a newline to advance;
  - the prompt marker (">") at the end of the buffer: the turn is complete.

The deadline is owned by the caller, which calls Expire when it elapses. A
timed-out turn is not an error; it yields whatever text accumulated.
*/
package framer
