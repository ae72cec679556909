/*
Package ports defines the driven ports (interfaces) of ifgate.

These interfaces decouple the session core from its collaborators, so the registry
can be exercised with fake interpreters and the orchestrator with any transcript backend.

# Key Interfaces

  - Interpreter: a live, line-oriented child process answering one command per turn.
  - Launcher: starts an Interpreter for a story file and captures its startup banner.
  - GameCatalog: resolves a game ID to the story file an interpreter should load.
  - TranscriptStore: append-only, ordered persistence of turns per session.
*/
package ports
