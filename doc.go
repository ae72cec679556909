/*
Package ifgate runs interactive fiction interpreters as network services.

Each session owns one interpreter process (dfrotz by default) driven over its
standard streams. Raw terminal output is framed into turns: pager prompts are
answered, the echoed command and the input prompt are stripped, and a turn that
never reaches a prompt is returned as partial once its deadline expires. Turns of
one session run strictly one at a time, in arrival order, and every turn is
appended to a transcript store.

# Layout

  - pkg/framer turns interpreter output into turn text.
  - pkg/adapters/process spawns interpreters and resolves the game catalog.
  - pkg/session is the registry of live sessions and their turn queues.
  - pkg/orchestrator composes catalog, registry and transcript store.
  - pkg/adapters/http and pkg/adapters/mcp expose the orchestrator.
  - pkg/adapters/memory, sqlite and redis implement ports.TranscriptStore.

# Usage

	ifgate serve            # HTTP API on $PORT (3000)
	ifgate mcp              # MCP tools over stdio
	ifgate play zork        # play in the terminal
	ifgate transcript <id>  # print a stored transcript

Settings are read from the environment; see internal/config.
*/
package ifgate
