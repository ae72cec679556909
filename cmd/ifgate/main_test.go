package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/ifgate"
	"github.com/aretw0/ifgate/internal/cli"
	"github.com/aretw0/ifgate/internal/config"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ifgate version "+strings.TrimSpace(ifgate.Version)+"\n", out)
}

func TestGamesCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zork1.z3"), []byte("story"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "games.yaml"),
		[]byte("games:\n  - id: zork\n    file: zork1.z3\n    description: The Great Underground Empire\n"), 0o644))
	t.Setenv("GAME_PATH", dir)

	out, err := run(t, "games", "--json")
	require.NoError(t, err)

	var games []ports.Game
	require.NoError(t, json.Unmarshal([]byte(out), &games))
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"zork", "zork1.z3"}, ids)
}

func TestTranscriptCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ifgate.db")
	t.Setenv("IFGATE_STORE", config.StoreSQLite)
	t.Setenv("IFGATE_SQLITE_PATH", dbPath)

	ctx := context.Background()
	store, closeStore, err := cli.OpenStore(ctx, config.Config{Store: config.StoreSQLite, SQLitePath: dbPath})
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, store.CreateSession(ctx, domain.SessionInfo{ID: "s-1", GameID: "zork", CreatedAt: now}))
	require.NoError(t, store.AppendTurn(ctx, domain.Turn{SessionID: "s-1", Seq: 0, Output: "West of House", Timestamp: now}))
	require.NoError(t, store.AppendTurn(ctx, domain.Turn{SessionID: "s-1", Seq: 1, Command: "look", Output: "A field.", Timestamp: now.Add(time.Second)}))
	require.NoError(t, closeStore())

	out, err := run(t, "transcript", "s-1", "--json", "--limit", "1", "--page", "2")
	require.NoError(t, err)

	var resp struct {
		Session    domain.SessionInfo    `json:"session"`
		Transcript domain.TranscriptPage `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "zork", resp.Session.GameID)
	assert.Equal(t, 2, resp.Transcript.TotalPages)
	require.Len(t, resp.Transcript.Turns, 1)
	assert.Equal(t, "look", resp.Transcript.Turns[0].Command)

	_, err = run(t, "transcript", "missing", "--json", "--limit", "20", "--page", "1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLoadConfig_RejectsBadStoreFlag(t *testing.T) {
	_, err := run(t, "games", "--store", "etcd")
	assert.Error(t, err)
}
