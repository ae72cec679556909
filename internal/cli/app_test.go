package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ifgate/internal/config"
	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/internal/testutils"
	"github.com/aretw0/ifgate/pkg/adapters/process"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"standard.z5", "crash.z5"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("story"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "games.yaml"),
		[]byte("games:\n  - id: zork\n    file: standard.z5\n    description: Fixture\n"), 0o644))

	command, _ := testutils.FakeInterpreterCommand()
	return config.Config{
		GamePath:       dir,
		Interpreter:    command,
		PagerMarker:    "***MORE***",
		PromptMarker:   ">",
		TurnTimeout:    time.Second,
		IdleTimeout:    time.Minute,
		SweepInterval:  time.Minute,
		MaxCommandSize: 4096,
		Store:          config.StoreMemory,
		LogLevel:       "info",
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	_, env := testutils.FakeInterpreterCommand()
	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithLauncherOptions(process.WithEnv(env...)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_ServesConfiguredGames(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	games, err := app.Service.Games()
	require.NoError(t, err)
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	assert.Contains(t, ids, "zork")

	res, err := app.Service.CreateSession(ctx, "zork")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "West of House")
	assert.Equal(t, 1, app.Registry.Len())

	turn, err := app.Service.SendCommand(ctx, res.SessionID, "inventory")
	require.NoError(t, err)
	assert.Contains(t, turn.Output, "empty-handed")
}

func TestApp_CloseEndsSessions(t *testing.T) {
	cfg := testConfig(t)
	_, env := testutils.FakeInterpreterCommand()
	app, err := NewApp(context.Background(), cfg, logging.NewNop(), WithLauncherOptions(process.WithEnv(env...)))
	require.NoError(t, err)

	res, err := app.Service.CreateSession(context.Background(), "zork")
	require.NoError(t, err)

	require.NoError(t, app.Close())
	assert.Zero(t, app.Registry.Len())

	info, err := app.Store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, info.Ended())
}

func TestNewApp_BadCatalog(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.CatalogPath(), []byte("games: [unclosed"), 0o644))

	_, err := NewApp(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Config{Store: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "ifgate.db")}
		store, closeFn, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		defer closeFn()
		require.NoError(t, store.CreateSession(ctx, domain.SessionInfo{ID: "s1", GameID: "zork", CreatedAt: time.Now()}))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Config{Store: config.StoreRedis, RedisURL: "redis://" + mr.Addr()}
		store, closeFn, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		defer closeFn()
		require.NoError(t, store.CreateSession(ctx, domain.SessionInfo{ID: "s1", GameID: "zork", CreatedAt: time.Now()}))
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := OpenStore(ctx, config.Config{Store: "etcd"})
		assert.Error(t, err)
	})
}

func TestPlay_EndToEnd(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	in := strings.NewReader("look\n/transcript\nquit\n")
	var out bytes.Buffer
	err := Play(context.Background(), app.Service, PlayOptions{Game: "zork", In: in, Out: &out})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "FAKE ADVENTURE")
	assert.Contains(t, text, "## Turn 1: `look`")
	assert.Contains(t, text, "Goodbye.")
	assert.Contains(t, text, "[game ended]")
	assert.Zero(t, app.Registry.Len())
}

func TestPlay_QuitMetaCommandTerminates(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var out bytes.Buffer
	err := Play(context.Background(), app.Service, PlayOptions{Game: "zork", In: strings.NewReader("inventory\n/quit\nlook\n"), Out: &out})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "empty-handed")
	assert.Zero(t, app.Registry.Len())
}

func TestPlay_EOFTerminates(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	err := Play(context.Background(), app.Service, PlayOptions{Game: "zork", In: strings.NewReader(""), Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Zero(t, app.Registry.Len())
}

func TestPlay_UnknownGame(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	err := Play(context.Background(), app.Service, PlayOptions{Game: "nope", In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestPlay_CancelledContext(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Play(ctx, app.Service, PlayOptions{Game: "zork", In: r, Out: &bytes.Buffer{}})
	}()

	require.Eventually(t, func() bool { return app.Registry.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	assert.Zero(t, app.Registry.Len())
}

func TestOpenStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ifgate.db")
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))

	cfg := config.Config{Store: config.StoreSQLite, SQLitePath: dbPath, TranscriptKey: key}
	store, closeFn, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, domain.SessionInfo{ID: "s1", GameID: "zork", CreatedAt: time.Now()}))
	require.NoError(t, store.AppendTurn(ctx, domain.Turn{SessionID: "s1", Seq: 0, Output: "West of House", Timestamp: time.Now()}))
	require.NoError(t, closeFn())

	// Reopened without the key, the row is ciphertext.
	plain, closePlain, err := OpenStore(ctx, config.Config{Store: config.StoreSQLite, SQLitePath: dbPath})
	require.NoError(t, err)
	p, err := plain.Transcript(ctx, "s1", 1, 10)
	require.NoError(t, err)
	assert.NotContains(t, p.Turns[0].Output, "West of House")
	require.NoError(t, closePlain())

	store, closeFn, err = OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()
	p, err = store.Transcript(ctx, "s1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "West of House", p.Turns[0].Output)
}
