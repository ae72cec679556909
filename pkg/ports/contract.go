package ports

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTranscriptStoreContract runs a suite of tests to verify that a TranscriptStore implementation
// adheres to the defined interface contract.
func RunTranscriptStoreContract(t *testing.T, store TranscriptStore) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	newTurn := func(id string, seq int) domain.Turn {
		return domain.Turn{
			SessionID: id,
			Seq:       seq,
			Command:   fmt.Sprintf("cmd-%d", seq),
			Output:    fmt.Sprintf("out-%d", seq),
			Timestamp: base.Add(time.Duration(seq) * time.Millisecond),
		}
	}

	t.Run("Create and Get", func(t *testing.T) {
		err := store.CreateSession(ctx, domain.SessionInfo{ID: sessionID, GameID: "zork1.z3", CreatedAt: base})
		require.NoError(t, err, "CreateSession should not return error")

		info, err := store.GetSession(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, info.ID)
		assert.Equal(t, "zork1.z3", info.GameID)
		assert.True(t, base.Equal(info.CreatedAt), "CreatedAt should round-trip")
		assert.False(t, info.Ended())
	})

	t.Run("Create Duplicate", func(t *testing.T) {
		err := store.CreateSession(ctx, domain.SessionInfo{ID: sessionID, GameID: "other", CreatedAt: base})
		assert.ErrorIs(t, err, domain.ErrSessionExists)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetSession(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Append and Page", func(t *testing.T) {
		for seq := 0; seq < 5; seq++ {
			require.NoError(t, store.AppendTurn(ctx, newTurn(sessionID, seq)))
		}

		page, err := store.Transcript(ctx, sessionID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 5, page.TotalTurns)
		require.Len(t, page.Turns, 2)
		assert.Equal(t, 0, page.Turns[0].Seq)
		assert.Equal(t, "out-1", page.Turns[1].Output)

		last, err := store.Transcript(ctx, sessionID, 3, 2)
		require.NoError(t, err)
		require.Len(t, last.Turns, 1)
		assert.Equal(t, 4, last.Turns[0].Seq)
		assert.Equal(t, "cmd-4", last.Turns[0].Command)
		assert.True(t, newTurn(sessionID, 4).Timestamp.Equal(last.Turns[0].Timestamp))

		beyond, err := store.Transcript(ctx, sessionID, 9, 2)
		require.NoError(t, err)
		assert.Empty(t, beyond.Turns)
		assert.Equal(t, 3, beyond.TotalPages)
	})

	t.Run("Huge Page Bounds", func(t *testing.T) {
		all, err := store.Transcript(ctx, sessionID, 1, math.MaxInt)
		require.NoError(t, err)
		assert.Equal(t, 1, all.TotalPages)
		assert.Len(t, all.Turns, 5)

		beyond, err := store.Transcript(ctx, sessionID, 3, 1<<62)
		require.NoError(t, err)
		assert.Empty(t, beyond.Turns)

		far, err := store.Transcript(ctx, sessionID, math.MaxInt, 20)
		require.NoError(t, err)
		assert.Empty(t, far.Turns)
	})

	t.Run("Order Is Ascending", func(t *testing.T) {
		page, err := store.Transcript(ctx, sessionID, 1, 100)
		require.NoError(t, err)
		for i := 1; i < len(page.Turns); i++ {
			assert.Less(t, page.Turns[i-1].Seq, page.Turns[i].Seq)
			assert.True(t, page.Turns[i-1].Timestamp.Before(page.Turns[i].Timestamp))
		}
	})

	t.Run("Partial Flag", func(t *testing.T) {
		turn := newTurn(sessionID, 5)
		turn.Partial = true
		require.NoError(t, store.AppendTurn(ctx, turn))

		page, err := store.Transcript(ctx, sessionID, 6, 1)
		require.NoError(t, err)
		require.Len(t, page.Turns, 1)
		assert.True(t, page.Turns[0].Partial)
	})

	t.Run("Append Duplicate Seq", func(t *testing.T) {
		err := store.AppendTurn(ctx, newTurn(sessionID, 2))
		assert.ErrorIs(t, err, domain.ErrDuplicateTurn)
	})

	t.Run("Append Unknown Session", func(t *testing.T) {
		err := store.AppendTurn(ctx, newTurn("non-existent-"+sessionID, 0))
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Transcript Unknown Session", func(t *testing.T) {
		_, err := store.Transcript(ctx, "non-existent-"+sessionID, 1, 20)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("End", func(t *testing.T) {
		first := base.Add(time.Hour)
		require.NoError(t, store.EndSession(ctx, sessionID, first))
		require.NoError(t, store.EndSession(ctx, sessionID, first.Add(time.Hour)))

		info, err := store.GetSession(ctx, sessionID)
		require.NoError(t, err)
		require.True(t, info.Ended())
		assert.True(t, first.Equal(*info.EndedAt), "second EndSession must not move the end time")

		assert.ErrorIs(t, store.EndSession(ctx, "non-existent-"+sessionID, first), domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.DeleteSession(ctx, sessionID)
		require.NoError(t, err, "DeleteSession should not return error")

		_, err = store.GetSession(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "GetSession after Delete should return ErrSessionNotFound")

		_, err = store.Transcript(ctx, sessionID, 1, 20)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.DeleteSession(ctx, sessionID))
	})
}
