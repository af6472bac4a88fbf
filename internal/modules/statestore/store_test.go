package statestore

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimww/papertrader/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestActivateAndQuery(t *testing.T) {
	store := New(newTestDB(t), zerolog.Nop())
	require.NoError(t, store.Load())

	require.NoError(t, store.Activate("rsi", "SBER"))
	require.NoError(t, store.Activate("rsi", "GAZP"))

	assert.True(t, store.IsActive("rsi", "SBER"))
	assert.False(t, store.IsActive("rsi", "YNDX"))
	assert.False(t, store.IsActive("macd", "SBER"))
	assert.ElementsMatch(t, []string{"SBER", "GAZP"}, store.ActiveInstruments("rsi"))
}

func TestActivationSurvivesRestart(t *testing.T) {
	db := newTestDB(t)

	store := New(db, zerolog.Nop())
	require.NoError(t, store.Load())
	require.NoError(t, store.Activate("rsi", "SBER"))
	require.NoError(t, store.Activate("macd", "GAZP"))

	// A fresh store over the same database sees the persisted state
	restarted := New(db, zerolog.Nop())
	require.NoError(t, restarted.Load())

	snapshot := restarted.Snapshot()
	require.Len(t, snapshot, 2)
	require.Len(t, snapshot["rsi"], 1)
	assert.Equal(t, "SBER", snapshot["rsi"][0].Instrument)
	assert.True(t, restarted.IsActive("macd", "GAZP"))
}

func TestDeactivate(t *testing.T) {
	db := newTestDB(t)
	store := New(db, zerolog.Nop())
	require.NoError(t, store.Load())

	require.NoError(t, store.Activate("rsi", "SBER"))
	require.NoError(t, store.Deactivate("rsi", "SBER"))
	assert.False(t, store.IsActive("rsi", "SBER"))

	// Deactivating again is a no-op
	require.NoError(t, store.Deactivate("rsi", "SBER"))

	restarted := New(db, zerolog.Nop())
	require.NoError(t, restarted.Load())
	assert.Empty(t, restarted.ActiveInstruments("rsi"))
}

func TestDeactivateAll(t *testing.T) {
	store := New(newTestDB(t), zerolog.Nop())
	require.NoError(t, store.Load())

	require.NoError(t, store.Activate("rsi", "SBER"))
	require.NoError(t, store.Activate("rsi", "GAZP"))
	require.NoError(t, store.Activate("macd", "SBER"))

	require.NoError(t, store.DeactivateAll("rsi"))

	assert.Empty(t, store.ActiveInstruments("rsi"))
	assert.True(t, store.IsActive("macd", "SBER"))
}

func TestActivateIsIdempotent(t *testing.T) {
	store := New(newTestDB(t), zerolog.Nop())
	require.NoError(t, store.Load())

	require.NoError(t, store.Activate("rsi", "SBER"))
	require.NoError(t, store.Activate("rsi", "SBER"))

	assert.Len(t, store.ActiveInstruments("rsi"), 1)
}
