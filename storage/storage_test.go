package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbp-autoposter/pkg/autopost"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := NewLocal(dir)
	require.NoError(t, err)
	return New(backend, slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	store, _ := newTestStore(t)
	var v map[string]string
	found, err := store.Get(context.Background(), "nothing-here", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutGetRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc", map[string]int{"a": 1}))

	var got map[string]int
	found, err := store.Get(ctx, "doc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])

	info, err := os.Stat(filepath.Join(dir, "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Delete(ctx, "doc"))
	require.NoError(t, store.Delete(ctx, "doc"), "deleting a missing key is not an error")
}

func TestInvalidKeysRejected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "a/b", ".."} {
		assert.Error(t, store.Put(ctx, key, 1), "key %q", key)
	}
}

func TestDefaultsWhenEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	st, err := store.LoadState(context.Background())
	require.NoError(t, err)

	assert.Empty(t, st.Profiles)
	assert.Equal(t, autopost.DefaultSchedulerConfig(), st.Config)
	assert.NotNil(t, st.LastRun)
	assert.NotNil(t, st.Cycle)
	assert.Empty(t, st.History)
}

func TestSaveStateRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := &autopost.State{
		Profiles: []autopost.Profile{{LocationID: "loc-9", City: "Calgary"}},
		LastRun:  autopost.LastRunMap{"loc-9": {Date: "2025-03-01", Times: map[string]bool{"10:00": true}}},
		Cycle:    autopost.CycleState{"loc-9": {Idx: 3, LastURL: "https://posts/1"}},
		History:  []autopost.HistoryEntry{{ID: "h1", ProfileID: "loc-9", Status: autopost.StatusPosted}},
	}
	require.NoError(t, store.SaveState(ctx, st))

	got, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.Profiles, 1)
	assert.Equal(t, "loc-9", got.Profiles[0].ProfileID)
	assert.True(t, got.LastRun["loc-9"].Times["10:00"])
	assert.Equal(t, 3, got.Cycle["loc-9"].Idx)
	assert.Equal(t, "h1", got.History[0].ID)
}

func TestSchedulerConfigNormalizesStoredGarbage(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, KeySchedulerConfig, map[string]any{
		"enabled":        true,
		"defaultTime":    "later",
		"defaultCadence": "SOMETIMES",
	}))

	cfg, err := store.SchedulerConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, autopost.DefaultPostTime, cfg.DefaultTime)
	assert.Equal(t, autopost.CadenceDaily1, cfg.DefaultCadence)
	assert.NotNil(t, cfg.PerProfileTimes)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(io.EOF))
}
