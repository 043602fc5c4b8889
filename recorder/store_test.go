package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"framestack/frames"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveFrameRequiresRun(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveFrame(context.Background(), 1, 0, frames.MustNew(1, 2, []float64{1, 2}))
	require.True(t, errors.Is(err, ErrNoRun))
}

func TestFrameRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.BeginRun(ctx, "smoke")
	require.NoError(t, err)

	want := []*frames.Frame{
		frames.MustNew(1, 3, []float64{0.5, -1, 2}),
		frames.MustNew(1, 3, []float64{3, 4.25, 5}),
	}
	for i, f := range want {
		require.NoError(t, store.SaveFrame(ctx, 7, i, f))
	}

	got, err := store.Frames(ctx, runID, 7)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		require.True(t, got[i].Equal(want[i]), "frame %d mismatch", i)
	}

	episodes, err := store.Episodes(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, []int{7}, episodes)
}

func TestSaveFrameOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.BeginRun(ctx, "")
	require.NoError(t, err)

	require.NoError(t, store.SaveFrame(ctx, 1, 0, frames.MustNew(1, 1, []float64{1})))
	require.NoError(t, store.SaveFrame(ctx, 1, 0, frames.MustNew(1, 1, []float64{2})))

	got, err := store.Frames(ctx, runID, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2.0, got[0].At(0, 0))
}

func TestRunsListing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.BeginRun(ctx, "first")
	require.NoError(t, err)
	require.NoError(t, store.SaveFrame(ctx, 1, 0, frames.MustNew(1, 2, []float64{1, 2})))

	second, err := store.BeginRun(ctx, "second")
	require.NoError(t, err)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunInfo{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	require.Equal(t, int64(1), byID[first].FrameCount)
	require.Equal(t, int64(16), byID[first].Bytes)
	require.Equal(t, int64(0), byID[second].FrameCount)
	require.Equal(t, "second", byID[second].Note)
}
