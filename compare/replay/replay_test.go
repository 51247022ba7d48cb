package replay_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/compare"
	"github.com/sevigo/ragbench/compare/fake"
	"github.com/sevigo/ragbench/compare/replay"
	"github.com/sevigo/ragbench/internal/testutil"
)

func TestRecorderThenReplay(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)

	rec := replay.NewRecorder(fake.Static(fake.Sample()), dir, logger)
	live, err := rec.Compare(context.Background(), compare.Query{ProductID: "p", Question: "q"})
	require.NoError(t, err)

	path := filepath.Join(dir, "comparison_0001.json")
	require.FileExists(t, path)

	rp := replay.New(path, logger)
	for range 2 {
		got, err := rp.Compare(context.Background(), compare.Query{ProductID: "other"})
		require.NoError(t, err)
		assert.Equal(t, live.WithPipeline, got.WithPipeline)
		assert.Equal(t, live.WithoutPipeline, got.WithoutPipeline)
		got.WithPipeline.Contexts[0] = "mutated"
	}
}

func TestReplay_Errors(t *testing.T) {
	_, err := replay.New(filepath.Join(t.TempDir(), "missing.json"), nil).Compare(context.Background(), compare.Query{})
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, err = replay.New(bad, nil).Compare(context.Background(), compare.Query{})
	require.ErrorIs(t, err, compare.ErrMalformed)
}

func TestRecorder_PassesErrors(t *testing.T) {
	boom := errors.New("boom")
	dir := t.TempDir()
	rec := replay.NewRecorder(fake.New(func(compare.Query) (*compare.Comparison, error) { return nil, boom }), dir, nil)
	_, err := rec.Compare(context.Background(), compare.Query{})
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
