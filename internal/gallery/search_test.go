// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_SelfMatchComesFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, paths := imageDir(t, 4)

	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	for _, p := range paths {
		matches, err := env.gallery.Search(ctx, "t", fileSource(t, p), 4)
		require.NoError(t, err)
		require.Len(t, matches, 4)
		assert.Equal(t, p, matches[0].Path)
		assert.InDelta(t, 0.0, matches[0].Distance, 1e-5)
		assert.True(t, slices.IsSortedFunc(matches, func(a, b gallery.Match) int {
			switch {
			case a.Distance < b.Distance:
				return -1
			case a.Distance > b.Distance:
				return 1
			}
			return 0
		}))
	}
}

func TestSearch_CosineMetric(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(_ *gallery.Deps, cfg *gallery.Config) {
		cfg.Index.Metric = store.MetricCosine
	})
	dir, paths := imageDir(t, 3)

	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, paths[1]), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, paths[1], matches[0].Path)
}

func TestSearch_TopK(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t) // default top-k 5
	dir, paths := imageDir(t, 6)

	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 0)
	require.NoError(t, err)
	assert.Len(t, matches, 5)

	matches, err = env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 50)
	require.NoError(t, err)
	assert.Len(t, matches, 6)

	_, err = env.gallery.Search(ctx, "t", fileSource(t, paths[0]), -1)
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))
}

func TestSearch_MissingTableIsNotFoundAndNotCreated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := writeImage(t, t.TempDir(), "q.png", 1)

	_, err := env.gallery.Search(ctx, "ghost", fileSource(t, p), 3)
	require.Error(t, err)
	assert.True(t, imgerr.IsNotFound(err))

	ok, err := env.vectors.HasCollection(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearch_EmptyTableReturnsNoMatches(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.gallery.CreateTable(ctx, "t"))
	p := writeImage(t, t.TempDir(), "q.png", 1)

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, p), 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NotNil(t, matches)
}

func TestSearch_RemovesScratchFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, paths := imageDir(t, 2)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	_, err = env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 1)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(env.uploadDir, ".queries"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearch_RequiresSource(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.gallery.CreateTable(ctx, "t"))

	_, err := env.gallery.Search(ctx, "t", media.Source{}, 1)
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))
}

func TestSearch_DropsOrphanVectors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, paths := imageDir(t, 2)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	// A vector without a metadata record, as left by a crash between writes.
	orphan := make([]float32, testDim)
	orphan[0] = 1
	orphanIDs, err := env.vectors.Insert(ctx, "t", [][]float32{orphan})
	require.NoError(t, err)

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	for _, m := range matches {
		assert.NotEqual(t, orphanIDs[0], m.ID)
	}
}

func TestSearch_PairsPathsByIDAndStableSorts(t *testing.T) {
	ctx := context.Background()
	meta := &flakyMetadata{reverseLookup: true}
	vecs := &flakyVectors{}
	env := newTestEnv(t, func(d *gallery.Deps, _ *gallery.Config) {
		meta.MetadataStore = d.Metadata
		vecs.VectorIndex = d.Vectors
		d.Metadata = meta
		d.Vectors = vecs
	})
	dir, paths := imageDir(t, 4)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	page, err := env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	byPath := map[string]string{}
	for _, r := range page.Data {
		byPath[r.Path] = r.ID
	}

	// Out of order with a tie between paths[2] and paths[0].
	vecs.hits = []store.Hit{
		{ID: byPath[paths[3]], Distance: 0.9},
		{ID: byPath[paths[2]], Distance: 0.1},
		{ID: byPath[paths[0]], Distance: 0.1},
		{ID: byPath[paths[1]], Distance: 0.0},
	}

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, paths[0]), 4)
	require.NoError(t, err)
	require.Len(t, matches, 4)
	assert.Equal(t, []string{paths[1], paths[2], paths[0], paths[3]}, []string{
		matches[0].Path, matches[1].Path, matches[2].Path, matches[3].Path,
	})
	for _, m := range matches {
		assert.Equal(t, byPath[m.Path], m.ID)
	}
}

func TestLookup_PreservesPermutedIDOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, _ := imageDir(t, 5)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	page, err := env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 5)

	want := []store.Record{page.Data[3], page.Data[0], page.Data[4], page.Data[2], page.Data[1]}
	ids := make([]string, len(want))
	for i, r := range want {
		ids[i] = r.ID
	}

	got, err := env.metadata.Lookup(ctx, "t", ids)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
