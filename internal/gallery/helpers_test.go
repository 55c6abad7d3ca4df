// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/embed"
	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/store"
	"github.com/sigil-dev/imgsearch/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDim gives 4x4 thumbnails.
const testDim = 48

type testEnv struct {
	gallery   *gallery.Gallery
	vectors   store.VectorIndex
	metadata  store.MetadataStore
	progress  *progress.Memory
	uploadDir string
}

type envOption func(deps *gallery.Deps, cfg *gallery.Config)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	dir := t.TempDir()

	vi, err := sqlite.NewVectorIndex(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vi.Close() })

	ms, err := sqlite.NewMetadataStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })

	emb, err := embed.NewThumbnail(testDim)
	require.NoError(t, err)

	pt := progress.NewMemory()
	deps := gallery.Deps{
		Vectors:  vi,
		Metadata: ms,
		Embedder: emb,
		Progress: pt,
		Stager:   media.NewStager(nil),
	}
	cfg := gallery.Config{
		TopK:      5,
		BatchSize: 2,
		UploadDir: filepath.Join(dir, "uploads"),
		Index:     store.IndexParams{Metric: store.MetricL2, Type: "IVF_FLAT", NList: 2048, NProbe: 16},
	}
	for _, o := range opts {
		o(&deps, &cfg)
	}

	g, err := gallery.New(deps, cfg)
	require.NoError(t, err)

	return &testEnv{
		gallery:   g,
		vectors:   deps.Vectors,
		metadata:  deps.Metadata,
		progress:  pt,
		uploadDir: cfg.UploadDir,
	}
}

// writeImage writes a distinct 64x48 PNG for each seed.
func writeImage(t *testing.T, dir, name string, seed uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x*4) + seed, G: uint8(y*5) ^ seed, B: seed, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, img))
	return path
}

// imageDir writes n distinct images named img-a.png, img-b.png, ... into a
// new directory and returns their sorted paths.
func imageDir(t *testing.T, n int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range n {
		paths[i] = writeImage(t, dir, "img-"+string(rune('a'+i))+".png", uint8(10+i*50))
	}
	slices.Sort(paths)
	return dir, paths
}

func fileSource(t *testing.T, path string) media.Source {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return media.Bytes(filepath.Base(path), data)
}

// flakyMetadata injects failures into a real metadata store.
type flakyMetadata struct {
	store.MetadataStore
	createErr     error
	insertErr     error
	deleteErr     error
	reverseLookup bool
}

func (f *flakyMetadata) CreateTable(ctx context.Context, name string) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MetadataStore.CreateTable(ctx, name)
}

func (f *flakyMetadata) Insert(ctx context.Context, name string, records []store.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MetadataStore.Insert(ctx, name, records)
}

func (f *flakyMetadata) Delete(ctx context.Context, name, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MetadataStore.Delete(ctx, name, id)
}

func (f *flakyMetadata) Lookup(ctx context.Context, name string, ids []string) ([]store.Record, error) {
	recs, err := f.MetadataStore.Lookup(ctx, name, ids)
	if err == nil && f.reverseLookup {
		slices.Reverse(recs)
	}
	return recs, err
}

// flakyVectors injects failures and canned results into a real vector index.
type flakyVectors struct {
	store.VectorIndex
	deleteErr error
	deleted   [][]string
	hits      []store.Hit
}

func (f *flakyVectors) Delete(ctx context.Context, name string, ids []string) error {
	f.deleted = append(f.deleted, slices.Clone(ids))
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.VectorIndex.Delete(ctx, name, ids)
}

func (f *flakyVectors) Search(ctx context.Context, name string, query []float32, k int) ([]store.Hit, error) {
	if f.hits != nil {
		return f.hits, nil
	}
	return f.VectorIndex.Search(ctx, name, query, k)
}
