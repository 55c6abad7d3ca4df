// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_StoresFileAndRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	src := writeImage(t, t.TempDir(), "cat.png", 7)

	id, err := env.gallery.Upload(ctx, "pets", fileSource(t, src), "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	want := filepath.Join(env.uploadDir, "cat.png")
	assert.FileExists(t, want)

	page, err := env.gallery.List(ctx, "pets", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, id, page.Data[0].ID)
	assert.Equal(t, want, page.Data[0].Path)

	matches, err := env.gallery.Search(ctx, "pets", fileSource(t, src), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
}

func TestUpload_DestDirOverridesDefault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	src := writeImage(t, t.TempDir(), "dog.png", 9)
	dest := filepath.Join(t.TempDir(), "custom")

	_, err := env.gallery.Upload(ctx, "pets", fileSource(t, src), dest)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "dog.png"))
	assert.NoFileExists(t, filepath.Join(env.uploadDir, "dog.png"))
}

func TestUpload_SameNameReplacesFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := writeImage(t, t.TempDir(), "same.png", 1)
	second := writeImage(t, t.TempDir(), "same.png", 200)

	id1, err := env.gallery.Upload(ctx, "t", fileSource(t, first), "")
	require.NoError(t, err)
	id2, err := env.gallery.Upload(ctx, "t", fileSource(t, second), "")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	stored, err := os.ReadFile(filepath.Join(env.uploadDir, "same.png"))
	require.NoError(t, err)
	want, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, want, stored)

	n, err := env.gallery.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpload_FileNameIsReducedToBase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	data, err := os.ReadFile(writeImage(t, t.TempDir(), "x.png", 3))
	require.NoError(t, err)

	_, err = env.gallery.Upload(ctx, "t", media.Bytes("../../escape.png", data), "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.uploadDir, "escape.png"))
}

func TestUpload_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	data, err := os.ReadFile(writeImage(t, t.TempDir(), "x.png", 3))
	require.NoError(t, err)

	_, err = env.gallery.Upload(ctx, "t", media.Source{}, "")
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))

	_, err = env.gallery.Upload(ctx, "t", media.Bytes("", data), "")
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))

	_, err = env.gallery.Upload(ctx, "no-dashes", media.Bytes("x.png", data), "")
	require.Error(t, err)
	assert.True(t, imgerr.HasCode(err, imgerr.CodeTableNameInvalid))
}

func TestUpload_CompensatesWhenMetadataInsertFails(t *testing.T) {
	ctx := context.Background()
	meta := &flakyMetadata{}
	vecs := &flakyVectors{}
	env := newTestEnv(t, func(d *gallery.Deps, _ *gallery.Config) {
		meta.MetadataStore = d.Metadata
		vecs.VectorIndex = d.Vectors
		d.Metadata = meta
		d.Vectors = vecs
	})
	meta.insertErr = imgerr.New(imgerr.CodeStoreMetadataFailure, "locked")
	src := writeImage(t, t.TempDir(), "a.png", 5)

	_, err := env.gallery.Upload(ctx, "t", fileSource(t, src), "")
	require.Error(t, err)
	assert.True(t, imgerr.IsStoreFailure(err))
	require.Len(t, vecs.deleted, 1)

	n, err := env.gallery.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
