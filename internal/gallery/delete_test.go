// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery_test

import (
	"context"
	"os"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelete_RemovesEntityEverywhere(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, paths := imageDir(t, 3)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	page, err := env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	victim := page.Data[0]
	require.Equal(t, paths[0], victim.Path)

	require.NoError(t, env.gallery.Delete(ctx, "t", victim.ID))

	assert.NoFileExists(t, victim.Path)

	n, err := env.gallery.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err = env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	for _, r := range page.Data {
		assert.NotEqual(t, victim.ID, r.ID)
	}

	matches, err := env.gallery.Search(ctx, "t", fileSource(t, paths[1]), 10)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, victim.ID, m.ID)
	}

	err = env.gallery.Delete(ctx, "t", victim.ID)
	require.Error(t, err)
	assert.True(t, imgerr.HasCode(err, imgerr.CodeEntityNotFound))
}

func TestDelete_MissingFileStillSucceeds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir, paths := imageDir(t, 1)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)
	require.NoError(t, os.Remove(paths[0]))

	page, err := env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	require.NoError(t, env.gallery.Delete(ctx, "t", page.Data[0].ID))
}

func TestDelete_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.gallery.Delete(ctx, "t", "")
	assert.True(t, imgerr.HasCode(err, imgerr.CodeEntityIDInvalid))

	err = env.gallery.Delete(ctx, "t", "1")
	assert.True(t, imgerr.HasCode(err, imgerr.CodeTableNotFound))

	require.NoError(t, env.gallery.CreateTable(ctx, "t"))
	err = env.gallery.Delete(ctx, "t", "42")
	assert.True(t, imgerr.IsNotFound(err))
}

func TestDelete_AttemptsBothStoresOnFailure(t *testing.T) {
	ctx := context.Background()
	vecs := &flakyVectors{}
	env := newTestEnv(t, func(d *gallery.Deps, _ *gallery.Config) {
		vecs.VectorIndex = d.Vectors
		d.Vectors = vecs
	})
	dir, paths := imageDir(t, 2)
	_, err := env.gallery.Load(ctx, gallery.LoadRequest{Table: "t", Dir: dir})
	require.NoError(t, err)

	page, err := env.gallery.List(ctx, "t", 1, 10)
	require.NoError(t, err)
	id := page.Data[0].ID

	vecs.deleteErr = imgerr.New(imgerr.CodeStoreVectorFailure, "index offline")
	err = env.gallery.Delete(ctx, "t", id)
	require.Error(t, err)
	assert.True(t, imgerr.IsStoreFailure(err))

	rec, err := env.metadata.Get(ctx, "t", id)
	require.NoError(t, err)
	assert.Nil(t, rec, "metadata delete still ran")
	assert.FileExists(t, paths[0], "file is kept when a store delete fails")
}
