// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/store"
	_ "github.com/sigil-dev/imgsearch/internal/store/sqlite"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredBackendsCreateNestedPaths(t *testing.T) {
	dir := t.TempDir()

	vi, err := store.NewVectorIndex(&store.VectorConfig{SQLitePath: filepath.Join(dir, "nested", "vectors.db")})
	require.NoError(t, err)
	defer func() { _ = vi.Close() }()

	ms, err := store.NewMetadataStore(&store.MetadataConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "nested", "metadata.db")})
	require.NoError(t, err)
	defer func() { _ = ms.Close() }()

	vector, metadata := store.Backends()
	assert.Contains(t, vector, "sqlite")
	assert.Contains(t, metadata, "sqlite")
}

func TestRegisteredBackendRequiresPath(t *testing.T) {
	_, err := store.NewVectorIndex(&store.VectorConfig{Backend: "sqlite"})
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))
}
