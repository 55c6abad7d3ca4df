// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a database path inside the test's temp dir.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func newVectorIndex(t *testing.T, name string) *sqlite.VectorIndex {
	t.Helper()
	vi, err := sqlite.NewVectorIndex(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vi.Close() })
	return vi
}

func newMetadataStore(t *testing.T, name string) *sqlite.MetadataStore {
	t.Helper()
	ms, err := sqlite.NewMetadataStore(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })
	return ms
}
