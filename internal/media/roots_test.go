// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package media_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/media"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestRoots_EmptyAllowsAnyPath(t *testing.T) {
	p, err := media.Roots(nil).Resolve("relative/a.png")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))

	_, err = media.Roots(nil).Resolve("  ")
	assert.True(t, imgerr.IsInvalidInput(err))
}

func TestRoots_Resolve(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	inside := filepath.Join(allowed, "in.png")
	require.NoError(t, os.WriteFile(inside, []byte("in"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(other, "out.png"), []byte("out"), 0o600))

	roots := media.Roots{allowed}

	_, err := roots.Resolve(inside)
	assert.NoError(t, err)

	_, err = roots.Resolve(filepath.Join(allowed, "missing.png"))
	assert.NoError(t, err, "missing files are reported when opened")

	_, err = roots.Resolve(filepath.Join(other, "out.png"))
	assert.True(t, imgerr.IsForbidden(err))

	_, err = roots.Resolve(filepath.Join(allowed, "..", filepath.Base(other), "out.png"))
	assert.True(t, imgerr.IsForbidden(err))
}

func TestRoots_SymlinkLeavingRootIsForbidden(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	secret := filepath.Join(other, "secret.png")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o600))

	symlink(t, secret, filepath.Join(allowed, "link.png"))
	symlink(t, other, filepath.Join(allowed, "linkdir"))

	roots := media.Roots{allowed}

	_, err := roots.Resolve(filepath.Join(allowed, "link.png"))
	require.Error(t, err)
	assert.True(t, imgerr.IsForbidden(err))

	_, err = roots.Resolve(filepath.Join(allowed, "linkdir", "secret.png"))
	require.Error(t, err)
	assert.True(t, imgerr.IsForbidden(err))
}

func TestRoots_SymlinkedRootAllowsItsFiles(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.png"), []byte("a"), 0o600))
	root := filepath.Join(t.TempDir(), "gallery")
	symlink(t, target, root)

	p, err := media.Roots{root}.Resolve(filepath.Join(root, "a.png"))
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(filepath.Join(target, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, want, p)
}
