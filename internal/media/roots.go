// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package media

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Roots restricts which files may be served. An empty Roots allows any path.
type Roots []string

// Resolve cleans p to an absolute path and checks it lies under a root.
// Symlinks are followed on both sides, so a link inside a root that points
// elsewhere is rejected. The returned path is the resolved one.
func (r Roots) Resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", imgerr.New(imgerr.CodeSourceInvalid, "image path is required")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeSourceInvalid, "resolving image path", imgerr.FieldPath(p))
	}
	if len(r) == 0 {
		return abs, nil
	}

	resolved, err := realPath(abs)
	if err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeIOReadFailure, "resolving image path", imgerr.FieldPath(abs))
	}
	for _, root := range r {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootReal, err := realPath(rootAbs)
		if err != nil {
			continue
		}
		if within(rootReal, resolved) {
			return resolved, nil
		}
	}
	return "", imgerr.New(imgerr.CodeMediaPathForbidden, "image path is outside the allowed roots", imgerr.FieldPath(abs))
}

// realPath follows symlinks. A missing path is returned as is; the caller
// reports it when opening.
func realPath(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	return resolved, err
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
