// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListImages returns the absolute paths of image files in dir, sorted
// lexicographically. Subdirectories are descended when recursive is set.
// Hidden files and directories are skipped.
func ListImages(dir string, recursive bool) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeLoadSourceInvalid, "resolving directory", imgerr.FieldPath(dir))
	}
	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return nil, imgerr.New(imgerr.CodeLoadSourceInvalid, "directory does not exist", imgerr.FieldPath(absDir))
	}
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "reading directory", imgerr.FieldPath(absDir))
	}
	if !info.IsDir() {
		return nil, imgerr.New(imgerr.CodeLoadSourceInvalid, "not a directory", imgerr.FieldPath(absDir))
	}

	var out []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == absDir {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() || !IsImage(path) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "walking directory", imgerr.FieldPath(absDir))
	}

	slices.Sort(out)
	return out, nil
}
