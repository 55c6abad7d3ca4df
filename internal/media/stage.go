// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Stager materializes sources as files on disk.
type Stager struct {
	fetcher *Fetcher
}

// NewStager returns a Stager that uses fetcher for remote sources.
func NewStager(fetcher *Fetcher) *Stager {
	return &Stager{fetcher: fetcher}
}

// Save writes src to dir under its base name and returns the absolute path.
// An existing file of the same name is replaced.
func (s *Stager) Save(ctx context.Context, src Source, dir string) (string, error) {
	name := src.FileName()
	if name == "" {
		return "", imgerr.New(imgerr.CodeSourceInvalid, "image file name is missing or invalid")
	}
	data, err := s.bytes(ctx, src)
	if err != nil {
		return "", err
	}
	return writeFile(dir, name, data)
}

// SaveTemp writes src to dir under a unique name that keeps the source
// extension, for files that are removed after use.
func (s *Stager) SaveTemp(ctx context.Context, src Source, dir string) (string, error) {
	data, err := s.bytes(ctx, src)
	if err != nil {
		return "", err
	}
	return writeFile(dir, uuid.NewString()+filepath.Ext(src.FileName()), data)
}

func (s *Stager) bytes(ctx context.Context, src Source) ([]byte, error) {
	switch src.Kind() {
	case SourceBytes:
		return src.Data(), nil
	case SourceRemote:
		if s.fetcher == nil {
			return nil, imgerr.New(imgerr.CodeSourceInvalid, "remote images are not enabled")
		}
		return s.fetcher.Fetch(ctx, src.URL().String())
	default:
		return nil, imgerr.New(imgerr.CodeSourceInvalid, "empty image source")
	}
}

// writeFile writes data to dir/name atomically through a temp file.
func writeFile(dir, name string, data []byte) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "resolving directory", imgerr.FieldPath(dir))
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating directory", imgerr.FieldPath(absDir))
	}

	tmp, err := os.CreateTemp(absDir, ".upload-*")
	if err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating temp file", imgerr.FieldPath(absDir))
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "writing image", imgerr.FieldPath(tmpName))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "closing image", imgerr.FieldPath(tmpName))
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "setting image permissions", imgerr.FieldPath(tmpName))
	}

	dst := filepath.Join(absDir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return "", imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "renaming image", imgerr.FieldPath(dst))
	}
	return dst, nil
}
