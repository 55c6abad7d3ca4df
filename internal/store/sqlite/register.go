// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

func init() {
	store.RegisterVectorBackend("sqlite", newVectorIndex)
	store.RegisterMetadataBackend("sqlite", newMetadataStore)
}

func newVectorIndex(cfg *store.VectorConfig) (store.VectorIndex, error) {
	if err := ensureParent(cfg.SQLitePath); err != nil {
		return nil, err
	}
	return NewVectorIndex(cfg.SQLitePath)
}

func newMetadataStore(cfg *store.MetadataConfig) (store.MetadataStore, error) {
	if err := ensureParent(cfg.SQLitePath); err != nil {
		return nil, err
	}
	return NewMetadataStore(cfg.SQLitePath)
}

func ensureParent(dbPath string) error {
	if dbPath == "" {
		return imgerr.New(imgerr.CodeStoreInvalidInput, "sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating database directory", imgerr.FieldPath(dbPath))
	}
	return nil
}
