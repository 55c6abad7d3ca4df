// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package gallery orchestrates the vector index and the metadata store so
// that every table holds matching vectors and image records.
//
// Writes that span both stores follow a compensate-on-failure order: the
// vector index is written first and its ids are deleted again when the
// metadata write fails. A crash between the two writes can leave orphan
// vectors; search drops and logs them.
package gallery

import (
	"github.com/sigil-dev/imgsearch/internal/embed"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

const (
	defaultTopK      = 10
	defaultBatchSize = 64
	defaultUploadDir = "/tmp/search-images"

	// MaxPageSize bounds List page sizes.
	MaxPageSize = 100
)

// Deps are the services a Gallery coordinates. All are required.
type Deps struct {
	Vectors  store.VectorIndex
	Metadata store.MetadataStore
	Embedder embed.Embedder
	Progress progress.Tracker
	Stager   *media.Stager
}

// Config tunes orchestration behavior.
type Config struct {
	// TopK is the result count used when a search asks for k == 0.
	TopK int
	// BatchSize is the number of embeddings inserted per store round trip
	// during a bulk load.
	BatchSize int
	// Recursive is the directory walk mode of loads that do not choose one.
	Recursive bool
	// UploadDir is the default destination of uploads. Search scratch
	// files go to UploadDir/.queries.
	UploadDir string
	// Index describes new collections. Dimension is taken from the embedder.
	Index store.IndexParams
}

// Gallery implements the table-level operations of the service.
type Gallery struct {
	vectors  store.VectorIndex
	metadata store.MetadataStore
	embedder embed.Embedder
	progress progress.Tracker
	stager   *media.Stager
	cfg      Config
}

// New validates deps and fills configuration defaults.
func New(deps Deps, cfg Config) (*Gallery, error) {
	switch {
	case deps.Vectors == nil:
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery: vector index is required")
	case deps.Metadata == nil:
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery: metadata store is required")
	case deps.Embedder == nil:
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery: embedder is required")
	case deps.Progress == nil:
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery: progress tracker is required")
	case deps.Stager == nil:
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery: stager is required")
	}

	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = store.MetricL2
	}
	cfg.Index.Dimension = deps.Embedder.Dimension()
	if err := cfg.Index.Validate(); err != nil {
		return nil, err
	}

	return &Gallery{
		vectors:  deps.Vectors,
		metadata: deps.Metadata,
		embedder: deps.Embedder,
		progress: deps.Progress,
		stager:   deps.Stager,
		cfg:      cfg,
	}, nil
}

// UploadDir returns the default upload directory.
func (g *Gallery) UploadDir() string { return g.cfg.UploadDir }
