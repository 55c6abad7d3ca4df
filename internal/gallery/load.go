// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// LoadRequest describes a bulk load.
type LoadRequest struct {
	Table string
	Dir   string
	// Recursive descends into subdirectories of Dir. Nil uses
	// Config.Recursive.
	Recursive *bool
	// Session keys the progress counters. Defaults to Table.
	Session string
}

// SessionKey returns the progress key of the request.
func (r LoadRequest) SessionKey() string {
	if r.Session != "" {
		return r.Session
	}
	return r.Table
}

// Load embeds every image in the directory and stores it in the table,
// creating the table when needed. Files that cannot be read or decoded are
// skipped; any other embedding failure aborts the load. It returns the number
// of vectors in the table afterwards.
func (g *Gallery) Load(ctx context.Context, req LoadRequest) (int64, error) {
	table, err := store.CanonicalTableName(req.Table)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(req.Dir) == "" {
		return 0, imgerr.New(imgerr.CodeLoadSourceInvalid, "source directory is required")
	}

	recursive := g.cfg.Recursive
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	files, err := media.ListImages(req.Dir, recursive)
	if err != nil {
		return 0, err
	}

	session := req.SessionKey()
	total := int64(len(files))
	g.setProgress(ctx, session, progress.Progress{Current: 0, Total: total})

	if err := g.ensureTable(ctx, table); err != nil {
		return 0, err
	}

	slog.Info("loading images", "table", table, "dir", req.Dir, "files", total, "session", session)

	var (
		batchPaths   []string
		batchVectors [][]float32
		inserted     int
		skipped      int
	)
	flush := func() error {
		if len(batchPaths) == 0 {
			return nil
		}
		if err := g.insert(ctx, table, batchPaths, batchVectors); err != nil {
			return err
		}
		inserted += len(batchPaths)
		batchPaths, batchVectors = batchPaths[:0], batchVectors[:0]
		return nil
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		vec, err := g.embedder.Embed(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			if !unusableImage(err) {
				return 0, imgerr.With(err, imgerr.FieldTable(table), imgerr.FieldPath(path))
			}
			skipped++
			slog.Warn("skipping image", "table", table, "path", path, "error", err)
		} else {
			batchPaths = append(batchPaths, path)
			batchVectors = append(batchVectors, vec)
			if len(batchPaths) >= g.cfg.BatchSize {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}

		g.setProgress(ctx, session, progress.Progress{Current: int64(i + 1), Total: total})
	}
	if err := flush(); err != nil {
		return 0, err
	}

	count, err := g.vectors.Count(ctx, table)
	if err != nil {
		return 0, imgerr.With(err, imgerr.FieldTable(table))
	}

	slog.Info("load finished", "table", table, "inserted", inserted, "skipped", skipped, "count", count)
	return count, nil
}

// unusableImage reports embedding errors caused by the file itself.
func unusableImage(err error) bool {
	switch imgerr.CodeOf(err) {
	case imgerr.CodeEmbedImageFailure, imgerr.CodeIOReadFailure:
		return true
	default:
		return false
	}
}

// insert writes one batch to both stores, deleting the new vectors again if
// the metadata write fails.
func (g *Gallery) insert(ctx context.Context, table string, paths []string, vectors [][]float32) error {
	ids, err := g.vectors.Insert(ctx, table, vectors)
	if err != nil {
		return imgerr.With(err, imgerr.FieldTable(table))
	}
	if len(ids) != len(paths) {
		return imgerr.Errorf(imgerr.CodeStoreVectorFailure,
			"vector index returned %d ids for %d vectors", len(ids), len(paths))
	}

	records := make([]store.Record, len(ids))
	for i, id := range ids {
		records[i] = store.Record{ID: id, Path: paths[i]}
	}

	if err := g.metadata.Insert(ctx, table, records); err != nil {
		delErr := g.vectors.Delete(context.WithoutCancel(ctx), table, ids)
		if delErr != nil {
			slog.Error("compensating vector delete failed", "table", table, "ids", len(ids), "error", delErr)
		}
		return imgerr.With(imgerr.Join(imgerr.CodeStoreMetadataFailure, err, delErr), imgerr.FieldTable(table))
	}
	return nil
}

func (g *Gallery) setProgress(ctx context.Context, session string, p progress.Progress) {
	if err := g.progress.Set(ctx, session, p); err != nil {
		slog.Warn("recording progress failed", "session", session, "error", err)
	}
}

// Progress returns the counters of a load session.
func (g *Gallery) Progress(ctx context.Context, session string) (progress.Progress, error) {
	return g.progress.Get(ctx, session)
}
