// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Upload stores a single image under destDir (the configured upload
// directory when empty), embeds it and adds it to the table. A file with
// the same name in destDir is replaced. The stored file is kept when
// embedding or indexing fails. It returns the new entity id.
func (g *Gallery) Upload(ctx context.Context, table string, src media.Source, destDir string) (string, error) {
	table, err := store.CanonicalTableName(table)
	if err != nil {
		return "", err
	}
	if destDir == "" {
		destDir = g.cfg.UploadDir
	}

	path, err := g.stager.Save(ctx, src, destDir)
	if err != nil {
		return "", imgerr.With(err, imgerr.FieldTable(table))
	}

	vec, err := g.embedder.Embed(ctx, path)
	if err != nil {
		return "", imgerr.With(err, imgerr.FieldTable(table), imgerr.FieldPath(path))
	}

	if err := g.ensureTable(ctx, table); err != nil {
		return "", err
	}

	ids, err := g.vectors.Insert(ctx, table, [][]float32{vec})
	if err != nil {
		return "", imgerr.With(err, imgerr.FieldTable(table), imgerr.FieldPath(path))
	}
	if len(ids) != 1 {
		return "", imgerr.Errorf(imgerr.CodeStoreVectorFailure, "vector index returned %d ids for 1 vector", len(ids))
	}

	if err := g.metadata.Insert(ctx, table, []store.Record{{ID: ids[0], Path: path}}); err != nil {
		delErr := g.vectors.Delete(context.WithoutCancel(ctx), table, ids)
		if delErr != nil {
			slog.Error("compensating vector delete failed", "table", table, "id", ids[0], "error", delErr)
		}
		return "", imgerr.With(imgerr.Join(imgerr.CodeStoreMetadataFailure, err, delErr), imgerr.FieldTable(table))
	}

	slog.Info("uploaded image", "table", table, "id", ids[0], "path", path)
	return ids[0], nil
}
