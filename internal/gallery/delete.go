// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Delete removes an entity from both stores and then removes its image file.
// Both store deletes are attempted even when one fails. The file removal is
// best effort.
func (g *Gallery) Delete(ctx context.Context, table, id string) error {
	if strings.TrimSpace(id) == "" {
		return imgerr.New(imgerr.CodeEntityIDInvalid, "id is required", imgerr.FieldTable(table))
	}
	table, err := g.requireTable(ctx, table)
	if err != nil {
		return err
	}

	rec, err := g.metadata.Get(ctx, table, id)
	if err != nil {
		return imgerr.With(err, imgerr.FieldTable(table), imgerr.FieldID(id))
	}
	if rec == nil {
		return imgerr.New(imgerr.CodeEntityNotFound, "no image with this id", imgerr.FieldTable(table), imgerr.FieldID(id))
	}

	metaErr := g.metadata.Delete(ctx, table, id)
	vecErr := g.vectors.Delete(ctx, table, []string{id})
	if err := imgerr.Join(imgerr.CodeStoreMetadataFailure, metaErr, vecErr); err != nil {
		return imgerr.With(err, imgerr.FieldTable(table), imgerr.FieldID(id))
	}

	if err := os.Remove(rec.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("image file already gone", "table", table, "id", id, "path", rec.Path)
		} else {
			slog.Warn("removing image file failed", "table", table, "id", id, "path", rec.Path, "error", err)
		}
	}

	slog.Info("deleted image", "table", table, "id", id, "path", rec.Path)
	return nil
}
