// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// CreateTable creates the table in both stores. It is idempotent.
func (g *Gallery) CreateTable(ctx context.Context, table string) error {
	table, err := store.CanonicalTableName(table)
	if err != nil {
		return err
	}
	return g.ensureTable(ctx, table)
}

// ensureTable creates whatever half of the table is missing. A collection
// created here is dropped again when the metadata table cannot be created.
func (g *Gallery) ensureTable(ctx context.Context, table string) error {
	hadCollection, err := g.vectors.HasCollection(ctx, table)
	if err != nil {
		return imgerr.With(err, imgerr.FieldTable(table))
	}
	if !hadCollection {
		if err := g.vectors.CreateCollection(ctx, table, g.cfg.Index); err != nil {
			return imgerr.With(err, imgerr.FieldTable(table))
		}
		slog.Info("created vector collection", "table", table,
			"dimension", g.cfg.Index.Dimension, "metric", g.cfg.Index.Metric, "index", g.cfg.Index.Type)
	}

	if err := g.metadata.CreateTable(ctx, table); err != nil {
		if hadCollection {
			return imgerr.With(err, imgerr.FieldTable(table))
		}
		dropErr := g.vectors.DropCollection(ctx, table)
		if dropErr != nil {
			slog.Error("compensating collection drop failed", "table", table, "error", dropErr)
		}
		return imgerr.Join(imgerr.CodeStoreMetadataFailure, err, dropErr)
	}
	return nil
}

// exists reports whether both halves of the table are present.
func (g *Gallery) exists(ctx context.Context, table string) (bool, error) {
	hasCollection, err := g.vectors.HasCollection(ctx, table)
	if err != nil {
		return false, imgerr.With(err, imgerr.FieldTable(table))
	}
	if !hasCollection {
		return false, nil
	}
	hasTable, err := g.metadata.HasTable(ctx, table)
	if err != nil {
		return false, imgerr.With(err, imgerr.FieldTable(table))
	}
	return hasTable, nil
}

// requireTable canonicalizes the name and returns a NotFound error when the
// table is absent.
func (g *Gallery) requireTable(ctx context.Context, table string) (string, error) {
	table, err := store.CanonicalTableName(table)
	if err != nil {
		return "", err
	}
	ok, err := g.exists(ctx, table)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", imgerr.New(imgerr.CodeTableNotFound, "table does not exist", imgerr.FieldTable(table))
	}
	return table, nil
}

// DropTable removes the table from both stores. Both drops are attempted;
// absent objects are not an error.
func (g *Gallery) DropTable(ctx context.Context, table string) error {
	table, err := store.CanonicalTableName(table)
	if err != nil {
		return err
	}

	vecErr := g.vectors.DropCollection(ctx, table)
	metaErr := g.metadata.DropTable(ctx, table)
	if err := imgerr.Join(imgerr.CodeStoreVectorFailure, vecErr, metaErr); err != nil {
		return imgerr.With(err, imgerr.FieldTable(table))
	}

	slog.Info("dropped table", "table", table)
	return nil
}

// Count returns the number of vectors stored for the table.
func (g *Gallery) Count(ctx context.Context, table string) (int64, error) {
	table, err := g.requireTable(ctx, table)
	if err != nil {
		return 0, err
	}
	n, err := g.vectors.Count(ctx, table)
	if err != nil {
		return 0, imgerr.With(err, imgerr.FieldTable(table))
	}
	return n, nil
}
