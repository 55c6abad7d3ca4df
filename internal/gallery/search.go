// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/sigil-dev/imgsearch/internal/media"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Match is one search result.
type Match struct {
	ID       string  `json:"id"`
	Path     string  `json:"path"`
	Distance float32 `json:"distance"`
}

// Search returns up to k images of the table closest to the query image,
// nearest first. k == 0 uses the configured default.
func (g *Gallery) Search(ctx context.Context, table string, src media.Source, k int) ([]Match, error) {
	if k < 0 {
		return nil, imgerr.Errorf(imgerr.CodeTopKInvalid, "top_k must be at least 1, got %d", k)
	}
	if k == 0 {
		k = g.cfg.TopK
	}
	table, err := g.requireTable(ctx, table)
	if err != nil {
		return nil, err
	}

	scratch, err := g.stager.SaveTemp(ctx, src, filepath.Join(g.cfg.UploadDir, ".queries"))
	if err != nil {
		return nil, err
	}
	vec, embedErr := g.embedder.Embed(ctx, scratch)
	if err := os.Remove(scratch); err != nil {
		slog.Warn("removing query file failed", "path", scratch, "error", err)
	}
	if embedErr != nil {
		return nil, imgerr.With(embedErr, imgerr.FieldTable(table))
	}

	hits, err := g.vectors.Search(ctx, table, vec, k)
	if err != nil {
		return nil, imgerr.With(err, imgerr.FieldTable(table))
	}
	if len(hits) == 0 {
		return []Match{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := g.metadata.Lookup(ctx, table, ids)
	if err != nil {
		return nil, imgerr.With(err, imgerr.FieldTable(table))
	}

	paths := make(map[string]string, len(records))
	for _, r := range records {
		paths[r.ID] = r.Path
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		path, ok := paths[h.ID]
		if !ok {
			slog.Warn("dropping orphan vector", "table", table, "id", h.ID)
			continue
		}
		matches = append(matches, Match{ID: h.ID, Path: path, Distance: h.Distance})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	slog.Debug("search finished", "table", table, "k", k, "results", len(matches))
	return matches, nil
}
