// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package gallery

import (
	"context"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Page is one page of a table listing.
type Page struct {
	Total       int64          `json:"total"`
	TotalPages  int64          `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	PageSize    int            `json:"page_size"`
	Data        []store.Record `json:"data"`
}

// List returns the records of a table in insertion order. page is 1-based.
// Pages past the end are empty but still report the total.
func (g *Gallery) List(ctx context.Context, table string, page, pageSize int) (*Page, error) {
	if page < 1 {
		return nil, imgerr.Errorf(imgerr.CodePageInvalid, "page must be at least 1, got %d", page)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, imgerr.Errorf(imgerr.CodePageInvalid, "page size must be between 1 and %d, got %d", MaxPageSize, pageSize)
	}
	table, err := g.requireTable(ctx, table)
	if err != nil {
		return nil, err
	}

	total, err := g.metadata.Count(ctx, table)
	if err != nil {
		return nil, imgerr.With(err, imgerr.FieldTable(table))
	}

	out := &Page{
		Total:       total,
		TotalPages:  (total + int64(pageSize) - 1) / int64(pageSize),
		CurrentPage: page,
		PageSize:    pageSize,
		Data:        []store.Record{},
	}

	offset := int64(page-1) * int64(pageSize)
	if offset >= total {
		return out, nil
	}

	records, err := g.metadata.Page(ctx, table, int(offset), pageSize)
	if err != nil {
		return nil, imgerr.With(err, imgerr.FieldTable(table))
	}
	if records != nil {
		out.Data = records
	}
	return out, nil
}
