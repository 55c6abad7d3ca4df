// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// VectorIndex is the per-table ANN service. Each table owns one collection of
// the same name. Ids are assigned by the index on insert and surfaced as
// opaque strings.
type VectorIndex interface {
	HasCollection(ctx context.Context, name string) (bool, error)

	// CreateCollection creates the collection and builds its ANN index.
	// Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, name string, params IndexParams) error

	// DropCollection removes the collection. Dropping an absent collection
	// is a no-op.
	DropCollection(ctx context.Context, name string) error

	// Insert stores vectors and returns their assigned ids in input order.
	Insert(ctx context.Context, name string, vectors [][]float32) ([]string, error)

	// Search returns at most k hits ordered by ascending distance.
	Search(ctx context.Context, name string, query []float32, k int) ([]Hit, error)

	Delete(ctx context.Context, name string, ids []string) error

	// Count returns the number of committed vectors in the collection.
	Count(ctx context.Context, name string) (int64, error)

	Close() error
}

// MetadataStore maps vector ids to image paths, one relation per table.
type MetadataStore interface {
	HasTable(ctx context.Context, name string) (bool, error)
	CreateTable(ctx context.Context, name string) error
	DropTable(ctx context.Context, name string) error

	// Insert stores records in the given order within a single transaction.
	Insert(ctx context.Context, name string, records []Record) error

	// Lookup resolves ids to records. The result follows the order of ids
	// exactly; ids without a record are omitted.
	Lookup(ctx context.Context, name string, ids []string) ([]Record, error)

	// Get returns the record for id, or nil when none exists.
	Get(ctx context.Context, name string, id string) (*Record, error)

	Delete(ctx context.Context, name string, id string) error

	// Page returns records in insertion order.
	Page(ctx context.Context, name string, offset, limit int) ([]Record, error)

	Count(ctx context.Context, name string) (int64, error)

	Close() error
}
