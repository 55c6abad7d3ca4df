// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// lookupChunk bounds the number of bound parameters per IN query.
const lookupChunk = 500

// Compile-time interface check.
var _ store.MetadataStore = (*MetadataStore)(nil)

// MetadataStore implements store.MetadataStore with one SQLite table per
// gallery table. The seq column preserves insertion order for paging.
type MetadataStore struct {
	db *sql.DB
}

// NewMetadataStore opens (or creates) the metadata database at dbPath.
func NewMetadataStore(dbPath string) (*MetadataStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "opening metadata db", imgerr.FieldPath(dbPath))
	}
	return &MetadataStore{db: db}, nil
}

// HasTable reports whether the metadata table exists.
func (m *MetadataStore) HasTable(ctx context.Context, name string) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "checking table", imgerr.FieldTable(name))
	}
	return true, nil
}

func (m *MetadataStore) CreateTable(ctx context.Context, name string) error {
	ddl := `
CREATE TABLE IF NOT EXISTS ` + quoteIdent(name) + ` (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	vector_id  TEXT NOT NULL UNIQUE,
	image_path TEXT NOT NULL
)`
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "creating table", imgerr.FieldTable(name))
	}
	return nil
}

func (m *MetadataStore) DropTable(ctx context.Context, name string) error {
	if _, err := m.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "dropping table", imgerr.FieldTable(name))
	}
	return nil
}

// Insert writes all records in a single transaction.
func (m *MetadataStore) Insert(ctx context.Context, name string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+quoteIdent(name)+`(vector_id, image_path) VALUES (?, ?)`)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "preparing insert", imgerr.FieldTable(name))
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Path); err != nil {
			return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "inserting record",
				imgerr.FieldTable(name), imgerr.FieldID(r.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "committing insert", imgerr.FieldTable(name))
	}
	return nil
}

// Lookup resolves ids in chunks and re-orders the rows to match ids.
func (m *MetadataStore) Lookup(ctx context.Context, name string, ids []string) ([]store.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		end := min(start+lookupChunk, len(ids))
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		q := `SELECT vector_id, image_path FROM ` + quoteIdent(name) + ` WHERE vector_id IN (` + placeholders + `)`
		if err := m.scanInto(ctx, found, q, args...); err != nil {
			return nil, imgerr.With(err, imgerr.FieldTable(name))
		}
	}

	out := make([]store.Record, 0, len(found))
	for _, id := range ids {
		if path, ok := found[id]; ok {
			out = append(out, store.Record{ID: id, Path: path})
		}
	}
	return out, nil
}

func (m *MetadataStore) scanInto(ctx context.Context, dst map[string]string, q string, args ...any) error {
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "querying records")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "scanning record")
		}
		dst[id] = path
	}
	if err := rows.Err(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "iterating records")
	}
	return nil
}

func (m *MetadataStore) Get(ctx context.Context, name string, id string) (*store.Record, error) {
	var r store.Record
	err := m.db.QueryRowContext(ctx, `SELECT vector_id, image_path FROM `+quoteIdent(name)+` WHERE vector_id = ?`, id).
		Scan(&r.ID, &r.Path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "reading record",
			imgerr.FieldTable(name), imgerr.FieldID(id))
	}
	return &r, nil
}

func (m *MetadataStore) Delete(ctx context.Context, name string, id string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM `+quoteIdent(name)+` WHERE vector_id = ?`, id); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "deleting record",
			imgerr.FieldTable(name), imgerr.FieldID(id))
	}
	return nil
}

// Page returns up to limit records starting at offset, oldest first.
func (m *MetadataStore) Page(ctx context.Context, name string, offset, limit int) ([]store.Record, error) {
	q := `SELECT vector_id, image_path FROM ` + quoteIdent(name) + ` ORDER BY seq LIMIT ? OFFSET ?`
	rows, err := m.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "paging records", imgerr.FieldTable(name))
	}
	defer func() { _ = rows.Close() }()

	out := []store.Record{}
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.ID, &r.Path); err != nil {
			return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "scanning record")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "iterating records")
	}
	return out, nil
}

func (m *MetadataStore) Count(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(name)).Scan(&n); err != nil {
		return 0, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "counting records", imgerr.FieldTable(name))
	}
	return n, nil
}

// Close closes the underlying database connection.
func (m *MetadataStore) Close() error {
	return m.db.Close()
}
