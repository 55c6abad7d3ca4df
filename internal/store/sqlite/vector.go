// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// maxKNN is the largest k a vec0 KNN query accepts.
const maxKNN = 4096

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements store.VectorIndex with one sqlite-vec vec0 virtual
// table per collection. A registry table records the schema of every
// collection and hands out monotonically increasing ids, so ids of deleted
// vectors are never reused.
type VectorIndex struct {
	db *sql.DB
}

// NewVectorIndex opens (or creates) the vector database at dbPath.
func NewVectorIndex(dbPath string) (*VectorIndex, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "opening vector db", imgerr.FieldPath(dbPath))
	}

	const registryDDL = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dimension  INTEGER NOT NULL,
	metric     TEXT NOT NULL,
	index_type TEXT NOT NULL DEFAULT '',
	params     TEXT NOT NULL DEFAULT '{}',
	next_id    INTEGER NOT NULL DEFAULT 1
)`
	if _, err := db.Exec(registryDDL); err != nil {
		_ = db.Close()
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "creating collections registry")
	}

	return &VectorIndex{db: db}, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return db, nil
}

// vecTable returns the quoted physical table name for a collection.
func vecTable(name string) string {
	return quoteIdent("vec_" + name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type collectionInfo struct {
	dimension int
	metric    store.Metric
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookupCollection(ctx context.Context, q rowQuerier, name string) (*collectionInfo, error) {
	var info collectionInfo
	var metric string
	err := q.QueryRowContext(ctx, `SELECT dimension, metric FROM collections WHERE name = ?`, name).
		Scan(&info.dimension, &metric)
	if err == sql.ErrNoRows {
		return nil, imgerr.New(imgerr.CodeTableNotFound, "collection does not exist", imgerr.FieldTable(name))
	}
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "reading collection", imgerr.FieldTable(name))
	}
	info.metric = store.Metric(metric)
	return &info, nil
}

// HasCollection reports whether the collection is registered.
func (v *VectorIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	var one int
	err := v.db.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "checking collection", imgerr.FieldTable(name))
	}
	return true, nil
}

// CreateCollection creates the vec0 table and registers it. vec0 performs
// exact search, so the IVF/HNSW parameters are only recorded.
func (v *VectorIndex) CreateCollection(ctx context.Context, name string, params store.IndexParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	paramsJSON, err := json.Marshal(map[string]int{
		"nlist":        params.NList,
		"nprobe":       params.NProbe,
		"m":            params.M,
		"ef_construct": params.EfConstruct,
	})
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "encoding index params")
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d]`, vecTable(name), params.Dimension)
	if params.Metric == store.MetricCosine {
		ddl += ` distance_metric=cosine`
	}
	ddl += `)`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "creating vec0 table", imgerr.FieldTable(name))
	}

	const reg = `INSERT INTO collections(name, dimension, metric, index_type, params) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING`
	if _, err := tx.ExecContext(ctx, reg, name, params.Dimension, string(params.Metric), params.Type, string(paramsJSON)); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "registering collection", imgerr.FieldTable(name))
	}

	if err := tx.Commit(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "committing collection", imgerr.FieldTable(name))
	}
	return nil
}

// DropCollection removes the vec0 table and its registry row.
func (v *VectorIndex) DropCollection(ctx context.Context, name string) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+vecTable(name)); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "dropping vec0 table", imgerr.FieldTable(name))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "unregistering collection", imgerr.FieldTable(name))
	}

	if err := tx.Commit(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "committing drop", imgerr.FieldTable(name))
	}
	return nil
}

// Insert stores the vectors in one transaction and returns their ids.
func (v *VectorIndex) Insert(ctx context.Context, name string, vectors [][]float32) ([]string, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	info, err := lookupCollection(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT next_id FROM collections WHERE name = ?`, name).Scan(&next); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "reading next id", imgerr.FieldTable(name))
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+vecTable(name)+`(rowid, embedding) VALUES (?, ?)`)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "preparing insert", imgerr.FieldTable(name))
	}
	defer func() { _ = stmt.Close() }()

	ids := make([]string, 0, len(vectors))
	for i, vec := range vectors {
		if len(vec) != info.dimension {
			return nil, imgerr.Errorf(imgerr.CodeStoreInvalidInput,
				"vector %d has dimension %d, collection %q expects %d", i, len(vec), name, info.dimension)
		}
		blob, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "serializing embedding")
		}
		id := next + int64(i)
		if _, err := stmt.ExecContext(ctx, id, blob); err != nil {
			return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "inserting vector", imgerr.FieldTable(name))
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	if _, err := tx.ExecContext(ctx, `UPDATE collections SET next_id = ? WHERE name = ?`, next+int64(len(vectors)), name); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "advancing next id", imgerr.FieldTable(name))
	}

	if err := tx.Commit(); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "committing insert", imgerr.FieldTable(name))
	}
	return ids, nil
}

// Search performs a k-nearest-neighbor query. Distance is in the metric of
// the collection; lower is closer. k is capped at the vec0 limit.
func (v *VectorIndex) Search(ctx context.Context, name string, query []float32, k int) ([]store.Hit, error) {
	info, err := lookupCollection(ctx, v.db, name)
	if err != nil {
		return nil, err
	}
	if len(query) != info.dimension {
		return nil, imgerr.Errorf(imgerr.CodeStoreInvalidInput,
			"query has dimension %d, collection %q expects %d", len(query), name, info.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > maxKNN {
		k = maxKNN
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "serializing query vector")
	}

	q := `SELECT rowid, distance FROM ` + vecTable(name) + `
WHERE embedding MATCH ? AND k = ?
ORDER BY distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "searching vectors", imgerr.FieldTable(name))
	}
	defer func() { _ = rows.Close() }()

	var hits []store.Hit
	for rows.Next() {
		var id int64
		var h store.Hit
		if err := rows.Scan(&id, &h.Distance); err != nil {
			return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "scanning vector result")
		}
		h.ID = strconv.FormatInt(id, 10)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "iterating vector results")
	}

	return hits, nil
}

// Delete removes vectors by id. Unknown ids are ignored.
func (v *VectorIndex) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := lookupCollection(ctx, v.db, name); err != nil {
		return err
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return imgerr.New(imgerr.CodeStoreInvalidInput, "vector id must be an integer", imgerr.FieldID(id))
		}
		args[i] = n
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	if _, err := v.db.ExecContext(ctx, `DELETE FROM `+vecTable(name)+` WHERE rowid IN (`+placeholders+`)`, args...); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "deleting vectors", imgerr.FieldTable(name))
	}
	return nil
}

// Count returns the number of vectors in the collection.
func (v *VectorIndex) Count(ctx context.Context, name string) (int64, error) {
	if _, err := lookupCollection(ctx, v.db, name); err != nil {
		return 0, err
	}

	var n int64
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+vecTable(name)).Scan(&n); err != nil {
		return 0, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "counting vectors", imgerr.FieldTable(name))
	}
	return n, nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}
