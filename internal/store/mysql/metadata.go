// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// lookupChunk bounds the number of bound parameters per IN query.
const lookupChunk = 500

// Compile-time interface check.
var _ store.MetadataStore = (*MetadataStore)(nil)

// MetadataStore implements store.MetadataStore on MySQL, one table per
// gallery table.
type MetadataStore struct {
	db *sql.DB
}

// DSN builds the driver connection string for cfg.
func DSN(cfg store.MySQLConfig) string {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.Timeout > 0 {
		mc.Timeout = cfg.Timeout
	}
	return mc.FormatDSN()
}

// NewMetadataStore connects to MySQL and verifies the connection.
func NewMetadataStore(cfg store.MySQLConfig) (*MetadataStore, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, imgerr.New(imgerr.CodeStoreInvalidInput, "mysql host and database are required")
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "opening mysql connection")
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "pinging mysql",
			imgerr.Field("host", cfg.Host))
	}

	return &MetadataStore{db: db}, nil
}

// NewMetadataStoreWithDB wraps an existing connection pool.
func NewMetadataStoreWithDB(db *sql.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func placeholders(n int) string {
	s := strings.Repeat("?,", n)
	return s[:len(s)-1]
}

func createTableSQL(name string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quoteIdent(name) + ` (
	seq        BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	vector_id  VARCHAR(64) NOT NULL,
	image_path TEXT NOT NULL,
	UNIQUE KEY uq_vector_id (vector_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
}

// lookupSQL selects rows for n ids ordered by their position in the id list.
func lookupSQL(name string, n int) string {
	ph := placeholders(n)
	return `SELECT vector_id, image_path FROM ` + quoteIdent(name) +
		` WHERE vector_id IN (` + ph + `) ORDER BY FIELD(vector_id, ` + ph + `)`
}

func pageSQL(name string) string {
	return `SELECT vector_id, image_path FROM ` + quoteIdent(name) + ` ORDER BY seq LIMIT ? OFFSET ?`
}

func (m *MetadataStore) HasTable(ctx context.Context, name string) (bool, error) {
	const q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	var n int
	if err := m.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "checking table", imgerr.FieldTable(name))
	}
	return n > 0, nil
}

func (m *MetadataStore) CreateTable(ctx context.Context, name string) error {
	if _, err := m.db.ExecContext(ctx, createTableSQL(name)); err != nil {
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

// Insert writes all records with one multi-row statement per chunk inside a
// single transaction.
func (m *MetadataStore) Insert(ctx context.Context, name string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(records); start += lookupChunk {
		chunk := records[start:min(start+lookupChunk, len(records))]
		q, args := insertSQL(name, chunk)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "inserting records", imgerr.FieldTable(name))
		}
	}

	if err := tx.Commit(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "committing insert", imgerr.FieldTable(name))
	}
	return nil
}

func insertSQL(name string, records []store.Record) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (vector_id, image_path) VALUES ", quoteIdent(name))
	args := make([]any, 0, len(records)*2)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?)")
		args = append(args, r.ID, r.Path)
	}
	return b.String(), args
}

// Lookup resolves ids in chunks; MySQL orders each chunk with FIELD().
func (m *MetadataStore) Lookup(ctx context.Context, name string, ids []string) ([]store.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]store.Record, 0, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		chunk := ids[start:min(start+lookupChunk, len(ids))]
		args := make([]any, 0, len(chunk)*2)
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, args...)

		recs, err := m.query(ctx, lookupSQL(name, len(chunk)), args...)
		if err != nil {
			return nil, imgerr.With(err, imgerr.FieldTable(name))
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (m *MetadataStore) query(ctx context.Context, q string, args ...any) ([]store.Record, error) {
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "querying records")
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

func (m *MetadataStore) Page(ctx context.Context, name string, offset, limit int) ([]store.Record, error) {
	recs, err := m.query(ctx, pageSQL(name), limit, offset)
	if err != nil {
		return nil, imgerr.With(err, imgerr.FieldTable(name))
	}
	return recs, nil
}

func (m *MetadataStore) Count(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(name)).Scan(&n); err != nil {
		return 0, imgerr.Wrap(err, imgerr.CodeStoreMetadataFailure, "counting records", imgerr.FieldTable(name))
	}
	return n, nil
}

// Close closes the connection pool.
func (m *MetadataStore) Close() error {
	return m.db.Close()
}
