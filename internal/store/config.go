// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	Backend    string // "sqlite" (default) or "qdrant".
	SQLitePath string
	Qdrant     QdrantConfig
}

// QdrantConfig addresses a Qdrant server over its REST API.
type QdrantConfig struct {
	Host    string
	Port    int
	APIKey  string
	HTTPS   bool
	Timeout time.Duration
}

// MetadataConfig selects and configures the metadata store backend.
type MetadataConfig struct {
	Backend    string // "sqlite" (default) or "mysql".
	SQLitePath string
	MySQL      MySQLConfig
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Timeout  time.Duration
}
