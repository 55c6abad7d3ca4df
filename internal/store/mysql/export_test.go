// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mysql

// Exported for testing.
var (
	CreateTableSQL = createTableSQL
	LookupSQL      = lookupSQL
	PageSQL        = pageSQL
	InsertSQL      = insertSQL
)
