// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"regexp"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Table names become collection and relation identifiers in every backend,
// so they are restricted to a portable SQL identifier subset.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName checks that name is usable as a table in both stores.
func ValidateTableName(name string) error {
	if name == "" {
		return imgerr.New(imgerr.CodeTableNameInvalid, "table name is required")
	}
	if !tableNamePattern.MatchString(name) {
		return imgerr.Errorf(imgerr.CodeTableNameInvalid,
			"table name %q must start with a letter or underscore and contain only letters, digits and underscores (max 63)", name)
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return imgerr.Errorf(imgerr.CodeTableNameInvalid, "table name %q uses a reserved prefix", name)
	}
	return nil
}

// CanonicalTableName validates name and returns the form every backend
// stores it under. Table names are case-insensitive: SQLite and MySQL on
// some platforms fold identifier case, so "Photos" and "photos" must name
// the same collection and relation everywhere.
func CanonicalTableName(name string) (string, error) {
	if err := ValidateTableName(name); err != nil {
		return "", err
	}
	return strings.ToLower(name), nil
}

// Validate checks that the parameters describe a creatable collection.
func (p IndexParams) Validate() error {
	if p.Dimension <= 0 {
		return imgerr.Errorf(imgerr.CodeStoreInvalidInput, "index params: dimension must be positive, got %d", p.Dimension)
	}
	if !p.Metric.Valid() {
		return imgerr.Errorf(imgerr.CodeStoreInvalidInput, "index params: unsupported metric %q", p.Metric)
	}
	if p.NList < 0 || p.NProbe < 0 || p.M < 0 || p.EfConstruct < 0 {
		return imgerr.New(imgerr.CodeStoreInvalidInput, "index params: build parameters must not be negative")
	}
	return nil
}
