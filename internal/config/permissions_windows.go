// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import (
	"io/fs"
	"os"
)

// ReadableByOthers only checks that path exists. Windows guards files with
// ACLs, which are not inspected.
func ReadableByOthers(path string) (fs.FileMode, error) {
	_, err := os.Stat(path)
	return 0, err
}
