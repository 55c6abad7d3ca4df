// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package main

import "errors"

func diskAvailable(string) (uint64, error) {
	return 0, errors.New("not supported on windows")
}
