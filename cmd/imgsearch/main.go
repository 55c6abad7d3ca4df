// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Process exit statuses.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitNoServer = 3
)

func main() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case imgerr.HasCode(err, imgerr.CodeCLIServerNotRunning):
		return exitNoServer
	case imgerr.IsInvalidInput(err):
		return exitUsage
	default:
		return exitFailure
	}
}
