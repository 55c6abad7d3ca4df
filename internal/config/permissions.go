// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import "log/slog"

// WarnInsecurePermissions logs a warning when cfg holds credentials in clear
// and the file at path can be read by other users. It never fails.
func WarnInsecurePermissions(path string, cfg *Config) {
	if path == "" || cfg == nil || !cfg.HasSecrets() {
		return
	}

	loose, err := ReadableByOthers(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if loose != 0 {
		slog.Warn("config file with credentials is readable by other users",
			"path", path, "bits", loose, "recommended", "0600")
	}
}
