// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sigil-dev/imgsearch/internal/config"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration, storage backends, server health, and disk space of the data directory.",
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	cfg, cfgErr := config.FromViper(viper.GetViper())
	dataDir := viper.GetString("data_dir")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Backends", func() string { return checkBackends(cfg) }},
		{"Secrets", func() string { return checkSecrets(cfg) }},
		{"Server", func() string { return checkServer(cmd) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("imgsearch %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(err error) string {
	f := viper.ConfigFileUsed()
	if f == "" {
		if err != nil {
			return "defaults (no config file found), invalid: " + err.Error()
		}
		return "defaults (no config file found)"
	}

	msg := "loaded from " + f
	if loose, statErr := config.ReadableByOthers(f); statErr == nil && loose != 0 {
		msg += " (readable by other users, run chmod 600)"
	}
	if err != nil {
		msg += ", invalid: " + err.Error()
	}
	return msg
}

// checkSecrets resolves keyring references on a copy of cfg.
func checkSecrets(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	probe := *cfg
	if err := probe.ResolveSecrets(secretStore()); err != nil {
		return "unresolved: " + err.Error()
	}
	if cfg.HasSecrets() {
		return "credentials stored in the config file; consider `imgsearch secret set`"
	}
	return "ok"
}

func checkBackends(cfg *config.Config) string {
	vector, metadata := store.Backends()
	avail := fmt.Sprintf("vector [%s], metadata [%s]", strings.Join(vector, ", "), strings.Join(metadata, ", "))
	if cfg == nil {
		return avail
	}
	return fmt.Sprintf("using %s/%s; available %s", cfg.Vector.Backend, cfg.Metadata.Backend, avail)
}

func checkServer(cmd *cobra.Command) string {
	addr := viper.GetString("address")
	ctx, cancel := requestContext(cmd)
	defer cancel()

	report, err := fetchHealth(ctx, clientFromViper())
	if err != nil {
		if imgerr.HasCode(err, imgerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'imgsearch serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", report.Status, addr)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); err != nil {
		// The data directory is created on first serve.
		path, _ = os.UserHomeDir()
	}

	avail, err := diskAvailable(path)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	return formatBytes(avail) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
