// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sigil-dev/imgsearch/internal/config"
	"github.com/sigil-dev/imgsearch/internal/secrets"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the configuration after defaults, config file and IMGSEARCH_* overrides. Credentials are masked unless --show-secrets is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if show, _ := cmd.Flags().GetBool("show-secrets"); !show {
				maskSecrets(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return imgerr.Wrap(err, imgerr.CodeCLISetupFailure, "encoding config")
			}
			return enc.Close()
		},
	}
	cmd.Flags().Bool("show-secrets", false, "print passwords and API keys in clear")
	return cmd
}

func maskSecrets(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Metadata.MySQL.Password,
		&cfg.Vector.Qdrant.APIKey,
		&cfg.Embedding.OpenAI.APIKey,
	} {
		if *s != "" && !secrets.IsRef(*s) {
			*s = redacted
		}
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default commented configuration",
		Long:  "Write the default configuration to PATH, or to ~/.config/imgsearch/imgsearch.yaml when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}

			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return imgerr.Errorf(imgerr.CodeCLIInputInvalid, "%s already exists; pass --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating config directory", imgerr.FieldPath(path))
			}
			if err := os.WriteFile(path, config.DefaultConfigYAML, 0o600); err != nil {
				return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "writing config", imgerr.FieldPath(path))
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.FromViper(viper.GetViper()); err != nil {
				return err
			}
			src := viper.ConfigFileUsed()
			if src == "" {
				src = "defaults"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (%s)\n", src)
			return err
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
