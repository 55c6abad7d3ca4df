// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sigil-dev/imgsearch/internal/config"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAddress = "127.0.0.1:5000"

// NewRootCmd creates the root imgsearch command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imgsearch",
		Short:         "imgsearch: reverse image search over vector tables",
		Long:          "imgsearch indexes images as embeddings and finds the closest matches to a query image.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags; initViper maps them to viper keys.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().String("address", defaultAddress, "address of a running imgsearch server (host:port)")
	root.PersistentFlags().Duration("timeout", 10*time.Minute, "deadline for client requests")
	root.PersistentFlags().Bool("json", false, "print raw JSON responses")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newLoadCmd(),
		newUploadCmd(),
		newSearchCmd(),
		newCountCmd(),
		newDropCmd(),
		newDeleteCmd(),
		newListCmd(),
		newProgressCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newInitCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper resets the global Viper and loads defaults, env bindings, flag
// bindings and the optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	viper.Reset()
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)
	v.SetDefault("address", defaultAddress)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return imgerr.Errorf(imgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so Viper does not also try the bare
		// name, which would match an ./imgsearch binary.
		v.SetConfigName("imgsearch")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/imgsearch")
		v.AddConfigPath("/etc/imgsearch")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return imgerr.Errorf(imgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return imgerr.Errorf(imgerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"data_dir": "data-dir",
		"address":  "address",
		"verbose":  "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return imgerr.Errorf(imgerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}

	setupLogging(v.GetString("log_level"), v.GetBool("verbose"))
	return nil
}

// setupLogging installs a text slog handler on stderr.
func setupLogging(level string, verbose bool) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
