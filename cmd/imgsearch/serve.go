// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/imgsearch/internal/server"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the imgsearch HTTP server",
		Long:  "Load configuration, open the vector index, metadata store and progress tracker, and serve the HTTP API.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
		return imgerr.Errorf(imgerr.CodeCLISetupFailure, "binding listen flag: %w", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing components", "error", err)
		}
	}()

	srv, err := server.New(cfg.HTTPServer())
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	svc, err := server.NewServices(a.gallery,
		server.WithMediaRoots(cfg.Media.Roots),
		server.WithHealth(a.health),
	)
	if err != nil {
		return err
	}
	srv.RegisterServices(svc)

	slog.Info("starting imgsearch",
		"listen", cfg.Server.Listen,
		"vector_backend", cfg.Vector.Backend,
		"metadata_backend", cfg.Metadata.Backend,
		"embedding", cfg.Embedding.Provider,
		"dimension", cfg.Embedding.Dimension,
		"config", v.ConfigFileUsed(),
	)
	return srv.Start(ctx)
}
