// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/sigil-dev/imgsearch/internal/config"
	"github.com/sigil-dev/imgsearch/internal/embed"
	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/secrets"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/sigil-dev/imgsearch/pkg/health"
	"github.com/spf13/viper"

	// Storage backends register themselves with the store factories.
	_ "github.com/sigil-dev/imgsearch/internal/store/mysql"
	_ "github.com/sigil-dev/imgsearch/internal/store/qdrant"
	_ "github.com/sigil-dev/imgsearch/internal/store/sqlite"
)

// healthProbeName is looked up, never created, by the store probes.
const healthProbeName = "_health"

// secretStore opens the keyring. Tests replace it with a mock.
var secretStore = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// loadConfig decodes v, warns about credentials kept in clear in a readable
// file, and then resolves keyring:// references.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed(), cfg)
	if err := cfg.ResolveSecrets(secretStore()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app owns the long-lived components behind the HTTP server.
type app struct {
	gallery *gallery.Gallery
	health  *health.Checker
	closers []func() error
}

// newApp opens every configured backend. Components opened before a
// failure are closed again.
func newApp(cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := ensureDirs(cfg); err != nil {
		return nil, err
	}

	embedder, err := embed.New(cfg.Embedder())
	if err != nil {
		return nil, err
	}

	vcfg := cfg.VectorStore()
	vectors, err := store.NewVectorIndex(&vcfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, vectors.Close)

	mcfg := cfg.MetadataStore()
	metadata, err := store.NewMetadataStore(&mcfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, metadata.Close)

	tracker, err := progress.New(cfg.ProgressTracker())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tracker.Close)

	stager := media.NewStager(media.NewFetcher(cfg.Upload.FetchTimeout, cfg.Upload.MaxBytes))
	a.gallery, err = gallery.New(gallery.Deps{
		Vectors:  vectors,
		Metadata: metadata,
		Embedder: embedder,
		Progress: tracker,
		Stager:   stager,
	}, cfg.Gallery())
	if err != nil {
		return nil, err
	}

	a.health = health.NewChecker(0)
	a.health.Register("vector_index", func(ctx context.Context) error {
		_, err := vectors.HasCollection(ctx, healthProbeName)
		return err
	})
	a.health.Register("metadata_store", func(ctx context.Context) error {
		_, err := metadata.HasTable(ctx, healthProbeName)
		return err
	})
	a.health.Register("progress", func(ctx context.Context) error {
		_, err := tracker.Get(ctx, healthProbeName)
		return err
	})
	a.health.Register("upload_dir", func(context.Context) error {
		_, err := os.Stat(cfg.Upload.Dir)
		return err
	})

	return a, nil
}

// Close releases the components in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		errs = append(errs, c())
	}
	a.closers = nil
	return imgerr.Join(imgerr.CodeCLISetupFailure, errs...)
}

func ensureDirs(cfg *config.Config) error {
	dirs := []string{cfg.DataDir, cfg.Upload.Dir}
	if cfg.Vector.Backend == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Vector.SQLite.Path))
	}
	if cfg.Metadata.Backend == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Metadata.SQLite.Path))
	}
	if cfg.Progress.Backend == "badger" {
		dirs = append(dirs, cfg.Progress.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating directory", imgerr.FieldPath(dir))
		}
	}
	return nil
}
