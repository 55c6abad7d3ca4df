// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

const keyPrefix = "progress/"

// Badger is a Tracker persisted in BadgerDB, so progress survives restarts.
type Badger struct {
	db *badger.DB
}

var _ Tracker = (*Badger)(nil)

// BadgerOptions configures the Badger tracker.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool
}

// NewBadger opens the Badger tracker.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, imgerr.New(imgerr.CodeProgressFailure, "progress dir is required for the badger backend")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeProgressFailure, "opening badger", imgerr.FieldPath(opts.Dir))
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Set(_ context.Context, key string, p Progress) error {
	val, err := json.Marshal(p)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeProgressFailure, "encoding progress")
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), val)
	})
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeProgressFailure, "writing progress", imgerr.Field("session", key))
	}
	return nil
}

func (b *Badger) Get(_ context.Context, key string) (Progress, error) {
	var p Progress
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, imgerr.Wrap(err, imgerr.CodeProgressFailure, "reading progress", imgerr.Field("session", key))
	}
	return p, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger routes badger's log output to slog, dropping debug chatter.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any) {
	slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (slogLogger) Warningf(f string, v ...any) {
	slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (slogLogger) Infof(f string, v ...any) {
	slog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (slogLogger) Debugf(string, ...any) {}
