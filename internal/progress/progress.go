// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package progress records bulk-load progress per session key.
package progress

import (
	"context"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Progress is a snapshot of a load: Current items processed out of Total.
type Progress struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
}

// Done reports whether every item has been processed.
func (p Progress) Done() bool {
	return p.Current >= p.Total
}

// Tracker stores the latest Progress per session key. Get on an unknown key
// returns the zero Progress.
type Tracker interface {
	Set(ctx context.Context, key string, p Progress) error
	Get(ctx context.Context, key string) (Progress, error)
	Close() error
}

// Config selects the tracker backend.
type Config struct {
	Backend string // "memory" (default) or "badger".
	Dir     string
}

// New builds the configured tracker.
func New(cfg Config) (Tracker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "badger":
		return NewBadger(BadgerOptions{Dir: cfg.Dir})
	default:
		return nil, imgerr.Errorf(imgerr.CodeProgressFailure, "unknown progress backend %q", cfg.Backend)
	}
}
