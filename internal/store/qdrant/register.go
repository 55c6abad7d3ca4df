// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package qdrant

import (
	"context"
	"time"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// connectTimeout bounds the startup probe.
const connectTimeout = 10 * time.Second

func init() {
	store.RegisterVectorBackend("qdrant", func(cfg *store.VectorConfig) (store.VectorIndex, error) {
		if cfg.Qdrant.Host == "" {
			return nil, imgerr.New(imgerr.CodeStoreInvalidInput, "qdrant host is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		v, err := Open(ctx, BaseURL(cfg.Qdrant), cfg.Qdrant.APIKey, cfg.Qdrant.Timeout)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}
