// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embed turns image files into fixed-dimension feature vectors.
//
// Two providers are available:
//
//   - [Thumbnail]: a local, dependency-free descriptor built from a scaled
//     RGB thumbnail of the image. Deterministic, suited to duplicate and
//     near-duplicate lookup.
//   - [OpenAI]: any OpenAI-compatible embeddings endpoint that accepts
//     images as base64 data URIs (multimodal embedding servers).
package embed

import (
	"context"
	"net/http"
	"time"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Embedder computes the embedding of the image stored at path.
type Embedder interface {
	Embed(ctx context.Context, path string) ([]float32, error)

	// Dimension returns the length of every vector Embed produces.
	Dimension() int
}

// Config selects and configures a provider.
type Config struct {
	Provider  string // "thumbnail" (default) or "openai".
	Dimension int

	OpenAI OpenAIConfig
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the configured embedder.
func New(cfg Config) (Embedder, error) {
	if cfg.Dimension <= 0 {
		return nil, imgerr.Errorf(imgerr.CodeEmbedProviderInvalid, "embedding dimension must be positive, got %d", cfg.Dimension)
	}

	switch cfg.Provider {
	case "", "thumbnail":
		return NewThumbnail(cfg.Dimension)
	case "openai":
		timeout := cfg.OpenAI.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		opts := []Option{
			WithDimension(cfg.Dimension),
			WithHTTPClient(&http.Client{Timeout: timeout}),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.OpenAI.BaseURL))
		}
		if cfg.OpenAI.Model != "" {
			opts = append(opts, WithModel(cfg.OpenAI.Model))
		}
		return NewOpenAI(cfg.OpenAI.APIKey, opts...), nil
	default:
		return nil, imgerr.Errorf(imgerr.CodeEmbedProviderInvalid, "unknown embedding provider %q", cfg.Provider)
	}
}
