// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import "net/http"

// options holds settings for the remote providers.
type options struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// Option configures a remote embedder.
type Option func(*options)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithDimension sets the expected output dimensionality.
func WithDimension(dim int) Option {
	return func(o *options) { o.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}
