// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Fetcher downloads remote images with a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher returns a Fetcher. A non-positive maxBytes disables the cap.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// Fetch downloads rawURL and returns its body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeSourceInvalid, "building fetch request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOFetchFailure, "fetching image", imgerr.Field("url", rawURL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, imgerr.New(imgerr.CodeIOFetchFailure,
			fmt.Sprintf("fetching image: unexpected status %d", resp.StatusCode), imgerr.Field("url", rawURL))
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOFetchFailure, "reading image body", imgerr.Field("url", rawURL))
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, imgerr.New(imgerr.CodeSourceInvalid,
			fmt.Sprintf("remote image exceeds %d bytes", f.maxBytes), imgerr.Field("url", rawURL))
	}
	if len(data) == 0 {
		return nil, imgerr.New(imgerr.CodeIOFetchFailure, "remote image is empty", imgerr.Field("url", rawURL))
	}
	return data, nil
}
