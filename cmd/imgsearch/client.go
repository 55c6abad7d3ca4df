// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/viper"
)

// defaultHTTPClient is the package-level HTTP client used by client commands.
// Overridden in tests via httptest. Requests are bounded by their context.
var defaultHTTPClient = &http.Client{}

// apiClient provides HTTP access to a running imgsearch server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient creates a client targeting the given host:port address.
func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    defaultHTTPClient,
	}
}

// clientFromViper targets the address resolved from --address,
// IMGSEARCH_ADDRESS or the config file.
func clientFromViper() *apiClient {
	return newAPIClient(viper.GetString("address"))
}

// problem mirrors the RFC 9457 body the server renders for errors.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	return c.do(req, dest)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *apiClient) deleteJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	return c.do(req, dest)
}

// postMultipart sends fields and, when filePath is set, the file under the
// "image" part.
func (c *apiClient) postMultipart(ctx context.Context, path string, fields map[string]string, filePath string, dest any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "encoding form")
		}
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "reading image", imgerr.FieldPath(filePath))
		}
		part, err := mw.CreateFormFile("image", filepath.Base(filePath))
		if err != nil {
			return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "encoding form")
		}
		if _, err := part.Write(data); err != nil {
			return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "encoding form")
		}
	}
	if err := mw.Close(); err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIInputInvalid, "encoding form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, dest)
}

// stream reads a server-sent event stream and calls fn per event until the
// stream ends, fn returns false, or ctx is cancelled.
func (c *apiClient) stream(ctx context.Context, path string, query url.Values, fn func(event, data string) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var event, data string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			if !fn(event, data) {
				return nil
			}
			event, data = "", ""
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "reading event stream")
	}
	return nil
}

func (c *apiClient) do(req *http.Request, dest any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// send performs req and turns transport failures and non-2xx answers into
// coded errors. The caller closes the body of a successful response.
func (c *apiClient) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return nil, imgerr.Errorf(imgerr.CodeCLIServerNotRunning,
				"imgsearch server is not running at %s (connection refused)", req.URL.Host)
		}
		return nil, imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "request failed")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var p problem
	if json.Unmarshal(body, &p) == nil && p.Detail != "" {
		return nil, imgerr.Errorf(imgerr.CodeCLIRequestFailure, "server returned %d: %s", resp.StatusCode, p.Detail)
	}
	return nil, imgerr.Errorf(imgerr.CodeCLIRequestFailure, "server returned %d: %s",
		resp.StatusCode, strings.TrimSpace(string(body)))
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
