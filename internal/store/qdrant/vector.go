// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package qdrant implements store.VectorIndex against the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex stores each table as a Qdrant collection of unnamed vectors.
// Point ids are UUIDs generated on insert.
type VectorIndex struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu      sync.RWMutex
	metrics map[string]store.Metric
}

// BaseURL builds the REST endpoint for cfg.
func BaseURL(cfg store.QdrantConfig) string {
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 6333
	}
	return scheme + "://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port))
}

// New returns a client for the Qdrant server at baseURL.
func New(baseURL, apiKey string, timeout time.Duration) *VectorIndex {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VectorIndex{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		metrics: map[string]store.Metric{},
	}
}

// Open returns a client for the Qdrant server at baseURL once the server
// has answered a collection listing.
func Open(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (*VectorIndex, error) {
	v := New(baseURL, apiKey, timeout)
	if err := v.Ping(ctx); err != nil {
		_ = v.Close()
		return nil, err
	}
	return v, nil
}

// Ping lists the collections, which also checks the API key.
func (v *VectorIndex) Ping(ctx context.Context) error {
	if _, err := v.do(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "connecting to qdrant", imgerr.Field("url", v.baseURL))
	}
	return nil
}

type apiResponse struct {
	Result json.RawMessage `json:"result"`
	Status any             `json:"status"`
}

// do sends a JSON request and decodes the result field into out. It returns
// the HTTP status so callers can map 404 to a missing collection.
func (v *VectorIndex) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(b))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding result: %w", err)
	}
	return resp.StatusCode, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

// notFound forgets the cached metric of name and returns a NotFound error.
func (v *VectorIndex) notFound(name string) error {
	v.forget(name)
	return imgerr.New(imgerr.CodeTableNotFound, "collection does not exist", imgerr.FieldTable(name))
}

func (v *VectorIndex) forget(name string) {
	v.mu.Lock()
	delete(v.metrics, name)
	v.mu.Unlock()
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func (v *VectorIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	status, err := v.do(ctx, http.MethodGet, collectionPath(name), nil, nil)
	if status == http.StatusNotFound {
		v.forget(name)
		return false, nil
	}
	if err != nil {
		return false, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "checking collection", imgerr.FieldTable(name))
	}
	return true, nil
}

// metric returns the distance of a collection. It is read from the server
// once and cached until the collection is seen missing.
func (v *VectorIndex) metric(ctx context.Context, name string) (store.Metric, error) {
	v.mu.RLock()
	m, ok := v.metrics[name]
	v.mu.RUnlock()
	if ok {
		return m, nil
	}

	var info collectionInfo
	status, err := v.do(ctx, http.MethodGet, collectionPath(name), nil, &info)
	if status == http.StatusNotFound {
		return "", v.notFound(name)
	}
	if err != nil {
		return "", imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "reading collection", imgerr.FieldTable(name))
	}

	m = store.MetricL2
	if info.Config.Params.Vectors.Distance == "Cosine" {
		m = store.MetricCosine
	}
	v.mu.Lock()
	v.metrics[name] = m
	v.mu.Unlock()
	return m, nil
}

func distanceName(m store.Metric) string {
	if m == store.MetricCosine {
		return "Cosine"
	}
	return "Euclid"
}

// CreateCollection creates the collection with an HNSW index built from the
// m/ef_construct parameters.
func (v *VectorIndex) CreateCollection(ctx context.Context, name string, params store.IndexParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	exists, err := v.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     params.Dimension,
			"distance": distanceName(params.Metric),
		},
	}
	hnsw := map[string]any{}
	if params.M > 0 {
		hnsw["m"] = params.M
	}
	if params.EfConstruct > 0 {
		hnsw["ef_construct"] = params.EfConstruct
	}
	if len(hnsw) > 0 {
		body["hnsw_config"] = hnsw
	}

	if _, err := v.do(ctx, http.MethodPut, collectionPath(name), body, nil); err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "creating collection", imgerr.FieldTable(name))
	}

	v.mu.Lock()
	v.metrics[name] = params.Metric
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) DropCollection(ctx context.Context, name string) error {
	v.forget(name)

	status, err := v.do(ctx, http.MethodDelete, collectionPath(name), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "dropping collection", imgerr.FieldTable(name))
	}
	return nil
}

type point struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Insert upserts the vectors as new points and waits for the write to apply.
func (v *VectorIndex) Insert(ctx context.Context, name string, vectors [][]float32) ([]string, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	points := make([]point, len(vectors))
	ids := make([]string, len(vectors))
	for i, vec := range vectors {
		ids[i] = uuid.NewString()
		points[i] = point{ID: ids[i], Vector: vec}
	}

	status, err := v.do(ctx, http.MethodPut, collectionPath(name)+"/points?wait=true", map[string]any{"points": points}, nil)
	if status == http.StatusNotFound {
		return nil, v.notFound(name)
	}
	if status == http.StatusBadRequest {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreInvalidInput, "inserting points", imgerr.FieldTable(name))
	}
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "inserting points", imgerr.FieldTable(name))
	}
	return ids, nil
}

type scoredPoint struct {
	ID    any     `json:"id"`
	Score float32 `json:"score"`
}

// Search returns hits ordered by ascending distance. Cosine scores are
// similarities and are converted to distances.
func (v *VectorIndex) Search(ctx context.Context, name string, query []float32, k int) ([]store.Hit, error) {
	metric, err := v.metric(ctx, name)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": false,
	}

	var result []scoredPoint
	status, err := v.do(ctx, http.MethodPost, collectionPath(name)+"/points/search", body, &result)
	if status == http.StatusNotFound {
		return nil, v.notFound(name)
	}
	if status == http.StatusBadRequest {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreInvalidInput, "searching points", imgerr.FieldTable(name))
	}
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "searching points", imgerr.FieldTable(name))
	}

	hits := make([]store.Hit, len(result))
	for i, r := range result {
		d := r.Score
		if metric == store.MetricCosine {
			d = 1 - r.Score
		}
		hits[i] = store.Hit{ID: fmt.Sprint(r.ID), Distance: d}
	}
	return hits, nil
}

func (v *VectorIndex) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return imgerr.New(imgerr.CodeStoreInvalidInput, "point id must be a UUID", imgerr.FieldID(id))
		}
	}

	status, err := v.do(ctx, http.MethodPost, collectionPath(name)+"/points/delete?wait=true", map[string]any{"points": ids}, nil)
	if status == http.StatusNotFound {
		return v.notFound(name)
	}
	if err != nil {
		return imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "deleting points", imgerr.FieldTable(name))
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (v *VectorIndex) Count(ctx context.Context, name string) (int64, error) {
	var result struct {
		Count int64 `json:"count"`
	}
	status, err := v.do(ctx, http.MethodPost, collectionPath(name)+"/points/count", map[string]any{"exact": true}, &result)
	if status == http.StatusNotFound {
		return 0, v.notFound(name)
	}
	if err != nil {
		return 0, imgerr.Wrap(err, imgerr.CodeStoreVectorFailure, "counting points", imgerr.FieldTable(name))
	}
	return result.Count, nil
}

// Close releases idle connections.
func (v *VectorIndex) Close() error {
	v.client.CloseIdleConnections()
	return nil
}
