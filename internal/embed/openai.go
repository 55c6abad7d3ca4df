// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

const (
	openAIDefaultModel = "clip-vit-large-patch14"
	openAIDefaultDim   = 768
)

// OpenAI implements [Embedder] against an OpenAI-compatible embeddings
// endpoint. The image is sent as a single base64 data URI input.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates a remote embedder.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := options{
		model:      openAIDefaultModel,
		dim:        openAIDefaultDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client: &client,
		model:  cfg.model,
		dim:    cfg.dim,
	}
}

func (o *OpenAI) Dimension() int { return o.dim }

// Model returns the configured model identifier.
func (o *OpenAI) Model() string { return o.model }

// Embed reads the image and requests its embedding.
func (o *OpenAI) Embed(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "reading image", imgerr.FieldPath(path))
	}
	if len(data) == 0 {
		return nil, imgerr.New(imgerr.CodeEmbedImageFailure, "image is empty", imgerr.FieldPath(path))
	}

	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{dataURI(data)}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeEmbedUpstreamFailure, "requesting embedding", imgerr.FieldPath(path))
	}
	if len(resp.Data) != 1 {
		return nil, imgerr.Errorf(imgerr.CodeEmbedUpstreamFailure, "expected 1 embedding, got %d", len(resp.Data))
	}

	vec := float64sToFloat32s(resp.Data[0].Embedding)
	if len(vec) != o.dim {
		return nil, imgerr.New(imgerr.CodeEmbedDimensionMismatch,
			fmt.Sprintf("embedding has dimension %d, expected %d", len(vec), o.dim),
			imgerr.Field("model", o.model))
	}
	return vec, nil
}

// dataURI encodes data as a data URI with a sniffed content type.
func dataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
