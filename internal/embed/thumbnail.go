// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"image"
	"math"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// Thumbnail embeds an image as the L2-normalized RGB values of a side×side
// thumbnail, where side = floor(sqrt(dimension/3)). Unused trailing
// dimensions are zero.
type Thumbnail struct {
	dim  int
	side int
}

var _ Embedder = (*Thumbnail)(nil)

// NewThumbnail returns a thumbnail embedder producing dim-length vectors.
func NewThumbnail(dim int) (*Thumbnail, error) {
	side := int(math.Sqrt(float64(dim) / 3))
	if side < 1 {
		return nil, imgerr.Errorf(imgerr.CodeEmbedProviderInvalid,
			"thumbnail embedding needs a dimension of at least 3, got %d", dim)
	}
	return &Thumbnail{dim: dim, side: side}, nil
}

func (t *Thumbnail) Dimension() int { return t.dim }

// Embed decodes the file and computes its descriptor.
func (t *Thumbnail) Embed(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "opening image", imgerr.FieldPath(path))
	}
	defer func() { _ = f.Close() }()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeEmbedImageFailure, "decoding image", imgerr.FieldPath(path))
	}
	return t.vector(src), nil
}

func (t *Thumbnail) vector(src image.Image) []float32 {
	thumb := image.NewRGBA(image.Rect(0, 0, t.side, t.side))
	draw.BiLinear.Scale(thumb, thumb.Bounds(), src, src.Bounds(), draw.Src, nil)

	vec := make([]float32, t.dim)
	var norm float64
	i := 0
	for y := 0; y < t.side; y++ {
		for x := 0; x < t.side; x++ {
			off := thumb.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(thumb.Pix[off+c]) / 255
				vec[i] = float32(v)
				norm += v * v
				i++
			}
		}
	}

	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for j := range i {
			vec[j] = float32(float64(vec[j]) * inv)
		}
	}
	return vec
}
