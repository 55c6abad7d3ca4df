// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/sigil-dev/imgsearch/pkg/health"
)

// GalleryService is the table-level API the handlers call.
// *gallery.Gallery implements it.
type GalleryService interface {
	Load(ctx context.Context, req gallery.LoadRequest) (int64, error)
	Upload(ctx context.Context, table string, src media.Source, destDir string) (string, error)
	Search(ctx context.Context, table string, src media.Source, k int) ([]gallery.Match, error)
	Count(ctx context.Context, table string) (int64, error)
	DropTable(ctx context.Context, table string) error
	Delete(ctx context.Context, table, id string) error
	List(ctx context.Context, table string, page, pageSize int) (*gallery.Page, error)
	Progress(ctx context.Context, session string) (progress.Progress, error)
}

var _ GalleryService = (*gallery.Gallery)(nil)

// Services holds dependencies injected into route handlers.
// Use NewServices to ensure required services are provided.
type Services struct {
	gallery GalleryService
	roots   media.Roots
	health  *health.Checker
}

// ServicesOption configures optional services.
type ServicesOption func(*Services)

// WithMediaRoots restricts GET /data to files under roots.
func WithMediaRoots(roots []string) ServicesOption {
	return func(s *Services) { s.roots = media.Roots(roots) }
}

// WithHealth reports component probes on GET /health.
func WithHealth(c *health.Checker) ServicesOption {
	return func(s *Services) { s.health = c }
}

// NewServices creates a Services instance with validation.
func NewServices(g GalleryService, opts ...ServicesOption) (*Services, error) {
	if g == nil {
		return nil, imgerr.New(imgerr.CodeServerConfigInvalid, "gallery service is required")
	}
	s := &Services{gallery: g}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Gallery returns the gallery service.
func (s *Services) Gallery() GalleryService {
	return s.gallery
}

// Roots returns the allow-list for served files. Empty allows any path.
func (s *Services) Roots() media.Roots {
	return s.roots
}

// Health returns the optional component checker.
func (s *Services) Health() *health.Checker {
	return s.health
}
