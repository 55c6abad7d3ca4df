// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/server"
	"github.com/sigil-dev/imgsearch/internal/store"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/require"
)

// isolate keeps config discovery and bootstrap away from the real home
// directory and working directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("IMGSEARCH_DATA_DIR", filepath.Join(home, "data"))
	t.Chdir(t.TempDir())
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// recordingGallery answers with canned data and records what it was asked.
type recordingGallery struct {
	mu       sync.Mutex
	load     gallery.LoadRequest
	upload   struct{ table, name, url, destDir string }
	searchK  int
	deleted  []string
	progress []progress.Progress
}

func (g *recordingGallery) Load(_ context.Context, req gallery.LoadRequest) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.load = req
	return 12, nil
}

func (g *recordingGallery) Upload(_ context.Context, table string, src media.Source, destDir string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upload.table = table
	g.upload.name = src.FileName()
	if u := src.URL(); u != nil {
		g.upload.url = u.String()
	}
	g.upload.destDir = destDir
	return "42", nil
}

func (g *recordingGallery) Search(_ context.Context, table string, _ media.Source, k int) ([]gallery.Match, error) {
	if table == "missing" {
		return nil, imgerr.New(imgerr.CodeTableNotFound, "table missing does not exist")
	}
	g.mu.Lock()
	g.searchK = k
	g.mu.Unlock()
	return []gallery.Match{
		{ID: "1", Path: "/img/cat.png", Distance: 0},
		{ID: "2", Path: "/img/dog.png", Distance: 0.5},
	}, nil
}

func (g *recordingGallery) Count(_ context.Context, table string) (int64, error) {
	if table == "missing" {
		return 0, imgerr.New(imgerr.CodeTableNotFound, "table missing does not exist")
	}
	return 7, nil
}

func (g *recordingGallery) DropTable(context.Context, string) error { return nil }

func (g *recordingGallery) Delete(_ context.Context, table, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, table+"/"+id)
	return nil
}

func (g *recordingGallery) List(_ context.Context, _ string, page, size int) (*gallery.Page, error) {
	return &gallery.Page{
		Total:       3,
		TotalPages:  2,
		CurrentPage: page,
		PageSize:    size,
		Data:        []store.Record{{ID: "1", Path: "/img/cat.png"}, {ID: "2", Path: "/img/dog.png"}},
	}, nil
}

// Progress pops the next queued snapshot and repeats the last one.
func (g *recordingGallery) Progress(context.Context, string) (progress.Progress, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.progress) == 0 {
		return progress.Progress{}, nil
	}
	p := g.progress[0]
	if len(g.progress) > 1 {
		g.progress = g.progress[1:]
	}
	return p, nil
}

// startServer serves the real HTTP API over g and returns its host:port.
func startServer(t *testing.T, g server.GalleryService) string {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	svc, err := server.NewServices(g)
	require.NoError(t, err)
	srv.RegisterServices(svc)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}
