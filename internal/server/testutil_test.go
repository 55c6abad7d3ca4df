// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
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

// fakeGallery records calls and returns canned results. Tables named
// "missing" do not exist.
type fakeGallery struct {
	mu sync.Mutex

	loadReq    gallery.LoadRequest
	uploadSrc  media.Source
	uploadDest string
	searchK    int
	searchSrc  media.Source
	deleted    []string
	progress   []progress.Progress
	err        error
}

func (f *fakeGallery) check(table string) error {
	if f.err != nil {
		return f.err
	}
	if table == "missing" {
		return imgerr.New(imgerr.CodeTableNotFound, "table does not exist", imgerr.FieldTable(table))
	}
	return store.ValidateTableName(table)
}

func (f *fakeGallery) Load(_ context.Context, req gallery.LoadRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadReq = req
	if err := f.check(req.Table); err != nil {
		return 0, err
	}
	return 3, nil
}

func (f *fakeGallery) Upload(_ context.Context, table string, src media.Source, destDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadSrc, f.uploadDest = src, destDir
	if err := f.check(table); err != nil {
		return "", err
	}
	return "17", nil
}

func (f *fakeGallery) Search(_ context.Context, table string, src media.Source, k int) ([]gallery.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchSrc, f.searchK = src, k
	if err := f.check(table); err != nil {
		return nil, err
	}
	return []gallery.Match{
		{ID: "1", Path: "/img/a.png", Distance: 0},
		{ID: "2", Path: "/img/b.png", Distance: 0.5},
	}, nil
}

func (f *fakeGallery) Count(_ context.Context, table string) (int64, error) {
	if err := f.check(table); err != nil {
		return 0, err
	}
	return 42, nil
}

func (f *fakeGallery) DropTable(_ context.Context, table string) error {
	return f.check(table)
}

func (f *fakeGallery) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(table); err != nil {
		return err
	}
	if id == "404" {
		return imgerr.New(imgerr.CodeEntityNotFound, "no image with this id")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeGallery) List(_ context.Context, table string, page, pageSize int) (*gallery.Page, error) {
	if err := f.check(table); err != nil {
		return nil, err
	}
	if page < 1 || pageSize < 1 || pageSize > gallery.MaxPageSize {
		return nil, imgerr.New(imgerr.CodePageInvalid, "bad page")
	}
	return &gallery.Page{
		Total: 1, TotalPages: 1, CurrentPage: page, PageSize: pageSize,
		Data: []store.Record{{ID: "1", Path: "/img/a.png"}},
	}, nil
}

// Progress pops the next queued snapshot, repeating the last one.
func (f *fakeGallery) Progress(_ context.Context, session string) (progress.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return progress.Progress{}, f.err
	}
	if session != "job" || len(f.progress) == 0 {
		return progress.Progress{}, nil
	}
	p := f.progress[0]
	if len(f.progress) > 1 {
		f.progress = f.progress[1:]
	}
	return p, nil
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestServerWithGallery(t *testing.T, g server.GalleryService, opts ...server.ServicesOption) *server.Server {
	t.Helper()
	srv := newTestServer(t)
	svc, err := server.NewServices(g, opts...)
	require.NoError(t, err)
	srv.RegisterServices(svc)
	return srv
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}
