// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/sigil-dev/imgsearch/pkg/health"
)

// RegisterServices sets the service dependencies and registers the image routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerDataRoute()
	s.registerProgressStreamRoute()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "load-images",
		Method:      http.MethodPost,
		Path:        "/img/load",
		Summary:     "Embed and index every image in a server-side directory",
		Tags:        []string{"images"},
	}, s.handleLoad)

	huma.Register(s.api, huma.Operation{
		OperationID:  "upload-image",
		Method:       http.MethodPost,
		Path:         "/img/upload",
		Summary:      "Add one image from a file upload or a URL",
		Tags:         []string{"images"},
		MaxBodyBytes: s.cfg.MaxUploadBytes,
	}, s.handleUpload)

	huma.Register(s.api, huma.Operation{
		OperationID:  "search-images",
		Method:       http.MethodPost,
		Path:         "/img/search",
		Summary:      "Find the images closest to a query image",
		Tags:         []string{"images"},
		MaxBodyBytes: s.cfg.MaxUploadBytes,
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "count-images",
		Method:      http.MethodPost,
		Path:        "/img/count",
		Summary:     "Count the images in a table",
		Tags:        []string{"tables"},
	}, s.handleCount)

	huma.Register(s.api, huma.Operation{
		OperationID: "drop-table",
		Method:      http.MethodPost,
		Path:        "/img/drop",
		Summary:     "Drop a table from both stores",
		Tags:        []string{"tables"},
	}, s.handleDrop)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-image",
		Method:      http.MethodDelete,
		Path:        "/img/delete/{table}/{id}",
		Summary:     "Delete one image by id",
		Tags:        []string{"images"},
	}, s.handleDelete)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-images",
		Method:      http.MethodGet,
		Path:        "/img/all/{table}",
		Summary:     "List the images of a table page by page",
		Tags:        []string{"tables"},
	}, s.handleList)

	huma.Register(s.api, huma.Operation{
		OperationID: "load-progress",
		Method:      http.MethodGet,
		Path:        "/progress",
		Summary:     "Progress of a bulk load session",
		Tags:        []string{"images"},
	}, s.handleProgress)
}

// --- Request/Response types for huma ---

// StatusBody is the acknowledgement returned by mutating routes.
type StatusBody struct {
	Status bool   `json:"status" doc:"Whether the operation succeeded"`
	Msg    string `json:"msg" doc:"Human-readable outcome"`
}

type loadInput struct {
	Body struct {
		Table     string `json:"table" doc:"Target table"`
		SourceDir string `json:"source_dir" doc:"Server-side directory to index"`
		Recursive *bool  `json:"recursive,omitempty" doc:"Descend into subdirectories (defaults to load.recursive)"`
		CachePath string `json:"cache_path,omitempty" doc:"Progress session key (defaults to the table)"`
	}
}
type loadOutput struct {
	Body struct {
		StatusBody
		Total int64 `json:"total" doc:"Images in the table after the load"`
	}
}

type multipartInput struct {
	RawBody multipart.Form
}

type uploadOutput struct {
	Body struct {
		StatusBody
		ID string `json:"id" doc:"Assigned image id"`
	}
}

type searchOutput struct {
	Body []gallery.Match
}

type tableInput struct {
	Body struct {
		Table string `json:"table" doc:"Table name"`
	}
}
type countOutput struct {
	Body struct {
		Table string `json:"table"`
		Count int64  `json:"count"`
	}
}

type statusOutput struct {
	Body StatusBody
}

type deleteInput struct {
	Table string `path:"table"`
	ID    string `path:"id"`
}

type listInput struct {
	Table string `path:"table"`
	Page  int    `query:"page" default:"1" doc:"1-based page number"`
	Size  int    `query:"size" default:"10" doc:"Page size, 1 to 100"`
}
type listOutput struct {
	Body *gallery.Page
}

type progressInput struct {
	CachePath string `query:"cache_path" doc:"Progress session key passed to /img/load"`
}
type progressOutput struct {
	Body progress.Progress
}

type healthOutput struct {
	Status int
	Body   health.Report
}

// --- Handlers ---

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{Status: http.StatusOK, Body: health.Report{Status: health.StatusOK}}
	if s.services == nil || s.services.Health() == nil {
		return out, nil
	}
	out.Body = s.services.Health().Check(ctx)
	if out.Body.Status != health.StatusOK {
		out.Status = http.StatusServiceUnavailable
	}
	return out, nil
}

func (s *Server) handleLoad(ctx context.Context, input *loadInput) (*loadOutput, error) {
	req := gallery.LoadRequest{
		Table:     strings.TrimSpace(input.Body.Table),
		Dir:       input.Body.SourceDir,
		Recursive: input.Body.Recursive,
		Session:   input.Body.CachePath,
	}
	total, err := s.services.Gallery().Load(ctx, req)
	if err != nil {
		return nil, apiError("load", err)
	}
	out := &loadOutput{}
	out.Body.Status = true
	out.Body.Msg = fmt.Sprintf("Successfully loaded data into %s", req.Table)
	out.Body.Total = total
	return out, nil
}

func (s *Server) handleUpload(ctx context.Context, input *multipartInput) (*uploadOutput, error) {
	form := &input.RawBody
	name, data, err := formFile(form, "image")
	if err != nil {
		return nil, apiError("upload", err)
	}
	src, err := media.NewSource(name, data, formValue(form, "url"))
	if err != nil {
		return nil, apiError("upload", err)
	}

	id, err := s.services.Gallery().Upload(ctx, formValue(form, "table"), src, formValue(form, "dest_dir"))
	if err != nil {
		return nil, apiError("upload", err)
	}
	out := &uploadOutput{}
	out.Body.Status = true
	out.Body.Msg = "Successfully uploaded image " + id
	out.Body.ID = id
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *multipartInput) (*searchOutput, error) {
	form := &input.RawBody
	name, data, err := formFile(form, "image")
	if err != nil {
		return nil, apiError("search", err)
	}
	if len(data) == 0 {
		return nil, apiError("search", imgerr.New(imgerr.CodeSourceInvalid, "an image file is required"))
	}

	k := 0
	if raw := formValue(form, "top_k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil {
			return nil, apiError("search", imgerr.Errorf(imgerr.CodeTopKInvalid, "top_k must be an integer, got %q", raw))
		}
		if k == 0 {
			return nil, apiError("search", imgerr.New(imgerr.CodeTopKInvalid, "top_k must be at least 1"))
		}
	}

	matches, err := s.services.Gallery().Search(ctx, formValue(form, "table"), media.Bytes(name, data), k)
	if err != nil {
		return nil, apiError("search", err)
	}
	return &searchOutput{Body: matches}, nil
}

func (s *Server) handleCount(ctx context.Context, input *tableInput) (*countOutput, error) {
	n, err := s.services.Gallery().Count(ctx, input.Body.Table)
	if err != nil {
		return nil, apiError("count", err)
	}
	out := &countOutput{}
	out.Body.Table = input.Body.Table
	out.Body.Count = n
	return out, nil
}

func (s *Server) handleDrop(ctx context.Context, input *tableInput) (*statusOutput, error) {
	if err := s.services.Gallery().DropTable(ctx, input.Body.Table); err != nil {
		return nil, apiError("drop", err)
	}
	return &statusOutput{Body: StatusBody{Status: true, Msg: "Successfully dropped table " + input.Body.Table}}, nil
}

func (s *Server) handleDelete(ctx context.Context, input *deleteInput) (*statusOutput, error) {
	if err := s.services.Gallery().Delete(ctx, input.Table, input.ID); err != nil {
		return nil, apiError("delete", err)
	}
	return &statusOutput{Body: StatusBody{Status: true, Msg: "Successfully deleted data"}}, nil
}

func (s *Server) handleList(ctx context.Context, input *listInput) (*listOutput, error) {
	page, err := s.services.Gallery().List(ctx, input.Table, input.Page, input.Size)
	if err != nil {
		return nil, apiError("list", err)
	}
	return &listOutput{Body: page}, nil
}

func (s *Server) handleProgress(ctx context.Context, input *progressInput) (*progressOutput, error) {
	if strings.TrimSpace(input.CachePath) == "" {
		return nil, apiError("progress", imgerr.New(imgerr.CodeServerRequestInvalid, "cache_path is required"))
	}
	p, err := s.services.Gallery().Progress(ctx, input.CachePath)
	if err != nil {
		return nil, apiError("progress", err)
	}
	return &progressOutput{Body: p}, nil
}

// apiError renders err as a problem response with the status its code maps to.
func apiError(op string, err error) error {
	status := imgerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "code", imgerr.CodeOf(err), "error", err)
	} else {
		slog.Debug("request rejected", "op", op, "code", imgerr.CodeOf(err), "error", err)
	}
	return huma.NewError(status, err.Error())
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// formFile returns the first file under key, or an empty name and nil data
// when the part is absent.
func formFile(form *multipart.Form, key string) (string, []byte, error) {
	files := form.File[key]
	if len(files) == 0 {
		return "", nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return "", nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "reading uploaded file")
	}
	return fh.Filename, data, nil
}
