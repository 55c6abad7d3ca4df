// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

func (s *Server) registerDataRoute() {
	s.router.Get("/data", s.handleData)

	// Raw file bodies bypass huma's handler signature; the operation is
	// added to the OpenAPI document by hand.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "get-image",
		Method:      http.MethodGet,
		Path:        "/data",
		Summary:     "Download an indexed image",
		Description: "Returns the raw bytes of a file referenced by a search or list result. The content type is sniffed.",
		Tags:        []string{"images"},
		Parameters: []*huma.Param{{
			Name:        "image_path",
			In:          "query",
			Required:    true,
			Description: "Path as returned by /img/search or /img/all",
			Schema:      &huma.Schema{Type: "string"},
		}},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Image bytes",
				Content: map[string]*huma.MediaType{
					"application/octet-stream": {Schema: &huma.Schema{Type: "string", Format: "binary"}},
				},
			},
			"400": {Description: "Missing or invalid path"},
			"403": {Description: "Path is outside the allowed media roots"},
			"404": {Description: "File does not exist"},
		},
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("image_path")
	path, err := s.services.Roots().Resolve(raw)
	if err != nil {
		writeProblem(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		code := imgerr.CodeIOReadFailure
		if errors.Is(err, fs.ErrNotExist) {
			code = imgerr.CodeEntityNotFound
		}
		writeProblem(w, imgerr.Wrap(err, code, "opening image", imgerr.FieldPath(path)))
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeProblem(w, imgerr.Wrap(err, imgerr.CodeIOReadFailure, "reading image", imgerr.FieldPath(path)))
		return
	}
	if info.IsDir() {
		writeProblem(w, imgerr.New(imgerr.CodeSourceInvalid, "image path is a directory", imgerr.FieldPath(path)))
		return
	}

	slog.Debug("serving image", "path", path, "bytes", info.Size())
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// writeProblem renders err the way huma renders handler errors.
func writeProblem(w http.ResponseWriter, err error) {
	status := imgerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", imgerr.CodeOf(err), "error", err)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	body := huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Warn("writing problem response failed", "error", encErr)
	}
}
