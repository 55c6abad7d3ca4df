// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/imgsearch/internal/progress"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	minPollInterval     = 50 * time.Millisecond
)

// SSEEvent represents a single server-sent event.
type SSEEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func (s *Server) registerProgressStreamRoute() {
	s.router.Get("/progress/stream", s.handleProgressStream)

	// Streaming needs the raw ResponseWriter, so the operation is
	// documented by hand.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "load-progress-stream",
		Method:      http.MethodGet,
		Path:        "/progress/stream",
		Summary:     "Stream the progress of a bulk load via SSE",
		Description: "Emits a progress event whenever the counters change and a done event once every file of the session has been processed.",
		Tags:        []string{"images"},
		Parameters: []*huma.Param{
			{
				Name:        "cache_path",
				In:          "query",
				Required:    true,
				Description: "Progress session key passed to /img/load",
				Schema:      &huma.Schema{Type: "string"},
			},
			{
				Name:        "interval",
				In:          "query",
				Description: "Poll interval as a Go duration (default 500ms)",
				Schema:      &huma.Schema{Type: "string"},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {Schema: &huma.Schema{Type: "string"}},
				},
			},
			"400": {Description: "Missing session key or bad interval"},
		},
	})
}

func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session := strings.TrimSpace(q.Get("cache_path"))
	if session == "" {
		writeProblem(w, imgerr.New(imgerr.CodeServerRequestInvalid, "cache_path is required"))
		return
	}
	interval := defaultPollInterval
	if raw := q.Get("interval"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < minPollInterval {
			writeProblem(w, imgerr.Errorf(imgerr.CodeServerRequestInvalid,
				"interval must be a duration of at least %s, got %q", minPollInterval, raw))
			return
		}
		interval = d
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	send := func(e SSEEvent) bool {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Event, e.Data); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	ctx := r.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *progress.Progress
	for {
		p, err := s.services.Gallery().Progress(ctx, session)
		if err != nil {
			send(SSEEvent{Event: "error", Data: errorData(err)})
			return
		}
		if last == nil || *last != p {
			last = &p
			data, _ := json.Marshal(p)
			if !send(SSEEvent{Event: "progress", Data: string(data)}) {
				return
			}
		}
		// Total is zero until the load has listed its files.
		if p.Total > 0 && p.Done() {
			send(SSEEvent{Event: "done", Data: "{}"})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func errorData(err error) string {
	data, _ := json.Marshal(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: string(imgerr.CodeOf(err)), Message: err.Error()})
	return string(data)
}
