// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Command openapi-gen writes the OpenAPI document of the imgsearch HTTP API.
// The format follows the output extension: .yaml/.yml or JSON otherwise.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigil-dev/imgsearch/internal/gallery"
	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/progress"
	"github.com/sigil-dev/imgsearch/internal/server"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultOutput = "api/openapi/spec.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	out := defaultOutput
	switch len(args) {
	case 0:
	case 1:
		out = args[0]
	default:
		return imgerr.New(imgerr.CodeCLIInputInvalid, "usage: openapi-gen [output-path]")
	}

	doc, err := generateSpec()
	if err != nil {
		return err
	}
	if isYAML(out) {
		if doc, err = toYAML(doc); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "creating output dir", imgerr.FieldPath(out))
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return imgerr.Wrap(err, imgerr.CodeIOWriteFailure, "writing spec", imgerr.FieldPath(out))
	}

	_, err = fmt.Fprintf(stdout, "OpenAPI spec written to %s\n", out)
	return err
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// generateSpec registers every route on a throwaway server and returns the
// document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, imgerr.Errorf(imgerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	svc, err := server.NewServices(noopGallery{})
	if err != nil {
		return nil, imgerr.Errorf(imgerr.CodeCLISetupFailure, "creating services: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

func toYAML(doc []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "decoding generated spec")
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "encoding spec as yaml")
	}
	return out, nil
}

// noopGallery only exists so routes can be registered.
type noopGallery struct{}

func (noopGallery) Load(context.Context, gallery.LoadRequest) (int64, error) { return 0, nil }

func (noopGallery) Upload(context.Context, string, media.Source, string) (string, error) {
	return "", nil
}

func (noopGallery) Search(context.Context, string, media.Source, int) ([]gallery.Match, error) {
	return nil, nil
}

func (noopGallery) Count(context.Context, string) (int64, error) { return 0, nil }
func (noopGallery) DropTable(context.Context, string) error { return nil }
func (noopGallery) Delete(context.Context, string, string) error { return nil }

func (noopGallery) List(context.Context, string, int, int) (*gallery.Page, error) {
	return nil, nil
}

func (noopGallery) Progress(context.Context, string) (progress.Progress, error) {
	return progress.Progress{}, nil
}
