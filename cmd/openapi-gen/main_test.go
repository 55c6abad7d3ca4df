// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)
	assert.Contains(t, string(spec), "openapi")
	assert.Contains(t, string(spec), "3.1")
	for _, path := range []string{
		"/health", "/img/load", "/img/upload", "/img/search", "/img/count",
		"/img/drop", "/img/delete/{table}/{id}", "/img/all/{table}",
		"/progress", "/progress/stream", "/data",
	} {
		assert.Contains(t, string(spec), `"`+path+`"`)
	}
}

func TestGenerateSpec_ValidJSON(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.Contains(t, doc, "paths")
}

func TestRun_WritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api", "spec.json")
	var stdout bytes.Buffer
	require.NoError(t, run([]string{out}, &stdout))
	assert.Contains(t, stdout.String(), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestRun_WritesYAMLByExtension(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, run([]string{out}, &bytes.Buffer{}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "paths")
	assert.Contains(t, doc, "openapi")
}

func TestRun_TooManyArgs(t *testing.T) {
	err := run([]string{"a.json", "b.json"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, imgerr.IsInvalidInput(err))
}
