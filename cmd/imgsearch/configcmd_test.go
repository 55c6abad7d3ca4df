// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/config"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigShow_MasksSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("IMGSEARCH_METADATA_MYSQL_PASSWORD", "hunter2")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, redacted)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Listen)

	out, err = execute(t, "config", "show", "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "hunter2")
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "conf", "imgsearch.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.True(t, imgerr.HasCode(err, imgerr.CodeCLIInputInvalid))

	_, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	isolate(t)
	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")

	t.Setenv("IMGSEARCH_SEARCH_TOP_K", "0")
	_, err = execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.top_k")
}
