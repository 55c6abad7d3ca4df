// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sigil-dev/imgsearch/internal/config"
	"github.com/sigil-dev/imgsearch/internal/secrets"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
)

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m initModel, msgs ...tea.Msg) initModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(initModel)
		require.True(t, ok)
	}
	return m
}

func withConfigPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imgsearch", "imgsearch.yaml")
	orig := configPathForWrite
	configPathForWrite = func() (string, error) { return path, nil }
	t.Cleanup(func() { configPathForWrite = orig })
	return path
}

func TestInitModel_DefaultsNeedNoSecrets(t *testing.T) {
	m := newInitModel(&memSecrets{data: map[string]string{}}, false)
	assert.Contains(t, m.View(), "Vector index backend")

	m = press(t, m, keyEnter, keyEnter, keyEnter)

	assert.Equal(t, stepValidate, m.step)
	assert.Equal(t, "sqlite", m.result.VectorBackend)
	assert.Equal(t, "sqlite", m.result.MetadataBackend)
	assert.Equal(t, "thumbnail", m.result.Embedder)
	assert.Empty(t, m.prompts)
}

func TestInitModel_PromptsForEachCredential(t *testing.T) {
	m := newInitModel(&memSecrets{data: map[string]string{}}, false)

	m = press(t, m, keyDown, keyEnter, keyDown, keyEnter, keyDown, keyEnter)
	require.Equal(t, stepSecret, m.step)
	require.Len(t, m.prompts, 3)
	assert.Contains(t, m.View(), "Qdrant API key")

	// The Qdrant key is optional.
	m = press(t, m, keyEnter)
	assert.Equal(t, stepSecret, m.step)
	assert.Contains(t, m.View(), "MySQL password")

	m = press(t, m, keyEnter)
	assert.Equal(t, stepSecret, m.step, "empty required value is rejected")
	assert.Contains(t, m.View(), "must not be empty")

	m = press(t, m, typeText("db-pass"), keyEnter, typeText("sk-123"), keyEnter)
	assert.Equal(t, stepValidate, m.step)
	assert.Equal(t, map[string]string{
		secrets.KeyMySQLPassword: "db-pass",
		secrets.KeyOpenAIAPIKey:  "sk-123",
	}, m.result.Secrets)
	assert.NotContains(t, m.View(), "db-pass")
}

func TestInitModel_CursorStaysInRange(t *testing.T) {
	m := newInitModel(nil, false)
	m = press(t, m, keyDown, keyDown, keyDown)
	assert.Equal(t, 1, m.cursor)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursor)
}

func TestInitModel_Outcomes(t *testing.T) {
	m := newInitModel(nil, false)

	done := press(t, m, configWrittenMsg{path: "/tmp/x.yaml"})
	assert.Equal(t, stepDone, done.step)
	assert.Contains(t, done.View(), "/tmp/x.yaml")
	assert.Contains(t, done.View(), "imgsearch serve")

	failed := press(t, m, configInvalidMsg{err: imgerr.New(imgerr.CodeConfigValidateInvalidValue, "bad")})
	assert.Equal(t, stepError, failed.step)
	assert.Contains(t, failed.View(), "Setup failed: bad")
}

func TestGenerateConfigYAML(t *testing.T) {
	result := initResult{
		VectorBackend:   "qdrant",
		MetadataBackend: "mysql",
		Embedder:        "openai",
		Secrets: map[string]string{
			secrets.KeyMySQLPassword: "db-pass",
			secrets.KeyOpenAIAPIKey:  "sk-123",
		},
	}
	out := GenerateConfigYAML(result)

	assert.Contains(t, out, "backend: qdrant")
	assert.Contains(t, out, "backend: mysql")
	assert.Contains(t, out, `password: "keyring://imgsearch/mysql-password"`)
	assert.Contains(t, out, `api_key: "keyring://imgsearch/openai-api-key"`)
	assert.Contains(t, out, "model: "+openAIDefaultModel)
	assert.NotContains(t, out, "qdrant-api-key", "skipped optional key is not referenced")
	assert.NotContains(t, out, "db-pass")
	assert.NotContains(t, out, "sk-123")

	require.NoError(t, validateGeneratedConfig(result))
}

func TestValidateConfigCmd(t *testing.T) {
	ok := validateConfigCmd(initResult{VectorBackend: "sqlite", MetadataBackend: "sqlite", Embedder: "thumbnail"})()
	assert.IsType(t, configValidMsg{}, ok)

	bad := validateConfigCmd(initResult{VectorBackend: "faiss", MetadataBackend: "sqlite", Embedder: "thumbnail"})()
	require.IsType(t, configInvalidMsg{}, bad)
	assert.Contains(t, bad.(configInvalidMsg).err.Error(), "vector.backend")
}

func TestStoreSecretsAndWriteConfig(t *testing.T) {
	path := withConfigPath(t)
	store := &memSecrets{data: map[string]string{}}
	result := initResult{
		VectorBackend:   "sqlite",
		MetadataBackend: "mysql",
		Embedder:        "thumbnail",
		Secrets:         map[string]string{secrets.KeyMySQLPassword: "db-pass"},
	}

	got, err := storeSecretsAndWriteConfig(result, store, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "db-pass", store.data[secrets.KeyMySQLPassword])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, GenerateConfigYAML(result), string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	msg := writeConfigCmd(result, store, false)()
	err, isErr := msg.(error)
	require.True(t, isErr, "existing config needs --force")
	assert.Contains(t, err.Error(), "--force")

	msg = writeConfigCmd(result, store, true)()
	assert.Equal(t, configWrittenMsg{path: path}, msg)
}

func TestStoreSecretsAndWriteConfig_ReplacesBootstrappedDefault(t *testing.T) {
	path := withConfigPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, config.DefaultConfigYAML, 0o600))

	result := initResult{VectorBackend: "sqlite", MetadataBackend: "sqlite", Embedder: "thumbnail"}
	_, err := storeSecretsAndWriteConfig(result, &memSecrets{data: map[string]string{}}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# imgsearch configuration, generated by imgsearch init"))
}

func TestInit_RequiresTerminal(t *testing.T) {
	isolate(t)
	root := NewRootCmd()
	root.SetIn(strings.NewReader(""))
	var out strings.Builder
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"init"})

	err := root.Execute()
	assert.True(t, imgerr.HasCode(err, imgerr.CodeCLISetupFailure), "got %v", err)
	assert.Contains(t, out.String(), "interactive terminal")
}
