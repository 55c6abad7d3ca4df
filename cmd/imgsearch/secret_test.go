// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/secrets"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSecrets is an in-memory secrets.Store for the imgsearch service.
type memSecrets struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memSecrets) Store(_, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memSecrets) Retrieve(_, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", imgerr.Errorf(imgerr.CodeSecretNotFound, "secret %s not found", key)
	}
	return v, nil
}

func (m *memSecrets) Delete(_, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return imgerr.Errorf(imgerr.CodeSecretNotFound, "secret %s not found", key)
	}
	delete(m.data, key)
	return nil
}

func (m *memSecrets) List(string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// useSecrets points secretStore at an in-memory store seeded with kv pairs.
func useSecrets(t *testing.T, kv ...string) *memSecrets {
	t.Helper()
	m := &memSecrets{data: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.data[kv[i]] = kv[i+1]
	}
	orig := secretStore
	secretStore = func() secrets.Store { return m }
	t.Cleanup(func() { secretStore = orig })
	return m
}

func TestSecretSet(t *testing.T) {
	isolate(t)
	m := useSecrets(t)

	root := NewRootCmd()
	root.SetIn(strings.NewReader("hunter2\n"))
	var out strings.Builder
	root.SetOut(&out)
	root.SetArgs([]string{"secret", "set", secrets.KeyMySQLPassword})
	require.NoError(t, root.Execute())

	assert.Equal(t, "hunter2", m.data[secrets.KeyMySQLPassword])
	assert.Contains(t, out.String(), "keyring://imgsearch/mysql-password")
}

func TestSecretSet_EmptyInput(t *testing.T) {
	isolate(t)
	useSecrets(t)

	root := NewRootCmd()
	root.SetIn(strings.NewReader(""))
	root.SetArgs([]string{"secret", "set", "x"})
	err := root.Execute()
	assert.True(t, imgerr.HasCode(err, imgerr.CodeCLIInputInvalid), "got %v", err)
}

func TestSecretListAndDelete(t *testing.T) {
	isolate(t)
	useSecrets(t, "openai-api-key", "sk", "mysql-password", "pw")

	out, err := execute(t, "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "mysql-password\nopenai-api-key\n", out)

	out, err = execute(t, "secret", "delete", "openai-api-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret openai-api-key")

	_, err = execute(t, "secret", "delete", "openai-api-key")
	assert.True(t, imgerr.IsNotFound(err), "got %v", err)

	_, err = execute(t, "secret", "delete", "mysql-password")
	require.NoError(t, err)
	out, err = execute(t, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")
}

func TestLoadConfig_ResolvesKeyringReferences(t *testing.T) {
	home := isolate(t)
	useSecrets(t, secrets.KeyMySQLPassword, "db-pass")

	path := filepath.Join(home, "imgsearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"metadata:\n  backend: mysql\n  mysql:\n    password: keyring://imgsearch/mysql-password\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "db-pass", cfg.Metadata.MySQL.Password)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	isolate(t)
	useSecrets(t)

	v := viper.New()
	v.Set("embedding.openai.api_key", secrets.Ref(secrets.KeyOpenAIAPIKey))

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.openai.api_key")
}
