// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"slices"
	"sync"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// VectorFactory opens a vector index from configuration.
type VectorFactory func(cfg *VectorConfig) (VectorIndex, error)

// MetadataFactory opens a metadata store from configuration.
type MetadataFactory func(cfg *MetadataConfig) (MetadataStore, error)

var (
	vectorFactories   = map[string]VectorFactory{}
	metadataFactories = map[string]MetadataFactory{}
	factoriesMu       sync.RWMutex
)

// RegisterVectorBackend registers a named vector index backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterVectorBackend(name string, f VectorFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	vectorFactories[name] = f
}

// RegisterMetadataBackend registers a named metadata store backend.
func RegisterMetadataBackend(name string, f MetadataFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	metadataFactories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(name string) string {
	if name == "" {
		return "sqlite"
	}
	return name
}

// NewVectorIndex opens the configured vector index.
func NewVectorIndex(cfg *VectorConfig) (VectorIndex, error) {
	backend := resolveBackend(cfg.Backend)

	factoriesMu.RLock()
	factory, ok := vectorFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, imgerr.Errorf(imgerr.CodeStoreBackendUnsupported, "unsupported vector backend: %q", backend)
	}

	return factory(cfg)
}

// NewMetadataStore opens the configured metadata store.
func NewMetadataStore(cfg *MetadataConfig) (MetadataStore, error) {
	backend := resolveBackend(cfg.Backend)

	factoriesMu.RLock()
	factory, ok := metadataFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, imgerr.Errorf(imgerr.CodeStoreBackendUnsupported, "unsupported metadata backend: %q", backend)
	}

	return factory(cfg)
}

// Backends lists the registered vector and metadata backend names.
func Backends() (vector, metadata []string) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	for name := range vectorFactories {
		vector = append(vector, name)
	}
	for name := range metadataFactories {
		metadata = append(metadata, name)
	}
	slices.Sort(vector)
	slices.Sort(metadata)
	return vector, metadata
}
