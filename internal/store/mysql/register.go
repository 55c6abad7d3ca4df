// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mysql

import "github.com/sigil-dev/imgsearch/internal/store"

func init() {
	store.RegisterMetadataBackend("mysql", func(cfg *store.MetadataConfig) (store.MetadataStore, error) {
		return NewMetadataStore(cfg.MySQL)
	})
}
