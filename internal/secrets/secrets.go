// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps backend credentials out of config files. Config
// values of the form keyring://service/key are replaced with the stored
// secret after the config is read.
package secrets

// Service is the keyring service imgsearch stores its credentials under.
const Service = "imgsearch"

// Well-known key names written by `imgsearch init`.
const (
	KeyMySQLPassword = "mysql-password"
	KeyQdrantAPIKey  = "qdrant-api-key"
	KeyOpenAIAPIKey  = "openai-api-key"
)

// Store persists named secrets grouped by service.
type Store interface {
	Store(service, key, value string) error
	// Retrieve fails with CodeSecretNotFound when key is absent.
	Retrieve(service, key string) (string, error)
	// Delete fails with CodeSecretNotFound when key is absent.
	Delete(service, key string) error
	List(service string) ([]string, error)
}
