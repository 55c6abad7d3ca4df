// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/zalando/go-keyring"
)

// go-keyring cannot enumerate entries, so each service keeps a JSON list of
// its key names under this suffix.
const indexSuffix = "::index"

// KeyringStore is a Store backed by the OS keyring (Keychain, Secret
// Service or Credential Manager).
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	switch {
	case service == "":
		return imgerr.Errorf(imgerr.CodeSecretInvalidInput, "secret %s: service is empty", op)
	case key == "":
		return imgerr.Errorf(imgerr.CodeSecretInvalidInput, "secret %s: key is empty", op)
	case key == service+indexSuffix:
		return imgerr.Errorf(imgerr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return imgerr.Wrapf(err, imgerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.writeIndex(service, append(keys, key))
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", imgerr.Errorf(imgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", imgerr.Wrapf(err, imgerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return imgerr.Errorf(imgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return imgerr.Wrapf(err, imgerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	return s.writeIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

// List returns the key names stored for service in insertion order.
func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, imgerr.Wrapf(err, imgerr.CodeSecretListFailure, "reading key index of %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, imgerr.Wrapf(err, imgerr.CodeSecretListFailure, "decoding key index of %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) writeIndex(service string, keys []string) error {
	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index failed", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return imgerr.Wrapf(err, imgerr.CodeSecretListFailure, "encoding key index of %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return imgerr.Wrapf(err, imgerr.CodeSecretListFailure, "writing key index of %s", service)
	}
	return nil
}
