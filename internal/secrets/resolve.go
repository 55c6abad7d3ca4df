// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

const scheme = "keyring://"

// Ref returns the config reference for key under the imgsearch service.
func Ref(key string) string {
	return scheme + Service + "/" + key
}

// IsRef reports whether value is a keyring:// reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef splits keyring://service/key. The key may contain slashes.
func ParseRef(ref string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(ref, scheme)
	if !ok {
		return "", "", imgerr.Errorf(imgerr.CodeSecretInvalidInput, "not a keyring reference: %q", ref)
	}
	service, key, ok = strings.Cut(rest, "/")
	if !ok || service == "" || key == "" {
		return "", "", imgerr.Errorf(imgerr.CodeSecretInvalidInput,
			"malformed keyring reference %q, want keyring://service/key", ref)
	}
	return service, key, nil
}

// Resolve returns the secret behind a keyring:// reference. Any other value
// is returned unchanged.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	service, key, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", imgerr.Wrapf(err, imgerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}
