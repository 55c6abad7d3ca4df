// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package media handles image inputs: request sources, staging files on
// disk and enumerating image directories.
package media

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
)

// SourceKind tells which variant a Source holds.
type SourceKind int

const (
	// SourceBytes is an image supplied inline.
	SourceBytes SourceKind = iota + 1
	// SourceRemote is an image to fetch from a URL.
	SourceRemote
)

// Source is an image input: either raw bytes with a file name, or a remote
// URL. Build it with NewSource, Bytes or Remote.
type Source struct {
	kind SourceKind
	name string
	data []byte
	url  *url.URL
}

// Bytes returns an inline source.
func Bytes(name string, data []byte) Source {
	return Source{kind: SourceBytes, name: name, data: data}
}

// Remote returns a source fetched from u.
func Remote(u *url.URL) Source {
	return Source{kind: SourceRemote, url: u, name: path.Base(u.Path)}
}

// NewSource resolves the raw inputs of a request. Raw bytes win when both
// bytes and a URL are given. Only http and https URLs are accepted.
func NewSource(name string, data []byte, rawURL string) (Source, error) {
	if len(data) > 0 {
		return Bytes(name, data), nil
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Source{}, imgerr.New(imgerr.CodeSourceInvalid, "an image file or a url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, imgerr.Wrap(err, imgerr.CodeSourceInvalid, "parsing image url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Source{}, imgerr.Errorf(imgerr.CodeSourceInvalid, "image url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return Source{}, imgerr.New(imgerr.CodeSourceInvalid, "image url has no host")
	}
	return Remote(u), nil
}

func (s Source) Kind() SourceKind { return s.kind }

// Data returns the inline bytes of a SourceBytes.
func (s Source) Data() []byte { return s.data }

// URL returns the location of a SourceRemote.
func (s Source) URL() *url.URL { return s.url }

// FileName returns the base name the image is stored under. It is empty when
// the source carries no usable name.
func (s Source) FileName() string {
	return cleanName(s.name)
}

// cleanName reduces name to a safe base name.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return ""
	}
	return base
}
