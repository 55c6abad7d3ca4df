// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"testing"
	"time"

	"github.com/sigil-dev/imgsearch/internal/media"
	"github.com/sigil-dev/imgsearch/internal/server"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/sigil-dev/imgsearch/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServices(t *testing.T) {
	_, err := server.NewServices(nil)
	require.Error(t, err)
	assert.True(t, imgerr.HasCode(err, imgerr.CodeServerConfigInvalid))

	svc, err := server.NewServices(&fakeGallery{})
	require.NoError(t, err)
	assert.NotNil(t, svc.Gallery())
	assert.Empty(t, svc.Roots())
	assert.Nil(t, svc.Health())
}

func TestNewServices_Options(t *testing.T) {
	checker := health.NewChecker(time.Second)
	svc, err := server.NewServices(&fakeGallery{},
		server.WithMediaRoots([]string{"/srv/images"}),
		server.WithHealth(checker))
	require.NoError(t, err)
	assert.Equal(t, media.Roots{"/srv/images"}, svc.Roots())
	assert.Same(t, checker, svc.Health())
}
