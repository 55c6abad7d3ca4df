// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package progress_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sigil-dev/imgsearch/internal/progress"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackers(t *testing.T) map[string]progress.Tracker {
	t.Helper()
	b, err := progress.NewBadger(progress.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]progress.Tracker{
		"memory": progress.NewMemory(),
		"badger": b,
	}
}

func TestTracker_UnknownKeyIsZero(t *testing.T) {
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			p, err := tr.Get(context.Background(), "never-loaded")
			require.NoError(t, err)
			assert.Equal(t, progress.Progress{}, p)
		})
	}
}

func TestTracker_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Set(ctx, "a", progress.Progress{Current: 1, Total: 10}))
			require.NoError(t, tr.Set(ctx, "b", progress.Progress{Current: 7, Total: 7}))
			require.NoError(t, tr.Set(ctx, "a", progress.Progress{Current: 2, Total: 10}))

			a, err := tr.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, progress.Progress{Current: 2, Total: 10}, a)
			assert.False(t, a.Done())

			b, err := tr.Get(ctx, "b")
			require.NoError(t, err)
			assert.True(t, b.Done())
		})
	}
}

func TestTracker_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := range 8 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := fmt.Sprintf("load-%d", i)
					for c := int64(0); c <= 20; c++ {
						assert.NoError(t, tr.Set(ctx, key, progress.Progress{Current: c, Total: 20}))
					}
				}(i)
			}
			wg.Wait()

			for i := range 8 {
				p, err := tr.Get(ctx, fmt.Sprintf("load-%d", i))
				require.NoError(t, err)
				assert.Equal(t, progress.Progress{Current: 20, Total: 20}, p)
			}
		})
	}
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := progress.NewBadger(progress.BadgerOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "/tmp/cache", progress.Progress{Current: 3, Total: 9}))
	require.NoError(t, b.Close())

	b, err = progress.NewBadger(progress.BadgerOptions{Dir: dir})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	p, err := b.Get(ctx, "/tmp/cache")
	require.NoError(t, err)
	assert.Equal(t, progress.Progress{Current: 3, Total: 9}, p)
}

func TestNew(t *testing.T) {
	tr, err := progress.New(progress.Config{})
	require.NoError(t, err)
	assert.IsType(t, &progress.Memory{}, tr)

	tr, err = progress.New(progress.Config{Backend: "badger", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &progress.Badger{}, tr)
	require.NoError(t, tr.Close())

	_, err = progress.New(progress.Config{Backend: "badger"})
	assert.True(t, imgerr.HasCode(err, imgerr.CodeProgressFailure))

	_, err = progress.New(progress.Config{Backend: "redis"})
	assert.Error(t, err)
}
