// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package progress

import (
	"context"
	"sync"
)

// Memory is an in-process Tracker. Progress is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Progress
}

var _ Tracker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Progress)}
}

func (m *Memory) Set(_ context.Context, key string, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = p
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[key], nil
}

func (m *Memory) Close() error { return nil }
