// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health runs liveness probes against the service's backends and
// reports a point-in-time status per component.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is the state of a component or of the whole service.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// ProbeFunc checks one component. A nil error means the component is healthy.
type ProbeFunc func(ctx context.Context) error

// Component is the result of one probe. All fields are safe to serialize.
type Component struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates the component results. Status is ok only when every
// component is ok.
type Report struct {
	Status     Status               `json:"status"`
	Components map[string]Component `json:"components,omitempty"`
}

// Checker holds named probes.
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]ProbeFunc
	timeout time.Duration
}

// NewChecker returns a Checker whose probes each run under timeout.
// A non-positive timeout defaults to 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probes: map[string]ProbeFunc{}, timeout: timeout}
}

// Register adds or replaces the probe for name.
func (c *Checker) Register(name string, probe ProbeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Names returns the registered component names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all probes concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]ProbeFunc, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	report := Report{Status: StatusOK, Components: make(map[string]Component, len(probes))}
	if len(probes) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comp := c.run(ctx, probe)
			mu.Lock()
			report.Components[name] = comp
			if comp.Status != StatusOK {
				report.Status = StatusDegraded
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return report
}

func (c *Checker) run(ctx context.Context, probe ProbeFunc) Component {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	comp := Component{
		Status:    StatusOK,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: start.UTC(),
	}
	if err != nil {
		comp.Status = StatusDegraded
		comp.Error = err.Error()
	}
	return comp
}
