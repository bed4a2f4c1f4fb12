// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"sync"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// CacheStats counts cache outcomes.
type CacheStats struct {
	Imports uint64 // fresh imports
	Reuses  uint64 // frames served by the cached binding
	Stale   uint64 // cached bindings dropped because the buffer changed
}

// Cache holds at most one binding for an importer on a context. The
// binding is reused across frames only while the buffer identity and
// generation are unchanged.
type Cache struct {
	ctx gfx.Context

	mu       sync.Mutex
	importer Importer
	binding  *Binding
	stats    CacheStats
}

// NewCache returns an empty cache importing with imp on ctx.
func NewCache(imp Importer, ctx gfx.Context) *Cache {
	return &Cache{importer: imp, ctx: ctx}
}

// Importer returns the active importer.
func (c *Cache) Importer() Importer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.importer
}

// SetImporter switches the strategy and releases the cached binding.
func (c *Cache) SetImporter(imp Importer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.importer = imp
	c.purgeLocked()
}

// Get returns a valid binding for buf, importing when the cached binding
// refers to another buffer, an older generation, or was invalidated.
func (c *Cache) Get(buf *shm.Buffer) (*Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.binding; b != nil {
		if b.Buffer() == buf && b.Generation() == buf.Generation() && b.Valid() {
			c.stats.Reuses++
			return b, nil
		}
		c.stats.Stale++
		framelink.Logger().Debug("texture: cached binding stale, re-importing",
			"method", b.Method(),
			"generation", b.Generation(),
		)
		c.purgeLocked()
	}

	b, err := c.importer.Import(buf, c.ctx)
	if err != nil {
		return nil, err
	}
	c.binding = b
	c.stats.Imports++
	return b, nil
}

// Purge releases the cached binding.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
}

func (c *Cache) purgeLocked() {
	if c.binding != nil {
		c.binding.Release()
		c.binding = nil
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
