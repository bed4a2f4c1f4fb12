// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/gfx/raster"
	"github.com/gogpu/framelink/shm"
)

func allocate(t *testing.T, w, h int) *shm.Buffer {
	t.Helper()
	buf, err := shm.Allocate(w, h, framelink.FormatRGBA8)
	if err != nil {
		t.Fatalf("Allocate(%d, %d) error = %v", w, h, err)
	}
	t.Cleanup(func() { _ = buf.Destroy() })
	return buf
}

// plainContext exposes only the base gfx.Context methods of a raster
// context, with no import capabilities.
type plainContext struct {
	inner *raster.Context
}

func newPlainContext() *plainContext { return &plainContext{inner: raster.New("plain")} }

func (c *plainContext) API() gfx.API                     { return gfx.APIModern }
func (c *plainContext) Name() string                     { return c.inner.Name() }
func (c *plainContext) Close() error                     { return c.inner.Close() }
func (c *plainContext) Finish(ctx context.Context) error { return c.inner.Finish(ctx) }
func (c *plainContext) NewTexture(w, h int, f framelink.PixelFormat) (gfx.Texture, error) {
	return c.inner.NewTexture(w, h, f)
}
func (c *plainContext) Upload(tex gfx.Texture, pix []byte, stride int) error {
	return c.inner.Upload(tex, pix, stride)
}

// directContext is a modern context that can build textures over shared
// memory.
type directContext struct {
	*plainContext
	calls int
}

func newDirectContext() *directContext {
	return &directContext{plainContext: newPlainContext()}
}

func (c *directContext) NewTextureOverBuffer(buf *shm.Buffer) (gfx.Texture, error) {
	c.calls++
	return c.inner.TextureFromBuffer(buf)
}

// failingCacheContext is a legacy context whose texture cache fails.
type failingCacheContext struct {
	*raster.Context
	err error
}

func (c *failingCacheContext) TextureFromBuffer(*shm.Buffer) (gfx.Texture, error) {
	return nil, c.err
}

var errCacheBroken = errors.New("texture cache unavailable")

var (
	_ gfx.Context             = (*plainContext)(nil)
	_ gfx.DirectTextureDevice = (*directContext)(nil)
	_ gfx.SharedTextureCache  = (*failingCacheContext)(nil)
)
