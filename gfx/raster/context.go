// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package raster is the legacy raster API: a CPU graphics context whose
// textures are *image.RGBA.
//
// Its texture cache wraps a shared buffer as a texture by pointing an
// image.RGBA header at the shared memory, so neither the producer's render
// target nor the presenter's sampled texture duplicates the pixels. The
// external-memory extension, by contrast, reads the buffer through its
// platform handle into a staging texture.
package raster

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// Context is a legacy raster graphics context.
// Context is safe for concurrent use.
type Context struct {
	label string

	mu     sync.Mutex
	closed bool
	views  map[uint64]*cacheEntry // keyed by buffer generation
	owned  int
}

// cacheEntry is one cached image header over a shared buffer.
type cacheEntry struct {
	buf  *shm.Buffer
	view *image.RGBA
	refs int
}

// New returns a raster context. The label only appears in logs.
func New(label string) *Context {
	if label == "" {
		label = "raster"
	}
	return &Context{
		label: label,
		views: make(map[uint64]*cacheEntry),
	}
}

// API returns gfx.APILegacy.
func (c *Context) API() gfx.API { return gfx.APILegacy }

// Name returns the context label.
func (c *Context) Name() string { return c.label }

// NewTexture allocates a texture with its own pixel storage.
func (c *Context) NewTexture(width, height int, format framelink.PixelFormat) (gfx.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", framelink.ErrInvalidDimensions, width, height)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %v", framelink.ErrUnsupportedFormat, format)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, gfx.ErrContextClosed
	}
	c.owned++
	return &Texture{
		ctx:    c,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		format: format,
	}, nil
}

// Upload copies rows of pix into tex.
func (c *Context) Upload(tex gfx.Texture, pix []byte, stride int) error {
	t, ok := tex.(*Texture)
	if !ok || t.ctx != c {
		return gfx.ErrForeignTexture
	}
	if c.isClosed() {
		return gfx.ErrContextClosed
	}
	img := t.Image()
	if img == nil {
		return fmt.Errorf("raster: upload to released texture")
	}

	w, h := t.Size()
	rowBytes := w * framelink.BytesPerPixel
	if stride < rowBytes || len(pix) < stride*(h-1)+rowBytes {
		return fmt.Errorf("%w: %d bytes at stride %d for %dx%d", gfx.ErrSizeMismatch, len(pix), stride, w, h)
	}

	if stride == img.Stride {
		copy(img.Pix, pix[:len(img.Pix)])
		return nil
	}
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], pix[y*stride:y*stride+rowBytes])
	}
	return nil
}

// Finish returns once all drawing is complete. Raster drawing is
// synchronous, so it only observes cancellation.
func (c *Context) Finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return gfx.ErrContextClosed
	}
	return nil
}

// Close releases the context. Textures already handed out stay readable
// until released.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.views = nil
	framelink.Logger().Debug("raster: context closed", "label", c.label)
	return nil
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LiveTextures returns the number of owned textures not yet released.
func (c *Context) LiveTextures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owned
}

// CachedViews returns the number of cached shared-buffer views.
func (c *Context) CachedViews() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// TextureFromBuffer wraps buf as a texture without copying. Views are cached
// per buffer generation; FlushCache drops views with no live textures.
func (c *Context) TextureFromBuffer(buf *shm.Buffer) (gfx.Texture, error) {
	if buf == nil || !buf.Alive() {
		return nil, fmt.Errorf("%w: buffer destroyed", framelink.ErrStaleBinding)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, gfx.ErrContextClosed
	}

	e, ok := c.views[buf.Generation()]
	if !ok || e.buf != buf {
		view := buf.RGBA()
		if view == nil {
			return nil, fmt.Errorf("%w: buffer destroyed", framelink.ErrStaleBinding)
		}
		e = &cacheEntry{buf: buf, view: view}
		c.views[buf.Generation()] = e
	}
	e.refs++
	return &SharedTexture{ctx: c, entry: e}, nil
}

// FlushCache drops cached views that no texture references, and views
// whose buffer has been destroyed.
func (c *Context) FlushCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for gen, e := range c.views {
		if e.refs == 0 || !e.buf.Alive() {
			delete(c.views, gen)
		}
	}
}

// ImportExternalMemory creates a staging texture filled by reading buf
// through its platform handle. The payload is copied: this extension does
// not achieve zero-copy here.
func (c *Context) ImportExternalMemory(buf *shm.Buffer) (gfx.Texture, error) {
	if buf == nil || !buf.Alive() {
		return nil, fmt.Errorf("%w: buffer destroyed", framelink.ErrStaleBinding)
	}
	if buf.Handle().FD < 0 {
		return nil, fmt.Errorf("raster: external memory: %w", shm.ErrNoHandle)
	}

	tex, err := c.NewTexture(buf.Width(), buf.Height(), buf.Format())
	if err != nil {
		return nil, err
	}
	if err := c.RefreshExternalMemory(tex, buf); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}

// RefreshExternalMemory re-reads buf into a texture created by
// ImportExternalMemory.
func (c *Context) RefreshExternalMemory(tex gfx.Texture, buf *shm.Buffer) error {
	t, ok := tex.(*Texture)
	if !ok || t.ctx != c {
		return gfx.ErrForeignTexture
	}
	img := t.Image()
	if img == nil {
		return fmt.Errorf("raster: refresh of released texture")
	}
	if len(img.Pix) != buf.Size() {
		return fmt.Errorf("%w: texture %d bytes, buffer %d bytes", gfx.ErrSizeMismatch, len(img.Pix), buf.Size())
	}
	n, err := buf.ReadAt(img.Pix, 0)
	if err != nil {
		return fmt.Errorf("raster: external memory read: %w", err)
	}
	if n != len(img.Pix) {
		return fmt.Errorf("raster: external memory short read: %d of %d bytes", n, len(img.Pix))
	}
	return nil
}

func (c *Context) releaseOwned() {
	c.mu.Lock()
	c.owned--
	c.mu.Unlock()
}

func (c *Context) releaseShared(e *cacheEntry) {
	c.mu.Lock()
	e.refs--
	c.mu.Unlock()
}

// Ensure Context implements the capability interfaces.
var (
	_ gfx.Context                = (*Context)(nil)
	_ gfx.SharedTextureCache     = (*Context)(nil)
	_ gfx.ExternalMemoryImporter = (*Context)(nil)
)
