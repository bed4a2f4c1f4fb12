// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package raster

import (
	"image"
	"sync/atomic"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// Texture is a raster texture with its own pixel storage.
type Texture struct {
	ctx      *Context
	img      *image.RGBA
	format   framelink.PixelFormat
	released atomic.Bool
}

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// Format returns the pixel format.
func (t *Texture) Format() framelink.PixelFormat { return t.format }

// Image returns the pixels, or nil after Release.
func (t *Texture) Image() *image.RGBA {
	if t.released.Load() {
		return nil
	}
	return t.img
}

// Release frees the texture. Idempotent.
func (t *Texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.ctx.releaseOwned()
}

// SharedTexture is a texture-cache view over a shared buffer.
// Its pixels are the buffer's memory.
type SharedTexture struct {
	ctx      *Context
	entry    *cacheEntry
	released atomic.Bool
}

// Size returns the buffer dimensions.
func (t *SharedTexture) Size() (width, height int) {
	return t.entry.buf.Width(), t.entry.buf.Height()
}

// Format returns the buffer's pixel format.
func (t *SharedTexture) Format() framelink.PixelFormat { return t.entry.buf.Format() }

// Image returns the view over shared memory. Returns nil after Release or
// once the buffer has been destroyed.
func (t *SharedTexture) Image() *image.RGBA {
	if t.released.Load() || !t.entry.buf.Alive() {
		return nil
	}
	return t.entry.view
}

// Generation returns the generation of the wrapped buffer.
func (t *SharedTexture) Generation() uint64 { return t.entry.buf.Generation() }

// Release drops this texture's reference to the cached view. Idempotent.
func (t *SharedTexture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.ctx.releaseShared(t.entry)
}

var (
	_ gfx.CPUTexture = (*Texture)(nil)
	_ gfx.CPUTexture = (*SharedTexture)(nil)
)
