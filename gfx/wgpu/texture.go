// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// Texture is a device texture with a default view.
type Texture struct {
	ctx    *Context
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
	format framelink.PixelFormat

	// usage is the last usage the texture was transitioned to.
	// Guarded by ctx.mu.
	usage gputypes.TextureUsage

	releaseOnce sync.Once
	released    bool
}

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height int) { return t.width, t.height }

// Format returns the pixel format.
func (t *Texture) Format() framelink.PixelFormat { return t.format }

// Release destroys the view and the texture. Idempotent.
func (t *Texture) Release() {
	t.releaseOnce.Do(func() {
		t.ctx.mu.Lock()
		defer t.ctx.mu.Unlock()

		t.released = true
		if t.ctx.closed && !t.ctx.external {
			// The device is gone with its resources.
			return
		}
		t.ctx.device.DestroyTextureView(t.view)
		t.ctx.device.DestroyTexture(t.tex)
	})
}

func (t *Texture) isReleased() bool {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	return t.released
}

// transition records a usage barrier on encoder. ctx.mu must be held.
func (t *Texture) transition(encoder hal.CommandEncoder, usage gputypes.TextureUsage) {
	if t.usage == usage {
		return
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: t.usage,
			NewUsage: usage,
		},
	}})
	t.usage = usage
}

var _ gfx.Texture = (*Texture)(nil)
