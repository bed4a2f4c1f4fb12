// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// Target is a presentation target backed by a render texture on the
// device. Draw blits the sampled texture into it.
type Target struct {
	ctx      *Context
	tex      *Texture
	presents atomic.Uint64
}

// NewTarget creates a width x height render target on ctx. The context
// must be initialized.
func NewTarget(ctx *Context, width, height int, format framelink.PixelFormat) (*Target, error) {
	tex, err := ctx.NewTexture(width, height, format)
	if err != nil {
		return nil, err
	}
	return &Target{ctx: ctx, tex: tex.(*Texture)}, nil
}

// Draw blits src over the whole target.
func (t *Target) Draw(src gfx.Texture) error {
	return t.ctx.Blit(context.Background(), src, t.tex)
}

// Present counts the presented frame. Blit already waited for the device.
func (t *Target) Present() error {
	t.presents.Add(1)
	return nil
}

// Presents returns the number of presented frames.
func (t *Target) Presents() uint64 { return t.presents.Load() }

// Texture returns the render texture.
func (t *Target) Texture() gfx.Texture { return t.tex }

// Snapshot reads the target back into a new image.
func (t *Target) Snapshot(ctx context.Context) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, t.tex.width, t.tex.height))
	if err := t.ctx.ReadPixels(ctx, t.tex, img); err != nil {
		return nil, err
	}
	return img, nil
}

// Release frees the render texture.
func (t *Target) Release() { t.tex.Release() }
