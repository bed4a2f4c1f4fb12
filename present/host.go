// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package present

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/gpucontext"
)

// Host target errors.
var (
	// ErrNilDrawer is returned when NewHostTarget gets a nil drawer.
	ErrNilDrawer = errors.New("present: nil TextureDrawer")

	// ErrNoTextureCreator is returned when the drawer cannot create textures.
	ErrNoTextureCreator = errors.New("present: drawer has no TextureCreator")
)

// textureDestroyer matches host textures that own GPU memory.
type textureDestroyer interface {
	Destroy()
}

// HostTarget presents through a host window's gpucontext.TextureDrawer.
// Draw converts the frame to RGBA and uploads it into a host texture; Present
// draws that texture at the configured position.
//
// The host texture is recreated only when the frame size changes. Otherwise
// it is updated in place when it implements gpucontext.TextureUpdater.
type HostTarget struct {
	drawer gpucontext.TextureDrawer
	x, y   float32

	mu       sync.Mutex
	staging  *image.RGBA
	tex      gpucontext.Texture
	presents uint64
}

// HostTargetOption configures a HostTarget.
type HostTargetOption func(*HostTarget)

// WithPosition sets the top-left corner the frame is drawn at.
func WithPosition(x, y float32) HostTargetOption {
	return func(t *HostTarget) {
		t.x, t.y = x, y
	}
}

// NewHostTarget returns a target drawing through drawer.
func NewHostTarget(drawer gpucontext.TextureDrawer, opts ...HostTargetOption) (*HostTarget, error) {
	if drawer == nil {
		return nil, ErrNilDrawer
	}
	t := &HostTarget{drawer: drawer}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Draw uploads tex into the host texture. tex must be a gfx.CPUTexture.
func (t *HostTarget) Draw(tex gfx.Texture) error {
	ct, ok := tex.(gfx.CPUTexture)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedTexture, tex)
	}
	src := ct.Image()
	if src == nil {
		return fmt.Errorf("%w: texture has no pixels", framelink.ErrStaleBinding)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	size := src.Bounds().Size()
	if t.staging == nil || t.staging.Bounds().Size() != size {
		t.staging = image.NewRGBA(image.Rectangle{Max: size})
	}
	draw.Draw(t.staging, t.staging.Bounds(), src, src.Bounds().Min, draw.Src)
	if tex.Format() == framelink.FormatBGRA8 {
		swapRB(t.staging)
	}
	return t.uploadLocked(size.X, size.Y)
}

func (t *HostTarget) uploadLocked(w, h int) error {
	if t.tex != nil && t.tex.Width() == w && t.tex.Height() == h {
		if u, ok := t.tex.(gpucontext.TextureUpdater); ok {
			return u.UpdateData(t.staging.Pix)
		}
	}

	creator := t.drawer.TextureCreator()
	if creator == nil {
		return ErrNoTextureCreator
	}
	next, err := creator.NewTextureFromRGBA(w, h, t.staging.Pix)
	if err != nil {
		return fmt.Errorf("present: host texture %dx%d: %w", w, h, err)
	}

	// Creation waits for the host queue, so the old texture is no longer
	// sampled once it returns.
	if d, ok := t.tex.(textureDestroyer); ok {
		d.Destroy()
	}
	t.tex = next
	framelink.Logger().Debug("present: host texture created", "width", w, "height", h)
	return nil
}

// Present draws the last uploaded texture. It is a no-op before the first
// Draw.
func (t *HostTarget) Present() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.presents++
	if t.tex == nil {
		return nil
	}
	return t.drawer.DrawTexture(t.tex, t.x, t.y)
}

// Presents returns the number of Present calls.
func (t *HostTarget) Presents() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presents
}

// Close destroys the host texture. The drawer is not closed.
func (t *HostTarget) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.tex.(textureDestroyer); ok {
		d.Destroy()
	}
	t.tex = nil
	t.staging = nil
	return nil
}

var _ Target = (*HostTarget)(nil)
