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
)

// ErrUnsupportedTexture is returned when a target cannot sample a texture.
var ErrUnsupportedTexture = errors.New("present: target cannot sample texture")

// Target is the on-screen destination supplied by the window collaborator.
// The presenter draws into it and presents; it never manages its lifecycle.
type Target interface {
	// Draw samples tex over the whole destination.
	Draw(tex gfx.Texture) error

	// Present shows the last drawn image.
	Present() error
}

// ImageTarget is a CPU destination image with a back buffer. Draw renders
// into the back buffer and Present publishes it. Textures of another size
// are scaled.
type ImageTarget struct {
	scaler draw.Scaler

	mu       sync.Mutex
	back     *image.RGBA
	front    *image.RGBA
	drawn    bool
	presents uint64
}

// ImageTargetOption configures an ImageTarget.
type ImageTargetOption func(*ImageTarget)

// WithScaler sets the scaler used when texture and target sizes differ.
// The default is draw.ApproxBiLinear.
func WithScaler(s draw.Scaler) ImageTargetOption {
	return func(t *ImageTarget) {
		if s != nil {
			t.scaler = s
		}
	}
}

// NewImageTarget returns a width x height target.
func NewImageTarget(width, height int, opts ...ImageTargetOption) *ImageTarget {
	r := image.Rect(0, 0, width, height)
	t := &ImageTarget{
		scaler: draw.ApproxBiLinear,
		back:   image.NewRGBA(r),
		front:  image.NewRGBA(r),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bounds returns the destination rectangle.
func (t *ImageTarget) Bounds() image.Rectangle { return t.back.Bounds() }

// Draw copies or scales tex into the back buffer. tex must be a
// gfx.CPUTexture.
func (t *ImageTarget) Draw(tex gfx.Texture) error {
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

	dr := t.back.Bounds()
	if src.Bounds().Size() == dr.Size() {
		draw.Draw(t.back, dr, src, src.Bounds().Min, draw.Src)
	} else {
		t.scaler.Scale(t.back, dr, src, src.Bounds(), draw.Src, nil)
	}
	if tex.Format() == framelink.FormatBGRA8 {
		swapRB(t.back)
	}
	t.drawn = true
	return nil
}

// Present swaps the back buffer to the front. Presenting without a new draw
// shows the previous image again.
func (t *ImageTarget) Present() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drawn {
		t.back, t.front = t.front, t.back
		t.drawn = false
	}
	t.presents++
	return nil
}

// Presents returns the number of Present calls.
func (t *ImageTarget) Presents() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presents
}

// Snapshot returns a copy of the presented image.
func (t *ImageTarget) Snapshot() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	img := image.NewRGBA(t.front.Bounds())
	copy(img.Pix, t.front.Pix)
	return img
}

// swapRB swaps the R and B channels in place.
func swapRB(img *image.RGBA) {
	w := img.Bounds().Dx() * framelink.BytesPerPixel
	for y := 0; y < img.Bounds().Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+2] = row[i+2], row[i]
		}
	}
}

var _ Target = (*ImageTarget)(nil)
