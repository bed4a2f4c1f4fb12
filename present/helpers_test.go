// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package present

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/gfx/raster"
	"github.com/gogpu/framelink/handoff"
	"github.com/gogpu/framelink/shm"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

type fixture struct {
	buf    *shm.Buffer
	h      *handoff.Handoff
	ctx    *raster.Context
	target *ImageTarget
}

func newFixture(t *testing.T, w, h int) *fixture {
	t.Helper()
	buf, err := shm.Allocate(w, h, framelink.FormatRGBA8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = buf.Destroy() })

	hf := handoff.New()
	if err := hf.Attach(buf); err != nil {
		t.Fatal(err)
	}
	hf.SetRendering(true)
	return &fixture{
		buf:    buf,
		h:      hf,
		ctx:    raster.New("present"),
		target: NewImageTarget(w, h),
	}
}

// publish writes a solid frame through the handoff as a producer would.
func (fx *fixture) publish(t *testing.T, c color.RGBA) {
	t.Helper()
	f, err := fx.h.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite() error = %v", err)
	}
	fill(f.Buffer.RGBA(), c)
	if err := fx.h.CommitWrite(f); err != nil {
		t.Fatalf("CommitWrite() error = %v", err)
	}
}

func fill(img *image.RGBA, c color.RGBA) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// uniform reports whether every pixel of img is c.
func uniform(img *image.RGBA, c color.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != c {
				return false
			}
		}
	}
	return true
}

// flakyCacheContext is a raster context whose texture cache fails the
// first n imports.
type flakyCacheContext struct {
	*raster.Context

	mu    sync.Mutex
	fails int
}

var errCacheBusy = errors.New("texture cache busy")

func (c *flakyCacheContext) TextureFromBuffer(buf *shm.Buffer) (gfx.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fails > 0 {
		c.fails--
		return nil, errCacheBusy
	}
	return c.Context.TextureFromBuffer(buf)
}

// recordingTarget counts draws and presents and can be told to fail.
type recordingTarget struct {
	mu       sync.Mutex
	draws    int
	presents int
	drawErr  error
}

func (r *recordingTarget) Draw(gfx.Texture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawErr != nil {
		return r.drawErr
	}
	r.draws++
	return nil
}

func (r *recordingTarget) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presents++
	return nil
}

func (r *recordingTarget) counts() (draws, presents int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws, r.presents
}

// gateTarget blocks the first Draw until release is closed.
type gateTarget struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateTarget) Draw(gfx.Texture) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return nil
}

func (g *gateTarget) Present() error { return nil }

// opaqueTexture has no CPU-visible pixels.
type opaqueTexture struct{}

func (opaqueTexture) Size() (int, int)              { return 1, 1 }
func (opaqueTexture) Format() framelink.PixelFormat { return framelink.FormatRGBA8 }
func (opaqueTexture) Release()                      {}

var (
	_ gfx.SharedTextureCache = (*flakyCacheContext)(nil)
	_ Target                 = (*recordingTarget)(nil)
	_ Target                 = (*gateTarget)(nil)
	_ gfx.Texture            = opaqueTexture{}
)
