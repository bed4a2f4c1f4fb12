// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package producer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/framelink"
)

// Frame describes the frame a source is asked to draw.
type Frame struct {
	// Seq is the frame sequence number, starting at 1.
	Seq uint64

	// Generation is the shared buffer generation being written.
	Generation uint64

	// Time is when the frame started.
	Time time.Time
}

// PixelSource supplies per-frame pixel content. Render must fill dst
// completely and should return promptly once ctx is done.
// dst is the shared memory: it must not be retained after Render returns.
type PixelSource interface {
	Render(ctx context.Context, f Frame, dst *image.RGBA) error
}

// SourceFunc adapts a function to PixelSource.
type SourceFunc func(ctx context.Context, f Frame, dst *image.RGBA) error

// Render calls fn.
func (fn SourceFunc) Render(ctx context.Context, f Frame, dst *image.RGBA) error {
	return fn(ctx, f, dst)
}

// Solid returns a source filling every frame with c.
func Solid(c color.Color) PixelSource {
	u := image.NewUniform(c)
	return SourceFunc(func(_ context.Context, _ Frame, dst *image.RGBA) error {
		draw.Draw(dst, dst.Bounds(), u, image.Point{}, draw.Src)
		return nil
	})
}

// Sequence returns a source filling frame n with colors[(n-1) % len(colors)].
func Sequence(colors ...color.Color) PixelSource {
	uniforms := make([]*image.Uniform, len(colors))
	for i, c := range colors {
		uniforms[i] = image.NewUniform(c)
	}
	return SourceFunc(func(_ context.Context, f Frame, dst *image.RGBA) error {
		if len(uniforms) == 0 {
			draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
			return nil
		}
		u := uniforms[(f.Seq-1)%uint64(len(uniforms))]
		draw.Draw(dst, dst.Bounds(), u, image.Point{}, draw.Src)
		return nil
	})
}

// Canvas draws frames with a gg context and copies the result into the
// shared buffer. The gg context is reused while the size is unchanged.
type Canvas struct {
	draw func(dc *gg.Context, f Frame)

	mu sync.Mutex
	dc *gg.Context
}

// NewCanvas returns a gg-backed source calling fn once per frame.
func NewCanvas(fn func(dc *gg.Context, f Frame)) *Canvas {
	return &Canvas{draw: fn}
}

// Render draws the frame and copies it into dst.
func (c *Canvas) Render(ctx context.Context, f Frame, dst *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if c.dc == nil || c.dc.Width() != w || c.dc.Height() != h {
		if c.dc != nil {
			_ = c.dc.Close()
		}
		c.dc = gg.NewContext(w, h)
	}

	c.dc.Clear()
	c.draw(c.dc, f)
	// Pending accelerator shapes land in the pixmap only after a flush.
	if err := c.dc.FlushGPU(); err != nil {
		return fmt.Errorf("producer: canvas flush: %w", err)
	}
	copyRows(dst, c.dc.ResizeTarget().Data(), w, h)
	return nil
}

// copyRows copies a tightly packed w x h RGBA pixmap into dst, whose stride
// may be padded.
func copyRows(dst *image.RGBA, src []byte, w, h int) {
	row := w * framelink.BytesPerPixel
	for y := 0; y < h; y++ {
		off := dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y)
		copy(dst.Pix[off:off+row], src[y*row:(y+1)*row])
	}
}

// Close releases the gg context.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dc == nil {
		return nil
	}
	err := c.dc.Close()
	c.dc = nil
	return err
}
