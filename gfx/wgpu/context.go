// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// DefaultFenceTimeout bounds completion waits when the caller's context
// has no deadline.
const DefaultFenceTimeout = 5 * time.Second

const pollInterval = 100 * time.Microsecond

// ErrNoDevice is returned when a provider does not expose a HAL device.
var ErrNoDevice = errors.New("wgpu: provider does not expose a HAL device")

// Context is a graphics context over one HAL device and queue.
// Context is safe for concurrent use; submissions are serialized.
type Context struct {
	label string

	mu       sync.Mutex
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // non-nil when Open created the device
	external bool
	closed   bool
	blit     *blitPipeline
}

// New returns a context over device and queue. The caller keeps ownership
// of both; Close does not destroy them.
func New(device hal.Device, queue hal.Queue) *Context {
	return &Context{
		label:    "wgpu",
		device:   device,
		queue:    queue,
		external: true,
	}
}

// NewFromProvider returns a context over a host application's device. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %w", framelink.ErrInitFailed, ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", framelink.ErrInitFailed)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", framelink.ErrInitFailed)
	}
	return New(device, queue), nil
}

// SetLabel sets the name used in logs.
func (c *Context) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

// Initialize compiles the blit shader and creates the blit pipeline state.
// Failures wrap framelink.ErrInitFailed.
func (c *Context) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return gfx.ErrContextClosed
	}
	if c.blit != nil {
		return nil
	}
	bp, err := newBlitPipeline(c.device)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", framelink.ErrInitFailed, c.label, err)
	}
	c.blit = bp
	framelink.Logger().Debug("wgpu: context initialized", "label", c.label)
	return nil
}

// API returns gfx.APIModern.
func (c *Context) API() gfx.API { return gfx.APIModern }

// Name returns the context label.
func (c *Context) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// NewTexture creates a sampleable texture with its own device storage.
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

	//nolint:gosec // G115: dimensions validated above
	size := hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "framelink_texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format.TextureFormat(),
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "framelink_texture_view",
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}

	return &Texture{
		ctx:    c,
		tex:    tex,
		view:   view,
		width:  width,
		height: height,
		format: format,
		usage:  gputypes.TextureUsageCopyDst,
	}, nil
}

// Upload writes rows of pix into tex through the queue.
func (c *Context) Upload(tex gfx.Texture, pix []byte, stride int) error {
	t, ok := tex.(*Texture)
	if !ok || t.ctx != c {
		return gfx.ErrForeignTexture
	}
	if t.isReleased() {
		return fmt.Errorf("wgpu: upload to released texture")
	}

	rowBytes := t.width * framelink.BytesPerPixel
	if stride < rowBytes || len(pix) < stride*(t.height-1)+rowBytes {
		return fmt.Errorf("%w: %d bytes at stride %d for %dx%d", gfx.ErrSizeMismatch, len(pix), stride, t.width, t.height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gfx.ErrContextClosed
	}

	//nolint:gosec // G115: dimensions validated by NewTexture
	err := c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		pix[:stride*(t.height-1)+rowBytes],
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(stride), RowsPerImage: uint32(t.height)},
		&hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("wgpu: write texture: %w", err)
	}
	t.usage = gputypes.TextureUsageCopyDst
	return nil
}

// Finish submits an empty batch and waits until the queue reports it
// complete, so every write submitted before the call has finished on the
// device when it returns.
func (c *Context) Finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gfx.ErrContextClosed
	}
	return c.submitLocked(ctx, nil)
}

// submitLocked submits cmds and waits for the submission index to complete.
// c.mu must be held.
func (c *Context) submitLocked(ctx context.Context, cmds []hal.CommandBuffer) error {
	index, err := c.queue.Submit(cmds)
	if err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	return c.waitLocked(ctx, index)
}

// waitLocked polls the queue until index has completed, ctx is done or
// DefaultFenceTimeout passes when ctx has no deadline.
func (c *Context) waitLocked(ctx context.Context, index uint64) error {
	if c.queue.PollCompleted() >= index {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFenceTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for c.queue.PollCompleted() < index {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wgpu: wait for submission %d: %w", index, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// ReadPixels copies tex into dst through a staging buffer.
// dst must match the texture size.
func (c *Context) ReadPixels(ctx context.Context, tex gfx.Texture, dst *image.RGBA) error {
	t, ok := tex.(*Texture)
	if !ok || t.ctx != c {
		return gfx.ErrForeignTexture
	}
	if t.isReleased() {
		return fmt.Errorf("wgpu: read of released texture")
	}
	if b := dst.Bounds(); b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("%w: destination %dx%d, texture %dx%d", gfx.ErrSizeMismatch, b.Dx(), b.Dy(), t.width, t.height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gfx.ErrContextClosed
	}

	//nolint:gosec // G115: dimensions validated by NewTexture
	w, h := uint32(t.width), uint32(t.height)
	bytesPerRow := w * framelink.BytesPerPixel
	// Copy rows must be aligned to 256 bytes.
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "framelink_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framelink_readback"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framelink_readback"); err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	t.transition(encoder, gputypes.TextureUsageCopySrc)
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submitLocked(ctx, []hal.CommandBuffer{cmdBuf}); err != nil {
		return err
	}

	mapping, err := c.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	defer func() { _ = c.device.UnmapBuffer(staging) }()

	readback := unsafe.Slice((*byte)(mapping.Ptr), stagingSize)
	for row := 0; row < t.height; row++ {
		src := readback[row*int(alignedBytesPerRow) : row*int(alignedBytesPerRow)+int(bytesPerRow)]
		copy(dst.Pix[row*dst.Stride:row*dst.Stride+int(bytesPerRow)], src)
	}
	return nil
}

// Close destroys the blit pipeline, and the device when Open created it.
// Idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.blit != nil {
		c.blit.destroy(c.device)
		c.blit = nil
	}
	if !c.external && c.device != nil {
		c.device.Destroy()
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
	framelink.Logger().Debug("wgpu: context closed", "label", c.label)
	return nil
}

var _ gfx.Context = (*Context)(nil)
