// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shm

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/gogpu/framelink"
)

// ErrNoHandle is returned by ReadAt when the platform region has no
// descriptor to read through.
var ErrNoHandle = errors.New("shm: region has no platform handle")

// Handle identifies the platform shared-memory region.
type Handle struct {
	// FD is the region's file descriptor, or -1 when the platform mapping
	// has none.
	FD int

	// Name is the region name given at creation.
	Name string

	// Size is the mapped size in bytes.
	Size int
}

// Invalidator is implemented by texture bindings that reference a Buffer.
// Invalidate must release the binding's view of the memory and must not call
// back into Destroy.
type Invalidator interface {
	Invalidate()
}

// nextGeneration hands out process-unique buffer generations, starting at 1.
var nextGeneration atomic.Uint64

// Buffer is one frame of shared pixel memory.
//
// Buffer is safe for concurrent use. Its usage state (who is writing or
// importing) is tracked by the handoff package, not here.
type Buffer struct {
	width      int
	height     int
	stride     int
	format     framelink.PixelFormat
	generation uint64
	name       string

	mu       sync.Mutex
	region   *region
	bindings map[Invalidator]struct{}

	destroyed atomic.Bool
}

// Allocate creates a shared buffer for width x height pixels in format.
// All failures wrap framelink.ErrAllocationFailed.
func Allocate(width, height int, format framelink.PixelFormat) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %w: width=%d, height=%d",
			framelink.ErrAllocationFailed, framelink.ErrInvalidDimensions, width, height)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %w: %v",
			framelink.ErrAllocationFailed, framelink.ErrUnsupportedFormat, format)
	}

	stride := width * framelink.BytesPerPixel
	size := stride * height
	if size/stride != height {
		return nil, fmt.Errorf("%w: size overflow for %dx%d", framelink.ErrAllocationFailed, width, height)
	}

	name := "framelink-" + uuid.NewString()
	r, err := mapRegion(name, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", framelink.ErrAllocationFailed, err)
	}

	b := &Buffer{
		width:      width,
		height:     height,
		stride:     stride,
		format:     format,
		generation: nextGeneration.Add(1),
		name:       name,
		region:     r,
		bindings:   make(map[Invalidator]struct{}),
	}

	framelink.Logger().Info("shm: buffer allocated",
		"name", name,
		"generation", b.generation,
		"width", width,
		"height", height,
		"format", format,
		"size", units.BytesSize(float64(size)),
		"shared", r.fd >= 0 || r.shared,
	)
	return b, nil
}

// Width returns the width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Buffer) Height() int { return b.height }

// Stride returns the number of bytes per row.
func (b *Buffer) Stride() int { return b.stride }

// Size returns the payload size in bytes.
func (b *Buffer) Size() int { return b.stride * b.height }

// Format returns the pixel format.
func (b *Buffer) Format() framelink.PixelFormat { return b.format }

// Bounds returns the pixel rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// Generation returns the process-unique generation of this buffer.
// A replacement buffer always has a different generation.
func (b *Buffer) Generation() uint64 { return b.generation }

// Name returns the shared region name.
func (b *Buffer) Name() string { return b.name }

// Alive reports whether the buffer has not been destroyed.
func (b *Buffer) Alive() bool { return !b.destroyed.Load() }

// Handle returns the platform handle. FD is -1 after Destroy or when the
// platform mapping has no descriptor.
func (b *Buffer) Handle() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := Handle{FD: -1, Name: b.name, Size: b.Size()}
	if b.region != nil {
		h.FD = b.region.fd
	}
	return h
}

// Pixels returns the shared memory. The slice aliases the region: writes are
// visible to every binding without a copy. Returns nil after Destroy.
func (b *Buffer) Pixels() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.region == nil {
		return nil
	}
	return b.region.data
}

// RGBA returns an image over the shared memory without copying.
// The byte order follows Format: for FormatBGRA8 the image's R and B
// channels are swapped. Returns nil after Destroy.
func (b *Buffer) RGBA() *image.RGBA {
	pix := b.Pixels()
	if pix == nil {
		return nil
	}
	return &image.RGBA{
		Pix:    pix,
		Stride: b.stride,
		Rect:   b.Bounds(),
	}
}

// ReadAt copies len(dst) bytes starting at off through the platform handle
// rather than the mapping. It fails with ErrNoHandle when the region has no
// descriptor.
func (b *Buffer) ReadAt(dst []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.region == nil {
		return 0, framelink.ErrStaleBinding
	}
	if b.region.fd < 0 {
		return 0, ErrNoHandle
	}
	return b.region.readAt(dst, off)
}

// Track registers a binding to be invalidated on Destroy.
// Tracking a destroyed buffer fails with framelink.ErrStaleBinding.
func (b *Buffer) Track(inv Invalidator) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.region == nil {
		return fmt.Errorf("%w: buffer %d destroyed", framelink.ErrStaleBinding, b.generation)
	}
	b.bindings[inv] = struct{}{}
	return nil
}

// Untrack removes a binding registered with Track.
func (b *Buffer) Untrack(inv Invalidator) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.bindings, inv)
}

// Bindings returns the number of tracked bindings.
func (b *Buffer) Bindings() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.bindings)
}

// Destroy invalidates all tracked bindings, then unmaps the region and
// closes its handle. Destroy is idempotent.
func (b *Buffer) Destroy() error {
	b.mu.Lock()
	if b.region == nil {
		b.mu.Unlock()
		return nil
	}
	b.destroyed.Store(true)
	r := b.region
	b.region = nil
	live := make([]Invalidator, 0, len(b.bindings))
	for inv := range b.bindings {
		live = append(live, inv)
	}
	b.bindings = nil
	b.mu.Unlock()

	// Bindings first: none of them may still reference the memory once it
	// is unmapped.
	for _, inv := range live {
		inv.Invalidate()
	}

	if err := r.unmap(); err != nil {
		framelink.Logger().Warn("shm: unmap failed", "name", b.name, "err", err)
		return fmt.Errorf("shm: destroy %s: %w", b.name, err)
	}

	framelink.Logger().Info("shm: buffer destroyed",
		"name", b.name,
		"generation", b.generation,
		"invalidated", len(live),
	)
	return nil
}
