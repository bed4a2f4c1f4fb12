// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gfx defines the graphics API contexts the producer and presenter
// render and sample with.
//
// A Context owns one device and one command-submission queue. The producer
// and the presenter each get their own Context; contexts are never shared
// across that boundary. Two implementations ship with framelink:
//
//   - gfx/raster: the legacy raster API, CPU textures backed by *image.RGBA
//   - gfx/wgpu: the lower-level API over gogpu/wgpu HAL devices
//
// Zero-copy imports are optional capabilities expressed as extra interfaces
// (SharedTextureCache, DirectTextureDevice, ExternalMemoryImporter). Import
// strategies in package texture type-assert for them.
package gfx

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/shm"
)

// Context errors.
var (
	// ErrContextClosed is returned by operations on a closed context.
	ErrContextClosed = errors.New("gfx: context closed")

	// ErrForeignTexture is returned when a texture from another context is
	// passed in.
	ErrForeignTexture = errors.New("gfx: texture belongs to another context")

	// ErrSizeMismatch is returned when an upload does not match the texture.
	ErrSizeMismatch = errors.New("gfx: size mismatch")
)

// API identifies a graphics API family.
type API uint8

const (
	// APILegacy is the legacy raster API.
	APILegacy API = iota + 1

	// APIModern is the lower-level API.
	APIModern
)

// String returns the API name.
func (a API) String() string {
	switch a {
	case APILegacy:
		return "legacy"
	case APIModern:
		return "modern"
	default:
		return fmt.Sprintf("API(%d)", uint8(a))
	}
}

// Texture is a sampleable texture object owned by a Context.
// Release frees the texture object; for zero-copy textures the shared pixel
// memory itself is not freed.
type Texture interface {
	// Size returns the texture dimensions in pixels.
	Size() (width, height int)

	// Format returns the pixel format.
	Format() framelink.PixelFormat

	// Release frees the texture object. Idempotent.
	Release()
}

// CPUTexture is a texture whose pixels can be sampled on the CPU.
type CPUTexture interface {
	Texture

	// Image returns the texture pixels. Returns nil after Release, or when
	// the texture's backing memory has been destroyed.
	Image() *image.RGBA
}

// Context is one graphics API device plus its submission queue.
type Context interface {
	// API returns the API family.
	API() API

	// Name returns a short human-readable identifier for logs.
	Name() string

	// NewTexture allocates a texture with its own storage.
	NewTexture(width, height int, format framelink.PixelFormat) (Texture, error)

	// Upload copies pix (rows of stride bytes) into tex.
	Upload(tex Texture, pix []byte, stride int) error

	// Finish blocks until all submitted work has completed on the device.
	// It is the completion signal a producer waits on before publishing.
	Finish(ctx context.Context) error

	// Close releases the device. Idempotent.
	Close() error
}

// SharedTextureCache is implemented by legacy contexts that can wrap a
// shared buffer as a texture without copying.
type SharedTextureCache interface {
	// TextureFromBuffer returns a texture whose storage is buf's memory.
	TextureFromBuffer(buf *shm.Buffer) (Texture, error)

	// FlushCache drops cached texture objects that are no longer in use.
	FlushCache()
}

// DirectTextureDevice is implemented by modern contexts that can construct
// a texture object directly over shared memory.
type DirectTextureDevice interface {
	// NewTextureOverBuffer returns a texture whose storage is buf's memory.
	NewTextureOverBuffer(buf *shm.Buffer) (Texture, error)
}

// ExternalMemoryImporter is implemented by contexts exposing the legacy
// external-memory extension. Imported textures are refreshed by reading
// through the platform handle; the extension does not share the payload.
type ExternalMemoryImporter interface {
	// ImportExternalMemory creates a texture for buf's platform handle.
	ImportExternalMemory(buf *shm.Buffer) (Texture, error)

	// RefreshExternalMemory re-reads buf's contents into tex.
	RefreshExternalMemory(tex Texture, buf *shm.Buffer) error
}
