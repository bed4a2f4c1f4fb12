// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// ModernDirectTexture constructs a modern-API texture object directly over
// the shared memory.
//
// Neither gfx/raster nor gfx/wgpu implements gfx.DirectTextureDevice: the
// HAL has no external-memory import. The method is only selected with a
// context that supplies one; otherwise the registry moves on to the next
// method.
type ModernDirectTexture struct{}

// Method returns framelink.MethodModernDirectTexture.
func (ModernDirectTexture) Method() framelink.ImportMethod {
	return framelink.MethodModernDirectTexture
}

// Supports reports whether ctx implements gfx.DirectTextureDevice.
func (ModernDirectTexture) Supports(ctx gfx.Context) bool {
	_, ok := ctx.(gfx.DirectTextureDevice)
	return ok
}

// Import creates the texture over buf without copying.
func (i ModernDirectTexture) Import(buf *shm.Buffer, ctx gfx.Context) (*Binding, error) {
	m := i.Method()
	if err := checkBuffer(m, buf); err != nil {
		return nil, err
	}
	dev, ok := ctx.(gfx.DirectTextureDevice)
	if !ok {
		return nil, importError(m, ErrUnsupported)
	}

	tex, err := dev.NewTextureOverBuffer(buf)
	if err != nil {
		return nil, importError(m, err)
	}
	b, err := newBinding(m, buf, tex, nil, nil)
	if err != nil {
		return nil, importError(m, err)
	}
	return b, nil
}
