// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// LegacyTextureCache wraps the buffer with the legacy API's texture cache.
// The texture's storage is the shared memory itself.
type LegacyTextureCache struct{}

// Method returns framelink.MethodLegacyTextureCache.
func (LegacyTextureCache) Method() framelink.ImportMethod {
	return framelink.MethodLegacyTextureCache
}

// Supports reports whether ctx implements gfx.SharedTextureCache.
func (LegacyTextureCache) Supports(ctx gfx.Context) bool {
	_, ok := ctx.(gfx.SharedTextureCache)
	return ok
}

// Import wraps buf without copying. Releasing the binding flushes unused
// entries from the context's cache.
func (i LegacyTextureCache) Import(buf *shm.Buffer, ctx gfx.Context) (*Binding, error) {
	m := i.Method()
	if err := checkBuffer(m, buf); err != nil {
		return nil, err
	}
	cache, ok := ctx.(gfx.SharedTextureCache)
	if !ok {
		return nil, importError(m, ErrUnsupported)
	}

	tex, err := cache.TextureFromBuffer(buf)
	if err != nil {
		return nil, importError(m, err)
	}
	b, err := newBinding(m, buf, tex, nil, cache.FlushCache)
	if err != nil {
		return nil, importError(m, err)
	}
	return b, nil
}
