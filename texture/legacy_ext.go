// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// LegacyExtension imports through the legacy API's external-memory
// extension. The extension reads through the platform handle, so it does
// not avoid the copy. It has the lowest priority and is never preferred over
// CopyFallback.
type LegacyExtension struct{}

// Method returns framelink.MethodLegacyExtension.
func (LegacyExtension) Method() framelink.ImportMethod { return framelink.MethodLegacyExtension }

// Supports reports whether ctx implements gfx.ExternalMemoryImporter.
func (LegacyExtension) Supports(ctx gfx.Context) bool {
	_, ok := ctx.(gfx.ExternalMemoryImporter)
	return ok
}

// Import creates a texture from buf's platform handle.
func (i LegacyExtension) Import(buf *shm.Buffer, ctx gfx.Context) (*Binding, error) {
	m := i.Method()
	if err := checkBuffer(m, buf); err != nil {
		return nil, err
	}
	ext, ok := ctx.(gfx.ExternalMemoryImporter)
	if !ok {
		return nil, importError(m, ErrUnsupported)
	}

	tex, err := ext.ImportExternalMemory(buf)
	if err != nil {
		return nil, importError(m, err)
	}
	b, err := newBinding(m, buf, tex, ext.RefreshExternalMemory, nil)
	if err != nil {
		return nil, importError(m, err)
	}
	return b, nil
}
