// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"errors"
	"fmt"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// ErrUnsupported is returned when a context lacks the capability an
// importer needs.
var ErrUnsupported = errors.New("texture: context lacks the import capability")

// Importer binds a shared buffer as a texture on a graphics context.
// Import is safe to call once per presented frame.
type Importer interface {
	// Method identifies the strategy.
	Method() framelink.ImportMethod

	// Supports reports whether ctx has the capability Import needs.
	Supports(ctx gfx.Context) bool

	// Import binds buf on ctx. Errors are *framelink.ImportError values
	// matching framelink.ErrImportFailed, and framelink.ErrStaleBinding
	// when buf has been destroyed.
	Import(buf *shm.Buffer, ctx gfx.Context) (*Binding, error)
}

// New returns the built-in importer for method.
func New(method framelink.ImportMethod) (Importer, error) {
	switch method {
	case framelink.MethodLegacyTextureCache:
		return LegacyTextureCache{}, nil
	case framelink.MethodModernDirectTexture:
		return ModernDirectTexture{}, nil
	case framelink.MethodCopyFallback:
		return CopyFallback{}, nil
	case framelink.MethodLegacyExtension:
		return LegacyExtension{}, nil
	default:
		return nil, fmt.Errorf("texture: no built-in importer for %v", method)
	}
}

func importError(method framelink.ImportMethod, err error) error {
	return &framelink.ImportError{Method: method, Err: err}
}

// checkBuffer rejects nil and destroyed buffers.
func checkBuffer(method framelink.ImportMethod, buf *shm.Buffer) error {
	if buf == nil {
		return importError(method, errors.New("nil buffer"))
	}
	if !buf.Alive() {
		return importError(method, fmt.Errorf("%w: buffer generation %d destroyed", framelink.ErrStaleBinding, buf.Generation()))
	}
	return nil
}
