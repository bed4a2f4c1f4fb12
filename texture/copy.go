// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"fmt"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// CopyFallback uploads the buffer's pixels into a texture with its own
// storage. Every Refresh copies again. It works on any context.
type CopyFallback struct{}

// Method returns framelink.MethodCopyFallback.
func (CopyFallback) Method() framelink.ImportMethod { return framelink.MethodCopyFallback }

// Supports always reports true.
func (CopyFallback) Supports(gfx.Context) bool { return true }

// Import allocates a texture and uploads the current contents of buf.
func (i CopyFallback) Import(buf *shm.Buffer, ctx gfx.Context) (*Binding, error) {
	m := i.Method()
	if err := checkBuffer(m, buf); err != nil {
		return nil, err
	}

	tex, err := ctx.NewTexture(buf.Width(), buf.Height(), buf.Format())
	if err != nil {
		return nil, importError(m, err)
	}

	upload := func(tex gfx.Texture, buf *shm.Buffer) error {
		pix := buf.Pixels()
		if pix == nil {
			return fmt.Errorf("%w: buffer generation %d destroyed", framelink.ErrStaleBinding, buf.Generation())
		}
		return ctx.Upload(tex, pix, buf.Stride())
	}

	// Track before the first upload so Destroy waits for it.
	b, err := newBinding(m, buf, tex, upload, nil)
	if err != nil {
		return nil, importError(m, err)
	}
	if err := b.Refresh(); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}
