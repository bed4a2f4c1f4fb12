// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"fmt"
	"sync"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/shm"
)

// refreshFunc re-reads buf into tex for copying strategies.
type refreshFunc func(tex gfx.Texture, buf *shm.Buffer) error

// Binding maps one shared buffer generation to a texture on one context.
//
// A Binding is owned by the side that imported it. It is invalidated when
// its buffer is destroyed; after that Texture and Refresh fail with
// framelink.ErrStaleBinding. Release must still be called to unregister it.
type Binding struct {
	method     framelink.ImportMethod
	buf        *shm.Buffer
	generation uint64
	refresh    refreshFunc // nil for zero-copy strategies
	onRelease  func()

	mu       sync.Mutex
	tex      gfx.Texture
	invalid  bool
	released bool
}

// newBinding registers a binding for tex with buf. On failure tex is
// released.
func newBinding(method framelink.ImportMethod, buf *shm.Buffer, tex gfx.Texture, refresh refreshFunc, onRelease func()) (*Binding, error) {
	b := &Binding{
		method:     method,
		buf:        buf,
		generation: buf.Generation(),
		refresh:    refresh,
		onRelease:  onRelease,
		tex:        tex,
	}
	if err := buf.Track(b); err != nil {
		tex.Release()
		if onRelease != nil {
			onRelease()
		}
		return nil, err
	}
	return b, nil
}

// Method returns the strategy that created the binding.
func (b *Binding) Method() framelink.ImportMethod { return b.method }

// Buffer returns the bound buffer.
func (b *Binding) Buffer() *shm.Buffer { return b.buf }

// Generation returns the buffer generation captured at import.
func (b *Binding) Generation() uint64 { return b.generation }

// ZeroCopy reports whether the texture aliases the buffer memory.
func (b *Binding) ZeroCopy() bool { return b.refresh == nil }

// Texture returns the bound texture, or framelink.ErrStaleBinding when the
// binding was invalidated or released.
func (b *Binding) Texture() (gfx.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	return b.tex, nil
}

// Use calls fn with the bound texture while holding the binding, so the
// buffer cannot be unmapped until fn returns.
func (b *Binding) Use(fn func(tex gfx.Texture) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return err
	}
	return fn(b.tex)
}

// Refresh brings the texture up to date with the buffer contents. Copying
// strategies re-read the pixels; zero-copy strategies have nothing to do.
// Refresh holds the binding lock, so a concurrent buffer Destroy waits for
// it to finish before unmapping.
func (b *Binding) Refresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return err
	}
	if b.refresh == nil {
		return nil
	}
	if err := b.refresh(b.tex, b.buf); err != nil {
		return &framelink.ImportError{Method: b.method, Err: err}
	}
	return nil
}

func (b *Binding) checkLocked() error {
	switch {
	case b.released:
		return fmt.Errorf("%w: binding released", framelink.ErrStaleBinding)
	case b.invalid || !b.buf.Alive():
		return fmt.Errorf("%w: buffer generation %d destroyed", framelink.ErrStaleBinding, b.generation)
	}
	return nil
}

// Valid reports whether the binding can still be used.
func (b *Binding) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkLocked() == nil
}

// Invalidate drops the texture. It is called by the buffer before its
// memory is unmapped. Idempotent.
func (b *Binding) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.invalid || b.released {
		return
	}
	b.invalid = true
	b.tex.Release()
	framelink.Logger().Debug("texture: binding invalidated",
		"method", b.method,
		"generation", b.generation,
	)
}

// Release frees the texture and unregisters the binding from its buffer.
// Idempotent.
func (b *Binding) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	if !b.invalid {
		b.tex.Release()
	}
	b.mu.Unlock()

	b.buf.Untrack(b)
	if b.onRelease != nil {
		b.onRelease()
	}
}

var _ shm.Invalidator = (*Binding)(nil)
