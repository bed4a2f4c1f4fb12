// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package producer renders frames into the shared surface on its own
// goroutine and publishes them through the handoff.
//
// The producer draws through a render-target binding: a zero-copy import of
// the shared buffer on the producer's own graphics context, so the pixel
// source writes straight into shared memory. Each frame is published only
// after the context's completion fence, and a frame that fails, is
// cancelled, or completes after Stop is never marked Ready.
package producer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/handoff"
	"github.com/gogpu/framelink/shm"
	"github.com/gogpu/framelink/texture"
)

// DefaultBusyBackoff is the pause after the presenter was found holding the
// buffer, or after a complete frame was found still pending.
const DefaultBusyBackoff = time.Millisecond

// State is the coarse lifecycle state of a Producer.
type State uint8

const (
	// StateUninitialized has no render target.
	StateUninitialized State = iota

	// StateReady has a render target and is not rendering.
	StateReady

	// StateRendering runs the render loop.
	StateRendering
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Stats are cumulative render loop counters.
type Stats struct {
	Rendered  uint64 // frames the source finished drawing
	Committed uint64 // frames published as Ready
	Aborted   uint64 // frames abandoned before Ready
	Busy      uint64 // iterations skipped because the presenter held the buffer
	Held      uint64 // iterations skipped because the last frame was not yet acquired
	Errors    uint64 // source or fence failures
}

// Option configures a Producer.
type Option func(*Producer)

// WithFrameInterval throttles the render loop to one frame per d.
// Zero renders as fast as possible.
func WithFrameInterval(d time.Duration) Option {
	return func(p *Producer) {
		p.interval = d
	}
}

// WithImporter sets the strategy used to bind the render target.
// It must produce a zero-copy binding whose texture is a gfx.CPUTexture.
func WithImporter(imp texture.Importer) Option {
	return func(p *Producer) {
		if imp != nil {
			p.importer = imp
		}
	}
}

// WithBusyBackoff sets the pause after finding the buffer busy.
func WithBusyBackoff(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.busyBackoff = d
		}
	}
}

// Producer owns a graphics context and renders frames into the shared
// surface. Its methods are safe for concurrent use.
type Producer struct {
	h           *handoff.Handoff
	gctx        gfx.Context
	source      PixelSource
	importer    texture.Importer
	interval    time.Duration
	busyBackoff time.Duration

	mu     sync.Mutex
	state  State
	target *texture.Binding
	cancel context.CancelFunc
	done   chan struct{}

	rendered  atomic.Uint64
	committed atomic.Uint64
	aborted   atomic.Uint64
	busy      atomic.Uint64
	held      atomic.Uint64
	errs      atomic.Uint64
}

// New returns an uninitialized producer rendering source on gctx and
// publishing through h.
func New(h *handoff.Handoff, gctx gfx.Context, source PixelSource, opts ...Option) *Producer {
	p := &Producer{
		h:           h,
		gctx:        gctx,
		source:      source,
		importer:    texture.LegacyTextureCache{},
		busyBackoff: DefaultBusyBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the lifecycle state.
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Initialize binds buf as the render target. It fails with
// framelink.ErrInitFailed when the context cannot render into shared
// memory.
func (p *Producer) Initialize(buf *shm.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUninitialized {
		return fmt.Errorf("producer: already initialized (%v)", p.state)
	}
	if p.h == nil || p.gctx == nil || p.source == nil {
		return fmt.Errorf("%w: producer needs a handoff, a context and a source", framelink.ErrInitFailed)
	}

	b, err := p.importer.Import(buf, p.gctx)
	if err != nil {
		return fmt.Errorf("%w: render target on %s: %w", framelink.ErrInitFailed, p.gctx.Name(), err)
	}
	tex, err := b.Texture()
	if err == nil {
		if _, ok := tex.(gfx.CPUTexture); !ok || !b.ZeroCopy() {
			err = errors.New("render target is not drawable shared memory")
		}
	}
	if err != nil {
		b.Release()
		return fmt.Errorf("%w: render target on %s: %w", framelink.ErrInitFailed, p.gctx.Name(), err)
	}

	p.target = b
	p.state = StateReady
	framelink.Logger().Info("producer: initialized",
		"context", p.gctx.Name(),
		"method", b.Method(),
		"generation", b.Generation(),
	)
	return nil
}

// Start opens the rendering gate and launches the render loop.
// Starting a rendering producer is a no-op.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateUninitialized:
		return framelink.ErrNotInitialized
	case StateRendering:
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.h.SetRendering(true)
	p.state = StateRendering

	go p.loop(ctx, p.target, p.done)
	framelink.Logger().Debug("producer: started", "interval", p.interval)
	return nil
}

// Stop closes the rendering gate, cancels the in-flight frame and waits for
// the render loop to exit. After Stop returns the producer writes nothing
// more to the buffer, and a frame in progress is never marked Ready.
// Stopping a producer that is not rendering is a no-op.
func (p *Producer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRendering {
		return nil
	}

	// Gate first: a frame finishing now is refused by CommitWrite.
	p.h.SetRendering(false)
	p.cancel()
	<-p.done

	p.cancel = nil
	p.done = nil
	p.state = StateReady
	framelink.Logger().Debug("producer: stopped")
	return nil
}

// Close stops the producer and releases the render target binding.
func (p *Producer) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.target != nil {
		p.target.Release()
		p.target = nil
	}
	p.state = StateUninitialized
	return nil
}

// Stats returns a snapshot of the loop counters.
func (p *Producer) Stats() Stats {
	return Stats{
		Rendered:  p.rendered.Load(),
		Committed: p.committed.Load(),
		Aborted:   p.aborted.Load(),
		Busy:      p.busy.Load(),
		Held:      p.held.Load(),
		Errors:    p.errs.Load(),
	}
}

func (p *Producer) loop(ctx context.Context, target *texture.Binding, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for ctx.Err() == nil {
		if wait := p.renderFrame(ctx, target); wait > 0 {
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}
	}
}

// renderFrame runs one write cycle. It returns a backoff duration when the
// buffer could not be written. A committed frame is never revoked by the
// next write: the loop waits until the presenter has acquired it.
func (p *Producer) renderFrame(ctx context.Context, target *texture.Binding) time.Duration {
	log := framelink.Logger()

	f, err := p.h.TryBeginWrite()
	switch {
	case errors.Is(err, handoff.ErrPending):
		p.held.Add(1)
		return p.busyBackoff
	case errors.Is(err, handoff.ErrBusy):
		p.busy.Add(1)
		return p.busyBackoff
	case errors.Is(err, handoff.ErrNotRendering):
		return p.busyBackoff
	case err != nil:
		log.Warn("producer: cannot begin frame", "err", err)
		return p.busyBackoff
	}

	if f.Generation != target.Generation() {
		p.h.AbortWrite(f)
		p.aborted.Add(1)
		log.Warn("producer: buffer replaced under render target",
			"frame_generation", f.Generation,
			"target_generation", target.Generation(),
		)
		return p.busyBackoff
	}

	frame := Frame{Seq: f.Seq, Generation: f.Generation, Time: time.Now()}
	err = target.Use(func(tex gfx.Texture) error {
		dst := tex.(gfx.CPUTexture).Image()
		if dst == nil {
			return framelink.ErrStaleBinding
		}
		if err := p.source.Render(ctx, frame, dst); err != nil {
			return err
		}
		if f.Buffer.Format() == framelink.FormatBGRA8 {
			swapRB(dst)
		}
		return nil
	})
	if err == nil {
		p.rendered.Add(1)
		// Publish only after the device reports completion.
		err = p.gctx.Finish(ctx)
	}
	if err != nil {
		p.h.AbortWrite(f)
		p.aborted.Add(1)
		if ctx.Err() != nil {
			log.Debug("producer: frame cancelled", "seq", f.Seq)
			return 0
		}
		p.errs.Add(1)
		log.Warn("producer: frame failed", "seq", f.Seq, "err", err)
		return p.busyBackoff
	}

	if err := p.h.CommitWrite(f); err != nil {
		p.aborted.Add(1)
		if !errors.Is(err, handoff.ErrNotRendering) {
			log.Warn("producer: commit failed", "seq", f.Seq, "err", err)
		}
		return 0
	}
	p.committed.Add(1)
	log.Debug("producer: frame ready", "seq", f.Seq)
	return 0
}

// swapRB converts RGBA pixel order to BGRA in place.
func swapRB(img *image.RGBA) {
	w := img.Bounds().Dx() * framelink.BytesPerPixel
	for y := 0; y < img.Bounds().Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+2] = row[i+2], row[i]
		}
	}
}

// sleep waits for d or until ctx is done. It reports false if ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
