// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package present consumes frames from the handoff on display clock ticks
// and draws them into a destination target.
//
// On each tick the presenter acquires the pending frame, imports the shared
// buffer as a texture on its own graphics context, draws it into the target
// and presents. Per-frame failures are logged and the frame is skipped; the
// next tick tries again. Persistent import failures switch the presenter to
// the copy fallback.
package present

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/handoff"
	"github.com/gogpu/framelink/texture"
)

// Status is the outcome of one tick.
type Status uint8

const (
	// StatusNoFrame means no new frame was pending.
	StatusNoFrame Status = iota

	// StatusPresented means a new frame was drawn and presented.
	StatusPresented

	// StatusSkipped means a new frame was pending but could not be shown.
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNoFrame:
		return "no-frame"
	case StatusPresented:
		return "presented"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// TickResult describes one tick.
type TickResult struct {
	Status Status
	Time   time.Time

	// Seq and Generation identify the acquired frame. Zero for NoFrame.
	Seq        uint64
	Generation uint64

	// Method is the import method in effect for the tick.
	Method framelink.ImportMethod

	// Represented is set when an idle tick presented the last image again.
	Represented bool

	// Err is the failure that caused a skip.
	Err error
}

// Stats are cumulative tick counters.
type Stats struct {
	Ticks          uint64
	Presented      uint64
	NoFrame        uint64
	Skipped        uint64
	Represented    uint64
	ImportFailures uint64
	Fallbacks      uint64
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithRegistry sets the importer registry. The default is texture.Default().
func WithRegistry(r *texture.Registry) Option {
	return func(p *Presenter) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithMethod sets the requested import method. The default is MethodAuto.
func WithMethod(m framelink.ImportMethod) Option {
	return func(p *Presenter) {
		p.requested = m
	}
}

// WithFallbackAfter sets the number of consecutive import failures that
// switch the presenter to the copy fallback. Zero disables the fallback.
func WithFallbackAfter(n int) Option {
	return func(p *Presenter) {
		if n >= 0 {
			p.fallbackAfter = n
		}
	}
}

// WithIdlePolicy sets the behavior for ticks without a new frame.
func WithIdlePolicy(policy framelink.IdlePolicy) Option {
	return func(p *Presenter) {
		p.idle = policy
	}
}

// Presenter draws handoff frames into a Target. Its methods are safe for
// concurrent use; ticks are serialized.
type Presenter struct {
	h             *handoff.Handoff
	gctx          gfx.Context
	target        Target
	registry      *texture.Registry
	fallbackAfter int
	idle          framelink.IdlePolicy

	// mu serializes ticks with method switches and invalidation.
	mu          sync.Mutex
	requested   framelink.ImportMethod
	cache       *texture.Cache
	closed      bool
	failures    int
	presentedAt time.Time
	stats       Stats

	runMu       sync.Mutex
	unsubscribe func()
}

// New returns an uninitialized presenter drawing frames from h into target
// using gctx for imports.
func New(h *handoff.Handoff, gctx gfx.Context, target Target, opts ...Option) *Presenter {
	p := &Presenter{
		h:             h,
		gctx:          gctx,
		target:        target,
		registry:      texture.Default(),
		requested:     framelink.MethodAuto,
		fallbackAfter: framelink.DefaultFallbackAfter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize selects the importer for the requested method. MethodAuto
// picks the highest priority importer the context supports; an explicit
// method the context cannot import fails with framelink.ErrInitFailed.
func (p *Presenter) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return framelink.ErrClosed
	}
	if p.h == nil || p.gctx == nil || p.target == nil {
		return fmt.Errorf("%w: presenter needs a handoff, a context and a target", framelink.ErrInitFailed)
	}
	if p.cache != nil {
		return nil
	}

	imp, err := p.registry.Resolve(p.requested, p.gctx)
	if err != nil {
		return fmt.Errorf("%w: %w", framelink.ErrInitFailed, err)
	}
	p.cache = texture.NewCache(imp, p.gctx)

	framelink.Logger().Info("present: initialized",
		"requested", p.requested,
		"method", imp.Method(),
		"context", p.gctx.Name(),
	)
	return nil
}

// Method returns the import method in effect, or the requested method
// before Initialize.
func (p *Presenter) Method() framelink.ImportMethod {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.methodLocked()
}

func (p *Presenter) methodLocked() framelink.ImportMethod {
	if p.cache == nil {
		return p.requested
	}
	return p.cache.Importer().Method()
}

// SetMethod switches the import method at runtime. The cached binding is
// released and the next frame is imported with the new method. Before
// Initialize it only records the request.
func (p *Presenter) SetMethod(m framelink.ImportMethod) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return framelink.ErrClosed
	}
	if p.cache == nil {
		p.requested = m
		return nil
	}

	imp, err := p.registry.Resolve(m, p.gctx)
	if err != nil {
		return err
	}
	p.requested = m
	p.failures = 0
	p.cache.SetImporter(imp)

	framelink.Logger().Info("present: import method changed",
		"requested", m,
		"method", imp.Method(),
	)
	return nil
}

// Tick presents the pending frame, if any. Failures never escape: they are
// reported in the result and the frame is skipped.
func (p *Presenter) Tick(now time.Time) TickResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Ticks++
	res := TickResult{Time: now, Method: p.methodLocked()}

	if p.cache == nil || p.closed {
		res.Status = StatusSkipped
		res.Err = framelink.ErrNotInitialized
		if p.closed {
			res.Err = framelink.ErrClosed
		}
		p.stats.Skipped++
		return res
	}

	f, ok := p.h.Acquire()
	if !ok {
		res.Status = StatusNoFrame
		p.stats.NoFrame++
		if p.idle == framelink.IdleRepresent && !p.presentedAt.IsZero() {
			if err := p.target.Present(); err != nil {
				framelink.Logger().Warn("present: re-present failed", "err", err)
			} else {
				res.Represented = true
				p.stats.Represented++
			}
		}
		return res
	}
	defer p.h.Release(f)

	res.Seq = f.Seq
	res.Generation = f.Generation

	if err := p.show(f); err != nil {
		res.Status = StatusSkipped
		res.Err = err
		p.stats.Skipped++
		p.onFailure(err)
		res.Method = p.methodLocked()
		return res
	}

	p.failures = 0
	p.presentedAt = now
	p.stats.Presented++
	res.Status = StatusPresented
	return res
}

// show imports the acquired frame, draws it and presents.
func (p *Presenter) show(f handoff.Frame) error {
	if err := p.h.Validate(f.Generation); err != nil {
		return err
	}

	b, err := p.cache.Get(f.Buffer)
	if err != nil {
		return err
	}
	if err := b.Refresh(); err != nil {
		return err
	}
	if err := b.Use(p.target.Draw); err != nil {
		return fmt.Errorf("present: draw: %w", err)
	}
	if err := p.target.Present(); err != nil {
		return fmt.Errorf("present: present: %w", err)
	}
	return nil
}

// onFailure logs a skipped frame and falls back to the copy importer once
// import failures persist.
func (p *Presenter) onFailure(err error) {
	log := framelink.Logger()

	if !errors.Is(err, framelink.ErrImportFailed) && !errors.Is(err, framelink.ErrStaleBinding) {
		log.Warn("present: frame skipped", "err", err)
		return
	}

	p.failures++
	p.stats.ImportFailures++
	log.Warn("present: import failed, frame skipped",
		"method", p.cache.Importer().Method(),
		"consecutive", p.failures,
		"err", err,
	)

	current := p.cache.Importer().Method()
	if p.fallbackAfter == 0 || p.failures < p.fallbackAfter || current == framelink.MethodCopyFallback {
		return
	}

	imp, ferr := p.registry.Resolve(framelink.MethodCopyFallback, p.gctx)
	if ferr != nil {
		log.Warn("present: copy fallback unavailable", "err", ferr)
		return
	}
	p.cache.SetImporter(imp)
	p.failures = 0
	p.stats.Fallbacks++
	log.Info("present: switched to copy fallback", "from", current)
}

// Start subscribes the presenter to clock. Calling Start while running is a
// no-op.
func (p *Presenter) Start(clock DisplayClock) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	ready, closed := p.cache != nil, p.closed
	p.mu.Unlock()

	switch {
	case closed:
		return framelink.ErrClosed
	case !ready:
		return framelink.ErrNotInitialized
	case p.unsubscribe != nil:
		return nil
	}

	p.unsubscribe = clock.Subscribe(func(now time.Time) {
		p.Tick(now)
	})
	framelink.Logger().Debug("present: started")
	return nil
}

// Stop unsubscribes from the clock and waits for an in-flight tick. It is
// safe to call more than once.
func (p *Presenter) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.unsubscribe == nil {
		return
	}
	p.unsubscribe()
	p.unsubscribe = nil

	p.mu.Lock()
	//nolint:staticcheck // empty critical section waits for a running tick
	p.mu.Unlock()
	framelink.Logger().Debug("present: stopped")
}

// Running reports whether the presenter is subscribed to a clock.
func (p *Presenter) Running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.unsubscribe != nil
}

// Invalidate releases the cached binding. The next frame is imported again.
func (p *Presenter) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		p.cache.Purge()
	}
}

// Close stops the presenter and releases its bindings. The graphics context
// and the target belong to the caller.
func (p *Presenter) Close() {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		p.cache.Purge()
		p.cache = nil
	}
	p.closed = true
}

// Stats returns a snapshot of the tick counters.
func (p *Presenter) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// CacheStats returns the binding cache counters.
func (p *Presenter) CacheStats() texture.CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache == nil {
		return texture.CacheStats{}
	}
	return p.cache.Stats()
}
