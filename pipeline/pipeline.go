// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pipeline wires a shared surface, a handoff, a producer and a
// presenter into one lifecycle.
//
// Teardown always runs in the same order: stop the producer, stop the
// presenter, release every texture binding, detach and destroy the shared
// buffer, then close the graphics contexts the pipeline created.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/docker/go-units"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
	"github.com/gogpu/framelink/gfx/raster"
	"github.com/gogpu/framelink/handoff"
	"github.com/gogpu/framelink/present"
	"github.com/gogpu/framelink/producer"
	"github.com/gogpu/framelink/shm"
	"github.com/gogpu/framelink/texture"
)

// Deps are the collaborators of a pipeline.
type Deps struct {
	// Source draws the frames. Required.
	Source producer.PixelSource

	// Target receives presented frames. Required.
	Target present.Target

	// Clock drives the presenter. Defaults to a 60 Hz TickerClock.
	Clock present.DisplayClock

	// ProducerContext renders into the shared surface. It must expose a
	// zero-copy CPU render target. Defaults to a raster context owned by
	// the pipeline.
	ProducerContext gfx.Context

	// PresenterContext imports the shared surface. Defaults to a raster
	// context owned by the pipeline.
	PresenterContext gfx.Context

	// Registry resolves presenter import methods. Defaults to
	// texture.Default().
	Registry *texture.Registry

	// ProducerImporter binds the producer's render target. Defaults to the
	// legacy texture cache.
	ProducerImporter texture.Importer
}

// State is the lifecycle state of a Pipeline.
type State uint8

const (
	// StateUninitialized has no shared surface.
	StateUninitialized State = iota

	// StateInitialized has a surface and both sides prepared, not running.
	StateInitialized

	// StateRunning renders and presents.
	StateRunning

	// StateClosed is final.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Stats aggregates the component counters.
type Stats struct {
	Handoff   handoff.Stats
	Producer  producer.Stats
	Presenter present.Stats
	Cache     texture.CacheStats
}

// Pipeline is a complete frame handoff pipeline. Its methods are safe for
// concurrent use.
//
// Lifecycle calls are serialized and may wait for an in-flight frame.
// Accessors and Stats never wait for them.
type Pipeline struct {
	deps            Deps
	ownsProducerCtx bool
	ownsPresentCtx  bool

	// mu serializes lifecycle calls. Fields below are written only while
	// holding both mu and view.
	mu sync.Mutex

	view  sync.RWMutex
	cfg   framelink.Config
	state State
	h     *handoff.Handoff
	buf   *shm.Buffer
	prod  *producer.Producer
	pres  *present.Presenter
}

// New validates cfg and deps and returns an uninitialized pipeline.
func New(cfg framelink.Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, errors.New("pipeline: no pixel source")
	}
	if deps.Target == nil {
		return nil, errors.New("pipeline: no present target")
	}

	p := &Pipeline{cfg: cfg, deps: deps}
	if p.deps.Clock == nil {
		p.deps.Clock = present.NewTickerClock(0)
	}
	if p.deps.Registry == nil {
		p.deps.Registry = texture.Default()
	}
	if p.deps.ProducerContext == nil {
		p.deps.ProducerContext = raster.New("producer")
		p.ownsProducerCtx = true
	}
	if p.deps.PresenterContext == nil {
		p.deps.PresenterContext = raster.New("presenter")
		p.ownsPresentCtx = true
	}
	return p, nil
}

// Initialize allocates the shared surface and prepares both sides.
// Failures wrap framelink.ErrAllocationFailed or framelink.ErrInitFailed
// and leave the pipeline uninitialized.
func (p *Pipeline) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed:
		return framelink.ErrClosed
	case StateInitialized, StateRunning:
		return nil
	}
	return p.initLocked()
}

func (p *Pipeline) initLocked() error {
	buf, err := shm.Allocate(p.cfg.Width, p.cfg.Height, p.cfg.Format)
	if err != nil {
		return err
	}

	h := handoff.New()
	if err := h.Attach(buf); err != nil {
		_ = buf.Destroy()
		return fmt.Errorf("%w: %w", framelink.ErrInitFailed, err)
	}

	popts := []producer.Option{producer.WithFrameInterval(p.cfg.FrameInterval)}
	if p.deps.ProducerImporter != nil {
		popts = append(popts, producer.WithImporter(p.deps.ProducerImporter))
	}
	prod := producer.New(h, p.deps.ProducerContext, p.deps.Source, popts...)
	if err := prod.Initialize(buf); err != nil {
		_ = buf.Destroy()
		return err
	}

	pres := present.New(h, p.deps.PresenterContext, p.deps.Target,
		present.WithRegistry(p.deps.Registry),
		present.WithMethod(p.cfg.Method),
		present.WithFallbackAfter(p.cfg.FallbackAfter),
		present.WithIdlePolicy(p.cfg.Idle),
	)
	if err := pres.Initialize(); err != nil {
		_ = prod.Close()
		_ = buf.Destroy()
		return err
	}

	p.view.Lock()
	p.h, p.buf, p.prod, p.pres = h, buf, prod, pres
	p.state = StateInitialized
	p.view.Unlock()

	framelink.Logger().Info("pipeline: initialized",
		"width", p.cfg.Width,
		"height", p.cfg.Height,
		"format", p.cfg.Format,
		"surface", units.HumanSize(float64(buf.Size())),
		"producer", p.deps.ProducerContext.Name(),
		"presenter", p.deps.PresenterContext.Name(),
		"method", pres.Method(),
	)
	return nil
}

// Start launches the producer loop and subscribes the presenter to the
// clock. Starting a running pipeline is a no-op.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed:
		return framelink.ErrClosed
	case StateUninitialized:
		return framelink.ErrNotInitialized
	case StateRunning:
		return nil
	}
	return p.startLocked()
}

func (p *Pipeline) startLocked() error {
	if err := p.prod.Start(); err != nil {
		return err
	}
	if err := p.pres.Start(p.deps.Clock); err != nil {
		_ = p.prod.Stop()
		return err
	}
	p.setState(StateRunning)
	return nil
}

// Stop halts production and presentation. In-flight work is joined before
// it returns, so Stop blocks for as long as the current frame takes.
// Stopping a stopped pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Pipeline) stopLocked() error {
	if p.state != StateRunning {
		return nil
	}
	err := p.prod.Stop()
	p.pres.Stop()
	p.setState(StateInitialized)
	return err
}

// Close tears the pipeline down and closes the contexts it created.
// It is safe to call more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return nil
	}
	err := p.teardownLocked()

	if p.ownsProducerCtx {
		err = errors.Join(err, p.deps.ProducerContext.Close())
	}
	if p.ownsPresentCtx {
		err = errors.Join(err, p.deps.PresenterContext.Close())
	}
	p.setState(StateClosed)
	framelink.Logger().Info("pipeline: closed")
	return err
}

// teardownLocked releases everything built by initLocked.
func (p *Pipeline) teardownLocked() error {
	if p.state == StateUninitialized {
		return nil
	}

	err := p.stopLocked()

	p.pres.Invalidate()
	err = errors.Join(err, p.prod.Close())

	if _, derr := p.h.Detach(); derr != nil {
		err = errors.Join(err, derr)
	}
	err = errors.Join(err, p.buf.Destroy())
	p.pres.Close()

	p.view.Lock()
	p.h, p.buf, p.prod, p.pres = nil, nil, nil, nil
	p.state = StateUninitialized
	p.view.Unlock()
	return err
}

// Resize replaces the shared surface with one of the new size. The whole
// pipeline is torn down and initialized again; a running pipeline is
// restarted with the configured import method.
func (p *Pipeline) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return framelink.ErrClosed
	}
	cfg := p.cfg
	cfg.Width, cfg.Height = width, height
	if err := cfg.Validate(); err != nil {
		return err
	}
	if p.state == StateUninitialized {
		p.setConfig(cfg)
		return nil
	}

	running := p.state == StateRunning
	if err := p.teardownLocked(); err != nil {
		framelink.Logger().Warn("pipeline: teardown before resize", "err", err)
	}

	p.setConfig(cfg)
	if err := p.initLocked(); err != nil {
		return err
	}
	framelink.Logger().Info("pipeline: resized", "width", width, "height", height)
	if running {
		return p.startLocked()
	}
	return nil
}

// SetMethod changes the presenter's import method without restarting.
func (p *Pipeline) SetMethod(m framelink.ImportMethod) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return framelink.ErrClosed
	}
	if p.pres != nil {
		if err := p.pres.SetMethod(m); err != nil {
			return err
		}
	}
	cfg := p.cfg
	cfg.Method = m
	p.setConfig(cfg)
	return nil
}

func (p *Pipeline) setState(s State) {
	p.view.Lock()
	p.state = s
	p.view.Unlock()
}

func (p *Pipeline) setConfig(cfg framelink.Config) {
	p.view.Lock()
	p.cfg = cfg
	p.view.Unlock()
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.state
}

// Config returns the current configuration.
func (p *Pipeline) Config() framelink.Config {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.cfg
}

// Stats returns a snapshot of all counters. It is zero before Initialize.
func (p *Pipeline) Stats() Stats {
	p.view.RLock()
	defer p.view.RUnlock()

	if p.h == nil {
		return Stats{}
	}
	return Stats{
		Handoff:   p.h.Stats(),
		Producer:  p.prod.Stats(),
		Presenter: p.pres.Stats(),
		Cache:     p.pres.CacheStats(),
	}
}

// Buffer returns the shared surface, or nil before Initialize.
func (p *Pipeline) Buffer() *shm.Buffer {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.buf
}

// Handoff returns the handoff, or nil before Initialize.
func (p *Pipeline) Handoff() *handoff.Handoff {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.h
}

// Presenter returns the presenter, or nil before Initialize.
func (p *Pipeline) Presenter() *present.Presenter {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.pres
}

// Producer returns the producer, or nil before Initialize.
func (p *Pipeline) Producer() *producer.Producer {
	p.view.RLock()
	defer p.view.RUnlock()
	return p.prod
}
