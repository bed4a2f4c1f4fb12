// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package producer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx/raster"
	"github.com/gogpu/framelink/handoff"
	"github.com/gogpu/framelink/shm"
	"github.com/gogpu/framelink/texture"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
)

type fixture struct {
	buf *shm.Buffer
	h   *handoff.Handoff
	ctx *raster.Context
}

func newFixture(t *testing.T, w, h int, format framelink.PixelFormat) *fixture {
	t.Helper()
	buf, err := shm.Allocate(w, h, format)
	if err != nil {
		t.Fatal(err)
	}
	hf := handoff.New()
	if err := hf.Attach(buf); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = buf.Destroy() })
	return &fixture{buf: buf, h: hf, ctx: raster.New("producer")}
}

func (fx *fixture) start(t *testing.T, src PixelSource, opts ...Option) *Producer {
	t.Helper()
	p := New(fx.h, fx.ctx, src, opts...)
	if err := p.Initialize(fx.buf); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLifecycle(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)
	p := New(fx.h, fx.ctx, Solid(red))

	if p.State() != StateUninitialized {
		t.Fatalf("State() = %v, want uninitialized", p.State())
	}
	if err := p.Start(); !errors.Is(err, framelink.ErrNotInitialized) {
		t.Fatalf("Start() before Initialize error = %v, want ErrNotInitialized", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() before Start error = %v", err)
	}

	if err := p.Initialize(fx.buf); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateReady {
		t.Fatalf("State() = %v, want ready", p.State())
	}
	if err := p.Initialize(fx.buf); err == nil {
		t.Error("second Initialize() should fail")
	}

	for i := 0; i < 2; i++ {
		if err := p.Start(); err != nil {
			t.Fatalf("Start() #%d error = %v", i+1, err)
		}
		if p.State() != StateRendering || !fx.h.Rendering() {
			t.Fatalf("after Start #%d: state %v, gate %v", i+1, p.State(), fx.h.Rendering())
		}
	}
	for i := 0; i < 2; i++ {
		if err := p.Stop(); err != nil {
			t.Fatalf("Stop() #%d error = %v", i+1, err)
		}
		if p.State() != StateReady || fx.h.Rendering() {
			t.Fatalf("after Stop #%d: state %v, gate %v", i+1, p.State(), fx.h.Rendering())
		}
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateUninitialized {
		t.Errorf("State() after Close = %v, want uninitialized", p.State())
	}
	if fx.buf.Bindings() != 0 {
		t.Errorf("Bindings() after Close = %d, want 0", fx.buf.Bindings())
	}
}

func TestInitializeFailures(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)

	tests := []struct {
		name string
		p    *Producer
	}{
		{"no source", New(fx.h, fx.ctx, nil)},
		{"no context", New(fx.h, nil, Solid(red))},
		{"copy importer", New(fx.h, fx.ctx, Solid(red), WithImporter(texture.CopyFallback{}))},
		{"unsupported importer", New(fx.h, fx.ctx, Solid(red), WithImporter(texture.ModernDirectTexture{}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Initialize(fx.buf); !errors.Is(err, framelink.ErrInitFailed) {
				t.Errorf("Initialize() error = %v, want ErrInitFailed", err)
			}
			if fx.buf.Bindings() != 0 {
				t.Errorf("Bindings() = %d after failed Initialize, want 0", fx.buf.Bindings())
			}
		})
	}

	_ = fx.buf.Destroy()
	p := New(fx.h, fx.ctx, Solid(red))
	if err := p.Initialize(fx.buf); !errors.Is(err, framelink.ErrInitFailed) {
		t.Errorf("Initialize(destroyed) error = %v, want ErrInitFailed", err)
	}
}

func TestProducesFrame(t *testing.T) {
	fx := newFixture(t, 32, 16, framelink.FormatRGBA8)
	p := fx.start(t, Solid(red))

	waitFor(t, "first frame", fx.h.Pending)
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}

	f, ok := fx.h.Acquire()
	if !ok {
		t.Fatal("Acquire() found no frame")
	}
	defer fx.h.Release(f)

	img := f.Buffer.RGBA()
	for _, pt := range []image.Point{{0, 0}, {31, 15}, {16, 8}} {
		if got := img.RGBAAt(pt.X, pt.Y); got != red {
			t.Errorf("pixel %v = %v, want %v", pt, got, red)
		}
	}

	s := p.Stats()
	if s.Committed == 0 || s.Rendered < s.Committed {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBGRAFormat(t *testing.T) {
	fx := newFixture(t, 4, 4, framelink.FormatBGRA8)
	p := fx.start(t, Solid(red))

	waitFor(t, "first frame", fx.h.Pending)
	_ = p.Stop()

	pix := fx.buf.Pixels()
	want := []byte{0, 0, 255, 255}
	if !bytes.Equal(pix[:4], want) {
		t.Errorf("first pixel bytes = %v, want %v", pix[:4], want)
	}
}

// Stop while the source is mid-frame: the frame must never become Ready and
// the buffer must not change after Stop returns.
func TestStopDuringRender(t *testing.T) {
	fx := newFixture(t, 16, 16, framelink.FormatRGBA8)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	src := SourceFunc(func(_ context.Context, _ Frame, dst *image.RGBA) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		draw := image.NewUniform(green)
		for y := 0; y < dst.Bounds().Dy(); y++ {
			for x := 0; x < dst.Bounds().Dx(); x++ {
				dst.Set(x, y, draw.C)
			}
		}
		return nil
	})
	p := fx.start(t, src)

	<-started
	stopped := make(chan struct{})
	go func() {
		_ = p.Stop()
		close(stopped)
	}()

	// Stop waits for the in-flight frame.
	waitFor(t, "gate closed", func() bool { return !fx.h.Rendering() })
	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight frame finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-stopped

	if fx.h.Pending() {
		t.Error("frame completed after Stop was marked Ready")
	}
	if st := fx.h.State(); st != handoff.StateIdle {
		t.Errorf("handoff state = %v, want idle", st)
	}
	if s := fx.h.Stats(); s.Committed != 0 || s.Aborted != 1 {
		t.Errorf("handoff stats = %+v, want 0 committed, 1 aborted", s)
	}

	snapshot := bytes.Clone(fx.buf.Pixels())
	time.Sleep(20 * time.Millisecond)
	if !bytes.Equal(snapshot, fx.buf.Pixels()) {
		t.Error("buffer written after Stop returned")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestStopCancelsRender(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)

	started := make(chan struct{})
	var once atomic.Bool
	src := SourceFunc(func(ctx context.Context, _ Frame, _ *image.RGBA) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})
	p := fx.start(t, src)

	<-started
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if fx.h.Pending() {
		t.Error("cancelled frame marked Ready")
	}
	s := p.Stats()
	if s.Aborted != 1 || s.Errors != 0 {
		t.Errorf("Stats() = %+v, want 1 aborted, 0 errors", s)
	}
}

func TestSourceErrorAborts(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)
	errShader := errors.New("shader failed")
	p := fx.start(t, SourceFunc(func(context.Context, Frame, *image.RGBA) error {
		return errShader
	}))

	waitFor(t, "failed frames", func() bool { return p.Stats().Errors >= 3 })
	_ = p.Stop()

	if fx.h.Pending() {
		t.Error("failed frame marked Ready")
	}
	if s := fx.h.Stats(); s.Committed != 0 {
		t.Errorf("handoff committed %d frames, want 0", s.Committed)
	}
}

func TestBusyWhileImporting(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)
	p := fx.start(t, Solid(red))

	waitFor(t, "first frame", fx.h.Pending)
	f, ok := fx.h.Acquire()
	if !ok {
		t.Fatal("Acquire() found no frame")
	}

	waitFor(t, "busy iterations", func() bool { return p.Stats().Busy >= 2 })
	if fx.h.State() != handoff.StateImporting {
		t.Errorf("state = %v while presenter holds the buffer", fx.h.State())
	}
	fx.h.Release(f)

	waitFor(t, "frame after release", fx.h.Pending)
}

func TestFrameInterval(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)
	p := fx.start(t, Solid(red), WithFrameInterval(25*time.Millisecond))

	time.Sleep(120 * time.Millisecond)
	_ = p.Stop()

	if n := p.Stats().Rendered; n == 0 || n > 8 {
		t.Errorf("rendered %d frames in 120ms at 25ms interval", n)
	}
}

// A free-running producer keeps its last complete frame until the presenter
// takes it, instead of revoking it with the next write.
func TestHoldsPendingFrame(t *testing.T) {
	fx := newFixture(t, 8, 8, framelink.FormatRGBA8)
	p := fx.start(t, Sequence(red, green))

	waitFor(t, "first frame", fx.h.Pending)
	waitFor(t, "held iterations", func() bool { return p.Stats().Held >= 3 })

	if s := p.Stats(); s.Rendered != 1 || s.Committed != 1 {
		t.Errorf("Stats() = %+v, want exactly one frame while it is pending", s)
	}
	f, ok := fx.h.Acquire()
	if !ok {
		t.Fatal("pending frame was revoked before Acquire")
	}
	if got := f.Buffer.RGBA().RGBAAt(0, 0); got != red {
		t.Errorf("first frame pixel = %v, want %v", got, red)
	}
	fx.h.Release(f)

	waitFor(t, "second frame", fx.h.Pending)
	f, ok = fx.h.Acquire()
	if !ok {
		t.Fatal("Acquire() found no second frame")
	}
	if got := f.Buffer.RGBA().RGBAAt(0, 0); got != green {
		t.Errorf("second frame pixel = %v, want %v", got, green)
	}
	fx.h.Release(f)

	if s := fx.h.Stats(); s.Overwritten != 0 {
		t.Errorf("handoff overwrote %d frames, want 0", s.Overwritten)
	}
}
