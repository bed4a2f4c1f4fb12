// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newNoopContext(t *testing.T) *Context {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	c := New(device, queue)
	t.Cleanup(func() {
		_ = c.Close()
		cleanup()
	})
	return c
}

func TestContextIdentity(t *testing.T) {
	c := newNoopContext(t)
	if c.API() != gfx.APIModern {
		t.Errorf("API() = %v, want %v", c.API(), gfx.APIModern)
	}
	if c.Name() != "wgpu" {
		t.Errorf("Name() = %q, want %q", c.Name(), "wgpu")
	}
	c.SetLabel("presenter")
	if c.Name() != "presenter" {
		t.Errorf("Name() = %q, want %q", c.Name(), "presenter")
	}
	if _, ok := any(c).(gfx.DirectTextureDevice); ok {
		t.Error("HAL contexts cannot construct textures over shared memory")
	}
}

func TestInitialize(t *testing.T) {
	c := newNoopContext(t)
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if c.blit == nil {
		t.Fatal("expected blit pipeline after Initialize")
	}
	first := c.blit
	if err := c.Initialize(); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if c.blit != first {
		t.Error("Initialize should be idempotent")
	}
}

func TestCompileBlitShader(t *testing.T) {
	words, err := compileBlitShader()
	if err != nil {
		t.Fatalf("compileBlitShader() error = %v", err)
	}
	if len(words) == 0 {
		t.Fatal("expected SPIR-V output")
	}
	const spirvMagic = 0x07230203
	if words[0] != spirvMagic {
		t.Errorf("SPIR-V magic = %#x, want %#x", words[0], spirvMagic)
	}
}

func TestNewTexture(t *testing.T) {
	c := newNoopContext(t)

	tests := []struct {
		name    string
		w, h    int
		format  framelink.PixelFormat
		wantErr error
	}{
		{"rgba", 64, 32, framelink.FormatRGBA8, nil},
		{"bgra", 64, 32, framelink.FormatBGRA8, nil},
		{"zero", 0, 32, framelink.FormatRGBA8, framelink.ErrInvalidDimensions},
		{"bad format", 8, 8, framelink.PixelFormat(99), framelink.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex, err := c.NewTexture(tt.w, tt.h, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewTexture() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTexture() error = %v", err)
			}
			defer tex.Release()
			if w, h := tex.Size(); w != tt.w || h != tt.h {
				t.Errorf("Size() = %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
			if tex.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", tex.Format(), tt.format)
			}
		})
	}
}

func TestUploadAndFinish(t *testing.T) {
	c := newNoopContext(t)
	tex, err := c.NewTexture(16, 8, framelink.FormatRGBA8)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Release()

	pix := make([]byte, 16*8*4)
	if err := c.Upload(tex, pix, 16*4); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := c.Finish(context.Background()); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if err := c.Upload(tex, pix[:100], 16*4); !errors.Is(err, gfx.ErrSizeMismatch) {
		t.Errorf("short Upload() error = %v, want ErrSizeMismatch", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Finish(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Finish(canceled) error = %v, want context.Canceled", err)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if err := c.Finish(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Finish(expired) error = %v, want DeadlineExceeded", err)
	}
}

func TestForeignTexture(t *testing.T) {
	a := newNoopContext(t)
	b := newNoopContext(t)

	tex, err := a.NewTexture(4, 4, framelink.FormatRGBA8)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Release()

	if err := b.Upload(tex, make([]byte, 64), 16); !errors.Is(err, gfx.ErrForeignTexture) {
		t.Errorf("Upload() error = %v, want ErrForeignTexture", err)
	}
	if err := b.Blit(context.Background(), tex, tex); !errors.Is(err, gfx.ErrForeignTexture) {
		t.Errorf("Blit() error = %v, want ErrForeignTexture", err)
	}
	if err := b.ReadPixels(context.Background(), tex, image.NewRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, gfx.ErrForeignTexture) {
		t.Errorf("ReadPixels() error = %v, want ErrForeignTexture", err)
	}
}

func TestBlitRequiresInitialize(t *testing.T) {
	c := newNoopContext(t)
	src, _ := c.NewTexture(4, 4, framelink.FormatRGBA8)
	dst, _ := c.NewTexture(8, 8, framelink.FormatRGBA8)
	defer src.Release()
	defer dst.Release()

	if err := c.Blit(context.Background(), src, dst); err == nil {
		t.Error("Blit() before Initialize should fail")
	}
}

func TestTargetDrawPresent(t *testing.T) {
	c := newNoopContext(t)
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}

	target, err := NewTarget(c, 32, 16, framelink.FormatBGRA8)
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}
	defer target.Release()

	src, err := c.NewTexture(64, 32, framelink.FormatRGBA8)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Release()

	if err := target.Draw(src); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := target.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if target.Presents() != 1 {
		t.Errorf("Presents() = %d, want 1", target.Presents())
	}

	img, err := target.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("Snapshot bounds = %v, want 32x16", img.Bounds())
	}
}

func TestReadPixelsSizeMismatch(t *testing.T) {
	c := newNoopContext(t)
	tex, _ := c.NewTexture(4, 4, framelink.FormatRGBA8)
	defer tex.Release()

	err := c.ReadPixels(context.Background(), tex, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if !errors.Is(err, gfx.ErrSizeMismatch) {
		t.Errorf("ReadPixels() error = %v, want ErrSizeMismatch", err)
	}
}

var errEncoding = errors.New("encoder lost")

// failingEncoderDevice hands out encoders whose BeginEncoding fails.
type failingEncoderDevice struct {
	hal.Device
	discarded int
}

func (d *failingEncoderDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &failingEncoder{CommandEncoder: enc, device: d}, nil
}

type failingEncoder struct {
	hal.CommandEncoder
	device *failingEncoderDevice
}

func (e *failingEncoder) BeginEncoding(string) error { return errEncoding }

func (e *failingEncoder) DiscardEncoding() {
	e.device.discarded++
	e.CommandEncoder.DiscardEncoding()
}

func TestBeginEncodingFailureDiscards(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	c := New(device, queue)
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	src, _ := c.NewTexture(4, 4, framelink.FormatRGBA8)
	dst, _ := c.NewTexture(4, 4, framelink.FormatRGBA8)
	defer src.Release()
	defer dst.Release()

	failing := &failingEncoderDevice{Device: device}
	c.device = failing
	defer func() { c.device = device }()

	if err := c.Blit(context.Background(), src, dst); !errors.Is(err, errEncoding) {
		t.Errorf("Blit() error = %v, want the encoding error", err)
	}
	if err := c.ReadPixels(context.Background(), src, image.NewRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, errEncoding) {
		t.Errorf("ReadPixels() error = %v, want the encoding error", err)
	}
	if failing.discarded != 2 {
		t.Errorf("discarded %d encoders, want 2", failing.discarded)
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := newNoopContext(t)
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	tex, _ := c.NewTexture(4, 4, framelink.FormatRGBA8)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	tex.Release()

	if _, err := c.NewTexture(4, 4, framelink.FormatRGBA8); !errors.Is(err, gfx.ErrContextClosed) {
		t.Errorf("NewTexture() after Close error = %v, want ErrContextClosed", err)
	}
	if err := c.Finish(context.Background()); !errors.Is(err, gfx.ErrContextClosed) {
		t.Errorf("Finish() after Close error = %v, want ErrContextClosed", err)
	}
	if err := c.Initialize(); !errors.Is(err, gfx.ErrContextClosed) {
		t.Errorf("Initialize() after Close error = %v, want ErrContextClosed", err)
	}
}

func TestOpenBackendNoop(t *testing.T) {
	c, err := openBackend(noop.API{})
	if err != nil {
		t.Fatalf("openBackend(noop) error = %v", err)
	}
	if c.external {
		t.Error("opened context should own its device")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// halDeviceProvider is a gpucontext.DeviceProvider exposing HAL types.
type halDeviceProvider struct {
	device any
	queue  any
}

func (p *halDeviceProvider) Device() gpucontext.Device   { return nil }
func (p *halDeviceProvider) Queue() gpucontext.Queue     { return nil }
func (p *halDeviceProvider) Adapter() gpucontext.Adapter { return nil }
func (p *halDeviceProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{}
}
func (p *halDeviceProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (p *halDeviceProvider) HalDevice() any { return p.device }
func (p *halDeviceProvider) HalQueue() any  { return p.queue }

// plainProvider has no HAL accessors.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{}
}
func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func TestNewFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	c, err := NewFromProvider(&halDeviceProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("NewFromProvider() error = %v", err)
	}
	if !c.external {
		t.Error("provider device must not be owned by the context")
	}
	_ = c.Close()

	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
	}{
		{"no hal accessors", plainProvider{}},
		{"wrong device type", &halDeviceProvider{device: "device", queue: queue}},
		{"nil queue", &halDeviceProvider{device: device, queue: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromProvider(tt.provider)
			if !errors.Is(err, framelink.ErrInitFailed) {
				t.Errorf("NewFromProvider() error = %v, want ErrInitFailed", err)
			}
		})
	}
}
