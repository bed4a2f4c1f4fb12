// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framelink

import (
	"fmt"
	"time"
)

// IdlePolicy controls what the presenter does on a tick with no new frame.
type IdlePolicy uint8

const (
	// IdleSkip draws nothing; the destination keeps its last image.
	IdleSkip IdlePolicy = iota

	// IdleRepresent presents the destination's last image again.
	IdleRepresent
)

// String returns the policy name.
func (p IdlePolicy) String() string {
	switch p {
	case IdleSkip:
		return "skip"
	case IdleRepresent:
		return "represent"
	default:
		return fmt.Sprintf("IdlePolicy(%d)", uint8(p))
	}
}

// Default configuration values.
const (
	DefaultWidth         = 1920
	DefaultHeight        = 1080
	DefaultFallbackAfter = 3
)

// Config holds the recognized pipeline options.
// The pixel format is fixed for the lifetime of a pipeline instance.
type Config struct {
	// Width and Height size the shared surface (the render target).
	Width  int
	Height int

	// Format is the pixel layout shared by producer and presenter.
	Format PixelFormat

	// Method selects the presenter's texture import method.
	Method ImportMethod

	// FrameInterval throttles the producer. Zero renders as fast as the
	// source and the graphics context allow.
	FrameInterval time.Duration

	// FallbackAfter is the number of consecutive import failures after
	// which the presenter switches to MethodCopyFallback. Zero disables
	// the automatic fallback.
	FallbackAfter int

	// Idle controls ticks that find no new frame.
	Idle IdlePolicy
}

// DefaultConfig returns a 1920x1080 RGBA8 configuration with automatic
// method selection.
func DefaultConfig() Config {
	return Config{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		Format:        FormatRGBA8,
		Method:        MethodAuto,
		FallbackAfter: DefaultFallbackAfter,
		Idle:          IdleSkip,
	}
}

// NewConfig returns DefaultConfig with the options applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, c.Width, c.Height)
	}
	if !c.Format.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, c.Format)
	}
	if int(c.Method) >= len(methodNames) {
		return fmt.Errorf("framelink: invalid import method %v", c.Method)
	}
	if c.FrameInterval < 0 {
		return fmt.Errorf("framelink: negative frame interval %v", c.FrameInterval)
	}
	if c.FallbackAfter < 0 {
		return fmt.Errorf("framelink: negative fallback threshold %d", c.FallbackAfter)
	}
	return nil
}
