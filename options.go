// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framelink

import "time"

// Option configures a Config.
//
// Example:
//
//	cfg := framelink.NewConfig(
//	    framelink.WithSize(1280, 720),
//	    framelink.WithMethod(framelink.MethodCopyFallback),
//	)
type Option func(*Config)

// WithSize sets the render target dimensions.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithFormat sets the pixel format.
func WithFormat(f PixelFormat) Option {
	return func(c *Config) {
		c.Format = f
	}
}

// WithMethod sets the texture import method.
func WithMethod(m ImportMethod) Option {
	return func(c *Config) {
		c.Method = m
	}
}

// WithFrameInterval throttles the producer to one frame per interval.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Config) {
		c.FrameInterval = d
	}
}

// WithFallbackAfter sets how many consecutive import failures trigger the
// switch to MethodCopyFallback. Zero disables it.
func WithFallbackAfter(n int) Option {
	return func(c *Config) {
		c.FallbackAfter = n
	}
}

// WithIdlePolicy sets the behavior for ticks without a new frame.
func WithIdlePolicy(p IdlePolicy) Option {
	return func(c *Config) {
		c.Idle = p
	}
}
