// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framelink hands frames rendered on one goroutine to a separately
// clocked display goroutine without copying pixel data.
//
// The exchange medium is a single platform shared-memory surface (package
// shm). A producer renders into it at its own cadence, a presenter driven by
// the display clock imports it as a texture and draws it. The two sides only
// meet in a brief critical section (package handoff) that carries a
// "new frame available" flag, so at most one frame is ever pending: a newer
// frame simply replaces an unconsumed one.
//
// # Packages
//
//   - shm: shared surface allocation (memfd/mmap) and binding invalidation
//   - handoff: the lock, the new-frame flag and the surface usage state
//   - gfx, gfx/raster, gfx/wgpu: graphics API contexts
//   - texture: import strategies (zero-copy texture cache, direct texture,
//     copy fallback, legacy extension), registry and binding cache
//   - producer: the render loop
//   - present: the display-driven presenter, clocks and targets
//   - pipeline: composition with ordered teardown
//
// This package holds the shared vocabulary: errors, pixel formats, import
// methods, configuration and the logger.
//
// # Usage
//
//	cfg := framelink.NewConfig(framelink.WithSize(1920, 1080))
//	p, err := pipeline.New(cfg, pipeline.Deps{
//	    Source: producer.Solid(color.RGBA{R: 255, A: 255}),
//	    Target: present.NewImageTarget(1920, 1080),
//	    Clock:  present.NewTickerClock(time.Second / 60),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := p.Initialize(); err != nil {
//	    return err
//	}
//	defer p.Close()
//	p.Start()
//
// # Logging
//
// framelink is silent by default. Call SetLogger to enable structured logs
// from every sub-package.
package framelink
