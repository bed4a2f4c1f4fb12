// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu is the lower-level graphics API: a gfx.Context over a
// gogpu/wgpu HAL device and queue.
//
// Textures are device textures written through the queue. Finish submits
// and waits until the queue reports the submission complete, which gives
// producers the completion signal they need before publishing a frame. A blit pipeline, compiled from WGSL with
// naga at Initialize, draws sampled textures into a Target.
//
// HAL devices do not expose external memory objects, so a Context does not
// implement gfx.DirectTextureDevice. Imports of shared buffers on this API
// go through an upload copy.
//
// Three constructors cover the usual hosts:
//
//	ctx := wgpu.New(device, queue)          // caller-owned HAL device
//	ctx, err := wgpu.NewFromProvider(app)   // gpucontext.DeviceProvider
//	ctx, err := wgpu.Open()                 // standalone Vulkan device
package wgpu
