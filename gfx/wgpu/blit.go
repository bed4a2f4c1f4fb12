// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framelink/gfx"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

// blitPipeline samples a source texture into a render target with a single
// fullscreen triangle. Render pipelines are created per target format.
type blitPipeline struct {
	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipelines  map[gputypes.TextureFormat]hal.RenderPipeline
}

// compileBlitShader compiles the blit shader to SPIR-V words.
func compileBlitShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(blitShaderSource)
	if err != nil {
		return nil, fmt.Errorf("compile blit shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile blit shader: SPIR-V size %d is not word aligned", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func newBlitPipeline(device hal.Device) (*blitPipeline, error) {
	spirv, err := compileBlitShader()
	if err != nil {
		return nil, err
	}

	bp := &blitPipeline{pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline)}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "framelink_blit_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create blit shader module: %w", err)
	}
	bp.shader = shader

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "framelink_blit_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		bp.destroy(device)
		return nil, fmt.Errorf("create blit bind group layout: %w", err)
	}
	bp.layout = layout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "framelink_blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bp.layout},
	})
	if err != nil {
		bp.destroy(device)
		return nil, fmt.Errorf("create blit pipeline layout: %w", err)
	}
	bp.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "framelink_blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		bp.destroy(device)
		return nil, fmt.Errorf("create blit sampler: %w", err)
	}
	bp.sampler = sampler

	return bp, nil
}

// pipeline returns the render pipeline for target format f.
func (bp *blitPipeline) pipeline(device hal.Device, f gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := bp.pipelines[f]; ok {
		return p, nil
	}
	p, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "framelink_blit_pipeline",
		Layout: bp.pipeLayout,
		Vertex: hal.VertexState{
			Module:     bp.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     bp.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    f,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create blit pipeline: %w", err)
	}
	bp.pipelines[f] = p
	return p, nil
}

func (bp *blitPipeline) destroy(device hal.Device) {
	for f, p := range bp.pipelines {
		device.DestroyRenderPipeline(p)
		delete(bp.pipelines, f)
	}
	if bp.sampler != nil {
		device.DestroySampler(bp.sampler)
		bp.sampler = nil
	}
	if bp.pipeLayout != nil {
		device.DestroyPipelineLayout(bp.pipeLayout)
		bp.pipeLayout = nil
	}
	if bp.layout != nil {
		device.DestroyBindGroupLayout(bp.layout)
		bp.layout = nil
	}
	if bp.shader != nil {
		device.DestroyShaderModule(bp.shader)
		bp.shader = nil
	}
}

// Blit draws src scaled over all of dst and waits for completion.
// Initialize must have been called.
func (c *Context) Blit(ctx context.Context, src, dst gfx.Texture) error {
	s, ok := src.(*Texture)
	if !ok || s.ctx != c {
		return gfx.ErrForeignTexture
	}
	d, ok := dst.(*Texture)
	if !ok || d.ctx != c {
		return gfx.ErrForeignTexture
	}
	if s.isReleased() || d.isReleased() {
		return fmt.Errorf("wgpu: blit with released texture")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gfx.ErrContextClosed
	}
	if c.blit == nil {
		return fmt.Errorf("wgpu: blit before Initialize")
	}

	pipeline, err := c.blit.pipeline(c.device, d.format.TextureFormat())
	if err != nil {
		return err
	}

	bindGroup, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "framelink_blit_bind",
		Layout: c.blit.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: s.view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: c.blit.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create blit bind group: %w", err)
	}
	defer c.device.DestroyBindGroup(bindGroup)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framelink_blit"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framelink_blit"); err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	s.transition(encoder, gputypes.TextureUsageTextureBinding)
	d.transition(encoder, gputypes.TextureUsageRenderAttachment)

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "framelink_blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       d.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	return c.submitLocked(ctx, []hal.CommandBuffer{cmdBuf})
}
