package gpucmd

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

// RenderPass records draw commands into a set of color targets and an
// optional depth/stencil target.
//
// A RenderPass is obtained from CommandBuffer.BeginRenderPass and is valid
// until End. While it is open the owning command buffer accepts no other
// pass and cannot be submitted.
type RenderPass struct {
	device *Device
	cb     *CommandBuffer
	handle gpucore.RenderPassID
	state  PassState

	colorTargets    []ColorTarget
	depthStencil    DepthStencilTarget
	hasDepthStencil bool

	pipeline    *GraphicsPipeline
	indexBuffer bool

	// Scratch reused across passes. Only valid during a single native call.
	desc      gpucore.RenderPassDescriptor
	depthInfo gpucore.DepthStencilTargetInfo
	vertexBuf []gpucore.BufferBinding
	samplers  []gpucore.TextureSamplerBinding
}

// prepare resolves the targets into the native descriptor.
func (p *RenderPass) prepare(depthStencil *DepthStencilTarget, colors []ColorTarget) error {
	for i, c := range colors {
		id, err := textureID(p.device, c.Texture)
		if err != nil {
			return fmt.Errorf("color target %d: %w", i, err)
		}
		p.colorTargets = append(p.colorTargets, c)
		p.desc.ColorTargets = append(p.desc.ColorTargets, gpucore.ColorTargetInfo{
			Texture:    id,
			MipLevel:   c.MipLevel,
			Layer:      c.Layer,
			ClearColor: c.ClearColor,
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			Cycle:      c.Cycle,
		})
	}

	if depthStencil == nil {
		return nil
	}
	id, err := textureID(p.device, depthStencil.Texture)
	if err != nil {
		return fmt.Errorf("depth stencil target: %w", err)
	}
	p.depthStencil = *depthStencil
	p.hasDepthStencil = true
	p.depthInfo = gpucore.DepthStencilTargetInfo{
		Texture:        id,
		ClearDepth:     depthStencil.ClearDepth,
		LoadOp:         depthStencil.LoadOp,
		StoreOp:        depthStencil.StoreOp,
		StencilLoadOp:  depthStencil.StencilLoadOp,
		StencilStoreOp: depthStencil.StencilStoreOp,
		ClearStencil:   depthStencil.ClearStencil,
		Cycle:          depthStencil.Cycle,
	}
	p.desc.DepthStencil = &p.depthInfo
	return nil
}

func (p *RenderPass) open(cb *CommandBuffer, id gpucore.RenderPassID) {
	p.cb = cb
	p.handle = id
	p.state = PassOpen
}

func (p *RenderPass) passName() string { return "render" }

// Reset implements the pool contract.
func (p *RenderPass) Reset() {
	p.cb = nil
	p.handle = gpucore.InvalidID
	p.state = PassUnbound

	clear(p.colorTargets)
	p.colorTargets = p.colorTargets[:0]
	p.depthStencil = DepthStencilTarget{}
	p.hasDepthStencil = false

	p.pipeline = nil
	p.indexBuffer = false

	clear(p.desc.ColorTargets)
	p.desc.ColorTargets = p.desc.ColorTargets[:0]
	p.desc.DepthStencil = nil
	p.depthInfo = gpucore.DepthStencilTargetInfo{}
	clear(p.vertexBuf)
	p.vertexBuf = p.vertexBuf[:0]
	clear(p.samplers)
	p.samplers = p.samplers[:0]
}

// State returns the current state.
func (p *RenderPass) State() PassState { return p.state }

// ColorTargets returns the color targets the pass was opened with. The
// slice is only valid while the pass is open.
func (p *RenderPass) ColorTargets() []ColorTarget { return p.colorTargets }

// DepthStencilTarget returns the depth/stencil target, if any.
func (p *RenderPass) DepthStencilTarget() (DepthStencilTarget, bool) {
	return p.depthStencil, p.hasDepthStencil
}

// Pipeline returns the bound graphics pipeline, or nil.
func (p *RenderPass) Pipeline() *GraphicsPipeline { return p.pipeline }

// End closes the pass and returns it to the pool. The pointer must not be
// used afterwards; doing so fails with ErrPassClosed until the wrapper is
// reused.
func (p *RenderPass) End() error {
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("end render pass: %w", err)
	}
	err := p.device.driver.EndRenderPass(p.handle)
	p.finish()
	if err != nil {
		return p.device.nativeError("end render pass", err)
	}
	return nil
}

func (p *RenderPass) abort() {
	if p.state != PassOpen {
		return
	}
	if err := p.device.driver.EndRenderPass(p.handle); err != nil {
		p.device.log().Warn("gpucmd: end render pass on release failed", "error", err)
	}
	p.finish()
}

func (p *RenderPass) finish() {
	p.state = PassClosed
	p.cb.activePass = nil
	p.device.renderPasses.TryReturnToPool(p)
}

// BindPipeline binds a graphics pipeline for subsequent draws.
func (p *RenderPass) BindPipeline(pipeline *GraphicsPipeline) error {
	const op = "bind graphics pipeline"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pipeline == nil {
		return fmt.Errorf("%s: %w", op, ErrNilResource)
	}
	id, err := pipeline.handleFor(p.device)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.device.driver.BindGraphicsPipeline(p.handle, id); err != nil {
		return p.device.nativeError(op, err)
	}
	p.pipeline = pipeline
	return nil
}

// SetViewport sets the viewport transform.
func (p *RenderPass) SetViewport(v gpucore.Viewport) error {
	const op = "set viewport"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if v.Width <= 0 || v.Height <= 0 || v.MinDepth > v.MaxDepth {
		return fmt.Errorf("%s: %w: %+v", op, ErrInvalidDescriptor, v)
	}
	if err := p.device.driver.SetViewport(p.handle, v); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// SetScissorRectangle restricts rasterization to r.
func (p *RenderPass) SetScissorRectangle(r gpucore.Rect) error {
	const op = "set scissor"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.device.driver.SetScissor(p.handle, r); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// SetStencilReference sets the stencil reference value.
func (p *RenderPass) SetStencilReference(ref uint8) error {
	const op = "set stencil reference"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.device.driver.SetStencilReference(p.handle, ref); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// BindVertexBuffer binds one vertex buffer at slot.
func (p *RenderPass) BindVertexBuffer(slot uint32, b BufferBinding) error {
	return p.BindVertexBuffers(slot, b)
}

// BindVertexBuffers binds consecutive vertex buffers starting at firstSlot.
func (p *RenderPass) BindVertexBuffers(firstSlot uint32, bindings ...BufferBinding) error {
	const op = "bind vertex buffers"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(bindings) == 0 {
		return nil
	}

	p.vertexBuf = p.vertexBuf[:0]
	for i, b := range bindings {
		id, err := bufferID(p.device, b.Buffer)
		if err != nil {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), err)
		}
		if uint64(b.Offset) >= b.Buffer.Size() {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), ErrOutOfRange)
		}
		p.vertexBuf = append(p.vertexBuf, gpucore.BufferBinding{Buffer: id, Offset: b.Offset})
	}
	if err := p.device.driver.BindVertexBuffers(p.handle, firstSlot, p.vertexBuf); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// BindIndexBuffer binds the index buffer used by DrawPrimitivesIndexed.
func (p *RenderPass) BindIndexBuffer(b BufferBinding, format gputypes.IndexFormat) error {
	const op = "bind index buffer"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	id, err := bufferID(p.device, b.Buffer)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if uint64(b.Offset) >= b.Buffer.Size() {
		return fmt.Errorf("%s: %w", op, ErrOutOfRange)
	}
	if err := p.device.driver.BindIndexBuffer(p.handle, gpucore.BufferBinding{Buffer: id, Offset: b.Offset}, format); err != nil {
		return p.device.nativeError(op, err)
	}
	p.indexBuffer = true
	return nil
}

// BindFragmentSampler binds one texture/sampler pair at slot.
func (p *RenderPass) BindFragmentSampler(slot uint32, b TextureSamplerBinding) error {
	return p.BindFragmentSamplers(slot, b)
}

// BindFragmentSamplers binds consecutive texture/sampler pairs starting at
// firstSlot.
func (p *RenderPass) BindFragmentSamplers(firstSlot uint32, bindings ...TextureSamplerBinding) error {
	const op = "bind fragment samplers"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(bindings) == 0 {
		return nil
	}

	p.samplers = p.samplers[:0]
	for i, b := range bindings {
		tex, err := textureID(p.device, b.Texture)
		if err != nil {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), err)
		}
		smp, err := samplerID(p.device, b.Sampler)
		if err != nil {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), err)
		}
		p.samplers = append(p.samplers, gpucore.TextureSamplerBinding{Texture: tex, Sampler: smp})
	}
	if err := p.device.driver.BindFragmentSamplers(p.handle, firstSlot, p.samplers); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// DrawPrimitives draws vertexCount vertices for each of instanceCount
// instances. A zero count records nothing.
func (p *RenderPass) DrawPrimitives(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	const op = "draw primitives"
	if err := p.checkDraw(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if vertexCount == 0 || instanceCount == 0 {
		return nil
	}
	if err := p.device.driver.DrawPrimitives(p.handle, vertexCount, instanceCount, firstVertex, firstInstance); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// DrawPrimitivesIndexed draws indexCount indices from the bound index
// buffer for each of instanceCount instances.
func (p *RenderPass) DrawPrimitivesIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	const op = "draw indexed primitives"
	if err := p.checkDraw(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !p.indexBuffer {
		return fmt.Errorf("%s: %w", op, ErrIndexBufferNotBound)
	}
	if indexCount == 0 || instanceCount == 0 {
		return nil
	}
	err := p.device.driver.DrawIndexedPrimitives(p.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	if err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

func (p *RenderPass) checkDraw() error {
	if err := checkPassOpen(p.state); err != nil {
		return err
	}
	if p.pipeline == nil {
		return ErrPipelineNotBound
	}
	return nil
}
