package headless

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/hashicorp/go-multierror"

	"github.com/gogpu/gpucmd/gpucore"
)

// op is a recorded command. It runs under d.mu at submit.
type op func(d *Driver) error

type passKind int

const (
	renderPass passKind = iota
	copyPass
	computePass
)

func (k passKind) String() string {
	switch k {
	case renderPass:
		return "render"
	case copyPass:
		return "copy"
	default:
		return "compute"
	}
}

type commandBuffer struct {
	ops        []op
	openPass   uint64
	passes     []uint64
	windows    []gpucore.WindowID
	debugDepth int
}

type pass struct {
	cb          *commandBuffer
	kind        passKind
	ended       bool
	pipeline    bool
	indexBuffer bool
}

// lookupCommandBuffer looks up a recording command buffer. Must hold d.mu.
func (d *Driver) lookupCommandBuffer(id gpucore.CommandBufferID) (*commandBuffer, error) {
	cb, ok := d.commandBuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: command buffer %d", ErrCommandBufferDone, id)
	}
	return cb, nil
}

// idleCommandBuffer looks up a recording command buffer with no open pass.
func (d *Driver) idleCommandBuffer(id gpucore.CommandBufferID) (*commandBuffer, error) {
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return nil, err
	}
	if cb.openPass != 0 {
		return nil, fmt.Errorf("%w: %s pass %d", ErrPassOpen, d.passes[cb.openPass].kind, cb.openPass)
	}
	return cb, nil
}

// lookupPass looks up an open pass of the given kind. Must hold d.mu.
func (d *Driver) lookupPass(id uint64, kind passKind) (*pass, error) {
	p, ok := d.passes[id]
	if !ok || p.kind != kind {
		return nil, fmt.Errorf("%w: %s pass %d", ErrUnknownHandle, kind, id)
	}
	if p.ended {
		return nil, fmt.Errorf("%w: %s pass %d", ErrPassEnded, kind, id)
	}
	return p, nil
}

func (d *Driver) beginPass(cb *commandBuffer, kind passKind) uint64 {
	id := d.newID()
	d.passes[id] = &pass{cb: cb, kind: kind}
	cb.openPass = id
	cb.passes = append(cb.passes, id)
	return id
}

func (d *Driver) endPass(id uint64, kind passKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	p, err := d.lookupPass(id, kind)
	if err != nil {
		return err
	}
	p.ended = true
	p.cb.openPass = 0
	return nil
}

// AcquireCommandBuffer starts a command buffer.
func (d *Driver) AcquireCommandBuffer() (gpucore.CommandBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.CommandBufferID(d.newID())
	d.commandBuffers[id] = &commandBuffer{}
	d.stats.OpenCommandBuffers++
	return id, nil
}

// SubmitCommandBuffer executes the recorded commands in order, then
// presents every swapchain image the buffer acquired.
func (d *Driver) SubmitCommandBuffer(id gpucore.CommandBufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, o := range cb.ops {
		if err := o(d); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, w := range cb.windows {
		d.present(w)
	}

	d.finish(id, cb)
	d.stats.Submits++
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("headless: submit %d: %w", id, err)
	}
	return nil
}

// CancelCommandBuffer discards the recorded commands.
func (d *Driver) CancelCommandBuffer(id gpucore.CommandBufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return err
	}
	if len(cb.windows) > 0 {
		return ErrSwapchainPending
	}
	d.finish(id, cb)
	d.stats.Cancels++
	return nil
}

func (d *Driver) finish(id gpucore.CommandBufferID, cb *commandBuffer) {
	for _, p := range cb.passes {
		delete(d.passes, p)
	}
	delete(d.commandBuffers, id)
	d.stats.OpenCommandBuffers--
}

// PushUniformData stages a uniform block for commands recorded after it.
func (d *Driver) PushUniformData(id gpucore.CommandBufferID, stage gpucore.UniformStage, slot uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return err
	}
	block := slices.Clone(data)
	key := uniformKey{stage: stage, slot: slot}
	cb.ops = append(cb.ops, func(d *Driver) error {
		d.uniforms[key] = block
		d.stats.UniformPushes++
		return nil
	})
	return nil
}

// BlitTexture records a scaled copy between two 4-byte-per-texel textures.
func (d *Driver) BlitTexture(id gpucore.CommandBufferID, desc *gpucore.BlitDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return err
	}
	src, err := d.blitTexture(desc.Source)
	if err != nil {
		return fmt.Errorf("blit source: %w", err)
	}
	dst, err := d.blitTexture(desc.Destination)
	if err != nil {
		return fmt.Errorf("blit destination: %w", err)
	}

	b := *desc
	cb.ops = append(cb.ops, func(d *Driver) error {
		blit(src, dst, &b)
		d.stats.Blits++
		return nil
	})
	return nil
}

func (d *Driver) blitTexture(r gpucore.BlitRegion) (*texture, error) {
	t, ok := d.textures[r.Texture]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownHandle, r.Texture)
	}
	if r.MipLevel != 0 || t.bpp != 4 {
		return nil, fmt.Errorf("%w: blit of mip %d, format %v", gpucore.ErrUnsupported, r.MipLevel, t.desc.Format)
	}
	if r.LayerOrDepthPlane >= t.desc.LayerCount ||
		uint64(r.X)+uint64(r.Width) > uint64(t.desc.Width) ||
		uint64(r.Y)+uint64(r.Height) > uint64(t.desc.Height) {
		return nil, ErrOutOfBounds
	}
	return t, nil
}

// PushDebugGroup opens a debug group.
func (d *Driver) PushDebugGroup(id gpucore.CommandBufferID, name []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return err
	}
	cb.debugDepth++
	d.logDebug(cb, "push "+cstring(name))
	return nil
}

// PopDebugGroup closes a debug group.
func (d *Driver) PopDebugGroup(id gpucore.CommandBufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return err
	}
	if cb.debugDepth == 0 {
		return ErrDebugGroup
	}
	cb.debugDepth--
	d.logDebug(cb, "pop")
	return nil
}

// InsertDebugLabel inserts a debug marker.
func (d *Driver) InsertDebugLabel(id gpucore.CommandBufferID, text []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return err
	}
	d.logDebug(cb, "label "+cstring(text))
	return nil
}

func (d *Driver) logDebug(cb *commandBuffer, entry string) {
	cb.ops = append(cb.ops, func(d *Driver) error {
		d.debugLog = append(d.debugLog, entry)
		return nil
	})
}

// BeginRenderPass opens a render pass. Clear load operations run at
// submit.
func (d *Driver) BeginRenderPass(id gpucore.CommandBufferID, desc *gpucore.RenderPassDescriptor) (gpucore.RenderPassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if len(desc.ColorTargets) == 0 {
		return gpucore.InvalidID, fmt.Errorf("headless: render pass without color targets")
	}

	for _, c := range desc.ColorTargets {
		t, ok := d.textures[c.Texture]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: color target %d", ErrUnknownHandle, c.Texture)
		}
		if c.LoadOp != gputypes.LoadOpClear || c.MipLevel != 0 || c.Layer >= t.desc.LayerCount {
			continue
		}
		texel := clearTexel(t.desc.Format, c.ClearColor)
		layer := c.Layer
		cb.ops = append(cb.ops, func(*Driver) error {
			fill(t.layer(layer), texel)
			return nil
		})
	}

	if ds := desc.DepthStencil; ds != nil {
		t, ok := d.textures[ds.Texture]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: depth stencil target %d", ErrUnknownHandle, ds.Texture)
		}
		if ds.LoadOp == gputypes.LoadOpClear && t.bpp == 4 {
			texel := depthStencilTexel(ds.ClearDepth, ds.ClearStencil)
			cb.ops = append(cb.ops, func(*Driver) error {
				fill(t.layer(0), texel)
				return nil
			})
		}
	}

	return gpucore.RenderPassID(d.beginPass(cb, renderPass)), nil
}

// EndRenderPass closes a render pass.
func (d *Driver) EndRenderPass(rp gpucore.RenderPassID) error {
	return d.endPass(uint64(rp), renderPass)
}

// lookupRenderPass looks up an open render pass under d.mu after counting the
// call.
func (d *Driver) lookupRenderPass(rp gpucore.RenderPassID) (*pass, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	return d.lookupPass(uint64(rp), renderPass)
}

// BindGraphicsPipeline binds a graphics pipeline.
func (d *Driver) BindGraphicsPipeline(rp gpucore.RenderPassID, pipeline gpucore.GraphicsPipelineID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupRenderPass(rp)
	if err != nil {
		return err
	}
	if _, ok := d.graphicsPipeline[pipeline]; !ok {
		return fmt.Errorf("%w: graphics pipeline %d", ErrUnknownHandle, pipeline)
	}
	p.pipeline = true
	return nil
}

// SetViewport validates the pass. Viewports do not affect headless output.
func (d *Driver) SetViewport(rp gpucore.RenderPassID, _ gpucore.Viewport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookupRenderPass(rp)
	return err
}

// SetScissor validates the pass.
func (d *Driver) SetScissor(rp gpucore.RenderPassID, _ gpucore.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookupRenderPass(rp)
	return err
}

// SetStencilReference validates the pass.
func (d *Driver) SetStencilReference(rp gpucore.RenderPassID, _ uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookupRenderPass(rp)
	return err
}

// BindVertexBuffers checks that every buffer exists.
func (d *Driver) BindVertexBuffers(rp gpucore.RenderPassID, _ uint32, bindings []gpucore.BufferBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupRenderPass(rp); err != nil {
		return err
	}
	for _, b := range bindings {
		if _, ok := d.buffers[b.Buffer]; !ok {
			return fmt.Errorf("%w: vertex buffer %d", ErrUnknownHandle, b.Buffer)
		}
	}
	return nil
}

// BindIndexBuffer binds the index buffer of indexed draws.
func (d *Driver) BindIndexBuffer(rp gpucore.RenderPassID, binding gpucore.BufferBinding, _ gputypes.IndexFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupRenderPass(rp)
	if err != nil {
		return err
	}
	if _, ok := d.buffers[binding.Buffer]; !ok {
		return fmt.Errorf("%w: index buffer %d", ErrUnknownHandle, binding.Buffer)
	}
	p.indexBuffer = true
	return nil
}

// BindFragmentSamplers checks that every texture and sampler exists.
func (d *Driver) BindFragmentSamplers(rp gpucore.RenderPassID, _ uint32, bindings []gpucore.TextureSamplerBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupRenderPass(rp); err != nil {
		return err
	}
	return d.checkSamplerBindings(bindings)
}

func (d *Driver) checkSamplerBindings(bindings []gpucore.TextureSamplerBinding) error {
	for _, b := range bindings {
		if _, ok := d.textures[b.Texture]; !ok {
			return fmt.Errorf("%w: texture %d", ErrUnknownHandle, b.Texture)
		}
		if _, ok := d.samplers[b.Sampler]; !ok {
			return fmt.Errorf("%w: sampler %d", ErrUnknownHandle, b.Sampler)
		}
	}
	return nil
}

// DrawPrimitives records a draw.
func (d *Driver) DrawPrimitives(rp gpucore.RenderPassID, _, _, _, _ uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupRenderPass(rp)
	if err != nil {
		return err
	}
	if !p.pipeline {
		return ErrNoPipeline
	}
	p.cb.ops = append(p.cb.ops, countDraw)
	return nil
}

// DrawIndexedPrimitives records an indexed draw.
func (d *Driver) DrawIndexedPrimitives(rp gpucore.RenderPassID, _, _, _ uint32, _ int32, _ uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupRenderPass(rp)
	if err != nil {
		return err
	}
	if !p.pipeline {
		return ErrNoPipeline
	}
	if !p.indexBuffer {
		return fmt.Errorf("headless: indexed draw without index buffer")
	}
	p.cb.ops = append(p.cb.ops, countDraw)
	return nil
}

func countDraw(d *Driver) error {
	d.stats.Draws++
	return nil
}

// BeginCopyPass opens a copy pass.
func (d *Driver) BeginCopyPass(id gpucore.CommandBufferID) (gpucore.CopyPassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.CopyPassID(d.beginPass(cb, copyPass)), nil
}

// EndCopyPass closes a copy pass.
func (d *Driver) EndCopyPass(cp gpucore.CopyPassID) error {
	return d.endPass(uint64(cp), copyPass)
}

// uploadSource returns the current storage of an unmapped upload buffer.
func (d *Driver) uploadSource(id gpucore.TransferBufferID) ([]byte, error) {
	t, ok := d.transferBuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer buffer %d", ErrUnknownHandle, id)
	}
	if t.mapped {
		return nil, ErrMapped
	}
	return t.data, nil
}

// UploadToBuffer records a copy from a transfer buffer into a buffer.
func (d *Driver) UploadToBuffer(cp gpucore.CopyPassID, src gpucore.TransferBufferLocation, dst gpucore.BufferRegion, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	p, err := d.lookupPass(uint64(cp), copyPass)
	if err != nil {
		return err
	}
	data, err := d.uploadSource(src.TransferBuffer)
	if err != nil {
		return err
	}
	b, ok := d.buffers[dst.Buffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, dst.Buffer)
	}
	srcEnd := uint64(src.Offset) + uint64(dst.Size)
	dstEnd := uint64(dst.Offset) + uint64(dst.Size)
	if srcEnd > uint64(len(data)) || dstEnd > uint64(len(b.data)) {
		return ErrOutOfBounds
	}

	p.cb.ops = append(p.cb.ops, func(d *Driver) error {
		copy(b.data[dst.Offset:dstEnd], data[src.Offset:srcEnd])
		d.stats.Uploads++
		return nil
	})
	return nil
}

// UploadToTexture records a copy from a transfer buffer into mip level 0
// of a texture.
func (d *Driver) UploadToTexture(cp gpucore.CopyPassID, src gpucore.TextureTransferInfo, dst gpucore.TextureRegion, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	p, err := d.lookupPass(uint64(cp), copyPass)
	if err != nil {
		return err
	}
	data, err := d.uploadSource(src.TransferBuffer)
	if err != nil {
		return err
	}
	t, ok := d.textures[dst.Texture]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, dst.Texture)
	}
	if dst.MipLevel != 0 || max(dst.D, 1) != 1 || dst.Z != 0 {
		return fmt.Errorf("%w: upload to mip %d, depth %d", gpucore.ErrUnsupported, dst.MipLevel, dst.D)
	}
	if dst.W == 0 || dst.H == 0 ||
		uint64(dst.X)+uint64(dst.W) > uint64(t.desc.Width) ||
		uint64(dst.Y)+uint64(dst.H) > uint64(t.desc.Height) ||
		dst.Layer >= t.desc.LayerCount {
		return ErrOutOfBounds
	}

	bpp := t.bpp
	rowPixels := src.PixelsPerRow
	if rowPixels == 0 {
		rowPixels = dst.W
	}
	srcPitch := int(rowPixels) * bpp
	rowBytes := int(dst.W) * bpp
	need := int(src.Offset) + srcPitch*int(dst.H-1) + rowBytes
	if rowPixels < dst.W || need > len(data) {
		return ErrOutOfBounds
	}

	p.cb.ops = append(p.cb.ops, func(d *Driver) error {
		layer := t.layer(dst.Layer)
		dstPitch := int(t.desc.Width) * bpp
		for row := range int(dst.H) {
			s := int(src.Offset) + row*srcPitch
			o := (int(dst.Y)+row)*dstPitch + int(dst.X)*bpp
			copy(layer[o:o+rowBytes], data[s:s+rowBytes])
		}
		d.stats.Uploads++
		return nil
	})
	return nil
}

// BeginComputePass opens a compute pass.
func (d *Driver) BeginComputePass(id gpucore.CommandBufferID, desc *gpucore.ComputePassDescriptor) (gpucore.ComputePassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}
	for _, t := range desc.StorageTextures {
		if _, ok := d.textures[t.Texture]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: storage texture %d", ErrUnknownHandle, t.Texture)
		}
	}
	for _, b := range desc.StorageBuffers {
		if _, ok := d.buffers[b.Buffer]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: storage buffer %d", ErrUnknownHandle, b.Buffer)
		}
	}
	return gpucore.ComputePassID(d.beginPass(cb, computePass)), nil
}

// EndComputePass closes a compute pass.
func (d *Driver) EndComputePass(cp gpucore.ComputePassID) error {
	return d.endPass(uint64(cp), computePass)
}

func (d *Driver) lookupComputePass(cp gpucore.ComputePassID) (*pass, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	return d.lookupPass(uint64(cp), computePass)
}

// BindComputePipeline binds a compute pipeline.
func (d *Driver) BindComputePipeline(cp gpucore.ComputePassID, pipeline gpucore.ComputePipelineID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupComputePass(cp)
	if err != nil {
		return err
	}
	if _, ok := d.computePipelines[pipeline]; !ok {
		return fmt.Errorf("%w: compute pipeline %d", ErrUnknownHandle, pipeline)
	}
	p.pipeline = true
	return nil
}

// BindComputeStorageTextures checks that every texture exists.
func (d *Driver) BindComputeStorageTextures(cp gpucore.ComputePassID, _ uint32, textures []gpucore.TextureID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupComputePass(cp); err != nil {
		return err
	}
	for _, id := range textures {
		if _, ok := d.textures[id]; !ok {
			return fmt.Errorf("%w: texture %d", ErrUnknownHandle, id)
		}
	}
	return nil
}

// BindComputeStorageBuffers checks that every buffer exists.
func (d *Driver) BindComputeStorageBuffers(cp gpucore.ComputePassID, _ uint32, buffers []gpucore.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupComputePass(cp); err != nil {
		return err
	}
	for _, id := range buffers {
		if _, ok := d.buffers[id]; !ok {
			return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, id)
		}
	}
	return nil
}

// BindComputeSamplers checks that every texture and sampler exists.
func (d *Driver) BindComputeSamplers(cp gpucore.ComputePassID, _ uint32, bindings []gpucore.TextureSamplerBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupComputePass(cp); err != nil {
		return err
	}
	return d.checkSamplerBindings(bindings)
}

// DispatchCompute records a dispatch.
func (d *Driver) DispatchCompute(cp gpucore.ComputePassID, x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupComputePass(cp)
	if err != nil {
		return err
	}
	if !p.pipeline {
		return ErrNoPipeline
	}
	p.cb.ops = append(p.cb.ops, func(d *Driver) error {
		d.lastDispatch = [3]uint32{x, y, z}
		d.stats.Dispatches++
		return nil
	})
	return nil
}

// DispatchComputeIndirect records a dispatch whose group counts are read
// from buf at submit.
func (d *Driver) DispatchComputeIndirect(cp gpucore.ComputePassID, buf gpucore.BufferID, offset uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookupComputePass(cp)
	if err != nil {
		return err
	}
	if !p.pipeline {
		return ErrNoPipeline
	}
	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("%w: indirect buffer %d", ErrUnknownHandle, buf)
	}
	if offset%4 != 0 || uint64(offset)+12 > uint64(len(b.data)) {
		return ErrOutOfBounds
	}
	p.cb.ops = append(p.cb.ops, func(d *Driver) error {
		args := b.data[offset : offset+12]
		d.lastDispatch = [3]uint32{
			binary.LittleEndian.Uint32(args[0:]),
			binary.LittleEndian.Uint32(args[4:]),
			binary.LittleEndian.Uint32(args[8:]),
		}
		d.stats.Dispatches++
		return nil
	})
	return nil
}
