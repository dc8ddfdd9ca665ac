//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/hashicorp/go-multierror"

	"github.com/gogpu/gpucmd/gpucore"
)

// maxWaitRetries bounds the fence waits of one submit.
const maxWaitRetries = 3

// ErrMissingBinding is returned when a dispatch does not provide every
// storage buffer the compute pipeline declares.
var ErrMissingBinding = errors.New("wgpu: compute pipeline binding missing")

// ErrNoIndexBuffer is returned for indexed draws before an index buffer is
// bound.
var ErrNoIndexBuffer = errors.New("wgpu: no index buffer bound")

// Optional encoder capabilities. Not every hal backend implements them.
type (
	viewportSetter interface {
		SetViewport(x, y, width, height, minDepth, maxDepth float32)
	}
	scissorSetter interface {
		SetScissorRect(x, y, width, height uint32)
	}
	stencilReferenceSetter interface {
		SetStencilReference(reference uint32)
	}
	indirectDispatcher interface {
		DispatchIndirect(buffer hal.Buffer, offset uint64)
	}
	debugMarker interface {
		PushDebugGroup(label string)
		PopDebugGroup()
		InsertDebugMarker(label string)
	}
)

type commandBuffer struct {
	encoder hal.CommandEncoder

	// writes run on the queue before the encoded work is submitted.
	writes     []func(q hal.Queue)
	bindGroups []hal.BindGroup
	passOpen   bool
}

type renderPass struct {
	cb          *commandBuffer
	encoder     hal.RenderPassEncoder
	pipeline    bool
	indexBuffer bool
}

type copyPass struct {
	cb *commandBuffer
}

type computePass struct {
	cb        *commandBuffer
	encoder   hal.ComputePassEncoder
	pipeline  *computePipeline
	readWrite []*buffer
	readOnly  []*buffer
	dirty     bool
}

// AcquireCommandBuffer creates a command encoder and begins encoding.
func (d *Driver) AcquireCommandBuffer() (gpucore.CommandBufferID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	id := gpucore.CommandBufferID(d.newID())
	label := fmt.Sprintf("gpucmd_cb_%d", id)
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	d.commandBuffers[id] = &commandBuffer{encoder: encoder}
	return id, nil
}

// lookupCommandBuffer must hold d.mu.
func (d *Driver) lookupCommandBuffer(id gpucore.CommandBufferID) (*commandBuffer, error) {
	cb, ok := d.commandBuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, id)
	}
	return cb, nil
}

// idleCommandBuffer returns a command buffer with no open pass. Must hold
// d.mu.
func (d *Driver) idleCommandBuffer(id gpucore.CommandBufferID) (*commandBuffer, error) {
	cb, err := d.lookupCommandBuffer(id)
	if err != nil {
		return nil, err
	}
	if cb.passOpen {
		return nil, ErrPassOpen
	}
	return cb, nil
}

// releaseTransient destroys the per-submission bind groups. Must hold d.mu.
func (d *Driver) releaseTransient(cb *commandBuffer) {
	for _, bg := range cb.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	cb.bindGroups = nil
}

// SubmitCommandBuffer flushes the staged uploads, submits the encoded work
// and waits for the GPU to finish it. A timed-out fence wait is retried
// with exponential backoff.
func (d *Driver) SubmitCommandBuffer(id gpucore.CommandBufferID) error {
	if err := d.lock(); err != nil {
		return err
	}
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	delete(d.commandBuffers, id)
	d.mu.Unlock()

	err = d.submit(cb)

	d.mu.Lock()
	d.releaseTransient(cb)
	d.mu.Unlock()
	return err
}

func (d *Driver) submit(cb *commandBuffer) error {
	cmd, err := cb.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	for _, w := range cb.writes {
		w(d.queue)
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}

	wait := func() error {
		ok, err := d.device.Wait(fence, 1, d.WaitTimeout)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			d.log().Warn("wgpu: fence wait timed out, retrying", "timeout", d.WaitTimeout)
			return ErrFenceTimeout
		}
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxWaitRetries)
	if err := backoff.Retry(wait, policy); err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	return nil
}

// CancelCommandBuffer discards the encoded work and the staged uploads.
func (d *Driver) CancelCommandBuffer(id gpucore.CommandBufferID) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return err
	}
	delete(d.commandBuffers, id)
	cb.encoder.DiscardEncoding()
	d.releaseTransient(cb)
	return nil
}

// PushUniformData is not supported: graphics shaders take no bindings on
// this driver.
func (d *Driver) PushUniformData(gpucore.CommandBufferID, gpucore.UniformStage, uint32, []byte) error {
	return fmt.Errorf("%w: uniform pushes", gpucore.ErrUnsupported)
}

// BlitTexture is not supported.
func (d *Driver) BlitTexture(gpucore.CommandBufferID, *gpucore.BlitDescriptor) error {
	return fmt.Errorf("%w: texture blits", gpucore.ErrUnsupported)
}

// PushDebugGroup opens a debug group when the encoder supports markers.
func (d *Driver) PushDebugGroup(id gpucore.CommandBufferID, name []byte) error {
	return d.debugMarker(id, func(m debugMarker) { m.PushDebugGroup(cstring(name)) })
}

// PopDebugGroup closes the innermost debug group.
func (d *Driver) PopDebugGroup(id gpucore.CommandBufferID) error {
	return d.debugMarker(id, func(m debugMarker) { m.PopDebugGroup() })
}

// InsertDebugLabel inserts a debug marker.
func (d *Driver) InsertDebugLabel(id gpucore.CommandBufferID, text []byte) error {
	return d.debugMarker(id, func(m debugMarker) { m.InsertDebugMarker(cstring(text)) })
}

// debugMarker runs fn when the encoder supports debug markers. Markers are
// dropped otherwise.
func (d *Driver) debugMarker(id gpucore.CommandBufferID, fn func(debugMarker)) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return err
	}
	if m, ok := cb.encoder.(debugMarker); ok {
		fn(m)
	}
	return nil
}

// BeginRenderPass begins a render pass on the base subresource of each
// target.
func (d *Driver) BeginRenderPass(id gpucore.CommandBufferID, desc *gpucore.RenderPassDescriptor) (gpucore.RenderPassID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}

	rp := &hal.RenderPassDescriptor{
		Label:            fmt.Sprintf("gpucmd_render_%d", id),
		ColorAttachments: make([]hal.RenderPassColorAttachment, len(desc.ColorTargets)),
	}
	for i, c := range desc.ColorTargets {
		if c.MipLevel != 0 || c.Layer != 0 {
			return gpucore.InvalidID, fmt.Errorf("%w: color target mip %d layer %d", gpucore.ErrUnsupported, c.MipLevel, c.Layer)
		}
		t, ok := d.textures[c.Texture]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: color target texture %d", ErrUnknownHandle, c.Texture)
		}
		rp.ColorAttachments[i] = hal.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.ClearColor,
		}
	}
	if ds := desc.DepthStencil; ds != nil {
		t, ok := d.textures[ds.Texture]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: depth stencil texture %d", ErrUnknownHandle, ds.Texture)
		}
		rp.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       ds.LoadOp,
			DepthStoreOp:      ds.StoreOp,
			DepthClearValue:   ds.ClearDepth,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: uint32(ds.ClearStencil),
		}
	}

	passID := gpucore.RenderPassID(d.newID())
	d.renderPasses[passID] = &renderPass{cb: cb, encoder: cb.encoder.BeginRenderPass(rp)}
	cb.passOpen = true
	return passID, nil
}

// lookupRenderPass must hold d.mu.
func (d *Driver) lookupRenderPass(id gpucore.RenderPassID) (*renderPass, error) {
	rp, ok := d.renderPasses[id]
	if !ok {
		return nil, fmt.Errorf("%w: render pass %d", ErrUnknownHandle, id)
	}
	return rp, nil
}

// withRenderPass runs fn on an open render pass under d.mu.
func (d *Driver) withRenderPass(id gpucore.RenderPassID, fn func(rp *renderPass) error) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	rp, err := d.lookupRenderPass(id)
	if err != nil {
		return err
	}
	return fn(rp)
}

// EndRenderPass ends a render pass.
func (d *Driver) EndRenderPass(id gpucore.RenderPassID) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		rp.encoder.End()
		rp.cb.passOpen = false
		delete(d.renderPasses, id)
		return nil
	})
}

// BindGraphicsPipeline binds a render pipeline.
func (d *Driver) BindGraphicsPipeline(id gpucore.RenderPassID, pipeline gpucore.GraphicsPipelineID) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		p, ok := d.graphicsPipelines[pipeline]
		if !ok {
			return fmt.Errorf("%w: graphics pipeline %d", ErrUnknownHandle, pipeline)
		}
		rp.encoder.SetPipeline(p.pipeline)
		rp.pipeline = true
		return nil
	})
}

// SetViewport sets the viewport.
func (d *Driver) SetViewport(id gpucore.RenderPassID, vp gpucore.Viewport) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		s, ok := rp.encoder.(viewportSetter)
		if !ok {
			return fmt.Errorf("%w: viewport", gpucore.ErrUnsupported)
		}
		s.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
		return nil
	})
}

// SetScissor sets the scissor rectangle.
func (d *Driver) SetScissor(id gpucore.RenderPassID, r gpucore.Rect) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		s, ok := rp.encoder.(scissorSetter)
		if !ok {
			return fmt.Errorf("%w: scissor", gpucore.ErrUnsupported)
		}
		s.SetScissorRect(r.X, r.Y, r.Width, r.Height)
		return nil
	})
}

// SetStencilReference sets the stencil reference value.
func (d *Driver) SetStencilReference(id gpucore.RenderPassID, ref uint8) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		s, ok := rp.encoder.(stencilReferenceSetter)
		if !ok {
			return fmt.Errorf("%w: stencil reference", gpucore.ErrUnsupported)
		}
		s.SetStencilReference(uint32(ref))
		return nil
	})
}

// BindVertexBuffers binds consecutive vertex buffer slots.
func (d *Driver) BindVertexBuffers(id gpucore.RenderPassID, firstSlot uint32, bindings []gpucore.BufferBinding) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		for i, b := range bindings {
			buf, ok := d.buffers[b.Buffer]
			if !ok {
				return fmt.Errorf("%w: vertex buffer %d", ErrUnknownHandle, b.Buffer)
			}
			rp.encoder.SetVertexBuffer(firstSlot+uint32(i), buf.buf, uint64(b.Offset))
		}
		return nil
	})
}

// BindIndexBuffer binds the index buffer.
func (d *Driver) BindIndexBuffer(id gpucore.RenderPassID, b gpucore.BufferBinding, format gputypes.IndexFormat) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		buf, ok := d.buffers[b.Buffer]
		if !ok {
			return fmt.Errorf("%w: index buffer %d", ErrUnknownHandle, b.Buffer)
		}
		rp.encoder.SetIndexBuffer(buf.buf, format, uint64(b.Offset))
		rp.indexBuffer = true
		return nil
	})
}

// BindFragmentSamplers is not supported.
func (d *Driver) BindFragmentSamplers(gpucore.RenderPassID, uint32, []gpucore.TextureSamplerBinding) error {
	return fmt.Errorf("%w: fragment samplers", gpucore.ErrUnsupported)
}

// DrawPrimitives records a non-indexed draw.
func (d *Driver) DrawPrimitives(id gpucore.RenderPassID, vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		if !rp.pipeline {
			return ErrNoPipeline
		}
		rp.encoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
		return nil
	})
}

// DrawIndexedPrimitives records an indexed draw.
func (d *Driver) DrawIndexedPrimitives(id gpucore.RenderPassID, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	return d.withRenderPass(id, func(rp *renderPass) error {
		if !rp.pipeline {
			return ErrNoPipeline
		}
		if !rp.indexBuffer {
			return ErrNoIndexBuffer
		}
		rp.encoder.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
		return nil
	})
}

// BeginCopyPass begins a copy pass. Uploads are staged as queue writes
// that run ahead of the command buffer's encoded work.
func (d *Driver) BeginCopyPass(id gpucore.CommandBufferID) (gpucore.CopyPassID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}
	passID := gpucore.CopyPassID(d.newID())
	d.copyPasses[passID] = &copyPass{cb: cb}
	cb.passOpen = true
	return passID, nil
}

func (d *Driver) withCopyPass(id gpucore.CopyPassID, fn func(cp *copyPass) error) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	cp, ok := d.copyPasses[id]
	if !ok {
		return fmt.Errorf("%w: copy pass %d", ErrUnknownHandle, id)
	}
	return fn(cp)
}

// EndCopyPass ends a copy pass.
func (d *Driver) EndCopyPass(id gpucore.CopyPassID) error {
	return d.withCopyPass(id, func(cp *copyPass) error {
		cp.cb.passOpen = false
		delete(d.copyPasses, id)
		return nil
	})
}

// source copies n bytes of a transfer buffer starting at off. Must hold
// d.mu.
func (d *Driver) source(id gpucore.TransferBufferID, off, n uint64) ([]byte, error) {
	t, ok := d.transferBuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer buffer %d", ErrUnknownHandle, id)
	}
	if t.mapped {
		return nil, ErrMapped
	}
	if off+n > uint64(len(t.data)) {
		return nil, fmt.Errorf("wgpu: upload of %d bytes at %d exceeds transfer buffer of %d", n, off, len(t.data))
	}
	return append([]byte(nil), t.data[off:off+n]...), nil
}

// UploadToBuffer stages a buffer write.
func (d *Driver) UploadToBuffer(id gpucore.CopyPassID, src gpucore.TransferBufferLocation, dst gpucore.BufferRegion, _ bool) error {
	return d.withCopyPass(id, func(cp *copyPass) error {
		buf, ok := d.buffers[dst.Buffer]
		if !ok {
			return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, dst.Buffer)
		}
		data, err := d.source(src.TransferBuffer, uint64(src.Offset), uint64(dst.Size))
		if err != nil {
			return err
		}
		off := uint64(dst.Offset)
		cp.cb.writes = append(cp.cb.writes, func(q hal.Queue) {
			q.WriteBuffer(buf.buf, off, data)
		})
		return nil
	})
}

// UploadToTexture stages a texture write. Regions must start at the origin
// of layer 0.
func (d *Driver) UploadToTexture(id gpucore.CopyPassID, src gpucore.TextureTransferInfo, dst gpucore.TextureRegion, _ bool) error {
	if dst.X != 0 || dst.Y != 0 || dst.Z != 0 || dst.Layer != 0 {
		return fmt.Errorf("%w: texture upload offset", gpucore.ErrUnsupported)
	}
	return d.withCopyPass(id, func(cp *copyPass) error {
		t, ok := d.textures[dst.Texture]
		if !ok {
			return fmt.Errorf("%w: texture %d", ErrUnknownHandle, dst.Texture)
		}
		rowPixels := src.PixelsPerRow
		if rowPixels == 0 {
			rowPixels = dst.W
		}
		rows := src.RowsPerLayer
		if rows == 0 {
			rows = dst.H
		}
		bytesPerRow := rowPixels * texelSize(t.desc.Format)
		depth := max(dst.D, 1)
		size := uint64(bytesPerRow)*uint64(rows)*uint64(depth-1) + uint64(bytesPerRow)*uint64(dst.H)

		data, err := d.source(src.TransferBuffer, uint64(src.Offset), size)
		if err != nil {
			return err
		}
		cp.cb.writes = append(cp.cb.writes, func(q hal.Queue) {
			q.WriteTexture(
				&hal.ImageCopyTexture{Texture: t.tex, MipLevel: dst.MipLevel},
				data,
				&hal.ImageDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: rows},
				&hal.Extent3D{Width: dst.W, Height: dst.H, DepthOrArrayLayers: depth},
			)
		})
		return nil
	})
}

// BeginComputePass begins a compute pass with its read-write storage
// buffers. Storage texture writes are not supported.
func (d *Driver) BeginComputePass(id gpucore.CommandBufferID, desc *gpucore.ComputePassDescriptor) (gpucore.ComputePassID, error) {
	if len(desc.StorageTextures) > 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: compute storage textures", gpucore.ErrUnsupported)
	}
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()
	cb, err := d.idleCommandBuffer(id)
	if err != nil {
		return gpucore.InvalidID, err
	}

	cp := &computePass{cb: cb, dirty: true}
	for _, w := range desc.StorageBuffers {
		b, ok := d.buffers[w.Buffer]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: storage buffer %d", ErrUnknownHandle, w.Buffer)
		}
		cp.readWrite = append(cp.readWrite, b)
	}

	passID := gpucore.ComputePassID(d.newID())
	cp.encoder = cb.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: fmt.Sprintf("gpucmd_compute_%d", passID),
	})
	d.computePasses[passID] = cp
	cb.passOpen = true
	return passID, nil
}

func (d *Driver) withComputePass(id gpucore.ComputePassID, fn func(cp *computePass) error) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	cp, ok := d.computePasses[id]
	if !ok {
		return fmt.Errorf("%w: compute pass %d", ErrUnknownHandle, id)
	}
	return fn(cp)
}

// EndComputePass ends a compute pass.
func (d *Driver) EndComputePass(id gpucore.ComputePassID) error {
	return d.withComputePass(id, func(cp *computePass) error {
		cp.encoder.End()
		cp.cb.passOpen = false
		delete(d.computePasses, id)
		return nil
	})
}

// BindComputePipeline binds a compute pipeline.
func (d *Driver) BindComputePipeline(id gpucore.ComputePassID, pipeline gpucore.ComputePipelineID) error {
	return d.withComputePass(id, func(cp *computePass) error {
		p, ok := d.computePipelines[pipeline]
		if !ok {
			return fmt.Errorf("%w: compute pipeline %d", ErrUnknownHandle, pipeline)
		}
		cp.encoder.SetPipeline(p.pipeline)
		cp.pipeline = p
		cp.dirty = true
		return nil
	})
}

// BindComputeStorageTextures is not supported.
func (d *Driver) BindComputeStorageTextures(gpucore.ComputePassID, uint32, []gpucore.TextureID) error {
	return fmt.Errorf("%w: compute storage textures", gpucore.ErrUnsupported)
}

// BindComputeStorageBuffers binds read-only storage buffers starting at
// firstSlot.
func (d *Driver) BindComputeStorageBuffers(id gpucore.ComputePassID, firstSlot uint32, buffers []gpucore.BufferID) error {
	return d.withComputePass(id, func(cp *computePass) error {
		for i, bid := range buffers {
			b, ok := d.buffers[bid]
			if !ok {
				return fmt.Errorf("%w: storage buffer %d", ErrUnknownHandle, bid)
			}
			slot := int(firstSlot) + i
			if slot >= len(cp.readOnly) {
				cp.readOnly = append(cp.readOnly, make([]*buffer, slot+1-len(cp.readOnly))...)
			}
			cp.readOnly[slot] = b
		}
		cp.dirty = true
		return nil
	})
}

// BindComputeSamplers is not supported.
func (d *Driver) BindComputeSamplers(gpucore.ComputePassID, uint32, []gpucore.TextureSamplerBinding) error {
	return fmt.Errorf("%w: compute samplers", gpucore.ErrUnsupported)
}

// bindResources builds bind group 0 from the pass bindings when they
// changed since the last dispatch. Must hold d.mu.
func (d *Driver) bindResources(cp *computePass) error {
	if cp.pipeline == nil {
		return ErrNoPipeline
	}
	if !cp.dirty {
		return nil
	}
	p := cp.pipeline
	if uint32(len(cp.readWrite)) < p.readWrite {
		return fmt.Errorf("%w: %d read-write buffers, pipeline declares %d", ErrMissingBinding, len(cp.readWrite), p.readWrite)
	}

	var errs *multierror.Error
	entries := make([]gputypes.BindGroupEntry, 0, p.readWrite+p.readOnly)
	for i := range p.readWrite {
		entries = append(entries, storageEntry(i, cp.readWrite[i]))
	}
	for i := range p.readOnly {
		if int(i) >= len(cp.readOnly) || cp.readOnly[i] == nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: read-only slot %d", ErrMissingBinding, i))
			continue
		}
		entries = append(entries, storageEntry(p.readWrite+i, cp.readOnly[i]))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "gpucmd_compute_bind",
		Layout:  p.bindings,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	cp.cb.bindGroups = append(cp.cb.bindGroups, bg)
	cp.encoder.SetBindGroup(0, bg, nil)
	cp.dirty = false
	return nil
}

func storageEntry(binding uint32, b *buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: b.buf.NativeHandle(),
			Offset: 0,
			Size:   b.size,
		},
	}
}

// DispatchCompute records a dispatch.
func (d *Driver) DispatchCompute(id gpucore.ComputePassID, x, y, z uint32) error {
	return d.withComputePass(id, func(cp *computePass) error {
		if err := d.bindResources(cp); err != nil {
			return err
		}
		cp.encoder.Dispatch(x, y, z)
		return nil
	})
}

// DispatchComputeIndirect records a dispatch whose group counts are read
// from buffer at offset.
func (d *Driver) DispatchComputeIndirect(id gpucore.ComputePassID, bid gpucore.BufferID, offset uint32) error {
	return d.withComputePass(id, func(cp *computePass) error {
		ind, ok := cp.encoder.(indirectDispatcher)
		if !ok {
			return fmt.Errorf("%w: indirect dispatch", gpucore.ErrUnsupported)
		}
		b, ok := d.buffers[bid]
		if !ok {
			return fmt.Errorf("%w: indirect buffer %d", ErrUnknownHandle, bid)
		}
		if err := d.bindResources(cp); err != nil {
			return err
		}
		ind.DispatchIndirect(b.buf, uint64(offset))
		return nil
	})
}

// texelSize returns the bytes per texel of the formats this driver
// uploads. Unknown formats are treated as 4 bytes.
func texelSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
