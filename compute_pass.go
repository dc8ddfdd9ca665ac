package gpucmd

import (
	"fmt"

	"github.com/gogpu/gpucmd/gpucore"
)

// indirectDispatchSize is the byte size of the three uint32 group counts
// read by DispatchIndirect.
const indirectDispatchSize = 12

// ComputePass records compute dispatches.
//
// Dispatches issued before BindShader are rejected without reaching the
// driver.
type ComputePass struct {
	device *Device
	cb     *CommandBuffer
	handle gpucore.ComputePassID
	state  PassState

	shader *ComputeShader

	desc     gpucore.ComputePassDescriptor
	textures []gpucore.TextureID
	buffers  []gpucore.BufferID
	samplers []gpucore.TextureSamplerBinding
}

func (p *ComputePass) prepare(params ComputePassParams) error {
	for i, t := range params.StorageTextures {
		id, err := textureID(p.device, t.Texture)
		if err != nil {
			return fmt.Errorf("storage texture %d: %w", i, err)
		}
		p.desc.StorageTextures = append(p.desc.StorageTextures, gpucore.StorageTextureWrite{
			Texture:  id,
			MipLevel: t.MipLevel,
			Layer:    t.Layer,
			Cycle:    t.Cycle,
		})
	}
	for i, b := range params.StorageBuffers {
		id, err := bufferID(p.device, b.Buffer)
		if err != nil {
			return fmt.Errorf("storage buffer %d: %w", i, err)
		}
		p.desc.StorageBuffers = append(p.desc.StorageBuffers, gpucore.StorageBufferWrite{Buffer: id, Cycle: b.Cycle})
	}
	return nil
}

func (p *ComputePass) open(cb *CommandBuffer, id gpucore.ComputePassID) {
	p.cb = cb
	p.handle = id
	p.state = PassOpen
}

func (p *ComputePass) passName() string { return "compute" }

// Reset implements the pool contract.
func (p *ComputePass) Reset() {
	p.cb = nil
	p.handle = gpucore.InvalidID
	p.state = PassUnbound
	p.shader = nil

	clear(p.desc.StorageTextures)
	p.desc.StorageTextures = p.desc.StorageTextures[:0]
	clear(p.desc.StorageBuffers)
	p.desc.StorageBuffers = p.desc.StorageBuffers[:0]
	p.textures = p.textures[:0]
	p.buffers = p.buffers[:0]
	clear(p.samplers)
	p.samplers = p.samplers[:0]
}

// State returns the current state.
func (p *ComputePass) State() PassState { return p.state }

// Shader returns the bound compute shader, or nil.
func (p *ComputePass) Shader() *ComputeShader { return p.shader }

// End closes the pass and returns it to the pool.
func (p *ComputePass) End() error {
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("end compute pass: %w", err)
	}
	err := p.device.driver.EndComputePass(p.handle)
	p.finish()
	if err != nil {
		return p.device.nativeError("end compute pass", err)
	}
	return nil
}

func (p *ComputePass) abort() {
	if p.state != PassOpen {
		return
	}
	if err := p.device.driver.EndComputePass(p.handle); err != nil {
		p.device.log().Warn("gpucmd: end compute pass on release failed", "error", err)
	}
	p.finish()
}

func (p *ComputePass) finish() {
	p.state = PassClosed
	p.cb.activePass = nil
	p.device.computePasses.TryReturnToPool(p)
}

// BindShader binds a compute shader for subsequent dispatches.
func (p *ComputePass) BindShader(shader *ComputeShader) error {
	const op = "bind compute shader"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if shader == nil {
		return fmt.Errorf("%s: %w", op, ErrNilResource)
	}
	id, err := shader.handleFor(p.device)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.device.driver.BindComputePipeline(p.handle, id); err != nil {
		return p.device.nativeError(op, err)
	}
	p.shader = shader
	return nil
}

// BindStorageTextures binds read-only storage textures starting at
// firstSlot.
func (p *ComputePass) BindStorageTextures(firstSlot uint32, textures ...*Texture) error {
	const op = "bind storage textures"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(textures) == 0 {
		return nil
	}
	p.textures = p.textures[:0]
	for i, t := range textures {
		id, err := textureID(p.device, t)
		if err != nil {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), err)
		}
		p.textures = append(p.textures, id)
	}
	if err := p.device.driver.BindComputeStorageTextures(p.handle, firstSlot, p.textures); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// BindStorageBuffers binds read-only storage buffers starting at
// firstSlot.
func (p *ComputePass) BindStorageBuffers(firstSlot uint32, buffers ...*DataBuffer) error {
	const op = "bind storage buffers"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(buffers) == 0 {
		return nil
	}
	p.buffers = p.buffers[:0]
	for i, b := range buffers {
		id, err := bufferID(p.device, b)
		if err != nil {
			return fmt.Errorf("%s: slot %d: %w", op, firstSlot+uint32(i), err)
		}
		p.buffers = append(p.buffers, id)
	}
	if err := p.device.driver.BindComputeStorageBuffers(p.handle, firstSlot, p.buffers); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// BindSamplers binds texture/sampler pairs starting at firstSlot.
func (p *ComputePass) BindSamplers(firstSlot uint32, bindings ...TextureSamplerBinding) error {
	const op = "bind compute samplers"
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
	if err := p.device.driver.BindComputeSamplers(p.handle, firstSlot, p.samplers); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// Dispatch runs the bound shader over groupsX x groupsY x groupsZ
// workgroups. A zero group count records nothing.
func (p *ComputePass) Dispatch(groupsX, groupsY, groupsZ uint32) error {
	const op = "dispatch"
	if err := p.checkDispatch(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if groupsX == 0 || groupsY == 0 || groupsZ == 0 {
		return nil
	}
	if err := p.device.driver.DispatchCompute(p.handle, groupsX, groupsY, groupsZ); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// DispatchIndirect runs the bound shader with group counts read from three
// little-endian uint32 values in buf at offset. offset must be a multiple
// of 4.
func (p *ComputePass) DispatchIndirect(buf *DataBuffer, offset uint32) error {
	const op = "dispatch indirect"
	if err := p.checkDispatch(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	id, err := bufferID(p.device, buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if offset%4 != 0 {
		return fmt.Errorf("%s: %w: offset %d", op, ErrMisaligned, offset)
	}
	if uint64(offset)+indirectDispatchSize > buf.Size() {
		return fmt.Errorf("%s: %w: offset %d in %d bytes", op, ErrOutOfRange, offset, buf.Size())
	}
	if err := p.device.driver.DispatchComputeIndirect(p.handle, id, offset); err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

func (p *ComputePass) checkDispatch() error {
	if err := checkPassOpen(p.state); err != nil {
		return err
	}
	if p.shader == nil {
		return ErrPipelineNotBound
	}
	return nil
}
