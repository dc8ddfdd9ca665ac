package gpucmd

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/handle"
)

// resource is the shared core of the long-lived resource wrappers: the
// owning device and a native handle released at most once.
type resource[H comparable] struct {
	device *Device
	kind   string
	h      handle.Handle[H]
}

func newResource[H comparable](d *Device, kind string, id H, release func(H)) resource[H] {
	return resource[H]{
		device: d,
		kind:   kind,
		h: handle.NewOwned(id, func(v H) {
			if d.closed.Load() {
				return
			}
			release(v)
		}),
	}
}

// Handle returns the native handle, or ErrDisposed after Dispose.
func (r *resource[H]) Handle() (H, error) {
	v, err := r.h.Get()
	if err != nil {
		if errors.Is(err, handle.ErrDisposed) {
			return v, fmt.Errorf("%s: %w", r.kind, ErrDisposed)
		}
		return v, fmt.Errorf("%s: %w", r.kind, err)
	}
	return v, nil
}

// handleFor resolves the handle for use on device d.
func (r *resource[H]) handleFor(d *Device) (H, error) {
	if r.device != d {
		var zero H
		return zero, fmt.Errorf("%s: %w", r.kind, ErrForeignResource)
	}
	return r.Handle()
}

// Dispose releases the native resource. It reports whether this call
// released it; later calls return false.
func (r *resource[H]) Dispose() bool {
	return r.h.Dispose()
}

// IsDisposed reports whether the resource was released.
func (r *resource[H]) IsDisposed() bool {
	return r.h.IsDisposed()
}

// DataBuffer is a GPU buffer holding vertex, index, storage or indirect
// data.
type DataBuffer struct {
	resource[gpucore.BufferID]
	size  uint64
	usage gputypes.BufferUsage
}

// Size returns the buffer size in bytes.
func (b *DataBuffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *DataBuffer) Usage() gputypes.BufferUsage { return b.usage }

// SetName sets the debug name shown by graphics debuggers.
func (b *DataBuffer) SetName(name string) error {
	id, err := b.Handle()
	if err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	return b.device.withName(name, func(cstr []byte) error {
		if err := b.device.driver.SetBufferName(id, cstr); err != nil {
			return b.device.nativeError("set buffer name", err)
		}
		return nil
	})
}

// TransferBuffer is a CPU-visible staging buffer. Upload data by mapping
// it, writing through the returned slice, unmapping, and recording a copy
// pass upload.
type TransferBuffer struct {
	resource[gpucore.TransferBufferID]
	size   uint64
	usage  gpucore.TransferUsage
	mapped atomic.Bool
}

// Size returns the buffer size in bytes.
func (b *TransferBuffer) Size() uint64 { return b.size }

// Usage returns the transfer direction.
func (b *TransferBuffer) Usage() gpucore.TransferUsage { return b.usage }

// IsMapped reports whether the buffer is currently mapped.
func (b *TransferBuffer) IsMapped() bool { return b.mapped.Load() }

// Map maps the buffer and returns a view of exactly Size bytes. The view
// must not be used after Unmap. When cycle is true the driver may supply
// fresh memory if the previous contents are still in flight.
func (b *TransferBuffer) Map(cycle bool) ([]byte, error) {
	id, err := b.Handle()
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	if !b.mapped.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("map: %w", ErrAlreadyMapped)
	}
	data, err := b.device.driver.MapTransferBuffer(id, cycle)
	if err != nil {
		b.mapped.Store(false)
		return nil, b.device.nativeError("map transfer buffer", err)
	}
	if uint64(len(data)) < b.size {
		_ = b.device.driver.UnmapTransferBuffer(id)
		b.mapped.Store(false)
		return nil, fmt.Errorf("map: driver returned %d bytes for a %d byte buffer: %w",
			len(data), b.size, ErrOutOfRange)
	}
	return data[:b.size:b.size], nil
}

// Unmap unmaps the buffer.
func (b *TransferBuffer) Unmap() error {
	id, err := b.Handle()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	if !b.mapped.CompareAndSwap(true, false) {
		return fmt.Errorf("unmap: %w", ErrNotMapped)
	}
	if err := b.device.driver.UnmapTransferBuffer(id); err != nil {
		return b.device.nativeError("unmap transfer buffer", err)
	}
	return nil
}

// Dispose unmaps the buffer if needed and releases it.
func (b *TransferBuffer) Dispose() bool {
	if b.mapped.Load() {
		if err := b.Unmap(); err != nil {
			b.device.log().Warn("gpucmd: unmap on dispose failed", "error", err)
		}
	}
	return b.resource.Dispose()
}

// Texture is a GPU texture. Textures returned by
// CommandBuffer.TryGetSwapchainTexture are owned by the driver: their
// Dispose is a no-op and their handle changes every frame.
type Texture struct {
	resource[gpucore.TextureID]
	width     uint32
	height    uint32
	layers    uint32
	format    gputypes.TextureFormat
	usage     gputypes.TextureUsage
	swapchain *handle.Borrowed[gpucore.TextureID]
}

// Width returns the texture width in texels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the texture height in texels.
func (t *Texture) Height() uint32 { return t.height }

// Layers returns the number of array layers.
func (t *Texture) Layers() uint32 { return t.layers }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Usage returns the texture usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// IsSwapchain reports whether the texture is a swapchain image.
func (t *Texture) IsSwapchain() bool { return t.swapchain != nil }

// SetName sets the debug name shown by graphics debuggers.
func (t *Texture) SetName(name string) error {
	id, err := t.Handle()
	if err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	return t.device.withName(name, func(cstr []byte) error {
		if err := t.device.driver.SetTextureName(id, cstr); err != nil {
			return t.device.nativeError("set texture name", err)
		}
		return nil
	})
}

// rebind points a swapchain texture at this frame's image.
func (t *Texture) rebind(st gpucore.SwapchainTexture) {
	t.swapchain.Rebind(st.Texture)
	t.width = st.Width
	t.height = st.Height
	t.format = st.Format
}

// Sampler is a texture sampler.
type Sampler struct {
	resource[gpucore.SamplerID]
}

// GraphicsShader is a vertex or fragment shader.
type GraphicsShader struct {
	resource[gpucore.ShaderID]
	stage gpucore.ShaderStage
}

// Stage returns the shader stage.
func (s *GraphicsShader) Stage() gpucore.ShaderStage { return s.stage }

// ComputeShader is a compute shader bound with ComputePass.BindShader.
type ComputeShader struct {
	resource[gpucore.ComputePipelineID]
}

// GraphicsPipeline is a linked graphics pipeline.
type GraphicsPipeline struct {
	resource[gpucore.GraphicsPipelineID]
}

// GraphicsPipelineDesc describes a graphics pipeline in terms of gpucmd
// shaders.
type GraphicsPipelineDesc struct {
	Label              string
	VertexShader       *GraphicsShader
	FragmentShader     *GraphicsShader
	VertexBuffers      []gputypes.VertexBufferLayout
	Topology           gputypes.PrimitiveTopology
	CullMode           gputypes.CullMode
	ColorTargets       []gpucore.ColorTargetDescription
	DepthStencilFormat gputypes.TextureFormat
	HasDepthStencil    bool
}
