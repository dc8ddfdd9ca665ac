package gpucore

import "errors"

// ErrUnsupported is returned by drivers for primitives they do not implement.
var ErrUnsupported = errors.New("gpucore: operation not supported by driver")

// Resource IDs
//
// These opaque IDs represent native resources. IDs are uint64 to
// accommodate various backend handle sizes.

// WindowID is an opaque handle to a platform window supplied by the
// windowing layer.
type WindowID uint64

// CommandBufferID is an opaque handle to a native command buffer.
type CommandBufferID uint64

// RenderPassID is an opaque handle to an open render pass.
type RenderPassID uint64

// CopyPassID is an opaque handle to an open copy pass.
type CopyPassID uint64

// ComputePassID is an opaque handle to an open compute pass.
type ComputePassID uint64

// BufferID is an opaque handle to a GPU data buffer.
type BufferID uint64

// TransferBufferID is an opaque handle to a CPU-visible staging buffer.
type TransferBufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// ShaderID is an opaque handle to a vertex or fragment shader.
type ShaderID uint64

// GraphicsPipelineID is an opaque handle to a graphics pipeline.
type GraphicsPipelineID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ShaderStage selects the programmable stage of a graphics shader.
type ShaderStage uint8

// Shader stages.
const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// ShaderFormat identifies the encoding of shader code.
type ShaderFormat uint8

// Shader formats.
const (
	// ShaderFormatWGSL is WGSL source text.
	ShaderFormatWGSL ShaderFormat = iota

	// ShaderFormatSPIRV is a little-endian SPIR-V binary.
	ShaderFormatSPIRV
)

// TransferUsage is the direction of a transfer buffer.
type TransferUsage uint8

// Transfer usages.
const (
	TransferUsageUpload TransferUsage = iota
	TransferUsageDownload
)

// UniformStage selects the stage a pushed uniform block is visible to.
type UniformStage uint8

// Uniform stages.
const (
	UniformStageVertex UniformStage = iota
	UniformStageFragment
	UniformStageCompute
)

// String returns the stage name.
func (s UniformStage) String() string {
	switch s {
	case UniformStageVertex:
		return "vertex"
	case UniformStageFragment:
		return "fragment"
	case UniformStageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// FlipMode mirrors the source region of a blit. Values combine.
type FlipMode uint8

// Flip modes.
const (
	FlipNone       FlipMode = 0
	FlipHorizontal FlipMode = 1 << 0
	FlipVertical   FlipMode = 1 << 1
)

// Viewport is a render pass viewport in framebuffer coordinates.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is an integer framebuffer rectangle.
type Rect struct {
	X, Y, Width, Height uint32
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width == 0 || r.Height == 0
}
