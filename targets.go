package gpucmd

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

// ColorTarget binds a texture as a render pass color attachment.
type ColorTarget struct {
	Texture    *Texture
	MipLevel   uint32
	Layer      uint32
	ClearColor gputypes.Color
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp

	// Cycle lets the driver rename the texture instead of waiting when
	// its contents are still in use. Only valid with LoadOpClear.
	Cycle bool
}

// DepthStencilTarget binds a texture as the depth/stencil attachment.
type DepthStencilTarget struct {
	Texture        *Texture
	ClearDepth     float32
	LoadOp         gputypes.LoadOp
	StoreOp        gputypes.StoreOp
	StencilLoadOp  gputypes.LoadOp
	StencilStoreOp gputypes.StoreOp
	ClearStencil   uint8
	Cycle          bool
}

// StorageTextureBinding is a read-write storage texture of a compute pass.
type StorageTextureBinding struct {
	Texture  *Texture
	MipLevel uint32
	Layer    uint32
	Cycle    bool
}

// StorageBufferBinding is a read-write storage buffer of a compute pass.
type StorageBufferBinding struct {
	Buffer *DataBuffer
	Cycle  bool
}

// ComputePassParams lists the resources a compute pass writes. They are
// bound for the whole pass.
type ComputePassParams struct {
	StorageTextures []StorageTextureBinding
	StorageBuffers  []StorageBufferBinding
}

// BufferBinding binds a data buffer at a byte offset.
type BufferBinding struct {
	Buffer *DataBuffer
	Offset uint32
}

// TextureSamplerBinding pairs a texture with the sampler reading it.
type TextureSamplerBinding struct {
	Texture *Texture
	Sampler *Sampler
}

// BlitRegion is a rectangle of one texture subresource. A zero Width and
// Height cover the whole texture.
type BlitRegion struct {
	Texture             *Texture
	MipLevel            uint32
	Layer               uint32
	X, Y, Width, Height uint32
}

// BlitInfo describes a scaled texture copy.
type BlitInfo struct {
	Source      BlitRegion
	Destination BlitRegion

	// LoadOp LoadOpClear fills the destination with ClearColor first.
	LoadOp     gputypes.LoadOp
	ClearColor gputypes.Color

	FlipMode gpucore.FlipMode
	Filter   gputypes.FilterMode
	Cycle    bool
}
