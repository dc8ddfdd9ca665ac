package gpucore

import "github.com/gogpu/gputypes"

// BufferDescriptor describes a GPU data buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// TransferBufferDescriptor describes a CPU-visible staging buffer.
type TransferBufferDescriptor struct {
	Label string
	Size  uint64
	Usage TransferUsage
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	LayerCount    uint32
	MipLevelCount uint32
	SampleCount   uint32
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// SamplerDescriptor describes a texture sampler.
type SamplerDescriptor struct {
	Label        string
	MinFilter    gputypes.FilterMode
	MagFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
}

// ShaderDescriptor describes a vertex or fragment shader.
// The resource counts declare the bindings the shader consumes.
type ShaderDescriptor struct {
	Label              string
	Code               []byte
	Format             ShaderFormat
	Stage              ShaderStage
	EntryPoint         string
	NumSamplers        uint32
	NumStorageTextures uint32
	NumStorageBuffers  uint32
	NumUniformBuffers  uint32
}

// ComputePipelineDescriptor describes a compute shader and its pipeline.
type ComputePipelineDescriptor struct {
	Label                       string
	Code                        []byte
	Format                      ShaderFormat
	EntryPoint                  string
	NumSamplers                 uint32
	NumReadOnlyStorageTextures  uint32
	NumReadOnlyStorageBuffers   uint32
	NumReadWriteStorageTextures uint32
	NumReadWriteStorageBuffers  uint32
	NumUniformBuffers           uint32
	ThreadCountX                uint32
	ThreadCountY                uint32
	ThreadCountZ                uint32
}

// ColorTargetDescription describes one color attachment of a pipeline.
type ColorTargetDescription struct {
	Format gputypes.TextureFormat
	Blend  *gputypes.BlendState
}

// GraphicsPipelineDescriptor describes a graphics pipeline.
type GraphicsPipelineDescriptor struct {
	Label              string
	VertexShader       ShaderID
	FragmentShader     ShaderID
	VertexBuffers      []gputypes.VertexBufferLayout
	Topology           gputypes.PrimitiveTopology
	CullMode           gputypes.CullMode
	ColorTargets       []ColorTargetDescription
	DepthStencilFormat gputypes.TextureFormat
	HasDepthStencil    bool
}

// ColorTargetInfo binds a texture as a render pass color attachment.
type ColorTargetInfo struct {
	Texture    TextureID
	MipLevel   uint32
	Layer      uint32
	ClearColor gputypes.Color
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	Cycle      bool
}

// DepthStencilTargetInfo binds a texture as the depth/stencil attachment.
type DepthStencilTargetInfo struct {
	Texture        TextureID
	ClearDepth     float32
	LoadOp         gputypes.LoadOp
	StoreOp        gputypes.StoreOp
	StencilLoadOp  gputypes.LoadOp
	StencilStoreOp gputypes.StoreOp
	ClearStencil   uint8
	Cycle          bool
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	ColorTargets []ColorTargetInfo
	DepthStencil *DepthStencilTargetInfo
}

// StorageTextureWrite is a read-write storage texture binding of a compute
// pass.
type StorageTextureWrite struct {
	Texture  TextureID
	MipLevel uint32
	Layer    uint32
	Cycle    bool
}

// StorageBufferWrite is a read-write storage buffer binding of a compute
// pass.
type StorageBufferWrite struct {
	Buffer BufferID
	Cycle  bool
}

// ComputePassDescriptor lists the read-write bindings of a compute pass.
type ComputePassDescriptor struct {
	StorageTextures []StorageTextureWrite
	StorageBuffers  []StorageBufferWrite
}

// BufferBinding binds a buffer range at an offset.
type BufferBinding struct {
	Buffer BufferID
	Offset uint32
}

// TextureSamplerBinding pairs a texture with a sampler.
type TextureSamplerBinding struct {
	Texture TextureID
	Sampler SamplerID
}

// TransferBufferLocation addresses bytes in a transfer buffer.
type TransferBufferLocation struct {
	TransferBuffer TransferBufferID
	Offset         uint32
}

// BufferRegion addresses a byte range of a data buffer.
type BufferRegion struct {
	Buffer BufferID
	Offset uint32
	Size   uint32
}

// TextureTransferInfo describes the layout of texel data in a transfer
// buffer. Zero PixelsPerRow and RowsPerLayer mean tightly packed.
type TextureTransferInfo struct {
	TransferBuffer TransferBufferID
	Offset         uint32
	PixelsPerRow   uint32
	RowsPerLayer   uint32
}

// TextureRegion addresses a box of texels.
type TextureRegion struct {
	Texture  TextureID
	MipLevel uint32
	Layer    uint32
	X, Y, Z  uint32
	W, H, D  uint32
}

// BlitRegion addresses a 2D rectangle of one texture subresource.
type BlitRegion struct {
	Texture             TextureID
	MipLevel            uint32
	LayerOrDepthPlane   uint32
	X, Y, Width, Height uint32
}

// BlitDescriptor describes a scaled texture copy.
type BlitDescriptor struct {
	Source      BlitRegion
	Destination BlitRegion
	LoadOp      gputypes.LoadOp
	ClearColor  gputypes.Color
	FlipMode    FlipMode
	Filter      gputypes.FilterMode
	Cycle       bool
}

// SwapchainTexture is the result of a swapchain acquire. Texture is
// InvalidID when no image is ready.
type SwapchainTexture struct {
	Texture TextureID
	Width   uint32
	Height  uint32
	Format  gputypes.TextureFormat
}
