package gpucore

import "github.com/gogpu/gputypes"

// ResourceFactory creates and releases long-lived resources.
type ResourceFactory interface {
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)
	ReleaseBuffer(id BufferID)
	SetBufferName(id BufferID, name []byte) error

	CreateTransferBuffer(desc *TransferBufferDescriptor) (TransferBufferID, error)
	ReleaseTransferBuffer(id TransferBufferID)

	// MapTransferBuffer returns a view of the whole buffer. When cycle is
	// true and the buffer is still referenced by pending work, the driver
	// may hand out fresh memory instead of waiting.
	MapTransferBuffer(id TransferBufferID, cycle bool) ([]byte, error)
	UnmapTransferBuffer(id TransferBufferID) error

	CreateTexture(desc *TextureDescriptor) (TextureID, error)
	ReleaseTexture(id TextureID)
	SetTextureName(id TextureID, name []byte) error

	CreateSampler(desc *SamplerDescriptor) (SamplerID, error)
	ReleaseSampler(id SamplerID)

	CreateShader(desc *ShaderDescriptor) (ShaderID, error)
	ReleaseShader(id ShaderID)

	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (GraphicsPipelineID, error)
	ReleaseGraphicsPipeline(id GraphicsPipelineID)

	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipelineID, error)
	ReleaseComputePipeline(id ComputePipelineID)
}

// CommandRecorder drives the command buffer lifecycle and the commands that
// are recorded outside of passes.
type CommandRecorder interface {
	AcquireCommandBuffer() (CommandBufferID, error)

	// SubmitCommandBuffer hands the recorded work to the GPU. Work from
	// buffers submitted earlier begins executing first.
	SubmitCommandBuffer(cb CommandBufferID) error

	// CancelCommandBuffer discards the recorded work.
	CancelCommandBuffer(cb CommandBufferID) error

	PushUniformData(cb CommandBufferID, stage UniformStage, slot uint32, data []byte) error
	BlitTexture(cb CommandBufferID, desc *BlitDescriptor) error

	PushDebugGroup(cb CommandBufferID, name []byte) error
	PopDebugGroup(cb CommandBufferID) error
	InsertDebugLabel(cb CommandBufferID, text []byte) error
}

// RenderPassRecorder records render pass commands.
type RenderPassRecorder interface {
	BeginRenderPass(cb CommandBufferID, desc *RenderPassDescriptor) (RenderPassID, error)
	EndRenderPass(rp RenderPassID) error

	BindGraphicsPipeline(rp RenderPassID, pipeline GraphicsPipelineID) error
	SetViewport(rp RenderPassID, vp Viewport) error
	SetScissor(rp RenderPassID, rect Rect) error
	SetStencilReference(rp RenderPassID, ref uint8) error
	BindVertexBuffers(rp RenderPassID, firstSlot uint32, bindings []BufferBinding) error
	BindIndexBuffer(rp RenderPassID, binding BufferBinding, format gputypes.IndexFormat) error
	BindFragmentSamplers(rp RenderPassID, firstSlot uint32, bindings []TextureSamplerBinding) error

	DrawPrimitives(rp RenderPassID, vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	DrawIndexedPrimitives(rp RenderPassID, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error
}

// CopyPassRecorder records CPU to GPU uploads.
type CopyPassRecorder interface {
	BeginCopyPass(cb CommandBufferID) (CopyPassID, error)
	EndCopyPass(cp CopyPassID) error

	UploadToBuffer(cp CopyPassID, src TransferBufferLocation, dst BufferRegion, cycle bool) error
	UploadToTexture(cp CopyPassID, src TextureTransferInfo, dst TextureRegion, cycle bool) error
}

// ComputePassRecorder records compute pass commands.
type ComputePassRecorder interface {
	BeginComputePass(cb CommandBufferID, desc *ComputePassDescriptor) (ComputePassID, error)
	EndComputePass(cp ComputePassID) error

	BindComputePipeline(cp ComputePassID, pipeline ComputePipelineID) error
	BindComputeStorageTextures(cp ComputePassID, firstSlot uint32, textures []TextureID) error
	BindComputeStorageBuffers(cp ComputePassID, firstSlot uint32, buffers []BufferID) error
	BindComputeSamplers(cp ComputePassID, firstSlot uint32, bindings []TextureSamplerBinding) error

	DispatchCompute(cp ComputePassID, groupsX, groupsY, groupsZ uint32) error
	DispatchComputeIndirect(cp ComputePassID, buffer BufferID, offset uint32) error
}

// Presenter connects platform windows to swapchains.
type Presenter interface {
	ClaimWindow(w WindowID) error
	ReleaseWindow(w WindowID)

	// WaitAndAcquireSwapchainTexture blocks until the window has a
	// presentable image. The returned Texture is InvalidID when none is
	// available this frame. The image is presented when cb is submitted.
	WaitAndAcquireSwapchainTexture(cb CommandBufferID, w WindowID) (SwapchainTexture, error)
}

// Driver is the complete native surface used by gpucmd.
type Driver interface {
	// Name returns the backend identifier (e.g., "headless", "wgpu").
	Name() string

	ResourceFactory
	CommandRecorder
	RenderPassRecorder
	CopyPassRecorder
	ComputePassRecorder
	Presenter

	// Destroy releases the native context. The driver must not be used
	// afterwards.
	Destroy() error
}
