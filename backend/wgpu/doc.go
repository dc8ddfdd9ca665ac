// Package wgpu implements gpucore.Driver on top of gogpu/wgpu/hal.
//
// Command buffers map to hal command encoders. Submit ends encoding,
// submits with a fence and waits for the GPU, so transient bind groups can
// be released right away. Copy-pass uploads are staged from host-side
// transfer buffers and issued through queue.WriteBuffer and
// queue.WriteTexture ahead of the command buffer they were recorded in.
//
// Shader code in WGSL is compiled to SPIR-V with gogpu/naga; SPIR-V code is
// passed through.
//
// Not supported (gpucore.ErrUnsupported): window swapchains, blits,
// uniform pushes, compute storage textures and samplers, and encoder
// features the hal backend does not expose (viewport, scissor, stencil
// reference, indirect dispatch).
//
// Importing the package registers it under the name "wgpu". The factory
// opens the first discrete or integrated Vulkan adapter.
package wgpu
