// Package gpucmd records GPU command buffers and passes over a pluggable
// native driver.
//
// # Overview
//
// A [Device] owns a native driver context. Work is recorded into a
// [CommandBuffer] acquired from the device, split into render, copy and
// compute passes, and handed to the GPU with a single Submit or discarded
// with Cancel:
//
//	dev, err := gpucmd.Open("headless")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	cb, err := dev.AcquireCommandBuffer()
//	...
//	rp, err := cb.BeginRenderPass(nil, gpucmd.ColorTarget{
//	    Texture:    target,
//	    LoadOp:     gputypes.LoadOpClear,
//	    StoreOp:    gputypes.StoreOpStore,
//	    ClearColor: gputypes.Color{R: 1, A: 1},
//	})
//	...
//	err = rp.End()
//	err = cb.Submit()
//
// # Pooling
//
// Command buffers and passes are pooled per device. Submit, Cancel and End
// return the wrapper to its pool, so the pointer must not be kept: later
// calls on it fail with [ErrStaleUse] and never reach the driver.
//
// # Backends
//
// Drivers register themselves with package backend when imported:
//
//	import _ "github.com/gogpu/gpucmd/backend/headless" // CPU reference
//	import _ "github.com/gogpu/gpucmd/backend/wgpu"     // Vulkan via gogpu/wgpu
//
// [Open] with an empty name picks the highest priority backend that
// initializes.
//
// # Swapchains
//
// [Device.ClaimWindow] attaches a [Swapchain] to a platform window.
// [CommandBuffer.TryGetSwapchainTexture] returns no texture when the
// window has nothing to present, for example while minimized; cancel the
// command buffer and skip the frame. Once a texture was returned the
// buffer must be submitted.
//
// # Logging
//
// gpucmd is silent by default. Configure logging with [SetLogger] or per
// device with [WithLogger]; the logger is passed on to drivers that accept
// one.
package gpucmd
