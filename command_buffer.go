package gpucmd

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/arena"
)

// uniformAlignment is the alignment of uniform blocks staged in the
// command buffer arena.
const uniformAlignment = 16

// CommandBufferState represents the state of a command buffer.
type CommandBufferState int

const (
	// CommandBufferUnbound means the buffer is idle in its pool.
	CommandBufferUnbound CommandBufferState = iota

	// CommandBufferRecording means the buffer accepts commands.
	CommandBufferRecording

	// CommandBufferSubmitted means the recorded work was handed to the GPU.
	CommandBufferSubmitted

	// CommandBufferCancelled means the recorded work was discarded.
	CommandBufferCancelled
)

// String returns the string representation of CommandBufferState.
func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferUnbound:
		return "Unbound"
	case CommandBufferRecording:
		return "Recording"
	case CommandBufferSubmitted:
		return "Submitted"
	case CommandBufferCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// openPass is implemented by the three pass types.
type openPass interface {
	passName() string

	// abort closes the native pass and returns the wrapper to its pool.
	// Errors are logged, not returned.
	abort()
}

// CommandBuffer records GPU work for a single submission.
//
// A CommandBuffer is acquired from Device.AcquireCommandBuffer, records
// passes and out-of-pass commands, and is finished with exactly one Submit
// or Cancel, which return it to the device pool. Any later call on the
// same pointer fails with ErrStaleUse without reaching the driver.
//
// Thread Safety:
// A CommandBuffer is NOT safe for concurrent use. It must be recorded and
// finished on the goroutine that acquired it. Different command buffers may
// be recorded concurrently.
//
// State Machine:
//
//	Unbound -> Acquire -> Recording -> Submit -> Submitted -> (pool) Unbound
//	                           |
//	                           +-----> Cancel -> Cancelled -> (pool) Unbound
type CommandBuffer struct {
	device *Device

	// arena stages uniform blocks and debug strings for one native call
	// at a time. It lives as long as the pooled wrapper.
	arena *arena.Arena

	handle gpucore.CommandBufferID
	state  CommandBufferState

	// submitted guards the native handle against double submission,
	// including the implicit submit performed by Reset.
	submitted atomic.Bool

	activePass        openPass
	swapchainAcquired bool
	debugDepth        int
}

// bind attaches a fresh native command buffer. Called on acquire.
func (cb *CommandBuffer) bind(id gpucore.CommandBufferID) {
	cb.handle = id
	cb.state = CommandBufferRecording
	cb.submitted.Store(false)
}

// State returns the current state.
func (cb *CommandBuffer) State() CommandBufferState {
	return cb.state
}

// ID returns the native handle, or InvalidID when the buffer is not
// recording.
func (cb *CommandBuffer) ID() gpucore.CommandBufferID {
	return cb.handle
}

// Device returns the owning device.
func (cb *CommandBuffer) Device() *Device {
	return cb.device
}

// SwapchainAcquired reports whether a swapchain texture was acquired on
// this buffer.
func (cb *CommandBuffer) SwapchainAcquired() bool {
	return cb.swapchainAcquired
}

// checkRecording returns ErrStaleUse unless the buffer is Recording.
func (cb *CommandBuffer) checkRecording() error {
	if cb.state != CommandBufferRecording {
		return fmt.Errorf("%w: command buffer is %s", ErrStaleUse, cb.state)
	}
	return nil
}

// checkIdle returns an error unless the buffer is Recording with no pass
// open.
func (cb *CommandBuffer) checkIdle() error {
	if err := cb.checkRecording(); err != nil {
		return err
	}
	if cb.activePass != nil {
		return fmt.Errorf("%w: %s pass", ErrPassInProgress, cb.activePass.passName())
	}
	return nil
}

// Reset implements the pool contract. A buffer returned while still
// recording has its open pass ended and its work submitted, so the native
// handle is never leaked. The atomic submitted flag makes that implicit
// submit race-free against an explicit Submit.
func (cb *CommandBuffer) Reset() {
	if cb.activePass != nil {
		cb.activePass.abort()
		cb.activePass = nil
	}
	if cb.handle != gpucore.InvalidID && cb.submitted.CompareAndSwap(false, true) {
		cb.device.log().Warn("gpucmd: command buffer released while recording; submitting",
			"handle", uint64(cb.handle))
		if err := cb.device.driver.SubmitCommandBuffer(cb.handle); err != nil {
			cb.device.log().Error("gpucmd: implicit submit failed", "error", err)
		}
	}

	cb.handle = gpucore.InvalidID
	cb.state = CommandBufferUnbound
	cb.swapchainAcquired = false
	cb.debugDepth = 0
	cb.arena.Reset()
	cb.submitted.Store(false)
}

// Dispose releases the private arena. Called when the pool closes.
func (cb *CommandBuffer) Dispose() {
	if err := cb.arena.Close(); err != nil {
		cb.device.log().Warn("gpucmd: command buffer arena close failed", "error", err)
	}
}

// release returns the buffer to the device pool.
func (cb *CommandBuffer) release() {
	cb.device.commandBuffers.TryReturnToPool(cb)
}

// Submit hands the recorded work to the GPU and returns the buffer to the
// pool. Buffers submitted earlier begin executing first.
//
// Returns an error if:
//   - The buffer is not Recording (ErrStaleUse); nothing is submitted
//   - A pass is still open (ErrPassInProgress); the buffer stays Recording
//   - The driver rejects the submission (*NativeError); the buffer is
//     returned to the pool regardless
func (cb *CommandBuffer) Submit() error {
	if err := cb.checkIdle(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if !cb.submitted.CompareAndSwap(false, true) {
		return fmt.Errorf("submit: %w", ErrStaleUse)
	}

	err := cb.device.driver.SubmitCommandBuffer(cb.handle)
	cb.state = CommandBufferSubmitted
	cb.release()
	if err != nil {
		return cb.device.nativeError("submit", err)
	}
	return nil
}

// Cancel discards the recorded work and returns the buffer to the pool.
//
// Cancel fails with ErrSwapchainAcquired once TryGetSwapchainTexture has
// returned a texture on this buffer: the image must be presented, so the
// buffer has to be submitted.
func (cb *CommandBuffer) Cancel() error {
	if err := cb.checkIdle(); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if cb.swapchainAcquired {
		return fmt.Errorf("cancel: %w", ErrSwapchainAcquired)
	}
	if !cb.submitted.CompareAndSwap(false, true) {
		return fmt.Errorf("cancel: %w", ErrStaleUse)
	}

	err := cb.device.driver.CancelCommandBuffer(cb.handle)
	cb.state = CommandBufferCancelled
	cb.release()
	if err != nil {
		return cb.device.nativeError("cancel", err)
	}
	return nil
}

// Close returns a buffer that is still recording to the pool. An open pass
// is ended and the recorded work is submitted. It is meant for error paths
// that abandon a frame halfway; the normal path is Submit or Cancel.
func (cb *CommandBuffer) Close() error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	cb.release()
	return nil
}

// TryGetSwapchainTexture blocks until the window of sc has a presentable
// image and returns it as a texture valid for this command buffer. When no
// image is available it returns (nil, false, nil): cancel the buffer and
// skip the frame.
func (cb *CommandBuffer) TryGetSwapchainTexture(sc *Swapchain) (*Texture, bool, error) {
	const op = "acquire swapchain texture"
	if err := cb.checkRecording(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if sc == nil || sc.device != cb.device || sc.IsReleased() {
		return nil, false, fmt.Errorf("%s: %w", op, ErrWindowNotClaimed)
	}

	st, err := cb.device.driver.WaitAndAcquireSwapchainTexture(cb.handle, sc.window)
	if err != nil {
		return nil, false, cb.device.nativeError(op, err)
	}
	if st.Texture == gpucore.InvalidID {
		cb.device.log().Debug("gpucmd: no swapchain image", "window", uint64(sc.window))
		return nil, false, nil
	}

	sc.texture.rebind(st)
	cb.swapchainAcquired = true
	return sc.texture, true, nil
}

// BeginRenderPass opens a render pass drawing into colors and, when
// depthStencil is not nil, a depth/stencil target.
//
// Returns an error if:
//   - The buffer is not Recording (ErrStaleUse)
//   - Another pass is open (ErrPassInProgress)
//   - colors is empty (ErrNoColorTargets)
//   - A target texture is nil, disposed or foreign
func (cb *CommandBuffer) BeginRenderPass(depthStencil *DepthStencilTarget, colors ...ColorTarget) (*RenderPass, error) {
	const op = "begin render pass"
	if err := cb.checkIdle(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoColorTargets)
	}

	rp, err := cb.device.renderPasses.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rp.prepare(depthStencil, colors); err != nil {
		cb.device.renderPasses.TryReturnToPool(rp)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := cb.device.driver.BeginRenderPass(cb.handle, &rp.desc)
	if err != nil {
		cb.device.renderPasses.TryReturnToPool(rp)
		return nil, cb.device.nativeError(op, err)
	}

	rp.open(cb, id)
	cb.activePass = rp
	return rp, nil
}

// BeginCopyPass opens a copy pass for CPU to GPU uploads.
func (cb *CommandBuffer) BeginCopyPass() (*CopyPass, error) {
	const op = "begin copy pass"
	if err := cb.checkIdle(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cp, err := cb.device.copyPasses.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	id, err := cb.device.driver.BeginCopyPass(cb.handle)
	if err != nil {
		cb.device.copyPasses.TryReturnToPool(cp)
		return nil, cb.device.nativeError(op, err)
	}

	cp.open(cb, id)
	cb.activePass = cp
	return cp, nil
}

// BeginComputePass opens a compute pass. The storage textures and buffers
// in params are bound read-write for the whole pass.
func (cb *CommandBuffer) BeginComputePass(params ComputePassParams) (*ComputePass, error) {
	const op = "begin compute pass"
	if err := cb.checkIdle(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cp, err := cb.device.computePasses.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cp.prepare(params); err != nil {
		cb.device.computePasses.TryReturnToPool(cp)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := cb.device.driver.BeginComputePass(cb.handle, &cp.desc)
	if err != nil {
		cb.device.computePasses.TryReturnToPool(cp)
		return nil, cb.device.nativeError(op, err)
	}

	cp.open(cb, id)
	cb.activePass = cp
	return cp, nil
}

// PushVertexUniform copies data into vertex uniform slot. data must have a
// fixed-size binary layout (see encoding/binary). It affects draws recorded
// after the call.
func (cb *CommandBuffer) PushVertexUniform(slot uint32, data any) error {
	return cb.pushUniform("push vertex uniform", gpucore.UniformStageVertex, slot, data)
}

// PushFragmentUniform copies data into fragment uniform slot.
func (cb *CommandBuffer) PushFragmentUniform(slot uint32, data any) error {
	return cb.pushUniform("push fragment uniform", gpucore.UniformStageFragment, slot, data)
}

// PushComputeUniform copies data into compute uniform slot.
func (cb *CommandBuffer) PushComputeUniform(slot uint32, data any) error {
	return cb.pushUniform("push compute uniform", gpucore.UniformStageCompute, slot, data)
}

func (cb *CommandBuffer) pushUniform(op string, stage gpucore.UniformStage, slot uint32, data any) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	size := binary.Size(data)
	if size <= 0 {
		return fmt.Errorf("%s: %w: %T", op, ErrUniformLayout, data)
	}

	block, err := cb.arena.Allocate(size, uniformAlignment)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer cb.arena.Reset()

	if _, err := binary.Encode(block, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := cb.device.driver.PushUniformData(cb.handle, stage, slot, block); err != nil {
		return cb.device.nativeError(op, err)
	}
	return nil
}

// BlitTexture copies the source region into the destination region,
// scaling with info.Filter and mirroring with info.FlipMode. It must be
// recorded outside of any pass.
func (cb *CommandBuffer) BlitTexture(info BlitInfo) error {
	const op = "blit texture"
	if err := cb.checkIdle(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	src, err := cb.blitRegion(info.Source)
	if err != nil {
		return fmt.Errorf("%s: source: %w", op, err)
	}
	dst, err := cb.blitRegion(info.Destination)
	if err != nil {
		return fmt.Errorf("%s: destination: %w", op, err)
	}

	desc := gpucore.BlitDescriptor{
		Source:      src,
		Destination: dst,
		LoadOp:      info.LoadOp,
		ClearColor:  info.ClearColor,
		FlipMode:    info.FlipMode,
		Filter:      info.Filter,
		Cycle:       info.Cycle,
	}
	if err := cb.device.driver.BlitTexture(cb.handle, &desc); err != nil {
		return cb.device.nativeError(op, err)
	}
	return nil
}

func (cb *CommandBuffer) blitRegion(r BlitRegion) (gpucore.BlitRegion, error) {
	id, err := textureID(cb.device, r.Texture)
	if err != nil {
		return gpucore.BlitRegion{}, err
	}

	mw := mipExtent(r.Texture.Width(), r.MipLevel)
	mh := mipExtent(r.Texture.Height(), r.MipLevel)
	w, h := r.Width, r.Height
	if w == 0 && h == 0 {
		if r.X >= mw || r.Y >= mh {
			return gpucore.BlitRegion{}, ErrOutOfRange
		}
		w, h = mw-r.X, mh-r.Y
	}
	if w == 0 || h == 0 {
		return gpucore.BlitRegion{}, ErrEmptyRegion
	}
	if uint64(r.X)+uint64(w) > uint64(mw) || uint64(r.Y)+uint64(h) > uint64(mh) {
		return gpucore.BlitRegion{}, fmt.Errorf("%w: %dx%d at (%d,%d) in %dx%d",
			ErrOutOfRange, w, h, r.X, r.Y, mw, mh)
	}

	return gpucore.BlitRegion{
		Texture:           id,
		MipLevel:          r.MipLevel,
		LayerOrDepthPlane: r.Layer,
		X:                 r.X,
		Y:                 r.Y,
		Width:             w,
		Height:            h,
	}, nil
}

// PushDebugGroup opens a named debug group visible in graphics debuggers.
func (cb *CommandBuffer) PushDebugGroup(name string) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("push debug group: %w", err)
	}
	err := cb.withCString("push debug group", name, func(cstr []byte) error {
		return cb.device.driver.PushDebugGroup(cb.handle, cstr)
	})
	if err != nil {
		return err
	}
	cb.debugDepth++
	return nil
}

// PopDebugGroup closes the innermost debug group.
func (cb *CommandBuffer) PopDebugGroup() error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("pop debug group: %w", err)
	}
	if cb.debugDepth == 0 {
		return fmt.Errorf("pop debug group: %w", ErrNoDebugGroup)
	}
	if err := cb.device.driver.PopDebugGroup(cb.handle); err != nil {
		return cb.device.nativeError("pop debug group", err)
	}
	cb.debugDepth--
	return nil
}

// InsertDebugLabel inserts a single debug marker.
func (cb *CommandBuffer) InsertDebugLabel(text string) error {
	if err := cb.checkRecording(); err != nil {
		return fmt.Errorf("insert debug label: %w", err)
	}
	return cb.withCString("insert debug label", text, func(cstr []byte) error {
		return cb.device.driver.InsertDebugLabel(cb.handle, cstr)
	})
}

// withCString stages s in the private arena for the duration of call.
func (cb *CommandBuffer) withCString(op, s string, call func(cstr []byte) error) error {
	cstr, err := cb.arena.AllocateCString(s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer cb.arena.Reset()
	if err := call(cstr); err != nil {
		return cb.device.nativeError(op, err)
	}
	return nil
}

func mipExtent(n, level uint32) uint32 {
	if level >= 32 {
		return 1
	}
	return max(n>>level, 1)
}

func textureID(d *Device, t *Texture) (gpucore.TextureID, error) {
	if t == nil {
		return gpucore.InvalidID, fmt.Errorf("texture: %w", ErrNilResource)
	}
	return t.handleFor(d)
}

func bufferID(d *Device, b *DataBuffer) (gpucore.BufferID, error) {
	if b == nil {
		return gpucore.InvalidID, fmt.Errorf("data buffer: %w", ErrNilResource)
	}
	return b.handleFor(d)
}

func samplerID(d *Device, s *Sampler) (gpucore.SamplerID, error) {
	if s == nil {
		return gpucore.InvalidID, fmt.Errorf("sampler: %w", ErrNilResource)
	}
	return s.handleFor(d)
}
