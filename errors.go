package gpucmd

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucmd/internal/arena"
)

// Stale-use errors. Operations failing with these never reach the driver.
var (
	// ErrStaleUse is returned by operations on a command buffer or pass that
	// was submitted, cancelled, ended or never acquired.
	ErrStaleUse = errors.New("gpucmd: object used after submit")

	// ErrPassClosed is returned by operations on a pass after End.
	// It matches ErrStaleUse with errors.Is.
	ErrPassClosed = fmt.Errorf("%w: pass already ended", ErrStaleUse)

	// ErrDisposed is returned when a disposed resource is used.
	ErrDisposed = errors.New("gpucmd: resource disposed")

	// ErrDeviceClosed is returned by device operations after Close.
	ErrDeviceClosed = errors.New("gpucmd: device closed")
)

// Protocol errors.
var (
	// ErrPassInProgress is returned when a pass is begun, or the command
	// buffer is submitted, cancelled or blitted, while another pass is open.
	ErrPassInProgress = errors.New("gpucmd: a pass is already open on this command buffer")

	// ErrNoColorTargets is returned by BeginRenderPass without color targets.
	ErrNoColorTargets = errors.New("gpucmd: render pass needs at least one color target")

	// ErrPipelineNotBound is returned by draw and dispatch calls issued
	// before a pipeline was bound on the pass.
	ErrPipelineNotBound = errors.New("gpucmd: pipeline not bound")

	// ErrIndexBufferNotBound is returned by indexed draws without an index
	// buffer.
	ErrIndexBufferNotBound = errors.New("gpucmd: index buffer not bound")

	// ErrSwapchainAcquired is returned by Cancel after a swapchain texture
	// was acquired on the command buffer. Submit it instead.
	ErrSwapchainAcquired = errors.New("gpucmd: cannot cancel after acquiring a swapchain texture")

	// ErrNoDebugGroup is returned by PopDebugGroup without a matching
	// PushDebugGroup.
	ErrNoDebugGroup = errors.New("gpucmd: no debug group to pop")

	// ErrUniformLayout is returned when uniform data has no fixed-size
	// binary layout.
	ErrUniformLayout = errors.New("gpucmd: uniform data must have a fixed-size layout")
)

// Validation errors.
var (
	// ErrNilDriver is returned by NewDevice without a driver.
	ErrNilDriver = errors.New("gpucmd: nil driver")

	// ErrNilResource is returned when a required resource argument is nil.
	ErrNilResource = errors.New("gpucmd: nil resource")

	// ErrForeignResource is returned when a resource created by another
	// device is used.
	ErrForeignResource = errors.New("gpucmd: resource belongs to another device")

	// ErrInvalidDescriptor is returned for malformed creation descriptors.
	ErrInvalidDescriptor = errors.New("gpucmd: invalid descriptor")

	// ErrOutOfRange is returned when a copy or indirect range exceeds its
	// buffer or texture.
	ErrOutOfRange = errors.New("gpucmd: range out of bounds")

	// ErrMisaligned is returned when an offset violates its alignment.
	ErrMisaligned = errors.New("gpucmd: misaligned offset")

	// ErrEmptyRegion is returned for zero-area blit regions.
	ErrEmptyRegion = errors.New("gpucmd: empty region")

	// ErrAlreadyMapped is returned by Map on a mapped transfer buffer.
	ErrAlreadyMapped = errors.New("gpucmd: transfer buffer already mapped")

	// ErrNotMapped is returned by Unmap on an unmapped transfer buffer.
	ErrNotMapped = errors.New("gpucmd: transfer buffer not mapped")

	// ErrTransferBufferMapped is returned when uploading from a transfer
	// buffer that is still mapped.
	ErrTransferBufferMapped = errors.New("gpucmd: transfer buffer is mapped")
)

// Window errors.
var (
	// ErrInvalidWindow is returned for a zero window handle.
	ErrInvalidWindow = errors.New("gpucmd: invalid window")

	// ErrWindowClaimed is returned by ClaimWindow for a window that already
	// has a swapchain on this device.
	ErrWindowClaimed = errors.New("gpucmd: window already claimed")

	// ErrWindowNotClaimed is returned for swapchains that were released or
	// belong to another device.
	ErrWindowNotClaimed = errors.New("gpucmd: window not claimed")
)

// ErrArenaExhausted is returned when marshalling data for a native call
// overflows the arena. Use a larger arena capacity.
var ErrArenaExhausted = arena.ErrExhausted

// NativeError reports a failure returned by the native driver.
type NativeError struct {
	// Op is the gpucmd operation that issued the native call.
	Op string

	// Backend is the name of the driver.
	Backend string

	// Err is the driver error.
	Err error
}

// Error implements the error interface.
func (e *NativeError) Error() string {
	return fmt.Sprintf("gpucmd: %s (%s): %v", e.Op, e.Backend, e.Err)
}

// Unwrap returns the driver error.
func (e *NativeError) Unwrap() error {
	return e.Err
}
