package headless

import "errors"

// Validation errors. The headless driver rejects every protocol violation a
// strict native driver would, so misuse shows up in tests.
var (
	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("headless: driver destroyed")

	// ErrUnknownHandle is returned for handles the driver never issued or
	// already released.
	ErrUnknownHandle = errors.New("headless: unknown handle")

	// ErrPassOpen is returned when a pass is begun while another is open,
	// or a command buffer is submitted with a pass still open.
	ErrPassOpen = errors.New("headless: pass already open")

	// ErrPassEnded is returned for commands on an ended pass.
	ErrPassEnded = errors.New("headless: pass ended")

	// ErrCommandBufferDone is returned for commands on a submitted or
	// cancelled command buffer.
	ErrCommandBufferDone = errors.New("headless: command buffer already submitted or cancelled")

	// ErrNoPipeline is returned for draws and dispatches before a pipeline
	// is bound.
	ErrNoPipeline = errors.New("headless: no pipeline bound")

	// ErrSwapchainPending is returned when a command buffer that acquired a
	// swapchain texture is cancelled.
	ErrSwapchainPending = errors.New("headless: swapchain texture acquired; command buffer must be submitted")

	// ErrWindowClaimed is returned when a window is claimed twice.
	ErrWindowClaimed = errors.New("headless: window already claimed")

	// ErrWindowNotClaimed is returned when acquiring from an unclaimed window.
	ErrWindowNotClaimed = errors.New("headless: window not claimed")

	// ErrMapped is returned when a mapped transfer buffer is mapped again
	// or used as an upload source.
	ErrMapped = errors.New("headless: transfer buffer is mapped")

	// ErrNotMapped is returned when an unmapped transfer buffer is unmapped.
	ErrNotMapped = errors.New("headless: transfer buffer is not mapped")

	// ErrOutOfBounds is returned for copies that leave a resource.
	ErrOutOfBounds = errors.New("headless: region out of bounds")

	// ErrDebugGroup is returned by an unbalanced PopDebugGroup.
	ErrDebugGroup = errors.New("headless: no debug group to pop")
)
