// Package gpucore defines the native driver surface that gpucmd records
// against.
//
// The package has three parts:
//
//   - Opaque resource IDs ([BufferID], [TextureID], [CommandBufferID], ...).
//     Each driver keeps its own mapping from IDs to backend objects. The zero
//     value of every ID type is [InvalidID].
//
//   - Descriptors for resource creation and pass recording, expressed with
//     the shared enums of github.com/gogpu/gputypes.
//
//   - The [Driver] interface, composed of narrower recorder interfaces. Every
//     primitive is a thin side-effecting call that either succeeds or returns
//     an error; validation of the recording protocol happens in gpucmd before
//     a primitive is reached.
//
// # Drivers
//
//	               +-----------------+
//	               |     gpucmd      |
//	               | (pools, passes) |
//	               +--------+--------+
//	                        |
//	                 gpucore.Driver
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|    headless     |          |      wgpu       |
//	| (image.RGBA CPU)|          |  (hal.Device)   |
//	+-----------------+          +-----------------+
//
// Strings passed to a driver (debug labels, resource names) are
// NUL-terminated byte slices staged in an arena by the caller. A driver must
// not retain them after the call returns.
//
// # Optional primitives
//
// A driver that cannot implement a primitive returns an error wrapping
// [ErrUnsupported].
package gpucore
