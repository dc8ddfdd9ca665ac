// Package headless implements gpucore.Driver on the CPU.
//
// The headless driver is the reference backend for gpucmd. It keeps every
// resource in host memory, validates the command protocol strictly and
// executes recorded work when a command buffer is submitted:
//
//   - uploads copy bytes into buffers and textures
//   - render passes apply their clear load operations
//   - blits scale and flip with golang.org/x/image/draw
//   - draws and dispatches are counted, not rasterized
//
// Windows are simulated with CreateWindow. Each window has a two-image
// swapchain whose presented frame can be read back with Frame, and
// SetSwapchainAvailable simulates a minimized window.
//
// Importing the package registers it under the name "headless":
//
//	import _ "github.com/gogpu/gpucmd/backend/headless"
package headless
