// Package backend provides the registry of gpucore drivers.
//
// Driver packages register a factory from their init() function. Importing
// a driver package for its side effect makes it selectable by name:
//
//	import _ "github.com/gogpu/gpucmd/backend/headless"
//
// # Backend Selection
//
// Use Default() to create a driver of the best available backend, or Get()
// to request a specific one:
//
//	drv, err := backend.Default()
//
//	drv, err := backend.Get(backend.BackendHeadless)
//
// Most programs do not call the registry directly; gpucmd.Open does.
//
// # Available Backends
//
//   - "wgpu": GPU recording via gogpu/wgpu (Vulkan adapters)
//   - "headless": CPU reference driver with inspectable state (always available)
package backend
