package backend

import (
	"errors"

	"github.com/gogpu/gpucmd/gpucore"
)

// Backend names.
const (
	// BackendWGPU is the GPU backend built on gogpu/wgpu.
	BackendWGPU = "wgpu"

	// BackendHeadless is the CPU reference backend. It is always available.
	BackendHeadless = "headless"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none of the registered backends initializes.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory creates a driver. It returns an error when the backend cannot
// initialize on this machine (no adapter, missing loader, ...).
type Factory func() (gpucore.Driver, error)
