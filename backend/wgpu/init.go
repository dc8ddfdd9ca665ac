//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
)

func init() {
	backend.Register(backend.BackendWGPU, func() (gpucore.Driver, error) {
		return New()
	})
}
