package headless

import (
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
)

func init() {
	backend.Register(backend.BackendHeadless, func() (gpucore.Driver, error) {
		return New(), nil
	})
}
