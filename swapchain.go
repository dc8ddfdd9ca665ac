package gpucmd

import (
	"sync/atomic"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/handle"
)

// Swapchain is the presentation chain of a claimed window. Its texture is
// rebound to the platform's current image by
// CommandBuffer.TryGetSwapchainTexture.
type Swapchain struct {
	device   *Device
	window   gpucore.WindowID
	texture  *Texture
	released atomic.Bool
}

func newSwapchain(d *Device, w gpucore.WindowID) *Swapchain {
	borrowed := handle.NewBorrowed[gpucore.TextureID]()
	return &Swapchain{
		device: d,
		window: w,
		texture: &Texture{
			resource: resource[gpucore.TextureID]{
				device: d,
				kind:   "swapchain texture",
				h:      borrowed,
			},
			layers:    1,
			swapchain: borrowed,
		},
	}
}

// Window returns the platform window handle.
func (s *Swapchain) Window() gpucore.WindowID { return s.window }

// IsReleased reports whether the window was released.
func (s *Swapchain) IsReleased() bool { return s.released.Load() }

func (s *Swapchain) release() {
	s.released.Store(true)
	s.texture.swapchain.Unbind()
}
