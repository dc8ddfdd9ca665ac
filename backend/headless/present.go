package headless

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

// swapchainImages is the length of the simulated swapchain ring.
const swapchainImages = 2

// SwapchainFormat is the texel format of simulated swapchain images.
const SwapchainFormat = gputypes.TextureFormatRGBA8Unorm

type window struct {
	width, height uint32
	claimed       bool
	available     bool
	images        [swapchainImages]gpucore.TextureID
	next          int
	frame         []byte
	frames        int
}

// CreateWindow simulates a window of the given size and returns its ID.
// The window must be claimed through gpucore.Presenter before use.
func (d *Driver) CreateWindow(width, height uint32) (gpucore.WindowID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	if width == 0 || height == 0 {
		return gpucore.InvalidID, fmt.Errorf("headless: window size %dx%d", width, height)
	}

	w := &window{width: width, height: height, available: true}
	for i := range w.images {
		id := gpucore.TextureID(d.newID())
		d.textures[id] = newTexture(gpucore.TextureDescriptor{
			Label:         fmt.Sprintf("swapchain image %d", i),
			Width:         width,
			Height:        height,
			LayerCount:    1,
			MipLevelCount: 1,
			SampleCount:   1,
			Format:        SwapchainFormat,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
		}, true)
		w.images[i] = id
	}
	id := gpucore.WindowID(d.newID())
	d.windows[id] = w
	return id, nil
}

// SetSwapchainAvailable controls whether acquires on the window return an
// image. An unavailable swapchain behaves like a minimized window.
func (d *Driver) SetSwapchainAvailable(id gpucore.WindowID, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[id]
	if !ok {
		return fmt.Errorf("%w: window %d", ErrUnknownHandle, id)
	}
	w.available = available
	return nil
}

// Frame returns the last presented frame of the window and the number of
// frames presented so far. The image is nil before the first present.
func (d *Driver) Frame(id gpucore.WindowID) (*image.RGBA, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: window %d", ErrUnknownHandle, id)
	}
	if w.frame == nil {
		return nil, w.frames, nil
	}
	img := &image.RGBA{
		Pix:    slices.Clone(w.frame),
		Stride: int(w.width) * 4,
		Rect:   image.Rect(0, 0, int(w.width), int(w.height)),
	}
	return img, w.frames, nil
}

// ClaimWindow attaches a swapchain to the window.
func (d *Driver) ClaimWindow(id gpucore.WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	w, ok := d.windows[id]
	if !ok {
		return fmt.Errorf("%w: window %d", ErrUnknownHandle, id)
	}
	if w.claimed {
		return ErrWindowClaimed
	}
	w.claimed = true
	return nil
}

// ReleaseWindow detaches the swapchain from the window.
func (d *Driver) ReleaseWindow(id gpucore.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if w, ok := d.windows[id]; ok {
		w.claimed = false
	}
}

// WaitAndAcquireSwapchainTexture returns the next swapchain image, or a
// zero SwapchainTexture when the window is unavailable. Acquiring twice on
// the same command buffer returns the same image.
func (d *Driver) WaitAndAcquireSwapchainTexture(cbID gpucore.CommandBufferID, id gpucore.WindowID) (gpucore.SwapchainTexture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.SwapchainTexture{}, err
	}
	cb, err := d.lookupCommandBuffer(cbID)
	if err != nil {
		return gpucore.SwapchainTexture{}, err
	}
	w, ok := d.windows[id]
	if !ok {
		return gpucore.SwapchainTexture{}, fmt.Errorf("%w: window %d", ErrUnknownHandle, id)
	}
	if !w.claimed {
		return gpucore.SwapchainTexture{}, ErrWindowNotClaimed
	}
	if !w.available {
		return gpucore.SwapchainTexture{}, nil
	}

	if !slices.Contains(cb.windows, id) {
		cb.windows = append(cb.windows, id)
	}
	return gpucore.SwapchainTexture{
		Texture: w.images[w.next],
		Width:   w.width,
		Height:  w.height,
		Format:  SwapchainFormat,
	}, nil
}

// present copies the current image of the window into its frame and
// advances the ring. Must hold d.mu.
func (d *Driver) present(id gpucore.WindowID) {
	w, ok := d.windows[id]
	if !ok {
		return
	}
	img := d.textures[w.images[w.next]]
	w.frame = slices.Clone(img.layer(0))
	w.frames++
	w.next = (w.next + 1) % swapchainImages
	d.stats.Presents++
}
