package gpucmd

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

// CopyPass records uploads from transfer buffers into data buffers and
// textures. Source transfer buffers must be unmapped when the upload is
// recorded.
type CopyPass struct {
	device *Device
	cb     *CommandBuffer
	handle gpucore.CopyPassID
	state  PassState
}

func (p *CopyPass) open(cb *CommandBuffer, id gpucore.CopyPassID) {
	p.cb = cb
	p.handle = id
	p.state = PassOpen
}

func (p *CopyPass) passName() string { return "copy" }

// Reset implements the pool contract.
func (p *CopyPass) Reset() {
	p.cb = nil
	p.handle = gpucore.InvalidID
	p.state = PassUnbound
}

// State returns the current state.
func (p *CopyPass) State() PassState { return p.state }

// End closes the pass and returns it to the pool.
func (p *CopyPass) End() error {
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("end copy pass: %w", err)
	}
	err := p.device.driver.EndCopyPass(p.handle)
	p.finish()
	if err != nil {
		return p.device.nativeError("end copy pass", err)
	}
	return nil
}

func (p *CopyPass) abort() {
	if p.state != PassOpen {
		return
	}
	if err := p.device.driver.EndCopyPass(p.handle); err != nil {
		p.device.log().Warn("gpucmd: end copy pass on release failed", "error", err)
	}
	p.finish()
}

func (p *CopyPass) finish() {
	p.state = PassClosed
	p.cb.activePass = nil
	p.device.copyPasses.TryReturnToPool(p)
}

// UploadToDataBuffer copies size bytes from src at srcOffset into dst at
// dstOffset. With cycle set the driver may rename dst instead of waiting
// for pending GPU reads.
func (p *CopyPass) UploadToDataBuffer(src *TransferBuffer, srcOffset uint32, dst *DataBuffer, dstOffset, size uint32, cycle bool) error {
	const op = "upload to data buffer"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	srcID, err := p.source(src)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	dstID, err := bufferID(p.device, dst)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if size == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyRegion)
	}
	if uint64(srcOffset)+uint64(size) > src.Size() {
		return fmt.Errorf("%s: %w: source [%d, %d) of %d bytes",
			op, ErrOutOfRange, srcOffset, uint64(srcOffset)+uint64(size), src.Size())
	}
	if uint64(dstOffset)+uint64(size) > dst.Size() {
		return fmt.Errorf("%s: %w: destination [%d, %d) of %d bytes",
			op, ErrOutOfRange, dstOffset, uint64(dstOffset)+uint64(size), dst.Size())
	}

	err = p.device.driver.UploadToBuffer(p.handle,
		gpucore.TransferBufferLocation{TransferBuffer: srcID, Offset: srcOffset},
		gpucore.BufferRegion{Buffer: dstID, Offset: dstOffset, Size: size},
		cycle)
	if err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

// UploadToTexture copies tightly packed texels from src at srcOffset into
// the top-left width x height rectangle of the base level of dst.
func (p *CopyPass) UploadToTexture(src *TransferBuffer, srcOffset uint32, dst *Texture, width, height uint32, cycle bool) error {
	return p.UploadToTextureRegion(src, srcOffset, TextureRegion{Texture: dst, Width: width, Height: height}, cycle)
}

// TextureRegion addresses a rectangle of one texture subresource for
// uploads.
type TextureRegion struct {
	Texture       *Texture
	MipLevel      uint32
	Layer         uint32
	X, Y          uint32
	Width, Height uint32
}

// UploadToTextureRegion copies tightly packed texels from src at srcOffset
// into region.
func (p *CopyPass) UploadToTextureRegion(src *TransferBuffer, srcOffset uint32, region TextureRegion, cycle bool) error {
	const op = "upload to texture"
	if err := checkPassOpen(p.state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	srcID, err := p.source(src)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	dstID, err := textureID(p.device, region.Texture)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if region.Width == 0 || region.Height == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyRegion)
	}

	mw := mipExtent(region.Texture.Width(), region.MipLevel)
	mh := mipExtent(region.Texture.Height(), region.MipLevel)
	if uint64(region.X)+uint64(region.Width) > uint64(mw) || uint64(region.Y)+uint64(region.Height) > uint64(mh) {
		return fmt.Errorf("%s: %w: %dx%d at (%d,%d) in %dx%d",
			op, ErrOutOfRange, region.Width, region.Height, region.X, region.Y, mw, mh)
	}
	if region.Layer >= region.Texture.Layers() {
		return fmt.Errorf("%s: %w: layer %d of %d", op, ErrOutOfRange, region.Layer, region.Texture.Layers())
	}
	if bpp := texelSize(region.Texture.Format()); bpp > 0 {
		need := uint64(srcOffset) + uint64(region.Width)*uint64(region.Height)*uint64(bpp)
		if need > src.Size() {
			return fmt.Errorf("%s: %w: need %d bytes, transfer buffer has %d", op, ErrOutOfRange, need, src.Size())
		}
	}

	err = p.device.driver.UploadToTexture(p.handle,
		gpucore.TextureTransferInfo{
			TransferBuffer: srcID,
			Offset:         srcOffset,
			PixelsPerRow:   region.Width,
			RowsPerLayer:   region.Height,
		},
		gpucore.TextureRegion{
			Texture:  dstID,
			MipLevel: region.MipLevel,
			Layer:    region.Layer,
			X:        region.X,
			Y:        region.Y,
			W:        region.Width,
			H:        region.Height,
			D:        1,
		},
		cycle)
	if err != nil {
		return p.device.nativeError(op, err)
	}
	return nil
}

func (p *CopyPass) source(src *TransferBuffer) (gpucore.TransferBufferID, error) {
	if src == nil {
		return gpucore.InvalidID, fmt.Errorf("transfer buffer: %w", ErrNilResource)
	}
	if src.Usage() != gpucore.TransferUsageUpload {
		return gpucore.InvalidID, fmt.Errorf("%w: transfer buffer is not an upload buffer", ErrInvalidDescriptor)
	}
	if src.IsMapped() {
		return gpucore.InvalidID, ErrTransferBufferMapped
	}
	return src.handleFor(p.device)
}

// texelSize returns the bytes per texel of uncompressed color formats, or
// 0 when the size is not known here.
func texelSize(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 0
	}
}
