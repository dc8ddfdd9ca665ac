package headless

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/gpucmd/gpucore"
)

// texelSize returns the bytes per texel of f. Unknown formats are stored
// as 4 bytes per texel.
func texelSize(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// clearTexel encodes a clear color in the byte order of f.
func clearTexel(f gputypes.TextureFormat, c gputypes.Color) []byte {
	r, g, b, a := unorm8(float64(c.R)), unorm8(float64(c.G)), unorm8(float64(c.B)), unorm8(float64(c.A))
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return []byte{r}
	case gputypes.TextureFormatBGRA8Unorm:
		return []byte{b, g, r, a}
	default:
		return []byte{r, g, b, a}
	}
}

// depthStencilTexel packs a 24-bit depth and an 8-bit stencil value.
func depthStencilTexel(depth float32, stencil uint8) []byte {
	d := uint32(math.Round(float64(min(max(depth, 0), 1)) * 0xFFFFFF))
	return binary.LittleEndian.AppendUint32(nil, d<<8|uint32(stencil))
}

func unorm8(v float64) uint8 {
	return uint8(math.Round(min(max(v, 0), 1) * 255))
}

// fill repeats texel over dst.
func fill(dst, texel []byte) {
	if len(texel) == 0 {
		return
	}
	for i := 0; i+len(texel) <= len(dst); i += len(texel) {
		copy(dst[i:], texel)
	}
}

// rgba views one layer of a 4-byte-per-texel texture as an image.
func (t *texture) rgba(layer uint32) *image.RGBA {
	return &image.RGBA{
		Pix:    t.layer(layer),
		Stride: int(t.desc.Width) * 4,
		Rect:   image.Rect(0, 0, int(t.desc.Width), int(t.desc.Height)),
	}
}

// blit scales the source rectangle onto the destination rectangle. Bytes
// are moved channel by channel, so RGBA and BGRA textures blit into
// textures of the same order.
func blit(src, dst *texture, desc *gpucore.BlitDescriptor) {
	s, dr := desc.Source, desc.Destination
	dstImg := dst.rgba(dr.LayerOrDepthPlane)
	if desc.LoadOp == gputypes.LoadOpClear {
		fill(dstImg.Pix, clearTexel(dst.desc.Format, desc.ClearColor))
	}

	srcImg := src.rgba(s.LayerOrDepthPlane)
	if src == dst {
		clone := *srcImg
		clone.Pix = append([]byte(nil), srcImg.Pix...)
		srcImg = &clone
	}

	sr := image.Rect(int(s.X), int(s.Y), int(s.X+s.Width), int(s.Y+s.Height))
	target := image.Rect(int(dr.X), int(dr.Y), int(dr.X+dr.Width), int(dr.Y+dr.Height))
	if sr.Empty() || target.Empty() {
		return
	}

	sx := float64(target.Dx()) / float64(sr.Dx())
	sy := float64(target.Dy()) / float64(sr.Dy())

	// m maps source coordinates to destination coordinates.
	m := f64.Aff3{
		sx, 0, float64(target.Min.X) - float64(sr.Min.X)*sx,
		0, sy, float64(target.Min.Y) - float64(sr.Min.Y)*sy,
	}
	if desc.FlipMode&gpucore.FlipHorizontal != 0 {
		m[0] = -sx
		m[2] = float64(target.Max.X) + float64(sr.Min.X)*sx
	}
	if desc.FlipMode&gpucore.FlipVertical != 0 {
		m[4] = -sy
		m[5] = float64(target.Max.Y) + float64(sr.Min.Y)*sy
	}

	var interp draw.Interpolator = draw.NearestNeighbor
	if desc.Filter == gputypes.FilterModeLinear {
		interp = draw.ApproxBiLinear
	}
	interp.Transform(dstImg.SubImage(target).(*image.RGBA), m, srcImg, sr, draw.Src, nil)
}
