package gpucmd

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/backend/headless"
	"github.com/gogpu/gpucmd/gpucore"
)

// newTestDevice creates a device on a fresh headless driver.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *headless.Driver) {
	t.Helper()
	drv := headless.New()
	dev, err := NewDevice(drv, opts...)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev, drv
}

func mustAcquire(t *testing.T, dev *Device) *CommandBuffer {
	t.Helper()
	cb, err := dev.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	return cb
}

func mustDataBuffer(t *testing.T, dev *Device, size uint64) *DataBuffer {
	t.Helper()
	b, err := dev.CreateDataBuffer(gpucore.BufferDescriptor{
		Label: "test",
		Size:  size,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageStorage,
	})
	if err != nil {
		t.Fatalf("CreateDataBuffer: %v", err)
	}
	return b
}

// mustUpload creates an upload transfer buffer holding data.
func mustUpload(t *testing.T, dev *Device, data []byte) *TransferBuffer {
	t.Helper()
	tb, err := dev.CreateTransferBuffer(gpucore.TransferBufferDescriptor{
		Size:  uint64(len(data)),
		Usage: gpucore.TransferUsageUpload,
	})
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	view, err := tb.Map(false)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	copy(view, data)
	if err := tb.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	return tb
}

func mustTexture(t *testing.T, dev *Device, w, h uint32, format gputypes.TextureFormat) *Texture {
	t.Helper()
	tex, err := dev.CreateTexture(gpucore.TextureDescriptor{
		Label:  "test",
		Width:  w,
		Height: h,
		Format: format,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return tex
}

func mustPipeline(t *testing.T, dev *Device) *GraphicsPipeline {
	t.Helper()
	vs, err := dev.CreateGraphicsShader(gpucore.ShaderDescriptor{
		Code:  []byte("vs"),
		Stage: gpucore.ShaderStageVertex,
	})
	if err != nil {
		t.Fatalf("CreateGraphicsShader(vertex): %v", err)
	}
	fs, err := dev.CreateGraphicsShader(gpucore.ShaderDescriptor{
		Code:  []byte("fs"),
		Stage: gpucore.ShaderStageFragment,
	})
	if err != nil {
		t.Fatalf("CreateGraphicsShader(fragment): %v", err)
	}
	p, err := dev.CreateGraphicsPipeline(GraphicsPipelineDesc{
		VertexShader:   vs,
		FragmentShader: fs,
		Topology:       gputypes.PrimitiveTopologyTriangleList,
		ColorTargets:   []gpucore.ColorTargetDescription{{Format: gputypes.TextureFormatRGBA8Unorm}},
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline: %v", err)
	}
	return p
}

func mustComputeShader(t *testing.T, dev *Device) *ComputeShader {
	t.Helper()
	cs, err := dev.CreateComputeShader(gpucore.ComputePipelineDescriptor{
		Code:         []byte("cs"),
		ThreadCountX: 8,
		ThreadCountY: 8,
		ThreadCountZ: 1,
	})
	if err != nil {
		t.Fatalf("CreateComputeShader: %v", err)
	}
	return cs
}

func clearTarget(tex *Texture, c gputypes.Color) ColorTarget {
	return ColorTarget{
		Texture:    tex,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearColor: c,
	}
}
