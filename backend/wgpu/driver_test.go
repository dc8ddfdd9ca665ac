//go:build !nogpu

package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpucmd/gpucore"
)

// newNoopDriver creates a driver on a noop device.
func newNoopDriver(t *testing.T) *Driver {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	d := NewWithDevice(openDev.Device, openDev.Queue)
	t.Cleanup(func() {
		_ = d.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return d
}

func mustBuffer(t *testing.T, d *Driver, size uint64) gpucore.BufferID {
	t.Helper()
	id, err := d.CreateBuffer(&gpucore.BufferDescriptor{
		Label: "test",
		Size:  size,
		Usage: gputypes.BufferUsageStorage,
	})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	return id
}

func mustTransfer(t *testing.T, d *Driver, size uint64) gpucore.TransferBufferID {
	t.Helper()
	id, err := d.CreateTransferBuffer(&gpucore.TransferBufferDescriptor{
		Usage: gpucore.TransferUsageUpload,
		Size:  size,
	})
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	return id
}

func TestDriverName(t *testing.T) {
	d := newNoopDriver(t)
	if got := d.Name(); got != "wgpu" {
		t.Errorf("Name() = %q, want %q", got, "wgpu")
	}
}

func TestTransferBufferMapping(t *testing.T) {
	d := newNoopDriver(t)
	tb := mustTransfer(t, d, 16)

	data, err := d.MapTransferBuffer(tb, false)
	if err != nil {
		t.Fatalf("MapTransferBuffer: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("mapped %d bytes, want 16", len(data))
	}
	data[0] = 0xAB

	if _, err := d.MapTransferBuffer(tb, false); !errors.Is(err, ErrMapped) {
		t.Errorf("second map error = %v, want ErrMapped", err)
	}
	if err := d.UnmapTransferBuffer(tb); err != nil {
		t.Fatalf("UnmapTransferBuffer: %v", err)
	}

	kept, err := d.MapTransferBuffer(tb, false)
	if err != nil {
		t.Fatalf("remap: %v", err)
	}
	if kept[0] != 0xAB {
		t.Errorf("non-cycled remap lost contents: got %#x", kept[0])
	}
	_ = d.UnmapTransferBuffer(tb)

	fresh, err := d.MapTransferBuffer(tb, true)
	if err != nil {
		t.Fatalf("cycled map: %v", err)
	}
	if fresh[0] != 0 {
		t.Errorf("cycled map kept contents: got %#x", fresh[0])
	}
}

func TestDownloadTransferBufferUnsupported(t *testing.T) {
	d := newNoopDriver(t)
	_, err := d.CreateTransferBuffer(&gpucore.TransferBufferDescriptor{
		Usage: gpucore.TransferUsageDownload,
		Size:  4,
	})
	if !errors.Is(err, gpucore.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestSubmitUpload(t *testing.T) {
	d := newNoopDriver(t)
	buf := mustBuffer(t, d, 64)
	tb := mustTransfer(t, d, 64)

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	cp, err := d.BeginCopyPass(cb)
	if err != nil {
		t.Fatalf("BeginCopyPass: %v", err)
	}
	err = d.UploadToBuffer(cp,
		gpucore.TransferBufferLocation{TransferBuffer: tb},
		gpucore.BufferRegion{Buffer: buf, Size: 64}, false)
	if err != nil {
		t.Fatalf("UploadToBuffer: %v", err)
	}
	if err := d.SubmitCommandBuffer(cb); !errors.Is(err, ErrPassOpen) {
		t.Errorf("submit with open pass = %v, want ErrPassOpen", err)
	}
	if err := d.EndCopyPass(cp); err != nil {
		t.Fatalf("EndCopyPass: %v", err)
	}
	if err := d.SubmitCommandBuffer(cb); err != nil {
		t.Fatalf("SubmitCommandBuffer: %v", err)
	}
	if err := d.SubmitCommandBuffer(cb); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("resubmit = %v, want ErrUnknownHandle", err)
	}
}

func TestUploadRejectsMappedSource(t *testing.T) {
	d := newNoopDriver(t)
	buf := mustBuffer(t, d, 16)
	tb := mustTransfer(t, d, 16)
	if _, err := d.MapTransferBuffer(tb, false); err != nil {
		t.Fatal(err)
	}

	cb, _ := d.AcquireCommandBuffer()
	cp, _ := d.BeginCopyPass(cb)
	err := d.UploadToBuffer(cp,
		gpucore.TransferBufferLocation{TransferBuffer: tb},
		gpucore.BufferRegion{Buffer: buf, Size: 16}, false)
	if !errors.Is(err, ErrMapped) {
		t.Errorf("error = %v, want ErrMapped", err)
	}
	_ = d.EndCopyPass(cp)
	if err := d.CancelCommandBuffer(cb); err != nil {
		t.Errorf("CancelCommandBuffer: %v", err)
	}
}

func TestPassExclusive(t *testing.T) {
	d := newNoopDriver(t)
	cb, _ := d.AcquireCommandBuffer()
	cp, err := d.BeginComputePass(cb, &gpucore.ComputePassDescriptor{})
	if err != nil {
		t.Fatalf("BeginComputePass: %v", err)
	}
	if _, err := d.BeginCopyPass(cb); !errors.Is(err, ErrPassOpen) {
		t.Errorf("nested pass = %v, want ErrPassOpen", err)
	}
	if err := d.DispatchCompute(cp, 1, 1, 1); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("dispatch without pipeline = %v, want ErrNoPipeline", err)
	}
	if err := d.EndComputePass(cp); err != nil {
		t.Fatalf("EndComputePass: %v", err)
	}
	if err := d.CancelCommandBuffer(cb); err != nil {
		t.Fatalf("CancelCommandBuffer: %v", err)
	}
}

func TestUnsupported(t *testing.T) {
	d := newNoopDriver(t)
	cb, _ := d.AcquireCommandBuffer()
	defer func() { _ = d.CancelCommandBuffer(cb) }()

	tests := []struct {
		name string
		call func() error
	}{
		{"ClaimWindow", func() error { return d.ClaimWindow(1) }},
		{"Swapchain", func() error {
			_, err := d.WaitAndAcquireSwapchainTexture(cb, 1)
			return err
		}},
		{"PushUniformData", func() error {
			return d.PushUniformData(cb, gpucore.UniformStageVertex, 0, []byte{1})
		}},
		{"BlitTexture", func() error { return d.BlitTexture(cb, &gpucore.BlitDescriptor{}) }},
		{"StorageTextures", func() error {
			_, err := d.BeginComputePass(cb, &gpucore.ComputePassDescriptor{
				StorageTextures: []gpucore.StorageTextureWrite{{Texture: 1}},
			})
			return err
		}},
		{"ShaderBindings", func() error {
			_, err := d.CreateShader(&gpucore.ShaderDescriptor{NumSamplers: 1})
			return err
		}},
		{"ShaderFormat", func() error {
			_, err := d.CreateShader(&gpucore.ShaderDescriptor{Format: gpucore.ShaderFormat(200), Code: []byte{0}})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, gpucore.ErrUnsupported) {
				t.Errorf("error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestSPIRVSource(t *testing.T) {
	src, err := spirvSource([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatalf("spirvSource: %v", err)
	}
	if len(src.SPIRV) != 2 || src.SPIRV[0] != 0x07230203 || src.SPIRV[1] != 1 {
		t.Errorf("words = %#x", src.SPIRV)
	}
	if _, err := spirvSource([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for unaligned SPIR-V")
	}
}

func TestDestroy(t *testing.T) {
	d := newNoopDriver(t)
	mustBuffer(t, d, 8)
	if _, err := d.AcquireCommandBuffer(); err != nil {
		t.Fatal(err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := d.AcquireCommandBuffer(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("after destroy = %v, want ErrDestroyed", err)
	}
	if err := d.Destroy(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("second destroy = %v, want ErrDestroyed", err)
	}
}

func TestWGSLCompileFailureNotCached(t *testing.T) {
	before := compiled.Len()
	if _, err := shaderSource([]byte("not wgsl"), gpucore.ShaderFormatWGSL); err == nil {
		t.Fatal("expected compile error")
	}
	if got := compiled.Len(); got != before {
		t.Errorf("cache grew from %d to %d after failed compile", before, got)
	}
}
