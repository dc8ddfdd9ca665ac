package gpucmd

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

func TestTransferBufferMapping(t *testing.T) {
	dev, _ := newTestDevice(t)
	tb, err := dev.CreateTransferBuffer(gpucore.TransferBufferDescriptor{
		Size:  32,
		Usage: gpucore.TransferUsageUpload,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := tb.Unmap(); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Unmap before Map = %v, want ErrNotMapped", err)
	}
	view, err := tb.Map(false)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(view) != 32 || cap(view) != 32 {
		t.Errorf("view len/cap = %d/%d, want 32/32", len(view), cap(view))
	}
	if !tb.IsMapped() {
		t.Error("IsMapped() = false after Map")
	}
	if _, err := tb.Map(true); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("second Map = %v, want ErrAlreadyMapped", err)
	}
	if err := tb.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if tb.IsMapped() {
		t.Error("IsMapped() = true after Unmap")
	}
}

func TestTransferBufferDisposeUnmaps(t *testing.T) {
	dev, drv := newTestDevice(t)
	live := drv.Stats().LiveResources
	tb := mustUpload(t, dev, make([]byte, 8))
	if _, err := tb.Map(false); err != nil {
		t.Fatal(err)
	}

	if !tb.Dispose() {
		t.Fatal("Dispose() = false on first call")
	}
	if tb.IsMapped() {
		t.Error("buffer still mapped after Dispose")
	}
	if got := drv.Stats().LiveResources; got != live {
		t.Errorf("LiveResources = %d, want %d", got, live)
	}
	if _, err := tb.Map(false); !errors.Is(err, ErrDisposed) {
		t.Errorf("Map after Dispose = %v, want ErrDisposed", err)
	}
}

func TestDispose(t *testing.T) {
	dev, drv := newTestDevice(t)
	live := drv.Stats().LiveResources
	buf := mustDataBuffer(t, dev, 16)
	tex := mustTexture(t, dev, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	if got := drv.Stats().LiveResources; got != live+2 {
		t.Fatalf("LiveResources = %d, want %d", got, live+2)
	}

	if !buf.Dispose() || !tex.Dispose() {
		t.Fatal("first Dispose returned false")
	}
	calls := drv.Stats().NativeCalls
	if buf.Dispose() || tex.Dispose() {
		t.Error("second Dispose returned true")
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("second Dispose reached the driver")
	}
	if got := drv.Stats().LiveResources; got != live {
		t.Errorf("LiveResources = %d, want %d", got, live)
	}
	if !buf.IsDisposed() {
		t.Error("IsDisposed() = false")
	}

	if _, err := buf.Handle(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Handle() = %v, want ErrDisposed", err)
	}
	if err := tex.SetName("gone"); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetName() = %v, want ErrDisposed", err)
	}

	cb := mustAcquire(t, dev)
	defer cb.Cancel()
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	defer cp.End()
	src := mustUpload(t, dev, make([]byte, 4))
	if err := cp.UploadToDataBuffer(src, 0, buf, 0, 4, false); !errors.Is(err, ErrDisposed) {
		t.Errorf("upload into disposed buffer = %v, want ErrDisposed", err)
	}
}

func TestSetName(t *testing.T) {
	dev, drv := newTestDevice(t)
	buf := mustDataBuffer(t, dev, 4)
	tex := mustTexture(t, dev, 1, 1, gputypes.TextureFormatRGBA8Unorm)

	if err := buf.SetName("vertices"); err != nil {
		t.Fatalf("DataBuffer.SetName: %v", err)
	}
	if err := tex.SetName("albedo"); err != nil {
		t.Fatalf("Texture.SetName: %v", err)
	}

	bid, _ := buf.Handle()
	tid, _ := tex.Handle()
	if got := drv.BufferName(bid); got != "vertices" {
		t.Errorf("BufferName = %q, want %q", got, "vertices")
	}
	if got := drv.TextureName(tid); got != "albedo" {
		t.Errorf("TextureName = %q, want %q", got, "albedo")
	}

	if err := buf.SetName("bad\x00name"); err == nil {
		t.Error("SetName accepted a name with a NUL byte")
	}
}

func TestResourceAccessors(t *testing.T) {
	dev, _ := newTestDevice(t)
	buf := mustDataBuffer(t, dev, 24)
	if buf.Size() != 24 {
		t.Errorf("Size() = %d, want 24", buf.Size())
	}
	if buf.Usage()&gputypes.BufferUsageStorage == 0 {
		t.Errorf("Usage() = %v, missing storage", buf.Usage())
	}

	tex := mustTexture(t, dev, 8, 4, gputypes.TextureFormatRGBA8Unorm)
	if tex.Width() != 8 || tex.Height() != 4 || tex.Layers() != 1 {
		t.Errorf("texture = %dx%dx%d", tex.Width(), tex.Height(), tex.Layers())
	}
	if tex.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v", tex.Format())
	}
	if tex.IsSwapchain() {
		t.Error("IsSwapchain() = true for a regular texture")
	}

	vs, err := dev.CreateGraphicsShader(gpucore.ShaderDescriptor{Code: []byte("vs"), Stage: gpucore.ShaderStageVertex})
	if err != nil {
		t.Fatal(err)
	}
	if vs.Stage() != gpucore.ShaderStageVertex {
		t.Errorf("Stage() = %v", vs.Stage())
	}
}
