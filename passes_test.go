package gpucmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

func TestPassStateString(t *testing.T) {
	tests := []struct {
		state PassState
		want  string
	}{
		{PassUnbound, "Unbound"},
		{PassOpen, "Open"},
		{PassClosed, "Closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("PassState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestDispatchBeforeBindShader(t *testing.T) {
	dev, drv := newTestDevice(t)
	cb := mustAcquire(t, dev)
	cp, err := cb.BeginComputePass(ComputePassParams{})
	if err != nil {
		t.Fatal(err)
	}

	calls := drv.Stats().NativeCalls
	if err := cp.Dispatch(1, 1, 1); !errors.Is(err, ErrPipelineNotBound) {
		t.Errorf("Dispatch = %v, want ErrPipelineNotBound", err)
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("dispatch without a shader reached the driver")
	}

	if err := cp.BindShader(mustComputeShader(t, dev)); err != nil {
		t.Fatalf("BindShader: %v", err)
	}
	if err := cp.Dispatch(4, 2, 1); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := cp.Dispatch(0, 1, 1); err != nil {
		t.Fatalf("empty Dispatch: %v", err)
	}
	if err := cp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}

	if got := drv.Stats().Dispatches; got != 1 {
		t.Errorf("Dispatches = %d, want 1", got)
	}
	if got := drv.LastDispatch(); got != [3]uint32{4, 2, 1} {
		t.Errorf("LastDispatch() = %v", got)
	}
}

func TestDispatchIndirect(t *testing.T) {
	dev, drv := newTestDevice(t)
	args := mustDataBuffer(t, dev, 16)

	var data []byte
	for _, v := range []uint32{0, 3, 5, 1} {
		data = binary.LittleEndian.AppendUint32(data, v)
	}
	tb := mustUpload(t, dev, data)

	cb := mustAcquire(t, dev)
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	if err := cp.UploadToDataBuffer(tb, 0, args, 0, 16, false); err != nil {
		t.Fatal(err)
	}
	if err := cp.End(); err != nil {
		t.Fatal(err)
	}

	pass, err := cb.BeginComputePass(ComputePassParams{
		StorageBuffers: []StorageBufferBinding{{Buffer: mustDataBuffer(t, dev, 64)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := pass.BindShader(mustComputeShader(t, dev)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		offset uint32
		want   error
	}{
		{"misaligned", 2, ErrMisaligned},
		{"past end", 8, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := pass.DispatchIndirect(args, tt.offset); !errors.Is(err, tt.want) {
				t.Errorf("DispatchIndirect(%d) = %v, want %v", tt.offset, err, tt.want)
			}
		})
	}

	if err := pass.DispatchIndirect(args, 4); err != nil {
		t.Fatalf("DispatchIndirect: %v", err)
	}
	if err := pass.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}
	if got := drv.LastDispatch(); got != [3]uint32{3, 5, 1} {
		t.Errorf("LastDispatch() = %v, want [3 5 1]", got)
	}
}

func TestDrawRequiresPipeline(t *testing.T) {
	dev, drv := newTestDevice(t)
	target := mustTexture(t, dev, 4, 4, gputypes.TextureFormatRGBA8Unorm)
	vb := mustDataBuffer(t, dev, 64)

	cb := mustAcquire(t, dev)
	rp, err := cb.BeginRenderPass(nil, clearTarget(target, gputypes.Color{}))
	if err != nil {
		t.Fatal(err)
	}

	calls := drv.Stats().NativeCalls
	if err := rp.DrawPrimitives(3, 1, 0, 0); !errors.Is(err, ErrPipelineNotBound) {
		t.Errorf("DrawPrimitives = %v, want ErrPipelineNotBound", err)
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("draw without a pipeline reached the driver")
	}

	if err := rp.BindPipeline(mustPipeline(t, dev)); err != nil {
		t.Fatalf("BindPipeline: %v", err)
	}
	if rp.Pipeline() == nil {
		t.Error("Pipeline() = nil after BindPipeline")
	}
	if err := rp.BindVertexBuffer(0, BufferBinding{Buffer: vb}); err != nil {
		t.Fatalf("BindVertexBuffer: %v", err)
	}
	if err := rp.DrawPrimitivesIndexed(3, 1, 0, 0, 0); !errors.Is(err, ErrIndexBufferNotBound) {
		t.Errorf("DrawPrimitivesIndexed = %v, want ErrIndexBufferNotBound", err)
	}
	if err := rp.BindIndexBuffer(BufferBinding{Buffer: vb, Offset: 32}, gputypes.IndexFormatUint16); err != nil {
		t.Fatalf("BindIndexBuffer: %v", err)
	}
	if err := rp.DrawPrimitives(3, 1, 0, 0); err != nil {
		t.Fatalf("DrawPrimitives: %v", err)
	}
	if err := rp.DrawPrimitivesIndexed(6, 2, 0, 0, 0); err != nil {
		t.Fatalf("DrawPrimitivesIndexed: %v", err)
	}
	if err := rp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}
	if got := drv.Stats().Draws; got != 2 {
		t.Errorf("Draws = %d, want 2", got)
	}
}

func TestRenderPassValidation(t *testing.T) {
	dev, drv := newTestDevice(t)
	target := mustTexture(t, dev, 4, 4, gputypes.TextureFormatRGBA8Unorm)
	vb := mustDataBuffer(t, dev, 16)

	cb := mustAcquire(t, dev)
	defer cb.Cancel()

	if _, err := cb.BeginRenderPass(nil); !errors.Is(err, ErrNoColorTargets) {
		t.Errorf("BeginRenderPass() = %v, want ErrNoColorTargets", err)
	}
	if _, err := cb.BeginRenderPass(nil, ColorTarget{}); !errors.Is(err, ErrNilResource) {
		t.Errorf("BeginRenderPass(nil texture) = %v, want ErrNilResource", err)
	}

	rp, err := cb.BeginRenderPass(nil, clearTarget(target, gputypes.Color{}))
	if err != nil {
		t.Fatal(err)
	}
	defer rp.End()

	calls := drv.Stats().NativeCalls
	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"zero viewport", func() error {
			return rp.SetViewport(gpucore.Viewport{Width: 0, Height: 4, MaxDepth: 1})
		}, ErrInvalidDescriptor},
		{"inverted depth range", func() error {
			return rp.SetViewport(gpucore.Viewport{Width: 4, Height: 4, MinDepth: 1, MaxDepth: 0})
		}, ErrInvalidDescriptor},
		{"vertex offset", func() error {
			return rp.BindVertexBuffer(0, BufferBinding{Buffer: vb, Offset: 16})
		}, ErrOutOfRange},
		{"index offset", func() error {
			return rp.BindIndexBuffer(BufferBinding{Buffer: vb, Offset: 32}, gputypes.IndexFormatUint16)
		}, ErrOutOfRange},
		{"nil pipeline", func() error { return rp.BindPipeline(nil) }, ErrNilResource},
		{"nil vertex buffer", func() error {
			return rp.BindVertexBuffer(0, BufferBinding{})
		}, ErrNilResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("invalid render commands reached the driver")
	}

	if err := rp.SetViewport(gpucore.Viewport{Width: 4, Height: 4, MaxDepth: 1}); err != nil {
		t.Errorf("SetViewport: %v", err)
	}
	if err := rp.SetScissorRectangle(gpucore.Rect{Width: 2, Height: 2}); err != nil {
		t.Errorf("SetScissorRectangle: %v", err)
	}
}

func TestCommandsAfterEnd(t *testing.T) {
	dev, drv := newTestDevice(t)
	target := mustTexture(t, dev, 4, 4, gputypes.TextureFormatRGBA8Unorm)
	shader := mustComputeShader(t, dev)

	cb := mustAcquire(t, dev)
	defer cb.Cancel()

	rp, err := cb.BeginRenderPass(nil, clearTarget(target, gputypes.Color{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := rp.End(); err != nil {
		t.Fatal(err)
	}
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	if err := cp.End(); err != nil {
		t.Fatal(err)
	}
	comp, err := cb.BeginComputePass(ComputePassParams{})
	if err != nil {
		t.Fatal(err)
	}
	if err := comp.End(); err != nil {
		t.Fatal(err)
	}

	calls := drv.Stats().NativeCalls
	tests := []struct {
		name string
		call func() error
	}{
		{"render End", rp.End},
		{"draw", func() error { return rp.DrawPrimitives(3, 1, 0, 0) }},
		{"stencil", func() error { return rp.SetStencilReference(1) }},
		{"copy End", cp.End},
		{"upload", func() error {
			return cp.UploadToDataBuffer(nil, 0, nil, 0, 4, false)
		}},
		{"compute End", comp.End},
		{"bind shader", func() error { return comp.BindShader(shader) }},
		{"dispatch", func() error { return comp.Dispatch(1, 1, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrPassClosed) {
				t.Errorf("error = %v, want ErrPassClosed", err)
			}
			if !errors.Is(err, ErrStaleUse) {
				t.Errorf("error = %v does not wrap ErrStaleUse", err)
			}
		})
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("commands on ended passes reached the driver")
	}
}

func TestUploadToDataBuffer(t *testing.T) {
	dev, drv := newTestDevice(t)
	dst := mustDataBuffer(t, dev, 8)
	src := mustUpload(t, dev, []byte{9, 9, 1, 2, 3, 4})

	cb := mustAcquire(t, dev)
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	if err := cp.UploadToDataBuffer(src, 2, dst, 4, 4, false); err != nil {
		t.Fatalf("UploadToDataBuffer: %v", err)
	}
	if err := cp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}

	id, err := dst.Handle()
	if err != nil {
		t.Fatal(err)
	}
	got, err := drv.BufferData(id)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 0, 0, 1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Errorf("buffer = %v, want %v", got, want)
	}
}

func TestUploadValidation(t *testing.T) {
	dev, drv := newTestDevice(t)
	dst := mustDataBuffer(t, dev, 8)
	tex := mustTexture(t, dev, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	src := mustUpload(t, dev, make([]byte, 16))

	download, err := dev.CreateTransferBuffer(gpucore.TransferBufferDescriptor{
		Size:  16,
		Usage: gpucore.TransferUsageDownload,
	})
	if err != nil {
		t.Fatal(err)
	}
	mapped := mustUpload(t, dev, make([]byte, 16))
	if _, err := mapped.Map(false); err != nil {
		t.Fatal(err)
	}

	cb := mustAcquire(t, dev)
	defer cb.Cancel()
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	defer cp.End()

	calls := drv.Stats().NativeCalls
	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"nil source", func() error {
			return cp.UploadToDataBuffer(nil, 0, dst, 0, 4, false)
		}, ErrNilResource},
		{"mapped source", func() error {
			return cp.UploadToDataBuffer(mapped, 0, dst, 0, 4, false)
		}, ErrTransferBufferMapped},
		{"download source", func() error {
			return cp.UploadToDataBuffer(download, 0, dst, 0, 4, false)
		}, ErrInvalidDescriptor},
		{"empty", func() error {
			return cp.UploadToDataBuffer(src, 0, dst, 0, 0, false)
		}, ErrEmptyRegion},
		{"source range", func() error {
			return cp.UploadToDataBuffer(src, 14, dst, 0, 4, false)
		}, ErrOutOfRange},
		{"destination range", func() error {
			return cp.UploadToDataBuffer(src, 0, dst, 6, 4, false)
		}, ErrOutOfRange},
		{"texture extent", func() error {
			return cp.UploadToTexture(src, 0, tex, 3, 1, false)
		}, ErrOutOfRange},
		{"texture source size", func() error {
			return cp.UploadToTexture(src, 4, tex, 2, 2, false)
		}, ErrOutOfRange},
		{"texture layer", func() error {
			return cp.UploadToTextureRegion(src, 0, TextureRegion{Texture: tex, Layer: 1, Width: 1, Height: 1}, false)
		}, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("invalid uploads reached the driver")
	}
}

func TestUploadToTexture(t *testing.T) {
	dev, drv := newTestDevice(t)
	tex := mustTexture(t, dev, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	src := mustUpload(t, dev, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	cb := mustAcquire(t, dev)
	cp, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatal(err)
	}
	region := TextureRegion{Texture: tex, Y: 1, Width: 2, Height: 1}
	if err := cp.UploadToTextureRegion(src, 0, region, false); err != nil {
		t.Fatalf("UploadToTextureRegion: %v", err)
	}
	if err := cp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}

	id, _ := tex.Handle()
	got, err := drv.TextureData(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(got, want) {
		t.Errorf("texture = %v, want %v", got, want)
	}
}

func TestRenderPassClear(t *testing.T) {
	dev, drv := newTestDevice(t)
	tex := mustTexture(t, dev, 2, 1, gputypes.TextureFormatRGBA8Unorm)

	cb := mustAcquire(t, dev)
	rp, err := cb.BeginRenderPass(nil, clearTarget(tex, gputypes.Color{B: 1, A: 1}))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rp.ColorTargets()); got != 1 {
		t.Errorf("ColorTargets() has %d entries, want 1", got)
	}
	if _, ok := rp.DepthStencilTarget(); ok {
		t.Error("DepthStencilTarget() reported a target")
	}
	if err := rp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}

	id, _ := tex.Handle()
	got, err := drv.TextureData(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 255, 255, 0, 0, 255, 255}; !bytes.Equal(got, want) {
		t.Errorf("texture = %v, want %v", got, want)
	}
}

func TestComputePassBindings(t *testing.T) {
	dev, drv := newTestDevice(t)
	buf := mustDataBuffer(t, dev, 16)
	tex := mustTexture(t, dev, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	smp, err := dev.CreateSampler(gpucore.SamplerDescriptor{})
	if err != nil {
		t.Fatal(err)
	}

	cb := mustAcquire(t, dev)
	cp, err := cb.BeginComputePass(ComputePassParams{})
	if err != nil {
		t.Fatal(err)
	}
	if err := cp.BindStorageBuffers(0, buf); err != nil {
		t.Errorf("BindStorageBuffers: %v", err)
	}
	if err := cp.BindStorageTextures(0, tex); err != nil {
		t.Errorf("BindStorageTextures: %v", err)
	}
	if err := cp.BindSamplers(0, TextureSamplerBinding{Texture: tex, Sampler: smp}); err != nil {
		t.Errorf("BindSamplers: %v", err)
	}

	calls := drv.Stats().NativeCalls
	if err := cp.BindStorageBuffers(0, (*DataBuffer)(nil)); !errors.Is(err, ErrNilResource) {
		t.Errorf("BindStorageBuffers(nil) = %v, want ErrNilResource", err)
	}
	if err := cp.BindSamplers(0, TextureSamplerBinding{Texture: tex}); !errors.Is(err, ErrNilResource) {
		t.Errorf("BindSamplers(no sampler) = %v, want ErrNilResource", err)
	}
	if got := drv.Stats().NativeCalls; got != calls {
		t.Error("invalid bindings reached the driver")
	}

	if err := cp.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatal(err)
	}
}
