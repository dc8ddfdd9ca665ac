package main

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/backend/headless"
	"github.com/gogpu/gpucmd/gpucore"
)

const vertexWGSL = `
@vertex
fn main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, 0.0, 1.0);
}
`

const fragmentWGSL = `
@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.8, 0.2, 1.0);
}
`

var triangle = []float32{
	0.0, 0.6,
	-0.6, -0.5,
	0.6, -0.5,
}

// tint is pushed as fragment uniform 0 every frame.
type tint struct {
	Color [4]float32
	Frame uint32
	_     [3]uint32
}

type renderer struct {
	dev      *gpucmd.Device
	sc       *gpucmd.Swapchain
	pipeline *gpucmd.GraphicsPipeline
	vertices *gpucmd.DataBuffer
	shaders  []*gpucmd.GraphicsShader
}

func newRenderer(dev *gpucmd.Device, win gpucore.WindowID) (_ *renderer, err error) {
	r := &renderer{dev: dev}
	defer func() {
		if err != nil {
			r.close()
		}
	}()

	if r.sc, err = dev.ClaimWindow(win); err != nil {
		return nil, err
	}

	vs, err := dev.CreateGraphicsShader(gpucore.ShaderDescriptor{
		Label:      "triangle vs",
		Code:       []byte(vertexWGSL),
		Format:     gpucore.ShaderFormatWGSL,
		Stage:      gpucore.ShaderStageVertex,
		EntryPoint: "main",
	})
	if err != nil {
		return nil, err
	}
	r.shaders = append(r.shaders, vs)
	fs, err := dev.CreateGraphicsShader(gpucore.ShaderDescriptor{
		Label:      "triangle fs",
		Code:       []byte(fragmentWGSL),
		Format:     gpucore.ShaderFormatWGSL,
		Stage:      gpucore.ShaderStageFragment,
		EntryPoint: "main",
	})
	if err != nil {
		return nil, err
	}
	r.shaders = append(r.shaders, fs)

	r.pipeline, err = dev.CreateGraphicsPipeline(gpucmd.GraphicsPipelineDesc{
		Label:          "triangle",
		VertexShader:   vs,
		FragmentShader: fs,
		VertexBuffers: []gputypes.VertexBufferLayout{{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		}},
		Topology:     gputypes.PrimitiveTopologyTriangleList,
		ColorTargets: []gpucore.ColorTargetDescription{{Format: headless.SwapchainFormat}},
	})
	if err != nil {
		return nil, err
	}

	if err := r.uploadVertices(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *renderer) uploadVertices() error {
	data := make([]byte, 0, len(triangle)*4)
	for _, f := range triangle {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
	}

	var err error
	r.vertices, err = r.dev.CreateDataBuffer(gpucore.BufferDescriptor{
		Label: "triangle",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex,
	})
	if err != nil {
		return err
	}
	staging, err := r.dev.CreateTransferBuffer(gpucore.TransferBufferDescriptor{
		Size:  uint64(len(data)),
		Usage: gpucore.TransferUsageUpload,
	})
	if err != nil {
		return err
	}
	defer staging.Dispose()

	view, err := staging.Map(false)
	if err != nil {
		return err
	}
	copy(view, data)
	if err := staging.Unmap(); err != nil {
		return err
	}

	cb, err := r.dev.AcquireCommandBuffer()
	if err != nil {
		return err
	}
	cp, err := cb.BeginCopyPass()
	if err != nil {
		_ = cb.Cancel()
		return err
	}
	if err := cp.UploadToDataBuffer(staging, 0, r.vertices, 0, uint32(len(data)), false); err != nil {
		_ = cb.Close()
		return err
	}
	if err := cp.End(); err != nil {
		_ = cb.Close()
		return err
	}
	return cb.Submit()
}

// frame renders frame i. It reports false when the window had no image
// and the frame was skipped.
func (r *renderer) frame(i int) (shown bool, err error) {
	cb, err := r.dev.AcquireCommandBuffer()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil && cb.State() == gpucmd.CommandBufferRecording {
			_ = cb.Close()
		}
	}()

	tex, ok, err := cb.TryGetSwapchainTexture(r.sc)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, cb.Cancel()
	}

	bg := background(i)
	err = cb.PushFragmentUniform(0, tint{Color: [4]float32{1, 0.8, 0.2, 1}, Frame: uint32(i)})
	if err != nil && !errors.Is(err, gpucore.ErrUnsupported) {
		return false, err
	}

	rp, err := cb.BeginRenderPass(nil, gpucmd.ColorTarget{
		Texture:    tex,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearColor: bg,
	})
	if err != nil {
		return false, err
	}
	if err := rp.SetViewport(gpucore.Viewport{
		Width:    float32(tex.Width()),
		Height:   float32(tex.Height()),
		MaxDepth: 1,
	}); err != nil && !errors.Is(err, gpucore.ErrUnsupported) {
		return false, err
	}
	if err := rp.BindPipeline(r.pipeline); err != nil {
		return false, err
	}
	if err := rp.BindVertexBuffer(0, gpucmd.BufferBinding{Buffer: r.vertices}); err != nil {
		return false, err
	}
	if err := rp.DrawPrimitives(3, 1, 0, 0); err != nil {
		return false, err
	}
	if err := rp.End(); err != nil {
		return false, err
	}
	return true, cb.Submit()
}

func (r *renderer) close() {
	if r.pipeline != nil {
		r.pipeline.Dispose()
	}
	if r.vertices != nil {
		r.vertices.Dispose()
	}
	for _, s := range r.shaders {
		s.Dispose()
	}
	if r.sc != nil {
		_ = r.dev.ReleaseWindow(r.sc)
	}
}

// background cycles the clear color over time.
func background(i int) gputypes.Color {
	t := float64(i) / 60
	return gputypes.Color{
		R: 0.5 + 0.5*math.Sin(t),
		G: 0.5 + 0.5*math.Sin(t+2*math.Pi/3),
		B: 0.5 + 0.5*math.Sin(t+4*math.Pi/3),
		A: 1,
	}
}
