//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
)

// DefaultWaitTimeout bounds a single fence wait during submit.
const DefaultWaitTimeout = 5 * time.Second

// Errors.
var (
	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("wgpu: driver destroyed")

	// ErrUnknownHandle is returned for handles the driver never issued or
	// already released.
	ErrUnknownHandle = errors.New("wgpu: unknown handle")

	// ErrNoAdapter is returned when no Vulkan adapter is present.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter")

	// ErrPassOpen is returned when a pass is begun while another is open.
	ErrPassOpen = errors.New("wgpu: pass already open")

	// ErrNoPipeline is returned for draws and dispatches before a pipeline
	// is bound.
	ErrNoPipeline = errors.New("wgpu: no pipeline bound")

	// ErrMapped is returned when a mapped transfer buffer is mapped again
	// or used as an upload source.
	ErrMapped = errors.New("wgpu: transfer buffer is mapped")

	// ErrFenceTimeout is returned when the GPU does not finish a submission
	// within the retry budget.
	ErrFenceTimeout = errors.New("wgpu: fence wait timed out")
)

type buffer struct {
	buf  hal.Buffer
	size uint64
	name string
}

type transferBuffer struct {
	data   []byte
	mapped bool
}

type texture struct {
	tex  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDescriptor
	name string
}

type shader struct {
	module     hal.ShaderModule
	stage      gpucore.ShaderStage
	entryPoint string
}

type graphicsPipeline struct {
	layout   hal.PipelineLayout
	pipeline hal.RenderPipeline
}

type computePipeline struct {
	module    hal.ShaderModule
	bindings  hal.BindGroupLayout
	layout    hal.PipelineLayout
	pipeline  hal.ComputePipeline
	readWrite uint32
	readOnly  uint32
}

// Driver is the hal-backed gpucore.Driver.
//
// Driver is safe for concurrent use. Queue writes and submissions are
// serialized so the uploads of one command buffer stay ahead of its work.
type Driver struct {
	logger atomic.Pointer[slog.Logger]

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool

	// WaitTimeout bounds one fence wait. Submit retries a timed-out wait
	// with exponential backoff.
	WaitTimeout time.Duration

	// queueMu serializes queue writes and submissions.
	queueMu sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	destroyed bool

	buffers           map[gpucore.BufferID]*buffer
	transferBuffers   map[gpucore.TransferBufferID]*transferBuffer
	textures          map[gpucore.TextureID]*texture
	samplers          map[gpucore.SamplerID]hal.Sampler
	shaders           map[gpucore.ShaderID]*shader
	graphicsPipelines map[gpucore.GraphicsPipelineID]*graphicsPipeline
	computePipelines  map[gpucore.ComputePipelineID]*computePipeline
	commandBuffers    map[gpucore.CommandBufferID]*commandBuffer
	renderPasses      map[gpucore.RenderPassID]*renderPass
	copyPasses        map[gpucore.CopyPassID]*copyPass
	computePasses     map[gpucore.ComputePassID]*computePass
}

var _ gpucore.Driver = (*Driver)(nil)

// New opens the first discrete or integrated Vulkan adapter, falling back
// to the first adapter found.
func New() (*Driver, error) {
	vk, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := vk.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := NewWithDevice(openDev.Device, openDev.Queue)
	d.instance = instance
	d.owned = true
	d.log().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewWithDevice creates a driver on an existing device and queue. The
// caller keeps ownership of both; Destroy releases only the resources the
// driver created.
func NewWithDevice(device hal.Device, queue hal.Queue) *Driver {
	d := &Driver{
		device:            device,
		queue:             queue,
		WaitTimeout:       DefaultWaitTimeout,
		buffers:           make(map[gpucore.BufferID]*buffer),
		transferBuffers:   make(map[gpucore.TransferBufferID]*transferBuffer),
		textures:          make(map[gpucore.TextureID]*texture),
		samplers:          make(map[gpucore.SamplerID]hal.Sampler),
		shaders:           make(map[gpucore.ShaderID]*shader),
		graphicsPipelines: make(map[gpucore.GraphicsPipelineID]*graphicsPipeline),
		computePipelines:  make(map[gpucore.ComputePipelineID]*computePipeline),
		commandBuffers:    make(map[gpucore.CommandBufferID]*commandBuffer),
		renderPasses:      make(map[gpucore.RenderPassID]*renderPass),
		copyPasses:        make(map[gpucore.CopyPassID]*copyPass),
		computePasses:     make(map[gpucore.ComputePassID]*computePass),
	}
	d.logger.Store(slog.New(slog.DiscardHandler))
	return d
}

// Name returns "wgpu".
func (d *Driver) Name() string { return backend.BackendWGPU }

// SetLogger sets the driver logger. A nil logger discards output.
func (d *Driver) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.logger.Store(l)
}

func (d *Driver) log() *slog.Logger { return d.logger.Load() }

// lock acquires d.mu and fails once the driver is destroyed.
func (d *Driver) lock() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	return nil
}

// newID issues a handle. Must hold d.mu.
func (d *Driver) newID() uint64 {
	d.nextID++
	return d.nextID
}

// Destroy releases every resource the driver created, then the device and
// instance when the driver opened them.
func (d *Driver) Destroy() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.destroyed = true

	for id, cb := range d.commandBuffers {
		cb.encoder.DiscardEncoding()
		d.releaseTransient(cb)
		delete(d.commandBuffers, id)
	}
	for _, p := range d.computePipelines {
		d.destroyComputePipeline(p)
	}
	for _, p := range d.graphicsPipelines {
		d.device.DestroyRenderPipeline(p.pipeline)
		d.device.DestroyPipelineLayout(p.layout)
	}
	for _, s := range d.shaders {
		d.device.DestroyShaderModule(s.module)
	}
	for _, s := range d.samplers {
		d.device.DestroySampler(s)
	}
	for _, t := range d.textures {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
	}
	for _, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
	}
	clear(d.computePipelines)
	clear(d.graphicsPipelines)
	clear(d.shaders)
	clear(d.samplers)
	clear(d.textures)
	clear(d.buffers)
	clear(d.transferBuffers)

	if d.owned {
		d.device.Destroy()
		d.instance.Destroy()
	}
	return nil
}

// CreateBuffer creates a GPU buffer. CopyDst is added to the usage so copy
// passes can upload into it.
func (d *Driver) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{buf: buf, size: desc.Size, name: desc.Label}
	return id, nil
}

// ReleaseBuffer destroys a buffer.
func (d *Driver) ReleaseBuffer(id gpucore.BufferID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.device.DestroyBuffer(b.buf)
	}
}

// SetBufferName records a debug name.
func (d *Driver) SetBufferName(id gpucore.BufferID, name []byte) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, id)
	}
	b.name = cstring(name)
	return nil
}

// CreateTransferBuffer creates a host-side staging buffer.
func (d *Driver) CreateTransferBuffer(desc *gpucore.TransferBufferDescriptor) (gpucore.TransferBufferID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()
	if desc.Usage != gpucore.TransferUsageUpload {
		return gpucore.InvalidID, fmt.Errorf("%w: download transfer buffers", gpucore.ErrUnsupported)
	}
	id := gpucore.TransferBufferID(d.newID())
	d.transferBuffers[id] = &transferBuffer{data: make([]byte, desc.Size)}
	return id, nil
}

// ReleaseTransferBuffer releases a transfer buffer.
func (d *Driver) ReleaseTransferBuffer(id gpucore.TransferBufferID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	delete(d.transferBuffers, id)
}

// MapTransferBuffer returns the host memory of a transfer buffer. Uploads
// copy their source range when recorded, so cycle only matters for the
// returned contents: a cycled map starts zeroed.
func (d *Driver) MapTransferBuffer(id gpucore.TransferBufferID, cycle bool) ([]byte, error) {
	if err := d.lock(); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()
	t, ok := d.transferBuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer buffer %d", ErrUnknownHandle, id)
	}
	if t.mapped {
		return nil, ErrMapped
	}
	if cycle {
		t.data = make([]byte, len(t.data))
	}
	t.mapped = true
	return t.data, nil
}

// UnmapTransferBuffer ends a mapping.
func (d *Driver) UnmapTransferBuffer(id gpucore.TransferBufferID) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	t, ok := d.transferBuffers[id]
	if !ok {
		return fmt.Errorf("%w: transfer buffer %d", ErrUnknownHandle, id)
	}
	t.mapped = false
	return nil
}

// CreateTexture creates a 2D texture and its default view.
func (d *Driver) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.LayerCount, 1),
		},
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: desc.Label})
	if err != nil {
		d.device.DestroyTexture(tex)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create texture view %q: %w", desc.Label, err)
	}

	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{tex: tex, view: view, desc: *desc, name: desc.Label}
	return id, nil
}

// ReleaseTexture destroys a texture and its view.
func (d *Driver) ReleaseTexture(id gpucore.TextureID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
	}
}

// SetTextureName records a debug name.
func (d *Driver) SetTextureName(id gpucore.TextureID, name []byte) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, id)
	}
	t.name = cstring(name)
	return nil
}

// CreateSampler creates a sampler.
func (d *Driver) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create sampler %q: %w", desc.Label, err)
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = s
	return id, nil
}

// ReleaseSampler destroys a sampler.
func (d *Driver) ReleaseSampler(id gpucore.SamplerID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if s, ok := d.samplers[id]; ok {
		delete(d.samplers, id)
		d.device.DestroySampler(s)
	}
}

// CreateShader creates a shader module. Resource bindings are not
// supported for graphics shaders.
func (d *Driver) CreateShader(desc *gpucore.ShaderDescriptor) (gpucore.ShaderID, error) {
	if desc.NumSamplers+desc.NumStorageTextures+desc.NumStorageBuffers+desc.NumUniformBuffers > 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: graphics shader resource bindings", gpucore.ErrUnsupported)
	}
	src, err := shaderSource(desc.Code, desc.Format)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: shader %q: %w", desc.Label, err)
	}

	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: src})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create shader module %q: %w", desc.Label, err)
	}
	id := gpucore.ShaderID(d.newID())
	d.shaders[id] = &shader{module: module, stage: desc.Stage, entryPoint: desc.EntryPoint}
	return id, nil
}

// ReleaseShader destroys a shader module.
func (d *Driver) ReleaseShader(id gpucore.ShaderID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if s, ok := d.shaders[id]; ok {
		delete(d.shaders, id)
		d.device.DestroyShaderModule(s.module)
	}
}

// CreateGraphicsPipeline links a vertex and a fragment shader into a render
// pipeline with an empty pipeline layout.
func (d *Driver) CreateGraphicsPipeline(desc *gpucore.GraphicsPipelineDescriptor) (gpucore.GraphicsPipelineID, error) {
	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	vs, ok := d.shaders[desc.VertexShader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: vertex shader %d", ErrUnknownHandle, desc.VertexShader)
	}
	fs, ok := d.shaders[desc.FragmentShader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: fragment shader %d", ErrUnknownHandle, desc.FragmentShader)
	}

	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: desc.Label})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create pipeline layout %q: %w", desc.Label, err)
	}

	targets := make([]gputypes.ColorTargetState, len(desc.ColorTargets))
	for i, c := range desc.ColorTargets {
		targets[i] = gputypes.ColorTargetState{
			Format:    c.Format,
			Blend:     c.Blend,
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}

	pd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     fs.module,
			EntryPoint: fs.entryPoint,
			Targets:    targets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Topology,
			CullMode: desc.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.HasDepthStencil {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		pd.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthStencilFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}

	pipeline, err := d.device.CreateRenderPipeline(pd)
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.GraphicsPipelineID(d.newID())
	d.graphicsPipelines[id] = &graphicsPipeline{layout: layout, pipeline: pipeline}
	return id, nil
}

// ReleaseGraphicsPipeline destroys a render pipeline.
func (d *Driver) ReleaseGraphicsPipeline(id gpucore.GraphicsPipelineID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if p, ok := d.graphicsPipelines[id]; ok {
		delete(d.graphicsPipelines, id)
		d.device.DestroyRenderPipeline(p.pipeline)
		d.device.DestroyPipelineLayout(p.layout)
	}
}

// CreateComputePipeline compiles a compute shader. Bind group 0 holds the
// read-write storage buffers of the pass at bindings [0, rw) followed by
// the read-only storage buffers at [rw, rw+ro).
func (d *Driver) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.ComputePipelineID, error) {
	if desc.NumSamplers+desc.NumReadOnlyStorageTextures+desc.NumReadWriteStorageTextures+desc.NumUniformBuffers > 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: compute textures, samplers and uniforms", gpucore.ErrUnsupported)
	}
	src, err := shaderSource(desc.Code, desc.Format)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: compute shader %q: %w", desc.Label, err)
	}

	if err := d.lock(); err != nil {
		return gpucore.InvalidID, err
	}
	defer d.mu.Unlock()

	p := &computePipeline{
		readWrite: desc.NumReadWriteStorageBuffers,
		readOnly:  desc.NumReadOnlyStorageBuffers,
	}
	if err := d.buildComputePipeline(p, desc, src); err != nil {
		d.destroyComputePipeline(p)
		return gpucore.InvalidID, fmt.Errorf("wgpu: compute pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = p
	return id, nil
}

func (d *Driver) buildComputePipeline(p *computePipeline, desc *gpucore.ComputePipelineDescriptor, src hal.ShaderSource) error {
	var err error
	p.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: src})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, p.readWrite+p.readOnly)
	for i := range entries {
		kind := gputypes.BufferBindingTypeStorage
		if uint32(i) >= p.readWrite {
			kind = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: kind},
		}
	}
	p.bindings, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	p.layout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []hal.BindGroupLayout{p.bindings},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	p.pipeline, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  p.layout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	return nil
}

func (d *Driver) destroyComputePipeline(p *computePipeline) {
	if p.pipeline != nil {
		d.device.DestroyComputePipeline(p.pipeline)
	}
	if p.layout != nil {
		d.device.DestroyPipelineLayout(p.layout)
	}
	if p.bindings != nil {
		d.device.DestroyBindGroupLayout(p.bindings)
	}
	if p.module != nil {
		d.device.DestroyShaderModule(p.module)
	}
}

// ReleaseComputePipeline destroys a compute pipeline.
func (d *Driver) ReleaseComputePipeline(id gpucore.ComputePipelineID) {
	if d.lock() != nil {
		return
	}
	defer d.mu.Unlock()
	if p, ok := d.computePipelines[id]; ok {
		delete(d.computePipelines, id)
		d.destroyComputePipeline(p)
	}
}

// ClaimWindow is not supported: the hal layer has no surface integration
// here.
func (d *Driver) ClaimWindow(gpucore.WindowID) error {
	return fmt.Errorf("%w: window swapchains", gpucore.ErrUnsupported)
}

// ReleaseWindow is a no-op.
func (d *Driver) ReleaseWindow(gpucore.WindowID) {}

// WaitAndAcquireSwapchainTexture is not supported.
func (d *Driver) WaitAndAcquireSwapchainTexture(gpucore.CommandBufferID, gpucore.WindowID) (gpucore.SwapchainTexture, error) {
	return gpucore.SwapchainTexture{}, fmt.Errorf("%w: window swapchains", gpucore.ErrUnsupported)
}

func cstring(b []byte) string {
	if i := slices.Index(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
