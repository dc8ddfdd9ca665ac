package headless

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
)

// Stats counts the work the driver has accepted and executed.
type Stats struct {
	// Recorded work executed at submit.
	Submits       int
	Cancels       int
	Draws         int
	Dispatches    int
	Blits         int
	Uploads       int
	UniformPushes int
	Presents      int

	// NativeCalls counts every driver method invoked after New.
	NativeCalls int

	// LiveResources counts created resources not yet released.
	LiveResources int

	// OpenCommandBuffers counts acquired command buffers not yet submitted
	// or cancelled.
	OpenCommandBuffers int
}

type buffer struct {
	data  []byte
	usage gputypes.BufferUsage
	name  string
}

type transferBuffer struct {
	data   []byte
	usage  gpucore.TransferUsage
	mapped bool
}

type texture struct {
	desc      gpucore.TextureDescriptor
	bpp       int
	pix       []byte
	name      string
	swapchain bool
}

func (t *texture) layerSize() int {
	return int(t.desc.Width) * int(t.desc.Height) * t.bpp
}

func (t *texture) layer(n uint32) []byte {
	size := t.layerSize()
	return t.pix[int(n)*size : int(n+1)*size]
}

type shader struct {
	stage gpucore.ShaderStage
}

type computePipeline struct {
	threads [3]uint32
}

type uniformKey struct {
	stage gpucore.UniformStage
	slot  uint32
}

// Driver is the headless gpucore.Driver.
//
// Driver is safe for concurrent use. Recording calls on different command
// buffers may interleave; each command buffer executes its own commands in
// recording order at submit.
type Driver struct {
	logger atomic.Pointer[slog.Logger]

	mu        sync.Mutex
	nextID    uint64
	destroyed bool

	buffers          map[gpucore.BufferID]*buffer
	transferBuffers  map[gpucore.TransferBufferID]*transferBuffer
	textures         map[gpucore.TextureID]*texture
	samplers         map[gpucore.SamplerID]gpucore.SamplerDescriptor
	shaders          map[gpucore.ShaderID]shader
	graphicsPipeline map[gpucore.GraphicsPipelineID]struct{}
	computePipelines map[gpucore.ComputePipelineID]computePipeline
	commandBuffers   map[gpucore.CommandBufferID]*commandBuffer
	passes           map[uint64]*pass
	windows          map[gpucore.WindowID]*window

	stats        Stats
	uniforms     map[uniformKey][]byte
	debugLog     []string
	lastDispatch [3]uint32
}

var _ gpucore.Driver = (*Driver)(nil)

// New creates a headless driver.
func New() *Driver {
	d := &Driver{
		buffers:          make(map[gpucore.BufferID]*buffer),
		transferBuffers:  make(map[gpucore.TransferBufferID]*transferBuffer),
		textures:         make(map[gpucore.TextureID]*texture),
		samplers:         make(map[gpucore.SamplerID]gpucore.SamplerDescriptor),
		shaders:          make(map[gpucore.ShaderID]shader),
		graphicsPipeline: make(map[gpucore.GraphicsPipelineID]struct{}),
		computePipelines: make(map[gpucore.ComputePipelineID]computePipeline),
		commandBuffers:   make(map[gpucore.CommandBufferID]*commandBuffer),
		passes:           make(map[uint64]*pass),
		windows:          make(map[gpucore.WindowID]*window),
		uniforms:         make(map[uniformKey][]byte),
	}
	d.logger.Store(slog.New(slog.DiscardHandler))
	return d
}

// Name returns "headless".
func (d *Driver) Name() string { return backend.BackendHeadless }

// SetLogger sets the driver logger. A nil logger discards output.
func (d *Driver) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.logger.Store(l)
}

func (d *Driver) log() *slog.Logger { return d.logger.Load() }

// enter counts a native call. Must hold d.mu.
func (d *Driver) enter() error {
	if d.destroyed {
		return ErrDestroyed
	}
	d.stats.NativeCalls++
	return nil
}

// newID issues a handle. Must hold d.mu.
func (d *Driver) newID() uint64 {
	d.nextID++
	return d.nextID
}

// Destroy releases every resource. Later calls fail with ErrDestroyed.
func (d *Driver) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	if d.stats.OpenCommandBuffers > 0 {
		d.log().Warn("headless: destroyed with open command buffers", "count", d.stats.OpenCommandBuffers)
	}
	d.destroyed = true
	clear(d.buffers)
	clear(d.transferBuffers)
	clear(d.textures)
	clear(d.samplers)
	clear(d.shaders)
	clear(d.graphicsPipeline)
	clear(d.computePipelines)
	clear(d.commandBuffers)
	clear(d.passes)
	clear(d.windows)
	d.stats.LiveResources = 0
	return nil
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// CreateBuffer creates a zero-filled buffer.
func (d *Driver) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{data: make([]byte, desc.Size), usage: desc.Usage, name: desc.Label}
	d.stats.LiveResources++
	return id, nil
}

// ReleaseBuffer releases a buffer.
func (d *Driver) ReleaseBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.buffers[id]; !ok {
		d.log().Warn("headless: release of unknown buffer", "id", uint64(id))
		return
	}
	delete(d.buffers, id)
	d.stats.LiveResources--
}

// SetBufferName sets a debug name.
func (d *Driver) SetBufferName(id gpucore.BufferID, name []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, id)
	}
	b.name = cstring(name)
	return nil
}

// CreateTransferBuffer creates a host-visible staging buffer.
func (d *Driver) CreateTransferBuffer(desc *gpucore.TransferBufferDescriptor) (gpucore.TransferBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TransferBufferID(d.newID())
	d.transferBuffers[id] = &transferBuffer{data: make([]byte, desc.Size), usage: desc.Usage}
	d.stats.LiveResources++
	return id, nil
}

// ReleaseTransferBuffer releases a transfer buffer.
func (d *Driver) ReleaseTransferBuffer(id gpucore.TransferBufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.transferBuffers[id]; !ok {
		d.log().Warn("headless: release of unknown transfer buffer", "id", uint64(id))
		return
	}
	delete(d.transferBuffers, id)
	d.stats.LiveResources--
}

// MapTransferBuffer returns the host memory of a transfer buffer. With
// cycle set the buffer is renamed: uploads recorded earlier keep reading
// the previous contents.
func (d *Driver) MapTransferBuffer(id gpucore.TransferBufferID, cycle bool) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return nil, err
	}
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
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	t, ok := d.transferBuffers[id]
	if !ok {
		return fmt.Errorf("%w: transfer buffer %d", ErrUnknownHandle, id)
	}
	if !t.mapped {
		return ErrNotMapped
	}
	t.mapped = false
	return nil
}

// CreateTexture creates a zero-filled texture. Only mip level 0 holds
// texels.
func (d *Driver) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = newTexture(*desc, false)
	d.stats.LiveResources++
	return id, nil
}

func newTexture(desc gpucore.TextureDescriptor, swapchain bool) *texture {
	desc.LayerCount = max(desc.LayerCount, 1)
	bpp := texelSize(desc.Format)
	return &texture{
		desc:      desc,
		bpp:       bpp,
		pix:       make([]byte, int(desc.Width)*int(desc.Height)*bpp*int(desc.LayerCount)),
		name:      desc.Label,
		swapchain: swapchain,
	}
}

// ReleaseTexture releases a texture. Swapchain images belong to their
// window and are ignored.
func (d *Driver) ReleaseTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	t, ok := d.textures[id]
	if !ok {
		d.log().Warn("headless: release of unknown texture", "id", uint64(id))
		return
	}
	if t.swapchain {
		return
	}
	delete(d.textures, id)
	d.stats.LiveResources--
}

// SetTextureName sets a debug name.
func (d *Driver) SetTextureName(id gpucore.TextureID, name []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, id)
	}
	t.name = cstring(name)
	return nil
}

// CreateSampler creates a sampler.
func (d *Driver) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = *desc
	d.stats.LiveResources++
	return id, nil
}

// ReleaseSampler releases a sampler.
func (d *Driver) ReleaseSampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.samplers[id]; ok {
		delete(d.samplers, id)
		d.stats.LiveResources--
	}
}

// CreateShader accepts any non-empty code.
func (d *Driver) CreateShader(desc *gpucore.ShaderDescriptor) (gpucore.ShaderID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	if len(desc.Code) == 0 {
		return gpucore.InvalidID, fmt.Errorf("headless: shader %q has no code", desc.Label)
	}
	id := gpucore.ShaderID(d.newID())
	d.shaders[id] = shader{stage: desc.Stage}
	d.stats.LiveResources++
	return id, nil
}

// ReleaseShader releases a shader.
func (d *Driver) ReleaseShader(id gpucore.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.shaders[id]; ok {
		delete(d.shaders, id)
		d.stats.LiveResources--
	}
}

// CreateGraphicsPipeline links a vertex and a fragment shader.
func (d *Driver) CreateGraphicsPipeline(desc *gpucore.GraphicsPipelineDescriptor) (gpucore.GraphicsPipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	vs, ok := d.shaders[desc.VertexShader]
	if !ok || vs.stage != gpucore.ShaderStageVertex {
		return gpucore.InvalidID, fmt.Errorf("%w: vertex shader %d", ErrUnknownHandle, desc.VertexShader)
	}
	fs, ok := d.shaders[desc.FragmentShader]
	if !ok || fs.stage != gpucore.ShaderStageFragment {
		return gpucore.InvalidID, fmt.Errorf("%w: fragment shader %d", ErrUnknownHandle, desc.FragmentShader)
	}
	id := gpucore.GraphicsPipelineID(d.newID())
	d.graphicsPipeline[id] = struct{}{}
	d.stats.LiveResources++
	return id, nil
}

// ReleaseGraphicsPipeline releases a graphics pipeline.
func (d *Driver) ReleaseGraphicsPipeline(id gpucore.GraphicsPipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.graphicsPipeline[id]; ok {
		delete(d.graphicsPipeline, id)
		d.stats.LiveResources--
	}
}

// CreateComputePipeline creates a compute pipeline.
func (d *Driver) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.ComputePipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(); err != nil {
		return gpucore.InvalidID, err
	}
	if len(desc.Code) == 0 {
		return gpucore.InvalidID, fmt.Errorf("headless: compute shader %q has no code", desc.Label)
	}
	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = computePipeline{
		threads: [3]uint32{desc.ThreadCountX, desc.ThreadCountY, desc.ThreadCountZ},
	}
	d.stats.LiveResources++
	return id, nil
}

// ReleaseComputePipeline releases a compute pipeline.
func (d *Driver) ReleaseComputePipeline(id gpucore.ComputePipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter() != nil {
		return
	}
	if _, ok := d.computePipelines[id]; ok {
		delete(d.computePipelines, id)
		d.stats.LiveResources--
	}
}

// BufferData returns a copy of the buffer contents.
func (d *Driver) BufferData(id gpucore.BufferID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownHandle, id)
	}
	return slices.Clone(b.data), nil
}

// BufferName returns the debug name of a buffer.
func (d *Driver) BufferName(id gpucore.BufferID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		return b.name
	}
	return ""
}

// TextureData returns a copy of one layer of mip level 0, tightly packed.
func (d *Driver) TextureData(id gpucore.TextureID, layer uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownHandle, id)
	}
	if layer >= t.desc.LayerCount {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrOutOfBounds, layer, t.desc.LayerCount)
	}
	return slices.Clone(t.layer(layer)), nil
}

// TextureName returns the debug name of a texture.
func (d *Driver) TextureName(id gpucore.TextureID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		return t.name
	}
	return ""
}

// Uniform returns the last uniform block pushed to slot of stage by a
// submitted command buffer.
func (d *Driver) Uniform(stage gpucore.UniformStage, slot uint32) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.uniforms[uniformKey{stage: stage, slot: slot}]
	return slices.Clone(data), ok
}

// DebugLog returns the debug groups and labels of submitted command
// buffers in execution order.
func (d *Driver) DebugLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.debugLog)
}

// LastDispatch returns the group counts of the last executed dispatch.
func (d *Driver) LastDispatch() [3]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDispatch
}

// cstring strips the NUL terminator of a name staged by gpucmd.
func cstring(b []byte) string {
	if i := slices.Index(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
