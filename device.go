package gpucmd

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/arena"
	"github.com/gogpu/gpucmd/internal/pool"
)

// PoolStats is a snapshot of one object pool.
type PoolStats = pool.Stats

// DeviceStats is a snapshot of the device pools.
type DeviceStats struct {
	Backend        string
	CommandBuffers PoolStats
	RenderPasses   PoolStats
	CopyPasses     PoolStats
	ComputePasses  PoolStats
	ClaimedWindows int
}

// Device owns a native driver context and the pools of command buffers and
// passes recorded against it.
//
// Device is safe for concurrent use: several goroutines may acquire, record
// and submit command buffers at the same time. Each CommandBuffer and pass
// must stay on the goroutine that acquired it.
type Device struct {
	driver gpucore.Driver
	logger *slog.Logger
	opts   options

	closed atomic.Bool

	// mu guards arena and windows.
	mu      sync.Mutex
	arena   *arena.Arena
	windows map[gpucore.WindowID]*Swapchain

	commandBuffers *pool.Pool[*CommandBuffer]
	renderPasses   *pool.Pool[*RenderPass]
	copyPasses     *pool.Pool[*CopyPass]
	computePasses  *pool.Pool[*ComputePass]
}

// Open creates a device on a registered backend. An empty name selects the
// highest-priority backend that initializes.
func Open(name string, opts ...Option) (*Device, error) {
	var (
		drv gpucore.Driver
		err error
	)
	if name == "" {
		drv, err = backend.Default()
	} else {
		drv, err = backend.Get(name)
	}
	if err != nil {
		return nil, fmt.Errorf("gpucmd: open backend %q: %w", name, err)
	}

	d, err := NewDevice(drv, opts...)
	if err != nil {
		_ = drv.Destroy()
		return nil, err
	}
	return d, nil
}

// NewDevice creates a device that records against drv. The device takes
// ownership of drv and destroys it on Close.
func NewDevice(drv gpucore.Driver, opts ...Option) (*Device, error) {
	if drv == nil {
		return nil, ErrNilDriver
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a, err := arena.New(o.arenaCapacity)
	if err != nil {
		return nil, fmt.Errorf("gpucmd: device arena: %w", err)
	}

	d := &Device{
		driver:  drv,
		logger:  o.logger,
		opts:    o,
		arena:   a,
		windows: make(map[gpucore.WindowID]*Swapchain),
	}

	d.commandBuffers = pool.New("command-buffers", d.newCommandBuffer, d.log)
	d.renderPasses = pool.New("render-passes", func() (*RenderPass, error) {
		return &RenderPass{device: d}, nil
	}, d.log)
	d.copyPasses = pool.New("copy-passes", func() (*CopyPass, error) {
		return &CopyPass{device: d}, nil
	}, d.log)
	d.computePasses = pool.New("compute-passes", func() (*ComputePass, error) {
		return &ComputePass{device: d}, nil
	}, d.log)

	if o.prewarm > 0 {
		if err := d.prewarm(o.prewarm); err != nil {
			_ = d.closePools()
			_ = a.Close()
			return nil, err
		}
	}

	if o.logger != nil {
		propagateLogger(drv, o.logger)
	} else {
		followPackageLogger(d)
	}

	d.log().Info("gpucmd: device created", "backend", drv.Name(), "prewarm", o.prewarm)
	return d, nil
}

func (d *Device) newCommandBuffer() (*CommandBuffer, error) {
	a, err := arena.New(d.opts.commandArenaCapacity)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{device: d, arena: a}, nil
}

func (d *Device) prewarm(n int) error {
	var result *multierror.Error
	if err := d.commandBuffers.Prewarm(n); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.renderPasses.Prewarm(n); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.copyPasses.Prewarm(n); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.computePasses.Prewarm(n); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("gpucmd: prewarm: %w", err)
	}
	return nil
}

// log returns the device logger.
func (d *Device) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return Logger()
}

// Backend returns the driver name.
func (d *Device) Backend() string {
	return d.driver.Name()
}

// Driver returns the underlying driver.
func (d *Device) Driver() gpucore.Driver {
	return d.driver
}

func (d *Device) checkOpen() error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	return nil
}

// nativeError wraps a driver failure.
func (d *Device) nativeError(op string, err error) error {
	d.log().Debug("gpucmd: native call failed", "op", op, "error", err)
	return &NativeError{Op: op, Backend: d.driver.Name(), Err: err}
}

// withName stages name as a C string in the device arena for the duration
// of fn.
func (d *Device) withName(name string, fn func(cstr []byte) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cstr, err := d.arena.AllocateCString(name)
	if err != nil {
		return err
	}
	defer d.arena.Reset()
	return fn(cstr)
}

// AcquireCommandBuffer checks out a command buffer bound to a fresh native
// command buffer. The returned buffer is Recording and must be finished
// with Submit or Cancel.
func (d *Device) AcquireCommandBuffer() (*CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("acquire command buffer: %w", err)
	}

	cb, err := d.commandBuffers.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("acquire command buffer: %w", err)
	}

	id, err := d.driver.AcquireCommandBuffer()
	if err != nil {
		d.commandBuffers.TryReturnToPool(cb)
		return nil, d.nativeError("acquire command buffer", err)
	}

	cb.bind(id)
	return cb, nil
}

// CreateDataBuffer creates a GPU buffer.
func (d *Device) CreateDataBuffer(desc gpucore.BufferDescriptor) (*DataBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create data buffer: %w", err)
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("create data buffer: %w: zero size", ErrInvalidDescriptor)
	}
	id, err := d.driver.CreateBuffer(&desc)
	if err != nil {
		return nil, d.nativeError("create data buffer", err)
	}
	return &DataBuffer{
		resource: newResource(d, "data buffer", id, d.driver.ReleaseBuffer),
		size:     desc.Size,
		usage:    desc.Usage,
	}, nil
}

// CreateTransferBuffer creates a CPU-visible staging buffer.
func (d *Device) CreateTransferBuffer(desc gpucore.TransferBufferDescriptor) (*TransferBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create transfer buffer: %w", err)
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("create transfer buffer: %w: zero size", ErrInvalidDescriptor)
	}
	id, err := d.driver.CreateTransferBuffer(&desc)
	if err != nil {
		return nil, d.nativeError("create transfer buffer", err)
	}
	return &TransferBuffer{
		resource: newResource(d, "transfer buffer", id, d.driver.ReleaseTransferBuffer),
		size:     desc.Size,
		usage:    desc.Usage,
	}, nil
}

// CreateTexture creates a texture.
func (d *Device) CreateTexture(desc gpucore.TextureDescriptor) (*Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("create texture: %w: zero extent", ErrInvalidDescriptor)
	}
	if desc.LayerCount == 0 {
		desc.LayerCount = 1
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	id, err := d.driver.CreateTexture(&desc)
	if err != nil {
		return nil, d.nativeError("create texture", err)
	}
	return &Texture{
		resource: newResource(d, "texture", id, d.driver.ReleaseTexture),
		width:    desc.Width,
		height:   desc.Height,
		layers:   desc.LayerCount,
		format:   desc.Format,
		usage:    desc.Usage,
	}, nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc gpucore.SamplerDescriptor) (*Sampler, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	id, err := d.driver.CreateSampler(&desc)
	if err != nil {
		return nil, d.nativeError("create sampler", err)
	}
	return &Sampler{resource: newResource(d, "sampler", id, d.driver.ReleaseSampler)}, nil
}

// CreateGraphicsShader creates a vertex or fragment shader.
func (d *Device) CreateGraphicsShader(desc gpucore.ShaderDescriptor) (*GraphicsShader, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create graphics shader: %w", err)
	}
	if len(desc.Code) == 0 {
		return nil, fmt.Errorf("create graphics shader: %w: no code", ErrInvalidDescriptor)
	}
	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	id, err := d.driver.CreateShader(&desc)
	if err != nil {
		return nil, d.nativeError("create graphics shader", err)
	}
	return &GraphicsShader{
		resource: newResource(d, "graphics shader", id, d.driver.ReleaseShader),
		stage:    desc.Stage,
	}, nil
}

// CreateComputeShader creates a compute shader together with its pipeline.
func (d *Device) CreateComputeShader(desc gpucore.ComputePipelineDescriptor) (*ComputeShader, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create compute shader: %w", err)
	}
	if len(desc.Code) == 0 {
		return nil, fmt.Errorf("create compute shader: %w: no code", ErrInvalidDescriptor)
	}
	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	if desc.ThreadCountX == 0 || desc.ThreadCountY == 0 || desc.ThreadCountZ == 0 {
		return nil, fmt.Errorf("create compute shader: %w: zero thread count", ErrInvalidDescriptor)
	}
	id, err := d.driver.CreateComputePipeline(&desc)
	if err != nil {
		return nil, d.nativeError("create compute shader", err)
	}
	return &ComputeShader{
		resource: newResource(d, "compute shader", id, d.driver.ReleaseComputePipeline),
	}, nil
}

// CreateGraphicsPipeline links a vertex and a fragment shader into a
// graphics pipeline.
func (d *Device) CreateGraphicsPipeline(desc GraphicsPipelineDesc) (*GraphicsPipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("create graphics pipeline: %w", err)
	}
	if desc.VertexShader == nil || desc.FragmentShader == nil {
		return nil, fmt.Errorf("create graphics pipeline: %w: shader", ErrNilResource)
	}
	if desc.VertexShader.Stage() != gpucore.ShaderStageVertex ||
		desc.FragmentShader.Stage() != gpucore.ShaderStageFragment {
		return nil, fmt.Errorf("create graphics pipeline: %w: shader stage mismatch", ErrInvalidDescriptor)
	}
	if len(desc.ColorTargets) == 0 {
		return nil, fmt.Errorf("create graphics pipeline: %w", ErrNoColorTargets)
	}
	vs, err := desc.VertexShader.handleFor(d)
	if err != nil {
		return nil, fmt.Errorf("create graphics pipeline: %w", err)
	}
	fs, err := desc.FragmentShader.handleFor(d)
	if err != nil {
		return nil, fmt.Errorf("create graphics pipeline: %w", err)
	}

	nd := gpucore.GraphicsPipelineDescriptor{
		Label:              desc.Label,
		VertexShader:       vs,
		FragmentShader:     fs,
		VertexBuffers:      desc.VertexBuffers,
		Topology:           desc.Topology,
		CullMode:           desc.CullMode,
		ColorTargets:       desc.ColorTargets,
		DepthStencilFormat: desc.DepthStencilFormat,
		HasDepthStencil:    desc.HasDepthStencil,
	}
	id, err := d.driver.CreateGraphicsPipeline(&nd)
	if err != nil {
		return nil, d.nativeError("create graphics pipeline", err)
	}
	return &GraphicsPipeline{
		resource: newResource(d, "graphics pipeline", id, d.driver.ReleaseGraphicsPipeline),
	}, nil
}

// ClaimWindow creates the swapchain of a platform window.
func (d *Device) ClaimWindow(w gpucore.WindowID) (*Swapchain, error) {
	if err := d.checkOpen(); err != nil {
		return nil, fmt.Errorf("claim window: %w", err)
	}
	if w == gpucore.InvalidID {
		return nil, fmt.Errorf("claim window: %w", ErrInvalidWindow)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[w]; ok {
		return nil, fmt.Errorf("claim window %d: %w", w, ErrWindowClaimed)
	}
	if err := d.driver.ClaimWindow(w); err != nil {
		return nil, d.nativeError("claim window", err)
	}
	sc := newSwapchain(d, w)
	d.windows[w] = sc
	d.log().Info("gpucmd: window claimed", "window", uint64(w))
	return sc, nil
}

// ReleaseWindow destroys the swapchain of a claimed window.
func (d *Device) ReleaseWindow(sc *Swapchain) error {
	if sc == nil {
		return fmt.Errorf("release window: %w", ErrInvalidWindow)
	}
	d.mu.Lock()
	if d.windows[sc.window] != sc {
		d.mu.Unlock()
		return fmt.Errorf("release window %d: %w", sc.window, ErrWindowNotClaimed)
	}
	delete(d.windows, sc.window)
	d.mu.Unlock()

	sc.release()
	d.driver.ReleaseWindow(sc.window)
	d.log().Info("gpucmd: window released", "window", uint64(sc.window))
	return nil
}

// Stats returns a snapshot of the device pools.
func (d *Device) Stats() DeviceStats {
	d.mu.Lock()
	windows := len(d.windows)
	d.mu.Unlock()
	return DeviceStats{
		Backend:        d.driver.Name(),
		CommandBuffers: d.commandBuffers.Stats(),
		RenderPasses:   d.renderPasses.Stats(),
		CopyPasses:     d.copyPasses.Stats(),
		ComputePasses:  d.computePasses.Stats(),
		ClaimedWindows: windows,
	}
}

// Close releases claimed windows, disposes idle pooled objects and destroys
// the driver. Command buffers still checked out are reported as leaked.
// Resources created by the device become inert: disposing them after Close
// does not reach the driver.
//
// Close is idempotent.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d.logger == nil {
		unfollowPackageLogger(d)
	}

	var result *multierror.Error

	d.mu.Lock()
	windows := make([]*Swapchain, 0, len(d.windows))
	for _, sc := range d.windows {
		windows = append(windows, sc)
	}
	clear(d.windows)
	d.mu.Unlock()
	for _, sc := range windows {
		sc.release()
		d.driver.ReleaseWindow(sc.window)
	}

	if err := d.closePools(); err != nil {
		result = multierror.Append(result, err)
	}

	d.mu.Lock()
	if err := d.arena.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("device arena: %w", err))
	}
	d.mu.Unlock()

	if err := d.driver.Destroy(); err != nil {
		result = multierror.Append(result, &NativeError{Op: "destroy", Backend: d.driver.Name(), Err: err})
	}

	err := result.ErrorOrNil()
	if err != nil {
		d.log().Error("gpucmd: device closed with errors", "error", err)
	} else {
		d.log().Info("gpucmd: device closed", "backend", d.driver.Name())
	}
	return err
}

func (d *Device) closePools() error {
	var result *multierror.Error
	for _, closeFn := range []func() error{
		d.renderPasses.Close,
		d.copyPasses.Close,
		d.computePasses.Close,
		d.commandBuffers.Close,
	} {
		if err := closeFn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
