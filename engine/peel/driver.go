package peel

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/chewxy/math32"
)

// DefaultPeelDepth is the number of layers peeled when no depth is configured.
const DefaultPeelDepth = 3

// driverConfig is the configuration a Render applies when it starts. Setters write it from
// any goroutine; a Render in progress keeps the snapshot it started with.
type driverConfig struct {
	peelDepth     int
	mode          PoolMode
	epsilon       float32
	width, height int
	pixelScale    float32
	enabled       bool
}

func (c driverConfig) validate() error {
	if c.peelDepth < 1 {
		return fmt.Errorf("%w: peel depth %d", ErrInvalidConfig, c.peelDepth)
	}
	if c.epsilon < 0 || math32.IsNaN(c.epsilon) {
		return fmt.Errorf("%w: epsilon %v", ErrInvalidConfig, c.epsilon)
	}
	if c.width < 0 || c.height < 0 || (c.width == 0) != (c.height == 0) {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.width, c.height)
	}
	if c.pixelScale <= 0 || math32.IsNaN(c.pixelScale) {
		return fmt.Errorf("%w: pixel scale %v", ErrInvalidConfig, c.pixelScale)
	}
	if c.mode != PoolModeFixed && c.mode != PoolModePingPong {
		return fmt.Errorf("%w: pool mode %v", ErrInvalidConfig, c.mode)
	}
	return nil
}

// bufferSize returns the layer buffer size in pixels for device.
func (c driverConfig) bufferSize(device renderer.Renderer) (int, int) {
	if c.width == 0 {
		return device.Size()
	}
	return common.ScaledSize(c.width, c.height, c.pixelScale)
}

// driver is the implementation of the Driver interface.
type driver struct {
	// mu guards config, state, layer and disposed.
	mu       *sync.Mutex
	config   driverConfig
	state    State
	layer    int
	disposed bool

	// renderMu serializes Prepare, Render and Dispose. The fields below are only touched
	// while it is held.
	renderMu   *sync.Mutex
	uniforms   *Uniforms
	injector   Injector
	compositor Compositor
	device     renderer.Renderer
	pool       LayerPool
	sentinel   renderer.Texture
	direct     renderer.RenderTarget
	source     scene.Scene
	copy       scene.Scene

	injectorOptions []InjectorBuilderOption
}

// Driver runs depth peeling over a prepared scene. Prepare instruments a copy of the scene once;
// each Render peels the configured number of layers nearest first and composites them under one
// another. Configuration setters may be called from any goroutine and take effect at the start
// of the next Render.
type Driver interface {
	// Prepare copies s and replaces every drawable's material with its peel material. Calling
	// it again with the same scene returns the existing copy.
	//
	// Parameters:
	//   - s: the source scene, left unmodified
	//
	// Returns:
	//   - scene.Scene: the scene copy rendered by the peel loop
	//   - error: ErrInjection if a material cannot be instrumented, ErrDisposed
	Prepare(s scene.Scene) (scene.Scene, error)

	// Render peels the prepared scene and writes the final composite according to out. The
	// device's render target, clear color and blend mode are restored before it returns.
	//
	// Parameters:
	//   - device: the renderer to draw with
	//   - cam: the camera
	//   - out: where the final composite goes
	//
	// Returns:
	//   - *Composite: the handle to the final composite
	//   - error: ErrNotPrepared, ErrDisposed, ErrAllocation or a device error
	Render(device renderer.Renderer, cam camera.Camera, out Output) (*Composite, error)

	// PeelDepth returns the configured layer count.
	PeelDepth() int

	// SetPeelDepth sets the layer count used from the next Render on.
	//
	// Parameters:
	//   - n: the layer count, at least 1
	//
	// Returns:
	//   - error: ErrInvalidConfig for n < 1
	SetPeelDepth(n int) error

	// Resize sets the logical buffer size and pixel scale used from the next Render on.
	// Buffers are round(size * pixelScale) pixels.
	//
	// Parameters:
	//   - width, height: the logical size, both positive
	//   - pixelScale: the device pixel ratio, positive
	//
	// Returns:
	//   - error: ErrInvalidConfig for non-positive values
	Resize(width, height int, pixelScale float32) error

	// Size returns the size in pixels of the current layer buffers, or (0, 0) before the first
	// peeled Render.
	Size() (int, int)

	// Enabled reports whether Render peels. A disabled driver renders the source scene directly.
	Enabled() bool

	// SetEnabled toggles peeling from the next Render on.
	SetEnabled(enabled bool)

	// Epsilon returns the depth comparison margin.
	Epsilon() float32

	// SetEpsilon sets the depth comparison margin used from the next Render on.
	//
	// Parameters:
	//   - epsilon: the margin, not negative
	//
	// Returns:
	//   - error: ErrInvalidConfig for a negative or NaN epsilon
	SetEpsilon(epsilon float32) error

	// PoolMode returns the layer buffer pool mode.
	PoolMode() PoolMode

	// State returns the phase of the peel loop.
	State() State

	// Layer returns the layer being peeled while peeling, and the number of layers peeled by the
	// last Render once done.
	Layer() int

	// LayerTarget returns the buffer holding layer i after a Render in fixed pool mode, or nil
	// in ping-pong mode or when i is out of range.
	//
	// Parameters:
	//   - i: the layer index
	//
	// Returns:
	//   - renderer.RenderTarget: the layer buffer
	LayerTarget(i int) renderer.RenderTarget

	// Scene returns the prepared scene copy, or nil.
	Scene() scene.Scene

	// Uniforms returns the uniform block shared by the peel materials.
	Uniforms() *Uniforms

	// Dispose releases every buffer the driver owns. Later calls to Prepare and Render return
	// ErrDisposed. Disposing twice is a no-op.
	Dispose()
}

var _ Driver = &driver{}

// NewDriver creates a Driver. It panics if the options describe an invalid configuration.
//
// Parameters:
//   - options: functional options to configure the driver
//
// Returns:
//   - Driver: the new driver
func NewDriver(options ...DriverBuilderOption) Driver {
	d := &driver{
		mu: &sync.Mutex{},
		config: driverConfig{
			peelDepth:  DefaultPeelDepth,
			mode:       PoolModeFixed,
			epsilon:    DefaultEpsilon,
			pixelScale: 1,
			enabled:    true,
		},
		renderMu:   &sync.Mutex{},
		compositor: NewCompositor(),
	}
	for _, opt := range options {
		opt(d)
	}
	if err := d.config.validate(); err != nil {
		panic(err)
	}
	d.uniforms = NewUniforms(d.config.epsilon)
	d.injector = NewInjector(d.uniforms, d.injectorOptions...)
	return d
}

func (d *driver) Prepare(s scene.Scene) (scene.Scene, error) {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	if d.isDisposed() {
		return nil, ErrDisposed
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil scene", ErrInvalidConfig)
	}
	if s == d.source && d.copy != nil {
		return d.copy, nil
	}

	cp, err := s.CloneWith(d.injector.Inject)
	if err != nil {
		return nil, fmt.Errorf("prepare scene %q: %w", s.Name(), err)
	}
	d.source, d.copy = s, cp
	Logger().Debug("peel scene prepared", "scene", s.Name(), "objects", cp.Count(), "peel_materials", d.injector.Len())
	return cp, nil
}

func (d *driver) Render(device renderer.Renderer, cam camera.Camera, out Output) (*Composite, error) {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil, ErrDisposed
	}
	cfg := d.config
	d.mu.Unlock()

	if d.copy == nil {
		return nil, ErrNotPrepared
	}
	if device == nil || cam == nil {
		return nil, fmt.Errorf("%w: render needs a device and a camera", ErrInvalidConfig)
	}

	saved := saveDeviceState(device)
	defer saved.restore(device)

	d.bindDevice(device, cfg.mode)
	d.uniforms.SetEpsilon(cfg.epsilon)
	width, height := cfg.bufferSize(device)

	d.setState(StatePeeling, 0)
	var c *Composite
	var err error
	if cfg.enabled {
		c, err = d.peel(device, cam, out, cfg.peelDepth, width, height)
	} else {
		c, err = d.renderDirect(device, cam, out, width, height)
	}
	if err != nil {
		d.setState(StateIdle, 0)
		Logger().Warn("peel render failed", "output", out.String(), "peel_depth", cfg.peelDepth, "error", err)
		return nil, err
	}
	d.setState(StateDone, c.Layers)
	return c, nil
}

// peel renders n layers into the pool and composites each under the running result.
func (d *driver) peel(device renderer.Renderer, cam camera.Camera, out Output, n, width, height int) (*Composite, error) {
	if err := d.pool.Allocate(width, height, n); err != nil {
		return nil, err
	}
	if d.sentinel == nil {
		t, err := device.CreateSentinelDepthTexture(0)
		if err != nil {
			return nil, fmt.Errorf("%w: sentinel depth: %w", ErrAllocation, err)
		}
		d.sentinel = t
	}
	d.uniforms.SetScreenSize(width, height)
	defer d.uniforms.SetPreviousDepth(d.sentinel)

	var final renderer.RenderTarget
	for i := range n {
		d.setLayer(i)

		prev := d.sentinel
		if i > 0 {
			prev = d.pool.Layer(i - 1).Depth()
		}
		d.uniforms.SetPreviousDepth(prev)

		layer := d.pool.Layer(i)
		device.SetRenderTarget(layer)
		device.SetClearColor(common.Transparent)
		device.SetBlendMode(renderer.BlendModeNone)
		if err := device.Clear(); err != nil {
			return nil, fmt.Errorf("clear layer %d: %w", i, err)
		}
		if err := device.DrawScene(d.copy, cam); err != nil {
			return nil, fmt.Errorf("render layer %d: %w", i, err)
		}

		var accumulated renderer.Texture
		if i > 0 {
			accumulated = d.pool.Composite(i - 1).Color()
		}
		dst := d.pool.Composite(i)
		if i == n-1 {
			switch out.kind {
			case outputTarget:
				dst = out.target
			case outputDefault:
				dst = nil
			}
		}
		if err := d.compositor.Composite(device, accumulated, layer.Color(), dst); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		final = dst
	}
	return &Composite{Target: final, Layers: n, Width: width, Height: height}, nil
}

// renderDirect draws the source scene with its own blending, without peeling.
func (d *driver) renderDirect(device renderer.Renderer, cam camera.Camera, out Output, width, height int) (*Composite, error) {
	var dst renderer.RenderTarget
	switch out.kind {
	case outputTarget:
		dst = out.target
	case outputInternal:
		if d.direct == nil || d.direct.Width() != width || d.direct.Height() != height {
			rt, err := device.CreateRenderTarget("peel direct", width, height, true)
			if err != nil {
				return nil, fmt.Errorf("%w: direct target at %dx%d: %w", ErrAllocation, width, height, err)
			}
			if d.direct != nil {
				d.direct.Release()
			}
			d.direct = rt
		}
		dst = d.direct
	}

	device.SetRenderTarget(dst)
	device.SetClearColor(common.Transparent)
	device.SetBlendMode(renderer.BlendModeMaterial)
	if err := device.Clear(); err != nil {
		return nil, fmt.Errorf("clear %s: %w", targetLabel(dst), err)
	}
	if err := device.DrawScene(d.source, cam); err != nil {
		return nil, fmt.Errorf("render %s: %w", targetLabel(dst), err)
	}
	return &Composite{Target: dst, Width: width, Height: height}, nil
}

// bindDevice drops every buffer created on a previous device.
func (d *driver) bindDevice(device renderer.Renderer, mode PoolMode) {
	if d.device == device && d.pool != nil {
		return
	}
	d.releaseBuffers()
	d.device = device
	d.pool = NewLayerPool(device, mode)
}

func (d *driver) releaseBuffers() {
	if d.pool != nil {
		d.pool.Release()
		d.pool = nil
	}
	if d.sentinel != nil {
		d.sentinel.Release()
		d.sentinel = nil
	}
	if d.direct != nil {
		d.direct.Release()
		d.direct = nil
	}
	d.uniforms.SetPreviousDepth(nil)
}

func (d *driver) setState(s State, layer int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state, d.layer = s, layer
}

func (d *driver) setLayer(layer int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layer = layer
}

func (d *driver) isDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

func (d *driver) PeelDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.peelDepth
}

func (d *driver) SetPeelDepth(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: peel depth %d", ErrInvalidConfig, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.config.peelDepth != n {
		Logger().Debug("peel depth changed", "from", d.config.peelDepth, "to", n)
	}
	d.config.peelDepth = n
	return nil
}

func (d *driver) Resize(width, height int, pixelScale float32) error {
	if width <= 0 || height <= 0 || pixelScale <= 0 || math32.IsNaN(pixelScale) {
		return fmt.Errorf("%w: resize to %dx%d at scale %v", ErrInvalidConfig, width, height, pixelScale)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.width, d.config.height, d.config.pixelScale = width, height, pixelScale
	return nil
}

func (d *driver) Size() (int, int) {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	if d.pool == nil {
		return 0, 0
	}
	return d.pool.Size()
}

func (d *driver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.enabled
}

func (d *driver) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.enabled = enabled
}

func (d *driver) Epsilon() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.epsilon
}

func (d *driver) SetEpsilon(epsilon float32) error {
	if epsilon < 0 || math32.IsNaN(epsilon) {
		return fmt.Errorf("%w: epsilon %v", ErrInvalidConfig, epsilon)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.epsilon = epsilon
	return nil
}

func (d *driver) PoolMode() PoolMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.mode
}

func (d *driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *driver) Layer() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layer
}

func (d *driver) LayerTarget(i int) renderer.RenderTarget {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	if d.pool == nil || d.pool.Mode() != PoolModeFixed {
		return nil
	}
	return d.pool.Layer(i)
}

func (d *driver) Scene() scene.Scene {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	return d.copy
}

func (d *driver) Uniforms() *Uniforms {
	return d.uniforms
}

func (d *driver) Dispose() {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	d.state, d.layer = StateIdle, 0
	d.mu.Unlock()

	d.releaseBuffers()
	d.injector.Reset()
	d.source, d.copy, d.device = nil, nil, nil
	Logger().Debug("peel driver disposed")
}
