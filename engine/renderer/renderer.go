package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/chewxy/math32"
)

// BlendMode is the device-wide blending state.
type BlendMode int

const (
	// BlendModeMaterial lets each material choose its blending; full-screen passes blend "over".
	BlendModeMaterial BlendMode = iota

	// BlendModeNone disables blending for every draw: fragments overwrite the target.
	BlendModeNone
)

// Stats counts the device work issued since the last ResetStats.
type Stats struct {
	// SceneDraws is the number of DrawScene calls.
	SceneDraws int
	// FullscreenDraws is the number of DrawFullscreen calls.
	FullscreenDraws int
	// Clears is the number of Clear calls.
	Clears int
	// TexturesCreated is the number of textures allocated.
	TexturesCreated int
	// CulledObjects is the number of drawables skipped for lying outside the view frustum.
	CulledObjects int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	width, height int
	pixelRatio    float32

	target     RenderTarget
	clearColor common.Color
	blendMode  BlendMode
	stats      Stats

	// Pre-creation config collected from builder options
	surface              Surface
	workers              int
	memoryBudget         int64
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer is the graphics device facade. It owns the device state every pass mutates (the
// bound render target, the clear color and the blend mode) and forwards work to a
// RendererBackend.
//
// Device state is plain mutable state: a caller that changes it for a pass is responsible for
// restoring it.
type Renderer interface {
	// BackendType returns the backend in use.
	BackendType() RendererBackendType

	// Size returns the default framebuffer size in device pixels.
	//
	// Returns:
	//   - int, int: width and height
	Size() (int, int)

	// PixelRatio returns the number of device pixels per logical pixel.
	PixelRatio() float32

	// SetPixelRatio sets the number of device pixels per logical pixel.
	//
	// Parameters:
	//   - ratio: the pixel ratio, must be positive
	SetPixelRatio(ratio float32)

	// Resize resizes the default framebuffer.
	//
	// Parameters:
	//   - width, height: the new size in device pixels
	Resize(width, height int)

	// CreateRenderTarget allocates an offscreen target with a float color attachment and,
	// optionally, a sampleable depth attachment.
	//
	// Parameters:
	//   - label: the debug label
	//   - width, height: the size in device pixels
	//   - withDepth: whether to attach a depth texture
	//
	// Returns:
	//   - RenderTarget: the target
	//   - error: ErrOutOfMemory if the device cannot allocate it
	CreateRenderTarget(label string, width, height int, withDepth bool) (RenderTarget, error)

	// CreateDepthTexture allocates a sampleable depth texture cleared to 1.
	//
	// Parameters:
	//   - label: the debug label
	//   - width, height: the size in device pixels
	//
	// Returns:
	//   - Texture: the depth texture
	//   - error: ErrOutOfMemory if the device cannot allocate it
	CreateDepthTexture(label string, width, height int) (Texture, error)

	// CreateSentinelDepthTexture allocates a 1x1 depth texture holding value.
	//
	// Parameters:
	//   - value: the stored depth
	//
	// Returns:
	//   - Texture: the depth texture
	//   - error: an error if allocation fails
	CreateSentinelDepthTexture(value float32) (Texture, error)

	// RenderTarget returns the bound render target, or nil when the default framebuffer is bound.
	RenderTarget() RenderTarget

	// SetRenderTarget binds a render target. Nil binds the default framebuffer.
	//
	// Parameters:
	//   - rt: the target to bind
	SetRenderTarget(rt RenderTarget)

	// ClearColor returns the clear color.
	ClearColor() common.Color

	// SetClearColor sets the color used by Clear.
	//
	// Parameters:
	//   - c: the clear color
	SetClearColor(c common.Color)

	// BlendMode returns the device blend mode.
	BlendMode() BlendMode

	// SetBlendMode sets the device blend mode.
	//
	// Parameters:
	//   - mode: the blend mode
	SetBlendMode(mode BlendMode)

	// Clear fills the bound target's color with the clear color and its depth with 1.
	//
	// Returns:
	//   - error: an error if the target is unusable
	Clear() error

	// DrawScene draws every enabled drawable of s into the bound target.
	//
	// Parameters:
	//   - s: the scene
	//   - cam: the camera
	//
	// Returns:
	//   - error: an error if the draw fails
	DrawScene(s scene.Scene, cam camera.Camera) error

	// DrawFullscreen runs a full-screen program over the bound target.
	//
	// Parameters:
	//   - program: the program
	//   - inputs: the textures bound to the program, nil entries read as transparent black
	//
	// Returns:
	//   - error: an error if the draw fails
	DrawFullscreen(program FullscreenProgram, inputs ...Texture) error

	// ReadPixels reads back the color attachment of rt, or of the default framebuffer when rt is nil.
	//
	// Parameters:
	//   - rt: the target to read
	//
	// Returns:
	//   - []common.Color: row-major texels from the top-left
	//   - error: an error if readback fails
	ReadPixels(rt RenderTarget) ([]common.Color, error)

	// ReadDepth reads back a depth texture.
	//
	// Parameters:
	//   - t: the depth texture
	//
	// Returns:
	//   - []float32: row-major depths from the top-left
	//   - error: an error if readback fails
	ReadDepth(t Texture) ([]float32, error)

	// Stats returns the work counters.
	Stats() Stats

	// ResetStats zeroes the work counters.
	ResetStats()

	// BeginFrame acquires the default framebuffer for this frame.
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() error

	// Present presents the default framebuffer. Must be called once per frame after BeginFrame.
	Present()

	// Release frees every device resource.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend.
// The wgpu backend requires a surface (WithSurface) and panics without one, as device creation
// failures are not recoverable.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		width:       1,
		height:      1,
		pixelRatio:  1,
		clearColor:  common.Transparent,
		workers:     max(runtime.NumCPU()-1, 1),
	}

	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers, r.memoryBudget)
	case BackendTypeWGPU:
		fallthrough
	default:
		if r.surface == nil {
			panic("renderer: the wgpu backend requires a surface")
		}
		r.width, r.height = r.surface.Width(), r.surface.Height()
		b := newWGPURendererBackend(r.surface.SurfaceDescriptor(), r.forceFallbackAdapter)
		if r.pendingPresentMode != nil {
			b.SetPresentMode(*r.pendingPresentMode)
		}
		r.backend = b
	}

	r.backend.ConfigureSurface(r.width, r.height)
	return r
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) PixelRatio() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pixelRatio
}

func (r *renderer) SetPixelRatio(ratio float32) {
	if ratio <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pixelRatio = ratio
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) CreateRenderTarget(label string, width, height int, withDepth bool) (RenderTarget, error) {
	color, err := r.backend.CreateTexture(label+" color", width, height, TextureFormatRGBA32Float)
	if err != nil {
		return nil, fmt.Errorf("render target %s: %w", label, err)
	}
	rt := &renderTarget{label: label, color: color, backend: r.backend}
	if withDepth {
		depth, err := r.backend.CreateTexture(label+" depth", width, height, TextureFormatDepth32Float)
		if err != nil {
			color.Release()
			return nil, fmt.Errorf("render target %s: %w", label, err)
		}
		rt.depth = depth
	}
	r.count(func(s *Stats) {
		s.TexturesCreated++
		if withDepth {
			s.TexturesCreated++
		}
	})
	return rt, nil
}

func (r *renderer) CreateDepthTexture(label string, width, height int) (Texture, error) {
	t, err := r.backend.CreateTexture(label, width, height, TextureFormatDepth32Float)
	if err != nil {
		return nil, err
	}
	r.count(func(s *Stats) { s.TexturesCreated++ })
	return t, nil
}

func (r *renderer) CreateSentinelDepthTexture(value float32) (Texture, error) {
	t, err := r.CreateDepthTexture("sentinel depth", 1, 1)
	if err != nil {
		return nil, err
	}
	if err := r.backend.FillDepth(t, value); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

func (r *renderer) RenderTarget() RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *renderer) SetRenderTarget(rt RenderTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = rt
}

func (r *renderer) ClearColor() common.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearColor
}

func (r *renderer) SetClearColor(c common.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearColor = c
}

func (r *renderer) BlendMode() BlendMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blendMode
}

func (r *renderer) SetBlendMode(mode BlendMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blendMode = mode
}

func (r *renderer) Clear() error {
	target, _ := r.bound()
	r.mu.Lock()
	c := r.clearColor
	r.stats.Clears++
	r.mu.Unlock()
	return r.backend.Clear(target, c)
}

func (r *renderer) DrawScene(s scene.Scene, cam camera.Camera) error {
	target, blendOff := r.bound()
	draws, culled := cullDrawables(s.Drawables(), cam)
	r.count(func(st *Stats) {
		st.SceneDraws++
		st.CulledObjects += culled
	})
	return r.backend.DrawScene(target, draws, cam, blendOff)
}

// cullDrawables drops drawables whose world-space bounding sphere lies outside the camera frustum.
// Returns the kept drawables in order and the number dropped.
func cullDrawables(draws []scene.Drawable, cam camera.Camera) ([]scene.Drawable, int) {
	viewProj := cam.ViewProjectionMatrix()
	frustum := common.FrustumFromMatrix(viewProj[:])
	kept := draws[:0:0]
	for _, d := range draws {
		mdl := d.Object.Model()
		if mdl == nil {
			kept = append(kept, d)
			continue
		}
		center, radius := mdl.Bounds()
		w := common.TransformPoint(d.World[:], center[0], center[1], center[2])
		if frustum.IntersectsSphere([3]float32{w[0], w[1], w[2]}, radius*maxAxisScale(&d.World)) {
			kept = append(kept, d)
		}
	}
	return kept, len(draws) - len(kept)
}

// maxAxisScale is the largest column length of the upper 3x3 of a column-major matrix.
func maxAxisScale(m *[16]float32) float32 {
	var s2 float32
	for c := range 3 {
		x, y, z := m[c*4], m[c*4+1], m[c*4+2]
		s2 = max(s2, x*x+y*y+z*z)
	}
	return math32.Sqrt(s2)
}

func (r *renderer) DrawFullscreen(program FullscreenProgram, inputs ...Texture) error {
	target, blendOff := r.bound()
	r.count(func(st *Stats) { st.FullscreenDraws++ })
	return r.backend.DrawFullscreen(target, program, inputs, blendOff)
}

func (r *renderer) ReadPixels(rt RenderTarget) ([]common.Color, error) {
	if rt == nil {
		rt = r.backend.DefaultTarget()
	}
	return r.backend.ReadPixels(rt.Color())
}

func (r *renderer) ReadDepth(t Texture) ([]float32, error) {
	return r.backend.ReadDepth(t)
}

func (r *renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = Stats{}
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Release() {
	r.backend.Release()
}

// bound returns the bound target (the default framebuffer when none is bound) and whether
// blending is forced off.
func (r *renderer) bound() (RenderTarget, bool) {
	r.mu.Lock()
	target, blendOff := r.target, r.blendMode == BlendModeNone
	r.mu.Unlock()
	if target == nil {
		target = r.backend.DefaultTarget()
	}
	return target, blendOff
}

func (r *renderer) count(fn func(s *Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}
