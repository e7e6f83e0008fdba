package renderer

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/chewxy/math32"
)

// softwareTexture is a CPU-resident texture. Color formats store float channels; RGBA8 values
// are quantized on write so reads match what an 8-bit GPU target would hold.
type softwareTexture struct {
	label         string
	width, height int
	format        TextureFormat
	color         []common.Color
	depth         []float32
	released      bool
	backend       *softwareRendererBackendImpl
}

var (
	_ Texture      = &softwareTexture{}
	_ DepthSampler = &softwareTexture{}
	_ ColorSampler = &softwareTexture{}
)

func (t *softwareTexture) Label() string {
	return t.label
}

func (t *softwareTexture) Width() int {
	return t.width
}

func (t *softwareTexture) Height() int {
	return t.height
}

func (t *softwareTexture) Format() TextureFormat {
	return t.format
}

func (t *softwareTexture) Released() bool {
	return t.released
}

func (t *softwareTexture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.backend.free(t.bytes())
	t.color = nil
	t.depth = nil
}

func (t *softwareTexture) DepthAt(x, y int) float32 {
	if t.depth == nil {
		return 0
	}
	return t.depth[y*t.width+x]
}

func (t *softwareTexture) ColorAt(x, y int) common.Color {
	if t.color == nil {
		return common.Transparent
	}
	return t.color[y*t.width+x]
}

// bytes returns the nominal device size of the texture.
func (t *softwareTexture) bytes() int64 {
	return int64(t.width) * int64(t.height) * int64(t.format.BytesPerPixel())
}

// store writes c at index i, quantizing for 8-bit formats.
func (t *softwareTexture) store(i int, c common.Color) {
	if t.format == TextureFormatRGBA8 {
		c = quantize8(c)
	}
	t.color[i] = c
}

func quantize8(c common.Color) common.Color {
	q := func(v float32) float32 {
		return math32.Round(common.Clamp(v, 0, 1)*255) / 255
	}
	return common.Color{R: q(c.R), G: q(c.G), B: q(c.B), A: q(c.A)}
}

// softwareRendererBackendImpl is a CPU rasterizer. Draws are split into row bands that run on a
// persistent worker pool and are joined before the draw returns.
type softwareRendererBackendImpl struct {
	mu *sync.Mutex

	budget    int64
	allocated int64

	screen *renderTarget

	pool    worker.DynamicWorkerPool
	workers int
	frames  int
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(workers int, memoryBudget int64) *softwareRendererBackendImpl {
	b := &softwareRendererBackendImpl{
		mu:      &sync.Mutex{},
		budget:  memoryBudget,
		workers: max(workers, 1),
	}
	if b.workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(b.workers, b.workers*4, 1*time.Second)
	}
	return b
}

// reserve claims n bytes of the budget.
func (b *softwareRendererBackendImpl) reserve(n int64, label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.budget > 0 && b.allocated+n > b.budget {
		return fmt.Errorf("texture %s (%d bytes, %d of %d in use): %w", label, n, b.allocated, b.budget, ErrOutOfMemory)
	}
	b.allocated += n
	return nil
}

func (b *softwareRendererBackendImpl) free(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocated -= n
}

func (b *softwareRendererBackendImpl) newTexture(label string, width, height int, format TextureFormat) (*softwareTexture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("texture %s: invalid size %dx%d", label, width, height)
	}
	t := &softwareTexture{label: label, width: width, height: height, format: format, backend: b}
	if err := b.reserve(t.bytes(), label); err != nil {
		return nil, err
	}
	t.alloc()
	return t, nil
}

// alloc allocates storage for the current size. Depth starts at 1, color at transparent black.
func (t *softwareTexture) alloc() {
	n := t.width * t.height
	if t.format.IsDepth() {
		t.color = nil
		t.depth = make([]float32, n)
		for i := range t.depth {
			t.depth[i] = 1
		}
		return
	}
	t.depth = nil
	t.color = make([]common.Color, n)
}

func (b *softwareRendererBackendImpl) CreateTexture(label string, width, height int, format TextureFormat) (Texture, error) {
	return b.newTexture(label, width, height, format)
}

func (b *softwareRendererBackendImpl) FillDepth(t Texture, value float32) error {
	st, err := b.texture(t)
	if err != nil {
		return err
	}
	if !st.format.IsDepth() {
		return fmt.Errorf("texture %s: not a depth texture", st.label)
	}
	for i := range st.depth {
		st.depth[i] = value
	}
	return nil
}

func (b *softwareRendererBackendImpl) ResizeTexture(t Texture, width, height int) error {
	st, err := b.texture(t)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("texture %s: invalid size %dx%d", st.label, width, height)
	}
	if width == st.width && height == st.height {
		return nil
	}
	next := int64(width) * int64(height) * int64(st.format.BytesPerPixel())
	if err := b.reserve(next, st.label); err != nil {
		return err
	}
	b.free(st.bytes())
	st.width, st.height = width, height
	st.alloc()
	return nil
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {
	if b.screen == nil {
		color, err := b.newTexture("default framebuffer", width, height, TextureFormatRGBA8)
		if err != nil {
			panic(fmt.Sprintf("renderer: cannot allocate default framebuffer: %v", err))
		}
		depth, err := b.newTexture("default depth", width, height, TextureFormatDepth32Float)
		if err != nil {
			panic(fmt.Sprintf("renderer: cannot allocate default depth: %v", err))
		}
		b.screen = &renderTarget{label: "default", color: color, depth: depth, backend: b}
		return
	}
	if err := b.ResizeTexture(b.screen.color, width, height); err != nil {
		panic(fmt.Sprintf("renderer: cannot resize default framebuffer: %v", err))
	}
	if err := b.ResizeTexture(b.screen.depth, width, height); err != nil {
		panic(fmt.Sprintf("renderer: cannot resize default depth: %v", err))
	}
}

func (b *softwareRendererBackendImpl) DefaultTarget() RenderTarget {
	return b.screen
}

func (b *softwareRendererBackendImpl) Clear(target RenderTarget, c common.Color) error {
	color, depth, err := b.attachments(target)
	if err != nil {
		return err
	}
	for i := range color.color {
		color.store(i, c)
	}
	if depth != nil {
		for i := range depth.depth {
			depth.depth[i] = 1
		}
	}
	return nil
}

func (b *softwareRendererBackendImpl) ReadPixels(t Texture) ([]common.Color, error) {
	st, err := b.texture(t)
	if err != nil {
		return nil, err
	}
	if st.format.IsDepth() {
		return nil, fmt.Errorf("texture %s: not a color texture", st.label)
	}
	return append([]common.Color(nil), st.color...), nil
}

func (b *softwareRendererBackendImpl) ReadDepth(t Texture) ([]float32, error) {
	st, err := b.texture(t)
	if err != nil {
		return nil, err
	}
	if !st.format.IsDepth() {
		return nil, fmt.Errorf("texture %s: not a depth texture", st.label)
	}
	return append([]float32(nil), st.depth...), nil
}

func (b *softwareRendererBackendImpl) BeginFrame() error {
	return nil
}

func (b *softwareRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
}

func (b *softwareRendererBackendImpl) Release() {
	if b.screen != nil {
		b.screen.Release()
	}
	if b.pool != nil {
		b.pool.Stop()
	}
}

// texture unwraps a Texture created by this backend.
func (b *softwareRendererBackendImpl) texture(t Texture) (*softwareTexture, error) {
	st, ok := t.(*softwareTexture)
	if !ok || st == nil {
		return nil, fmt.Errorf("texture %T was not created by the software backend: %w", t, ErrUnsupported)
	}
	if st.released {
		return nil, fmt.Errorf("texture %s: %w", st.label, ErrReleased)
	}
	return st, nil
}

// attachments unwraps a target's color and optional depth attachments.
func (b *softwareRendererBackendImpl) attachments(target RenderTarget) (*softwareTexture, *softwareTexture, error) {
	color, err := b.texture(target.Color())
	if err != nil {
		return nil, nil, fmt.Errorf("target %s: %w", target.Label(), err)
	}
	if target.Depth() == nil {
		return color, nil, nil
	}
	depth, err := b.texture(target.Depth())
	if err != nil {
		return nil, nil, fmt.Errorf("target %s: %w", target.Label(), err)
	}
	if depth.width != color.width || depth.height != color.height {
		return nil, nil, fmt.Errorf("target %s: depth %dx%d does not match color %dx%d",
			target.Label(), depth.width, depth.height, color.width, color.height)
	}
	return color, depth, nil
}

// runBands splits [0, height) into one band per worker and runs fn on each, returning once
// every band has finished.
func (b *softwareRendererBackendImpl) runBands(height int, fn func(y0, y1 int)) {
	bands := min(b.workers, height)
	if b.pool == nil || bands <= 1 {
		fn(0, height)
		return
	}
	step := (height + bands - 1) / bands
	var wg sync.WaitGroup
	for i := 0; i < bands; i++ {
		y0 := i * step
		y1 := min(y0+step, height)
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				fn(y0, y1)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
