package peel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
)

// PoolMode selects how many physical layer buffers back the peel loop.
type PoolMode int

const (
	// PoolModeFixed keeps one layer buffer per peel layer. Every layer stays readable after a
	// render, at the cost of N buffers of memory.
	PoolModeFixed PoolMode = iota

	// PoolModePingPong keeps two layer buffers and alternates between them by layer parity.
	PoolModePingPong
)

// String returns the configuration name of the mode.
func (m PoolMode) String() string {
	switch m {
	case PoolModeFixed:
		return "fixed"
	case PoolModePingPong:
		return "pingpong"
	default:
		return fmt.Sprintf("PoolMode(%d)", int(m))
	}
}

// ParsePoolMode parses a mode name as written in configuration files.
//
// Parameters:
//   - s: "fixed", "pingpong" or "ping-pong", case insensitive
//
// Returns:
//   - PoolMode: the parsed mode
//   - error: ErrInvalidConfig for an unknown name
func ParsePoolMode(s string) (PoolMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "":
		return PoolModeFixed, nil
	case "pingpong", "ping-pong", "ping_pong":
		return PoolModePingPong, nil
	default:
		return 0, fmt.Errorf("%w: unknown pool mode %q", ErrInvalidConfig, s)
	}
}

// layerPool is the implementation of the LayerPool interface.
type layerPool struct {
	mu            *sync.Mutex
	device        renderer.Renderer
	mode          PoolMode
	width, height int
	count         int
	layers        []renderer.RenderTarget
	composites    []renderer.RenderTarget
}

// LayerPool owns the layer buffers (color + sampleable depth) and the composite buffers (color
// only) of a peel loop. Every operation that allocates does so before releasing anything, so a
// failed call leaves the previous buffers valid.
type LayerPool interface {
	// Allocate sizes the pool to width x height with count peel layers.
	//
	// Parameters:
	//   - width, height: the buffer size in pixels, both positive
	//   - count: the peel layer count; 0 leaves the pool empty
	//
	// Returns:
	//   - error: ErrInvalidConfig or ErrAllocation
	Allocate(width, height, count int) error

	// Resize reallocates every depth attachment at the new size and resizes color attachments
	// in place. Contents are undefined afterwards.
	//
	// Parameters:
	//   - width, height: the new size, both positive
	//
	// Returns:
	//   - error: ErrInvalidConfig or ErrAllocation
	Resize(width, height int) error

	// SetCount grows or shrinks the layer count, releasing buffers that are no longer used.
	//
	// Parameters:
	//   - n: the new layer count, not negative
	//
	// Returns:
	//   - error: ErrInvalidConfig or ErrAllocation
	SetCount(n int) error

	// Layer returns the buffer layer i renders into, or nil if i is out of range.
	//
	// Parameters:
	//   - i: the peel iteration
	//
	// Returns:
	//   - renderer.RenderTarget: the layer buffer
	Layer(i int) renderer.RenderTarget

	// Composite returns the composite buffer written by iteration i, or nil for an empty pool.
	//
	// Parameters:
	//   - i: the peel iteration
	//
	// Returns:
	//   - renderer.RenderTarget: the composite buffer
	Composite(i int) renderer.RenderTarget

	// Count returns the peel layer count.
	Count() int

	// Buffers returns the number of physical layer buffers.
	Buffers() int

	// Size returns the buffer size in pixels, or (0, 0) before the first Allocate.
	Size() (int, int)

	// Mode returns the pool mode.
	Mode() PoolMode

	// Release frees every buffer. The pool can be allocated again afterwards.
	Release()
}

var _ LayerPool = &layerPool{}

// NewLayerPool creates an empty pool whose buffers are created on device.
//
// Parameters:
//   - device: the renderer that creates the buffers
//   - mode: the pool mode
//
// Returns:
//   - LayerPool: the new pool
func NewLayerPool(device renderer.Renderer, mode PoolMode) LayerPool {
	if device == nil {
		panic("peel: layer pool requires a renderer")
	}
	return &layerPool{
		mu:     &sync.Mutex{},
		device: device,
		mode:   mode,
	}
}

// physical returns the number of layer buffers and composite buffers backing count layers.
func (p *layerPool) physical(count int) (layers, composites int) {
	layers = count
	if p.mode == PoolModePingPong {
		layers = min(count, 2)
	}
	return layers, min(count, 2)
}

func (p *layerPool) Allocate(width, height, count int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: buffer size %dx%d", ErrInvalidConfig, width, height)
	}
	if count < 0 {
		return fmt.Errorf("%w: layer count %d", ErrInvalidConfig, count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.width == 0 {
		p.width, p.height = width, height
	} else if p.width != width || p.height != height {
		if err := p.resize(width, height); err != nil {
			return err
		}
	}
	return p.setCount(count)
}

func (p *layerPool) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: buffer size %dx%d", ErrInvalidConfig, width, height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.width == width && p.height == height {
		return nil
	}
	return p.resize(width, height)
}

// resize swaps in new depth textures and resizes color attachments, rolling back on failure.
func (p *layerPool) resize(width, height int) error {
	depths := make([]renderer.Texture, 0, len(p.layers))
	releaseDepths := func() {
		for _, d := range depths {
			d.Release()
		}
	}
	for i := range p.layers {
		d, err := p.device.CreateDepthTexture(fmt.Sprintf("peel layer %d depth", i), width, height)
		if err != nil {
			releaseDepths()
			return fmt.Errorf("%w: layer %d depth at %dx%d: %w", ErrAllocation, i, width, height, err)
		}
		depths = append(depths, d)
	}

	targets := append(append([]renderer.RenderTarget(nil), p.layers...), p.composites...)
	for i, t := range targets {
		if err := t.Resize(width, height); err != nil {
			releaseDepths()
			for _, done := range targets[:i] {
				if rerr := done.Resize(p.width, p.height); rerr != nil {
					Logger().Warn("peel buffer rollback failed", "target", done.Label(), "error", rerr)
				}
			}
			return fmt.Errorf("%w: %s color at %dx%d: %w", ErrAllocation, t.Label(), width, height, err)
		}
	}

	for i, t := range p.layers {
		if old := t.SetDepth(depths[i]); old != nil {
			old.Release()
		}
	}
	Logger().Debug("peel buffers resized", "from_width", p.width, "from_height", p.height, "width", width, "height", height)
	p.width, p.height = width, height
	return nil
}

func (p *layerPool) SetCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: layer count %d", ErrInvalidConfig, n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setCount(n)
}

func (p *layerPool) setCount(n int) error {
	if p.width == 0 {
		p.count = n
		return nil
	}
	wantLayers, wantComposites := p.physical(n)

	var created []renderer.RenderTarget
	fail := func(err error) error {
		for _, t := range created {
			t.Release()
		}
		return fmt.Errorf("%w: %d layers at %dx%d: %w", ErrAllocation, n, p.width, p.height, err)
	}
	var newLayers, newComposites []renderer.RenderTarget
	for i := len(p.layers); i < wantLayers; i++ {
		rt, err := p.device.CreateRenderTarget(fmt.Sprintf("peel layer %d", i), p.width, p.height, true)
		if err != nil {
			return fail(err)
		}
		created = append(created, rt)
		newLayers = append(newLayers, rt)
	}
	for i := len(p.composites); i < wantComposites; i++ {
		rt, err := p.device.CreateRenderTarget(fmt.Sprintf("peel composite %d", i), p.width, p.height, false)
		if err != nil {
			return fail(err)
		}
		created = append(created, rt)
		newComposites = append(newComposites, rt)
	}

	p.layers = shrink(append(p.layers, newLayers...), wantLayers)
	p.composites = shrink(append(p.composites, newComposites...), wantComposites)
	if n != p.count {
		Logger().Debug("peel layer count changed", "from", p.count, "to", n, "buffers", len(p.layers), "mode", p.mode)
	}
	p.count = n
	return nil
}

// shrink releases the targets past n and returns the first n.
func shrink(targets []renderer.RenderTarget, n int) []renderer.RenderTarget {
	for _, t := range targets[n:] {
		t.Release()
	}
	return targets[:n:n]
}

func (p *layerPool) Layer(i int) renderer.RenderTarget {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= p.count || len(p.layers) == 0 {
		return nil
	}
	return p.layers[i%len(p.layers)]
}

func (p *layerPool) Composite(i int) renderer.RenderTarget {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || len(p.composites) == 0 {
		return nil
	}
	return p.composites[i%len(p.composites)]
}

func (p *layerPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *layerPool) Buffers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.layers)
}

func (p *layerPool) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *layerPool) Mode() PoolMode {
	return p.mode
}

func (p *layerPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.layers {
		t.Release()
	}
	for _, t := range p.composites {
		t.Release()
	}
	p.layers, p.composites = nil, nil
	p.width, p.height = 0, 0
}
