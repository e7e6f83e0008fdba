package peel

import (
	_ "embed"
	"encoding/binary"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/chewxy/math32"
)

// DefaultEpsilon is the depth margin added to the previous layer's depth before comparing.
// It absorbs depth precision loss between two renders of the same surface.
const DefaultEpsilon float32 = 1e-5

// occlusionSource declares the peel uniform block, the previous-depth texture and the
// occlusion test function spliced in at the before_output hook site.
//
//go:embed assets/peel_occlusion.wgsl
var occlusionSource string

// occlusionFunction is the WGSL function called at the hook site.
const occlusionFunction = "peel_occlusion_test"

// Uniforms is the global peel uniform block shared by every peel material of a Driver. Only
// the Driver writes it; peel materials read it through their hook on every draw.
type Uniforms struct {
	mu         *sync.RWMutex
	reciprocal [2]float32
	epsilon    float32
	prevDepth  renderer.Texture
}

var _ shader.HookBinding = &Uniforms{}

// NewUniforms creates a uniform block with the given epsilon and a 1x1 screen.
//
// Parameters:
//   - epsilon: the depth comparison margin, must not be negative
//
// Returns:
//   - *Uniforms: the uniform block
func NewUniforms(epsilon float32) *Uniforms {
	return &Uniforms{
		mu:         &sync.RWMutex{},
		reciprocal: [2]float32{1, 1},
		epsilon:    max(epsilon, 0),
	}
}

// Group returns the bind group used by the peel declarations.
func (u *Uniforms) Group() uint32 {
	return renderer.HookGroup
}

// UniformBytes returns the 16-byte PeelUniforms block.
func (u *Uniforms) UniformBytes() []byte {
	u.mu.RLock()
	defer u.mu.RUnlock()
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(u.reciprocal[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(u.reciprocal[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(u.epsilon))
	return buf
}

// Texture returns the previous-depth texture, or nil before the first layer is bound.
func (u *Uniforms) Texture() any {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.prevDepth == nil {
		return nil
	}
	return u.prevDepth
}

// Epsilon returns the depth comparison margin.
func (u *Uniforms) Epsilon() float32 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.epsilon
}

// SetEpsilon sets the depth comparison margin. Negative values are clamped to 0.
func (u *Uniforms) SetEpsilon(epsilon float32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.epsilon = max(epsilon, 0)
}

// ReciprocalScreenSize returns (1/width, 1/height) of the layer buffers.
func (u *Uniforms) ReciprocalScreenSize() [2]float32 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.reciprocal
}

// SetScreenSize records the layer buffer size in pixels.
//
// Parameters:
//   - width, height: the buffer size, both positive
func (u *Uniforms) SetScreenSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reciprocal = [2]float32{1 / float32(width), 1 / float32(height)}
}

// PreviousDepth returns the depth texture of the previously peeled layer.
func (u *Uniforms) PreviousDepth() renderer.Texture {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.prevDepth
}

// SetPreviousDepth binds the depth texture that the next layer is peeled against.
func (u *Uniforms) SetPreviousDepth(t renderer.Texture) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prevDepth = t
}

// Occluded is the CPU form of peel_occlusion_test. It reports whether a fragment lies at or in
// front of the previous layer's depth and must be discarded. A previous-depth texture that
// cannot be read on the CPU occludes nothing.
//
// Parameters:
//   - x, y: the window coordinate of the pixel center
//   - z: the fragment depth
//
// Returns:
//   - bool: true if the fragment is discarded
func (u *Uniforms) Occluded(x, y, z float32) bool {
	u.mu.RLock()
	prev, reciprocal, epsilon := u.prevDepth, u.reciprocal, u.epsilon
	u.mu.RUnlock()

	sampler, ok := prev.(renderer.DepthSampler)
	if !ok {
		return false
	}
	w, h := float32(prev.Width()), float32(prev.Height())
	tx := int(math32.Min(x*reciprocal[0]*w, w-1))
	ty := int(math32.Min(y*reciprocal[1]*h, h-1))
	return sampler.DepthAt(tx, ty)+epsilon >= z
}

// Hook returns the before_output hook that performs the occlusion test, bound to u.
func (u *Uniforms) Hook() shader.Hook {
	return shader.Hook{
		Name:         shader.HookBeforeOutput,
		Declarations: occlusionSource,
		Function:     occlusionFunction,
		Fragment: func(frag *shader.Fragment) bool {
			return !u.Occluded(frag.X, frag.Y, frag.Depth)
		},
		Binding: u,
	}
}
