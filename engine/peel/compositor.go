package peel

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

//go:embed assets/composite.wgsl
var compositeSource string

// UnderBlend composites src (a farther layer) under dst (the nearer layers accumulated so far).
// Colors are straight alpha on both sides:
//
//	out.a   = src.a - src.a*dst.a + dst.a
//	out.rgb = (dst.a*dst.rgb + (1-dst.a)*src.a*src.rgb) / out.a
//
// The division keeps the stored composite straight alpha, so folding layers one at a time
// matches the closed form sum(c_i*a_i*prod_{j<i}(1-a_j)). Once dst.a reaches 1, src no longer
// contributes. A fully transparent result is transparent black.
//
// Parameters:
//   - dst: the accumulated composite
//   - src: the newly peeled layer
//
// Returns:
//   - common.Color: the new composite
func UnderBlend(dst, src common.Color) common.Color {
	a := src.A - src.A*dst.A + dst.A
	if a <= 0 {
		return common.Transparent
	}
	k := (1 - dst.A) * src.A
	return common.Color{
		R: (dst.A*dst.R + k*src.R) / a,
		G: (dst.A*dst.G + k*src.G) / a,
		B: (dst.A*dst.B + k*src.B) / a,
		A: a,
	}
}

// compositor is the implementation of the Compositor interface.
type compositor struct {
	program renderer.FullscreenProgram
}

// Compositor runs the under-blend as a full-screen pass.
type Compositor interface {
	// Composite writes UnderBlend(accumulated, layer) into dst with device blending disabled.
	// The device's render target and blend mode are restored before returning.
	//
	// Parameters:
	//   - device: the renderer to draw with
	//   - accumulated: the composite so far, or nil on the first layer
	//   - layer: the color of the layer just peeled
	//   - dst: the destination, or nil for the default framebuffer
	//
	// Returns:
	//   - error: the device error, if any
	Composite(device renderer.Renderer, accumulated, layer renderer.Texture, dst renderer.RenderTarget) error

	// Program returns the full-screen program used by Composite.
	Program() renderer.FullscreenProgram
}

var _ Compositor = &compositor{}

// NewCompositor creates a Compositor.
//
// Returns:
//   - Compositor: the new compositor
func NewCompositor() Compositor {
	fs, err := shader.NewShaderFromSource("peel_composite", shader.ShaderTypeFragment, compositeSource)
	if err != nil {
		panic(fmt.Errorf("peel: composite shader: %w", err))
	}
	return &compositor{
		program: renderer.FullscreenProgram{
			Name:     "peel_composite",
			Fragment: fs,
			Pixel: func(_, _ int, inputs []common.Color) common.Color {
				return UnderBlend(inputs[0], inputs[1])
			},
		},
	}
}

func (c *compositor) Composite(device renderer.Renderer, accumulated, layer renderer.Texture, dst renderer.RenderTarget) error {
	prevTarget, prevBlend := device.RenderTarget(), device.BlendMode()
	defer func() {
		device.SetRenderTarget(prevTarget)
		device.SetBlendMode(prevBlend)
	}()

	device.SetRenderTarget(dst)
	device.SetBlendMode(renderer.BlendModeNone)
	if err := device.DrawFullscreen(c.program, accumulated, layer); err != nil {
		return fmt.Errorf("composite into %s: %w", targetLabel(dst), err)
	}
	return nil
}

func (c *compositor) Program() renderer.FullscreenProgram {
	return c.program
}

// targetLabel names a render target in messages, nil being the default framebuffer.
func targetLabel(rt renderer.RenderTarget) string {
	if rt == nil {
		return "default framebuffer"
	}
	return rt.Label()
}
