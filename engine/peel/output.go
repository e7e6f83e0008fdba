package peel

import "github.com/Carmen-Shannon/oxy-peel/engine/renderer"

type outputKind int

const (
	outputInternal outputKind = iota
	outputDefault
	outputTarget
)

// Output decides where the final composite of a Render goes. The zero value is OutputInternal.
type Output struct {
	kind   outputKind
	target renderer.RenderTarget
}

// OutputTo writes the final composite into rt. A nil rt is the same as OutputDefault.
func OutputTo(rt renderer.RenderTarget) Output {
	if rt == nil {
		return OutputDefault()
	}
	return Output{kind: outputTarget, target: rt}
}

// OutputDefault writes the final composite into the device's default framebuffer.
func OutputDefault() Output {
	return Output{kind: outputDefault}
}

// OutputInternal keeps the final composite in the driver's composite buffers. Read it through
// the returned Composite handle before the next Render.
func OutputInternal() Output {
	return Output{}
}

// String names the output for logs.
func (o Output) String() string {
	switch o.kind {
	case outputDefault:
		return "default framebuffer"
	case outputTarget:
		return o.target.Label()
	default:
		return "internal"
	}
}

// Composite is the handle returned by Render.
type Composite struct {
	// Target holds the final composite, or nil when it was written to the default framebuffer.
	Target renderer.RenderTarget

	// Layers is the number of layers peeled, 0 when the scene was rendered directly.
	Layers int

	// Width and Height are the size of the layer buffers in pixels.
	Width, Height int
}

// Texture returns the color texture holding the composite, or nil for the default framebuffer.
//
// Returns:
//   - renderer.Texture: the composite texture
func (c *Composite) Texture() renderer.Texture {
	if c == nil || c.Target == nil {
		return nil
	}
	return c.Target.Color()
}
