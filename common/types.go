// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// Color is a straight (non-premultiplied) RGBA color with float32 channels in the [0, 1] range.
// It is the pixel type of every color texture, the clear color of a render target, and the
// value compositing operates on.
type Color struct {
	// R, G, B are the color channels.
	R, G, B float32
	// A is the coverage/opacity channel.
	A float32
}

// Transparent is the zero color: transparent black.
var Transparent = Color{}

// RGBA builds a Color from its four channels.
//
// Parameters:
//   - r, g, b: color channels in [0, 1]
//   - a: alpha in [0, 1]
//
// Returns:
//   - Color: the color value
func RGBA(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Array returns the color as a [4]float32 in RGBA order, the layout used by GPU uniforms.
//
// Returns:
//   - [4]float32: the channels in RGBA order
func (c Color) Array() [4]float32 {
	return [4]float32{c.R, c.G, c.B, c.A}
}

// Mul returns the channel-wise product of two colors.
//
// Parameters:
//   - o: the color to multiply with
//
// Returns:
//   - Color: the modulated color
func (c Color) Mul(o Color) Color {
	return Color{R: c.R * o.R, G: c.G * o.G, B: c.B * o.B, A: c.A * o.A}
}

// Clamped returns the color with every channel clamped to [0, 1].
//
// Returns:
//   - Color: the clamped color
func (c Color) Clamped() Color {
	return Color{R: Clamp(c.R, 0, 1), G: Clamp(c.G, 0, 1), B: Clamp(c.B, 0, 1), A: Clamp(c.A, 0, 1)}
}

// ApproxEqual reports whether every channel of c is within tolerance of o.
//
// Parameters:
//   - o: the color to compare against
//   - tolerance: the maximum absolute per-channel difference
//
// Returns:
//   - bool: true if all channels are within tolerance
func (c Color) ApproxEqual(o Color, tolerance float32) bool {
	return math32.Abs(c.R-o.R) <= tolerance &&
		math32.Abs(c.G-o.G) <= tolerance &&
		math32.Abs(c.B-o.B) <= tolerance &&
		math32.Abs(c.A-o.A) <= tolerance
}

// WGPU converts the color into the float64 clear value used by wgpu render pass attachments.
//
// Returns:
//   - wgpu.Color: the clear value
func (c Color) WGPU() wgpu.Color {
	return wgpu.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}

// TextureStagingData holds pixel data for a texture pending GPU upload.
// Used by the wgpu backend to stage sentinel and debug textures before creating the GPU texture.
type TextureStagingData struct {
	// Pixels is the raw texel data, tightly packed rows.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// BytesPerPixel is the texel stride of Pixels (4 for RGBA8 and Depth32Float).
	BytesPerPixel uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}
