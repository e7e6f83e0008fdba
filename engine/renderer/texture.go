package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-peel/common"
)

// TextureFormat is the texel format of a device texture.
type TextureFormat int

const (
	// TextureFormatRGBA8 is 8-bit normalized RGBA, the format of the default framebuffer.
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatRGBA32Float is 32-bit float RGBA, used for offscreen layers and composites.
	TextureFormatRGBA32Float

	// TextureFormatDepth32Float is a 32-bit float depth texture that can be sampled.
	TextureFormatDepth32Float
)

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "rgba8unorm"
	case TextureFormatRGBA32Float:
		return "rgba32float"
	case TextureFormatDepth32Float:
		return "depth32float"
	default:
		return fmt.Sprintf("TextureFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the size of one texel.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth32Float
}

// Texture is a device-owned 2D texture.
type Texture interface {
	// Label returns the debug label.
	Label() string

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Format returns the texel format.
	Format() TextureFormat

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the texture. Releasing twice is a no-op.
	Release()
}

// DepthSampler is implemented by textures whose depth values can be read on the CPU while a
// draw is in progress. Software device textures implement it.
type DepthSampler interface {
	// DepthAt returns the depth stored at texel (x, y).
	DepthAt(x, y int) float32
}

// ColorSampler is implemented by textures whose colors can be read on the CPU while a draw is
// in progress. Software device textures implement it.
type ColorSampler interface {
	// ColorAt returns the color stored at texel (x, y).
	ColorAt(x, y int) common.Color
}

// RenderTarget is a color attachment with an optional depth attachment.
type RenderTarget interface {
	// Label returns the debug label.
	Label() string

	// Width returns the width of the color attachment.
	Width() int

	// Height returns the height of the color attachment.
	Height() int

	// Color returns the color attachment.
	Color() Texture

	// Depth returns the depth attachment, or nil for a color-only target.
	Depth() Texture

	// SetDepth swaps in a new depth attachment and returns the previous one without releasing it.
	//
	// Parameters:
	//   - t: the new depth attachment, or nil to detach
	//
	// Returns:
	//   - Texture: the previous depth attachment
	SetDepth(t Texture) Texture

	// Resize resizes the color attachment in place. The depth attachment is left alone; swap a
	// resized one in with SetDepth.
	//
	// Parameters:
	//   - width, height: the new size
	//
	// Returns:
	//   - error: ErrOutOfMemory if the device cannot hold the new size
	Resize(width, height int) error

	// Release releases both attachments.
	Release()
}

// renderTarget is the backend-independent RenderTarget implementation.
type renderTarget struct {
	label   string
	color   Texture
	depth   Texture
	backend RendererBackend
}

var _ RenderTarget = &renderTarget{}

func (t *renderTarget) Label() string {
	return t.label
}

func (t *renderTarget) Width() int {
	return t.color.Width()
}

func (t *renderTarget) Height() int {
	return t.color.Height()
}

func (t *renderTarget) Color() Texture {
	return t.color
}

func (t *renderTarget) Depth() Texture {
	return t.depth
}

func (t *renderTarget) SetDepth(d Texture) Texture {
	prev := t.depth
	t.depth = d
	return prev
}

func (t *renderTarget) Resize(width, height int) error {
	if t.color.Released() {
		return fmt.Errorf("render target %s: %w", t.label, ErrReleased)
	}
	return t.backend.ResizeTexture(t.color, width, height)
}

func (t *renderTarget) Release() {
	t.color.Release()
	if t.depth != nil {
		t.depth.Release()
	}
}
