package renderer

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
)

// RendererBackendType identifies the device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend. Requires a window surface.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU rasterizer. Needs no window and no GPU.
	BackendTypeSoftware
)

// String returns the backend name.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend is the device interface the Renderer delegates to. Every call is
// synchronous with respect to the others: a draw completes (or is queued in order) before the
// next call observes its target.
type RendererBackend interface {
	// CreateTexture allocates a texture. Depth textures are cleared to 1.
	CreateTexture(label string, width, height int, format TextureFormat) (Texture, error)

	// FillDepth sets every texel of a depth texture to value.
	FillDepth(t Texture, value float32) error

	// ResizeTexture reallocates a texture at a new size. Contents are undefined afterwards.
	ResizeTexture(t Texture, width, height int) error

	// ConfigureSurface resizes the default framebuffer.
	ConfigureSurface(width, height int)

	// DefaultTarget returns the default framebuffer as a render target.
	DefaultTarget() RenderTarget

	// Clear fills the target's color with color and its depth (if any) with 1.
	Clear(target RenderTarget, color common.Color) error

	// DrawScene rasterizes the draw list into target. When blendOff is set every material is
	// drawn as if its blending were disabled.
	DrawScene(target RenderTarget, draws []scene.Drawable, cam camera.Camera, blendOff bool) error

	// DrawFullscreen runs a full-screen program over target. Nil inputs read as transparent
	// black. When blendOff is clear the output is blended over the target.
	DrawFullscreen(target RenderTarget, program FullscreenProgram, inputs []Texture, blendOff bool) error

	// ReadPixels copies a color texture back to the CPU, row-major from the top-left texel.
	ReadPixels(t Texture) ([]common.Color, error)

	// ReadDepth copies a depth texture back to the CPU, row-major from the top-left texel.
	ReadDepth(t Texture) ([]float32, error)

	// BeginFrame acquires the default framebuffer for the frame.
	BeginFrame() error

	// Present shows the default framebuffer and ends the frame.
	Present()

	// Release frees every device resource.
	Release()
}
