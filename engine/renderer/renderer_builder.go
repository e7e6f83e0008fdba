package renderer

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Surface is the presentation target of the wgpu backend. window.Window satisfies it.
type Surface interface {
	// SurfaceDescriptor returns the platform surface descriptor.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width returns the surface width in device pixels.
	Width() int

	// Height returns the surface height in device pixels.
	Height() int
}

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithSurface attaches the surface the wgpu backend presents to, typically a window.Window.
// The default framebuffer takes the surface's size.
//
// Parameters:
//   - s: the surface
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithSurface(s Surface) RendererBuilderOption {
	return func(r *renderer) {
		r.surface = s
	}
}

// WithSize sets the initial default framebuffer size in device pixels. Ignored by the wgpu
// backend, which follows its window.
//
// Parameters:
//   - width, height: the size
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithPixelRatio sets the number of device pixels per logical pixel.
//
// Parameters:
//   - ratio: the pixel ratio
//
// Returns:
//   - RendererBuilderOption: a function that applies the pixel ratio option to a renderer
func WithPixelRatio(ratio float32) RendererBuilderOption {
	return func(r *renderer) {
		if ratio > 0 {
			r.pixelRatio = ratio
		}
	}
}

// WithClearColor sets the initial clear color.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(c common.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithWorkers sets the number of band workers used by the software backend.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - RendererBuilderOption: a function that applies the workers option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = max(n, 1)
	}
}

// WithMemoryBudget caps the bytes of texture memory the software backend may hold.
// Allocations past the budget fail with ErrOutOfMemory. Zero means unlimited.
//
// Parameters:
//   - bytes: the budget
//
// Returns:
//   - RendererBuilderOption: a function that applies the budget option to a renderer
func WithMemoryBudget(bytes int64) RendererBuilderOption {
	return func(r *renderer) {
		r.memoryBudget = bytes
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithForceFallbackAdapter(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
