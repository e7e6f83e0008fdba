package renderer

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// fullscreenVertexSource is the passthrough vertex stage shared by every full-screen program:
// one oversized triangle generated from the vertex index.
//
//go:embed assets/fullscreen_vertex.wgsl
var fullscreenVertexSource string

// PixelFunc is the CPU form of a full-screen fragment program. It receives the window pixel
// and the input textures' texels at that pixel (transparent black for absent inputs) and
// returns the color to write.
type PixelFunc func(x, y int, inputs []common.Color) common.Color

// FullscreenProgram is a full-screen pass: a WGSL fragment stage for GPU devices and its CPU
// counterpart for the software device. Input texture i is bound to @group(0) @binding(i) as a
// texture_2d<f32> and read with textureLoad at the fragment's pixel.
type FullscreenProgram struct {
	// Name identifies the program for pipeline caching.
	Name string

	// Fragment is the WGSL fragment stage.
	Fragment shader.Shader

	// Pixel is the CPU implementation of Fragment.
	Pixel PixelFunc
}

var fullscreenVertex = func() shader.Shader {
	s, err := shader.NewShaderFromSource("fullscreen_vertex", shader.ShaderTypeVertex, fullscreenVertexSource)
	if err != nil {
		panic(err)
	}
	return s
}()

// FullscreenVertexShader returns the passthrough vertex stage used by full-screen programs.
//
// Returns:
//   - shader.Shader: the vertex shader
func FullscreenVertexShader() shader.Shader {
	return fullscreenVertex
}
