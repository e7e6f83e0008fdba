package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// GPUMaterialUniformSource is the canonical WGSL definition of the MaterialUniform struct.
// Matches GPUMaterialUniform layout exactly (16 bytes).
//
//go:embed assets/material_uniform.wgsl
var GPUMaterialUniformSource string

// unlitFragmentSource is the default fragment stage: base color times vertex color, with a
// before_output hook site so late-stage tests can be spliced in.
//
//go:embed assets/unlit_fragment.wgsl
var unlitFragmentSource string

var (
	defaultFragmentOnce sync.Once
	defaultFragment     shader.Shader
)

// DefaultFragmentShader returns the shared unlit fragment shader used by materials that do
// not supply their own.
//
// Returns:
//   - shader.Shader: the shared unlit fragment shader
func DefaultFragmentShader() shader.Shader {
	defaultFragmentOnce.Do(func() {
		s, err := shader.NewShaderFromSource("unlit_fragment", shader.ShaderTypeFragment, unlitFragmentSource)
		if err != nil {
			panic(err)
		}
		defaultFragment = s
	})
	return defaultFragment
}

// GPUMaterialUniform is the GPU-aligned uniform for the unlit fragment shader.
// Size: 16 bytes (one vec4<f32>).
type GPUMaterialUniform struct {
	BaseColor [4]float32 // offset 0: RGBA base color
}

// Size returns the size of the GPUMaterialUniform struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterialUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUMaterialUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.BaseColor[i]))
	}
	return buf
}
