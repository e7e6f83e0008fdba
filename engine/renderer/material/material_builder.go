package material

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the straight-alpha RGBA base color of the material.
//
// Parameters:
//   - color: the base color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color common.Color) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithBlending is an option builder that sets the blend mode of the material.
//
// Parameters:
//   - mode: the blend mode
//
// Returns:
//   - MaterialBuilderOption: a function that applies the blend mode option to a material
func WithBlending(mode BlendMode) MaterialBuilderOption {
	return func(m *material) {
		m.blending = mode
	}
}

// WithDepthWrite is an option builder that enables or disables depth writes.
// Transparent materials commonly disable depth writes when drawn without peeling.
//
// Parameters:
//   - enabled: true to write depth
//
// Returns:
//   - MaterialBuilderOption: a function that applies the depth write option to a material
func WithDepthWrite(enabled bool) MaterialBuilderOption {
	return func(m *material) {
		m.depthWrite = enabled
	}
}

// WithDepthTest is an option builder that enables or disables depth testing.
//
// Parameters:
//   - enabled: true to depth test
//
// Returns:
//   - MaterialBuilderOption: a function that applies the depth test option to a material
func WithDepthTest(enabled bool) MaterialBuilderOption {
	return func(m *material) {
		m.depthTest = enabled
	}
}

// WithFragmentShader is an option builder that replaces the default unlit fragment shader.
//
// Parameters:
//   - s: the annotated fragment shader
//
// Returns:
//   - MaterialBuilderOption: a function that applies the fragment shader option to a material
func WithFragmentShader(s shader.Shader) MaterialBuilderOption {
	return func(m *material) {
		m.fragment = s
	}
}
