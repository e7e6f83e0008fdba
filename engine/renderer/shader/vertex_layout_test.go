package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayoutFromStructInput(t *testing.T) {
	s, err := NewShaderFromSource("struct_input", ShaderTypeVertex, `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) joint: u32,
};

@vertex
fn vs_main(in: VertexInput, @builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(in.position + vec3<f32>(in.uv, f32(in.joint + index)), 1.0);
}
`)
	require.NoError(t, err)

	layout, err := VertexLayout(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), layout.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layout.StepMode)
	assert.Equal(t, []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatUint32, Offset: 20, ShaderLocation: 2},
	}, layout.Attributes)
}

func TestVertexLayoutFromArguments(t *testing.T) {
	s, err := NewShaderFromSource("args", ShaderTypeVertex, `
@vertex
fn vs_main(@location(3) color: vec4<f32>, @location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, color.a);
}
`)
	require.NoError(t, err)

	layout, err := VertexLayout(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), layout.ArrayStride)
	assert.Equal(t, []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 3},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 0},
	}, layout.Attributes)
}

func TestVertexLayoutWithoutInputs(t *testing.T) {
	s, err := NewShaderFromSource("fullscreen", ShaderTypeVertex, `
@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(index), 0.0, 0.0, 1.0);
}
`)
	require.NoError(t, err)

	_, err = VertexLayout(s)
	assert.ErrorIs(t, err, ErrNoVertexInputs)
}

func TestVertexLayoutRejectsFragmentStage(t *testing.T) {
	s, err := NewShaderFromSource("frag", ShaderTypeFragment, `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`)
	require.NoError(t, err)

	_, err = VertexLayout(s)
	assert.Error(t, err)
}
