package peel

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noHookFragment = `//@oxy:include vertex
//@oxy:include material
//@oxy:group 1 0 uniform material material

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return material.base_color * in.color;
}
`

const customHookFragment = `//@oxy:include vertex
//@oxy:include material
//@oxy:group 1 0 uniform material material

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    //@oxy:hook late in.clip_position
    return material.base_color * in.color;
}
`

func fragmentShader(t *testing.T, key, source string) shader.Shader {
	t.Helper()
	s, err := shader.NewShaderFromSource(key, shader.ShaderTypeFragment, source)
	require.NoError(t, err)
	return s
}

func TestInjectCachesPerSourceMaterial(t *testing.T) {
	inj := NewInjector(NewUniforms(DefaultEpsilon))
	src := material.NewMaterial(material.WithName("glass"), material.WithBaseColor(green))

	first, err := inj.Inject(src)
	require.NoError(t, err)
	second, err := inj.Inject(src)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, inj.Len())
	assert.NotEqual(t, src.ID(), first.ID())
	assert.Equal(t, green, first.BaseColor())

	assert.Equal(t, material.BlendNormal, src.Blending())
	assert.Empty(t, src.Hooks())
	assert.Equal(t, material.BlendNone, first.Blending())
	require.Len(t, first.Hooks(), 1)
	assert.Equal(t, shader.HookBeforeOutput, first.Hooks()[0].Name)
	assert.Same(t, inj.Uniforms(), first.Hooks()[0].Binding)

	other, err := inj.Inject(material.NewMaterial(material.WithName("smoke")))
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, inj.Len())

	inj.Reset()
	assert.Equal(t, 0, inj.Len())
}

func TestInjectedShaderCompiles(t *testing.T) {
	inj := NewInjector(NewUniforms(DefaultEpsilon), WithValidation(false))
	m, err := inj.Inject(material.NewMaterial())
	require.NoError(t, err)

	_, err = renderer.ValidateMaterial(m)
	assert.NoError(t, err)
}

func TestInjectRejectsMissingHookSite(t *testing.T) {
	inj := NewInjector(NewUniforms(DefaultEpsilon))
	src := material.NewMaterial(
		material.WithName("plain"),
		material.WithFragmentShader(fragmentShader(t, "no_hook", noHookFragment)),
	)

	_, err := inj.Inject(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjection)
	assert.ErrorIs(t, err, shader.ErrHookNotFound)
	assert.Equal(t, 0, inj.Len())
}

func TestInjectCustomHookSite(t *testing.T) {
	src := material.NewMaterial(material.WithFragmentShader(fragmentShader(t, "custom_hook", customHookFragment)))

	_, err := NewInjector(NewUniforms(DefaultEpsilon)).Inject(src)
	assert.ErrorIs(t, err, shader.ErrHookNotFound)

	m, err := NewInjector(NewUniforms(DefaultEpsilon), WithHookSite("late")).Inject(src)
	require.NoError(t, err)
	require.Len(t, m.Hooks(), 1)
	assert.Equal(t, "late", m.Hooks()[0].Name)
}

func TestUniformBytesLayout(t *testing.T) {
	u := NewUniforms(0.25)
	u.SetScreenSize(4, 8)

	buf := u.UniformBytes()
	require.Len(t, buf, 16)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(0.25), f(0))
	assert.Equal(t, float32(0.125), f(4))
	assert.Equal(t, float32(0.25), f(8))
	assert.Equal(t, uint32(renderer.HookGroup), u.Group())
}

func TestUniformsClampEpsilon(t *testing.T) {
	u := NewUniforms(-1)
	assert.Equal(t, float32(0), u.Epsilon())
	u.SetEpsilon(0.5)
	assert.Equal(t, float32(0.5), u.Epsilon())
	u.SetEpsilon(-0.5)
	assert.Equal(t, float32(0), u.Epsilon())
}

func TestUniformsTextureUnset(t *testing.T) {
	u := NewUniforms(DefaultEpsilon)
	assert.Nil(t, u.Texture())
	assert.False(t, u.Occluded(0.5, 0.5, 0.5))
}

func TestOccludedAgainstSentinel(t *testing.T) {
	device := newTestDevice(t)
	sentinel, err := device.CreateSentinelDepthTexture(0)
	require.NoError(t, err)

	u := NewUniforms(DefaultEpsilon)
	u.SetScreenSize(testSize, testSize)
	u.SetPreviousDepth(sentinel)

	assert.Same(t, sentinel, u.Texture())
	assert.False(t, u.Occluded(0.5, 0.5, 0.5))
	assert.False(t, u.Occluded(7.5, 7.5, 1e-3))
	assert.True(t, u.Occluded(3.5, 3.5, 1e-6), "within epsilon of the sentinel")
}

func TestOccludedAgainstPreviousLayer(t *testing.T) {
	device := newTestDevice(t)
	prev, err := device.CreateSentinelDepthTexture(0.5)
	require.NoError(t, err)

	u := NewUniforms(DefaultEpsilon)
	u.SetScreenSize(testSize, testSize)
	u.SetPreviousDepth(prev)

	assert.True(t, u.Occluded(1.5, 1.5, 0.25), "in front of the previous layer")
	assert.True(t, u.Occluded(1.5, 1.5, 0.5), "on the previous layer")
	assert.False(t, u.Occluded(1.5, 1.5, 0.6), "behind the previous layer")

	u.SetEpsilon(0.2)
	assert.True(t, u.Occluded(1.5, 1.5, 0.6), "inside a wide epsilon")
}

func TestHookDiscardsOccludedFragments(t *testing.T) {
	device := newTestDevice(t)
	prev, err := device.CreateSentinelDepthTexture(0.5)
	require.NoError(t, err)

	u := NewUniforms(0)
	u.SetScreenSize(testSize, testSize)
	u.SetPreviousDepth(prev)
	hook := u.Hook()

	assert.Equal(t, occlusionFunction, hook.Function)
	assert.Contains(t, hook.Declarations, "texture_depth_2d")
	assert.False(t, hook.Fragment(&shader.Fragment{X: 0.5, Y: 0.5, Depth: 0.4, Color: common.RGBA(1, 1, 1, 1)}))
	assert.True(t, hook.Fragment(&shader.Fragment{X: 0.5, Y: 0.5, Depth: 0.9, Color: common.RGBA(1, 1, 1, 1)}))
}

func TestUniformsAccessors(t *testing.T) {
	u := NewUniforms(DefaultEpsilon)
	u.SetScreenSize(4, 2)
	assert.Equal(t, [2]float32{0.25, 0.5}, u.ReciprocalScreenSize())

	device := newTestDevice(t)
	depth, err := device.CreateDepthTexture("prev", 4, 2)
	require.NoError(t, err)
	u.SetPreviousDepth(depth)
	assert.Same(t, depth, u.PreviousDepth())
	assert.Same(t, depth, u.Texture())
}
