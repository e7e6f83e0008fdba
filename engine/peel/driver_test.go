package peel

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDriverDefaults(t *testing.T) {
	d := newTestDriver(t)
	assert.Equal(t, DefaultPeelDepth, d.PeelDepth())
	assert.Equal(t, DefaultEpsilon, d.Epsilon())
	assert.Equal(t, PoolModeFixed, d.PoolMode())
	assert.True(t, d.Enabled())
	assert.Equal(t, StateIdle, d.State())
}

func TestNewDriverPanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() { NewDriver(WithPeelDepth(0)) })
	assert.Panics(t, func() { NewDriver(WithEpsilon(-1)) })
	assert.Panics(t, func() { NewDriver(WithSize(4, 0)) })
	assert.Panics(t, func() { NewDriver(WithPixelScale(0)) })
	assert.Panics(t, func() { NewDriver(WithPoolMode(PoolMode(7))) })
}

func TestDriverSettersValidate(t *testing.T) {
	d := newTestDriver(t)

	assert.ErrorIs(t, d.SetPeelDepth(0), ErrInvalidConfig)
	assert.ErrorIs(t, d.SetPeelDepth(-3), ErrInvalidConfig)
	assert.Equal(t, DefaultPeelDepth, d.PeelDepth())
	require.NoError(t, d.SetPeelDepth(7))
	assert.Equal(t, 7, d.PeelDepth())

	assert.ErrorIs(t, d.Resize(0, 4, 1), ErrInvalidConfig)
	assert.ErrorIs(t, d.Resize(4, 4, 0), ErrInvalidConfig)
	assert.ErrorIs(t, d.SetEpsilon(-0.1), ErrInvalidConfig)
	require.NoError(t, d.SetEpsilon(0))
	assert.Equal(t, float32(0), d.Epsilon())
}

func TestRenderBeforePrepare(t *testing.T) {
	d := newTestDriver(t)
	_, err := d.Render(newTestDevice(t), testCamera(), OutputInternal())
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestPrepareIsIdempotent(t *testing.T) {
	d := newTestDriver(t)
	src := overlapScene()

	first, err := d.Prepare(src)
	require.NoError(t, err)
	second, err := d.Prepare(src)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, d.Scene())
	assert.Equal(t, src.Count(), first.Count())

	for _, dr := range src.Drawables() {
		assert.Equal(t, material.BlendNormal, dr.Object.Material().Blending())
		assert.Empty(t, dr.Object.Material().Hooks())
	}
	for _, dr := range first.Drawables() {
		assert.Equal(t, material.BlendNone, dr.Object.Material().Blending())
		assert.Len(t, dr.Object.Material().Hooks(), 1)
	}
}

func TestPrepareSharesPeelMaterials(t *testing.T) {
	d := newTestDriver(t)
	shared := material.NewMaterial(material.WithBaseColor(green))
	mesh := model.NewQuad("q", 20, 20, common.RGBA(1, 1, 1, 1))
	src := scene.NewScene("shared", scene.WithObjects(
		game_object.NewGameObject(game_object.WithModel(mesh), game_object.WithMaterial(shared)),
		game_object.NewGameObject(game_object.WithModel(mesh), game_object.WithMaterial(shared), game_object.WithPosition(0, 0, 1)),
	))

	cp, err := d.Prepare(src)
	require.NoError(t, err)
	draws := cp.Drawables()
	require.Len(t, draws, 2)
	assert.Same(t, draws[0].Object.Material(), draws[1].Object.Material())
	assert.NotSame(t, shared, draws[0].Object.Material())
}

func TestFirstLayerTransparency(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(1))
	quadColor := common.RGBA(0.2, 0.3, 0.9, 0.6)
	_, err := d.Prepare(scene.NewScene("single", scene.WithObjects(quad("q", 0, quadColor))))
	require.NoError(t, err)

	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Layers)

	pixels := readTarget(t, device, c.Target)
	require.Len(t, pixels, testSize*testSize)
	for _, p := range pixels {
		assert.InDelta(t, quadColor.A, p.A, 1e-6)
	}
	assertAllPixels(t, pixels, quadColor, 1e-5)
}

func TestOcclusionCorrectness(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(3), WithPoolMode(PoolModeFixed))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Layers)

	assertAllPixels(t, readTarget(t, device, d.LayerTarget(0)), green, 1e-6)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(1)), red, 1e-6)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(2)), common.Transparent, 0)
	assert.Nil(t, d.LayerTarget(3))

	assertAllPixels(t, readTarget(t, device, c.Target), UnderBlend(green, red), 1e-5)
}

func TestOcclusionIndependentOfSubmissionOrder(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(2))
	_, err := d.Prepare(scene.NewScene("reversed", scene.WithObjects(
		quad("near", 1, green),
		quad("far", 0, red),
	)))
	require.NoError(t, err)

	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(0)), green, 1e-6)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(1)), red, 1e-6)
	assertAllPixels(t, readTarget(t, device, c.Target), UnderBlend(green, red), 1e-5)
}

func TestPingPongMatchesFixed(t *testing.T) {
	render := func(mode PoolMode) []common.Color {
		device := newTestDevice(t)
		d := newTestDriver(t, WithPeelDepth(4), WithPoolMode(mode))
		_, err := d.Prepare(overlapScene())
		require.NoError(t, err)
		c, err := d.Render(device, testCamera(), OutputInternal())
		require.NoError(t, err)
		return readTarget(t, device, c.Target)
	}

	fixed := render(PoolModeFixed)
	pingPong := render(PoolModePingPong)
	assert.Equal(t, fixed, pingPong)
}

func TestPingPongHasNoLayerTargets(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPoolMode(PoolModePingPong))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)
	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Nil(t, d.LayerTarget(0))
}

func TestLayerCountInvariant(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t)
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	for _, n := range []int{1, 2, 5} {
		require.NoError(t, d.SetPeelDepth(n))
		_, err := d.Render(device, testCamera(), OutputInternal())
		require.NoError(t, err)

		device.ResetStats()
		c, err := d.Render(device, testCamera(), OutputInternal())
		require.NoError(t, err)
		assert.Equal(t, n, c.Layers)
		assert.Equal(t, renderer.Stats{SceneDraws: n, FullscreenDraws: n, Clears: n}, device.Stats(), "peel depth %d", n)
		assert.Equal(t, StateDone, d.State())
		assert.Equal(t, n, d.Layer())
	}
}

func TestSaturationIdempotence(t *testing.T) {
	blue := common.RGBA(0, 0, 1, 1)
	render := func(n int) []common.Color {
		device := newTestDevice(t)
		d := newTestDriver(t, WithPeelDepth(n))
		_, err := d.Prepare(scene.NewScene("saturated", scene.WithObjects(
			quad("far", -1, red),
			quad("mid", 0, green),
			quad("near", 1, blue),
		)))
		require.NoError(t, err)
		c, err := d.Render(device, testCamera(), OutputInternal())
		require.NoError(t, err)
		return readTarget(t, device, c.Target)
	}

	one := render(1)
	assertAllPixels(t, one, blue, 0)
	assert.Equal(t, one, render(2))
	assert.Equal(t, one, render(3))
}

func TestWideEpsilonMergesLayers(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(2), WithEpsilon(0.02))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(1)), common.Transparent, 0)
	assertAllPixels(t, readTarget(t, device, c.Target), green, 1e-5)

	require.NoError(t, d.SetEpsilon(DefaultEpsilon))
	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assertAllPixels(t, readTarget(t, device, d.LayerTarget(1)), red, 1e-6)
}

func TestOutputPolicy(t *testing.T) {
	want := UnderBlend(green, red)

	t.Run("internal", func(t *testing.T) {
		device := newTestDevice(t)
		d := newTestDriver(t, WithPeelDepth(2))
		_, err := d.Prepare(overlapScene())
		require.NoError(t, err)

		c, err := d.Render(device, testCamera(), OutputInternal())
		require.NoError(t, err)
		require.NotNil(t, c.Target)
		assert.Same(t, c.Target.Color(), c.Texture())
		assertAllPixels(t, readTarget(t, device, c.Target), want, 1e-5)
	})

	t.Run("target", func(t *testing.T) {
		device := newTestDevice(t)
		d := newTestDriver(t, WithPeelDepth(2))
		_, err := d.Prepare(overlapScene())
		require.NoError(t, err)
		rt, err := device.CreateRenderTarget("output", testSize, testSize, false)
		require.NoError(t, err)

		c, err := d.Render(device, testCamera(), OutputTo(rt))
		require.NoError(t, err)
		assert.Same(t, rt, c.Target)
		assertAllPixels(t, readTarget(t, device, rt), want, 1e-5)
	})

	t.Run("default", func(t *testing.T) {
		device := newTestDevice(t)
		d := newTestDriver(t, WithPeelDepth(2))
		_, err := d.Prepare(overlapScene())
		require.NoError(t, err)

		c, err := d.Render(device, testCamera(), OutputDefault())
		require.NoError(t, err)
		assert.Nil(t, c.Target)
		assert.Nil(t, c.Texture())
		assertAllPixels(t, readTarget(t, device, nil), want, 1.0/255)
	})

	t.Run("nil target", func(t *testing.T) {
		assert.Equal(t, OutputDefault(), OutputTo(nil))
		assert.Equal(t, OutputInternal(), Output{})
	})
}

func TestRenderRestoresDeviceState(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(2))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	rt, err := device.CreateRenderTarget("caller", testSize, testSize, true)
	require.NoError(t, err)
	clear := common.RGBA(0.1, 0.2, 0.3, 1)
	device.SetRenderTarget(rt)
	device.SetClearColor(clear)
	device.SetBlendMode(renderer.BlendModeMaterial)

	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)

	assert.Same(t, rt, device.RenderTarget())
	assert.Equal(t, clear, device.ClearColor())
	assert.Equal(t, renderer.BlendModeMaterial, device.BlendMode())
}

func TestAllocationFailureIsNotClamped(t *testing.T) {
	device := newTestDevice(t, renderer.WithMemoryBudget(6000))
	d := newTestDriver(t, WithPeelDepth(2))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	layer0 := d.LayerTarget(0)
	require.NotNil(t, layer0)

	clear := common.RGBA(1, 1, 0, 1)
	device.SetClearColor(clear)
	device.SetBlendMode(renderer.BlendModeNone)

	require.NoError(t, d.SetPeelDepth(8))
	_, err = d.Render(device, testCamera(), OutputInternal())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.ErrorIs(t, err, renderer.ErrOutOfMemory)

	assert.Equal(t, 8, d.PeelDepth())
	assert.Equal(t, StateIdle, d.State())
	assert.Nil(t, device.RenderTarget())
	assert.Equal(t, clear, device.ClearColor())
	assert.Equal(t, renderer.BlendModeNone, device.BlendMode())

	assert.Same(t, layer0, d.LayerTarget(0))
	assert.False(t, layer0.Color().Released())
	assert.False(t, layer0.Depth().Released())

	require.NoError(t, d.SetPeelDepth(2))
	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assertAllPixels(t, readTarget(t, device, c.Target), UnderBlend(green, red), 1e-5)
}

func TestResizeRoundTrip(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithPeelDepth(2))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	w, h := d.Size()
	assert.Equal(t, [2]int{0, 0}, [2]int{w, h})

	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	w, h = d.Size()
	assert.Equal(t, [2]int{testSize, testSize}, [2]int{w, h})

	require.NoError(t, d.Resize(3, 2, 2))
	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Equal(t, 6, c.Width)
	assert.Equal(t, 4, c.Height)
	assert.Equal(t, 6, d.LayerTarget(1).Depth().Width())

	require.NoError(t, d.Resize(testSize, testSize, 1))
	c, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	w, h = d.Size()
	assert.Equal(t, [2]int{testSize, testSize}, [2]int{w, h})
	assertAllPixels(t, readTarget(t, device, c.Target), UnderBlend(green, red), 1e-5)
}

func TestDisabledRendersDirectly(t *testing.T) {
	device := newTestDevice(t)
	d := newTestDriver(t, WithEnabled(false))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)

	c, err := d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Layers)
	require.NotNil(t, c.Target)
	assert.Equal(t, renderer.Stats{SceneDraws: 1, Clears: 1, TexturesCreated: 2}, device.Stats())

	// Far red then near green, both blended over by their own materials.
	over := common.RGBA(0.25, 0.5, 0, 0.75)
	assertAllPixels(t, readTarget(t, device, c.Target), over, 1e-5)

	d.SetEnabled(true)
	c, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	assert.Equal(t, DefaultPeelDepth, c.Layers)
}

func TestDispose(t *testing.T) {
	device := newTestDevice(t)
	d := NewDriver(WithPeelDepth(2))
	_, err := d.Prepare(overlapScene())
	require.NoError(t, err)
	_, err = d.Render(device, testCamera(), OutputInternal())
	require.NoError(t, err)
	layer := d.LayerTarget(0)

	d.Dispose()
	d.Dispose()

	assert.True(t, layer.Color().Released())
	assert.True(t, layer.Depth().Released())
	assert.Nil(t, d.Scene())

	_, err = d.Render(device, testCamera(), OutputInternal())
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = d.Prepare(overlapScene())
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestRejectsMissingHookAtPrepare(t *testing.T) {
	d := newTestDriver(t)
	plain := material.NewMaterial(material.WithFragmentShader(fragmentShader(t, "driver_no_hook", noHookFragment)))
	src := scene.NewScene("bad", scene.WithObjects(
		game_object.NewGameObject(
			game_object.WithModel(model.NewQuad("q", 1, 1, common.RGBA(1, 1, 1, 1))),
			game_object.WithMaterial(plain),
		),
	))

	_, err := d.Prepare(src)
	assert.ErrorIs(t, err, ErrInjection)
	assert.Nil(t, d.Scene())
}

func TestDriverInjectorOptions(t *testing.T) {
	src := material.NewMaterial(material.WithFragmentShader(fragmentShader(t, "custom_hook", customHookFragment)))
	s := scene.NewScene("custom", scene.WithObjects(game_object.NewGameObject(
		game_object.WithName("custom"),
		game_object.WithModel(model.NewQuad("custom", 20, 20, common.RGBA(1, 1, 1, 1))),
		game_object.WithMaterial(src),
	)))

	d := newTestDriver(t, WithInjectorOptions(WithHookSite("late")))
	_, err := d.Prepare(s)
	require.NoError(t, err)
}
