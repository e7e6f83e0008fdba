package renderer

import (
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSize = 8

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	opts := append([]RendererBuilderOption{WithSize(testSize, testSize), WithWorkers(2)}, options...)
	r := NewRenderer(BackendTypeSoftware, opts...)
	t.Cleanup(r.Release)
	return r
}

// fullscreenQuad returns a quad at depth z large enough to cover the view of testCamera.
func fullscreenQuad(name string, z float32, mat material.Material) game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithName(name),
		game_object.WithModel(model.NewQuad(name, 20, 20, common.RGBA(1, 1, 1, 1))),
		game_object.WithMaterial(mat),
		game_object.WithPosition(0, 0, z),
	)
}

func testCamera() camera.Camera {
	return camera.NewCamera(camera.WithPosition(0, 0, 5), camera.WithAspect(1))
}

func assertAllPixels(t *testing.T, pixels []common.Color, want common.Color, tolerance float32) {
	t.Helper()
	require.Len(t, pixels, testSize*testSize)
	for i, p := range pixels {
		if !assert.Truef(t, p.ApproxEqual(want, tolerance), "pixel %d: got %+v, want %+v", i, p, want) {
			return
		}
	}
}

func TestClearDefaultFramebuffer(t *testing.T) {
	r := newTestRenderer(t, WithClearColor(common.RGBA(0.5, 0.25, 1, 1)))

	require.NoError(t, r.Clear())
	pixels, err := r.ReadPixels(nil)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(0.5, 0.25, 1, 1), 1.0/255)
}

func TestClearResetsDepth(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)

	r.SetRenderTarget(rt)
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(
		fullscreenQuad("q", 0, material.NewMaterial()),
	)), testCamera()))

	depth, err := r.ReadDepth(rt.Depth())
	require.NoError(t, err)
	assert.Less(t, depth[0], float32(1))

	require.NoError(t, r.Clear())
	depth, err = r.ReadDepth(rt.Depth())
	require.NoError(t, err)
	for _, d := range depth {
		assert.Equal(t, float32(1), d)
	}
}

func TestDrawOpaqueQuad(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	red := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 0, 0, 1)))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(fullscreenQuad("q", 0, red))), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(1, 0, 0, 1), 1e-6)
}

func TestDepthTestKeepsNearest(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	near := fullscreenQuad("near", 1, material.NewMaterial(material.WithBaseColor(common.RGBA(0, 1, 0, 1))))
	far := fullscreenQuad("far", 0, material.NewMaterial(material.WithBaseColor(common.RGBA(1, 0, 0, 1))))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(near, far)), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(0, 1, 0, 1), 1e-6)
}

func TestBlendNormalComposesOver(t *testing.T) {
	r := newTestRenderer(t, WithClearColor(common.RGBA(0, 0, 1, 1)))
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	glass := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 0, 0, 0.5)))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(fullscreenQuad("q", 0, glass))), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(0.5, 0, 0.5, 1), 1e-5)
}

func TestBlendOverMatchesPipelineBlendState(t *testing.T) {
	src := common.RGBA(1, 0, 0, 0.5)
	assert.Equal(t, common.RGBA(0.5, 0, 0, 0.5), blendOver(src, common.Transparent))
	assert.Equal(t, common.RGBA(0.5, 0, 0.5, 1), blendOver(src, common.RGBA(0, 0, 1, 1)))
}

func TestFlatColorIsExactUnderPerspective(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	want := common.RGBA(0.25, 0.5, 1, 1)
	tilted := game_object.NewGameObject(
		game_object.WithName("tilted"),
		game_object.WithModel(model.NewQuad("tilted", 6, 6, common.RGBA(1, 1, 1, 1))),
		game_object.WithMaterial(material.NewMaterial(material.WithBaseColor(want))),
		game_object.WithRotation(0.3, 0.2, 0),
	)
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(tilted)), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	covered := 0
	for i, p := range pixels {
		if p == common.Transparent {
			continue
		}
		covered++
		assert.Equal(t, want, p, "pixel %d", i)
	}
	assert.Positive(t, covered)
}

func TestShadedColorIsClamped(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	bright := game_object.NewGameObject(
		game_object.WithName("bright"),
		game_object.WithModel(model.NewQuad("bright", 20, 20, common.RGBA(2, 3, -1, 4))),
		game_object.WithMaterial(material.NewMaterial()),
	)
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(bright)), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(1, 1, 0, 1), 0)
}

func TestDrawSceneCullsOutsideFrustum(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	red := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 0, 0, 1)))
	green := material.NewMaterial(material.WithBaseColor(common.RGBA(0, 1, 0, 1)))
	aside := fullscreenQuad("aside", 0, green)
	aside.SetPosition(30, 0, 0)
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(
		fullscreenQuad("visible", 0, red),
		fullscreenQuad("behind", 40, green),
		aside,
	)), testCamera()))

	assert.Equal(t, 2, r.Stats().CulledObjects)
	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(1, 0, 0, 1), 0)
}

func TestSharedEdgeIsCoveredOnce(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, false)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	glass := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 1, 1, 0.5)))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(fullscreenQuad("q", 0, glass))), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	for i, p := range pixels {
		assert.InDeltaf(t, 0.5, p.A, 1e-5, "pixel %d", i)
	}
}

func TestBlendModeNoneOverwrites(t *testing.T) {
	r := newTestRenderer(t, WithClearColor(common.RGBA(0, 0, 1, 1)))
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())
	r.SetBlendMode(BlendModeNone)

	glass := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 0, 0, 0.5)))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(fullscreenQuad("q", 0, glass))), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(1, 0, 0, 0.5), 1e-6)
}

func TestHookDiscardsFragments(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	mat := material.NewMaterial(material.WithBaseColor(common.RGBA(1, 1, 1, 1)))
	require.NoError(t, mat.AddHook(shader.Hook{
		Name:     "before_output",
		Function: "left_half",
		Fragment: func(frag *shader.Fragment) bool {
			return frag.X < testSize/2
		},
	}))
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(fullscreenQuad("q", 0, mat))), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	for y := 0; y < testSize; y++ {
		for x := 0; x < testSize; x++ {
			p := pixels[y*testSize+x]
			if x < testSize/2 {
				assert.Equal(t, float32(1), p.A, "pixel %d,%d", x, y)
			} else {
				assert.Equal(t, common.Transparent, p, "pixel %d,%d", x, y)
			}
		}
	}

	depth, err := r.ReadDepth(rt.Depth())
	require.NoError(t, err)
	assert.Equal(t, float32(1), depth[testSize-1])
}

func TestDisabledObjectsAreNotDrawn(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)
	r.SetRenderTarget(rt)
	require.NoError(t, r.Clear())

	q := fullscreenQuad("q", 0, material.NewMaterial())
	q.SetEnabled(false)
	require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(q)), testCamera()))

	pixels, err := r.ReadPixels(rt)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.Transparent, 0)
}

func TestBandCountDoesNotChangeOutput(t *testing.T) {
	draw := func(workers int) []common.Color {
		r := newTestRenderer(t, WithWorkers(workers))
		rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
		require.NoError(t, err)
		r.SetRenderTarget(rt)
		require.NoError(t, r.Clear())

		box := game_object.NewGameObject(
			game_object.WithModel(model.NewBox("box", 2, 2, 2, common.RGBA(0.2, 0.6, 0.9, 0.7))),
			game_object.WithMaterial(material.NewMaterial()),
			game_object.WithRotation(0.4, 0.7, 0),
		)
		require.NoError(t, r.DrawScene(scene.NewScene("s", scene.WithObjects(box)), testCamera()))
		pixels, err := r.ReadPixels(rt)
		require.NoError(t, err)
		return pixels
	}

	assert.Equal(t, draw(1), draw(4))
}

func TestDrawFullscreen(t *testing.T) {
	r := newTestRenderer(t)
	src, err := r.CreateRenderTarget("src", testSize, testSize, false)
	require.NoError(t, err)
	dst, err := r.CreateRenderTarget("dst", testSize, testSize, false)
	require.NoError(t, err)

	r.SetRenderTarget(src)
	r.SetClearColor(common.RGBA(0.25, 0.5, 0.75, 1))
	require.NoError(t, r.Clear())

	var sawNil atomic.Bool
	program := FullscreenProgram{
		Name: "copy",
		Pixel: func(x, y int, inputs []common.Color) common.Color {
			if inputs[1] == common.Transparent {
				sawNil.Store(true)
			}
			return inputs[0]
		},
	}

	r.SetRenderTarget(dst)
	r.SetClearColor(common.Transparent)
	require.NoError(t, r.Clear())
	r.SetBlendMode(BlendModeNone)
	require.NoError(t, r.DrawFullscreen(program, src.Color(), nil))

	pixels, err := r.ReadPixels(dst)
	require.NoError(t, err)
	assertAllPixels(t, pixels, common.RGBA(0.25, 0.5, 0.75, 1), 0)
	assert.True(t, sawNil.Load())
}

func TestMemoryBudget(t *testing.T) {
	// default framebuffer: 8*8*4 color + 8*8*4 depth = 512 bytes
	r := newTestRenderer(t, WithMemoryBudget(512+testSize*testSize*16))

	rt, err := r.CreateRenderTarget("fits", testSize, testSize, false)
	require.NoError(t, err)

	_, err = r.CreateDepthTexture("too much", testSize, testSize)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	rt.Release()
	d, err := r.CreateDepthTexture("fits now", testSize, testSize)
	require.NoError(t, err)
	assert.Equal(t, TextureFormatDepth32Float, d.Format())
}

func TestResizeOverBudgetKeepsTexture(t *testing.T) {
	r := newTestRenderer(t, WithMemoryBudget(512+testSize*testSize*16))
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, false)
	require.NoError(t, err)

	err = rt.Resize(testSize*2, testSize*2)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, testSize, rt.Width())

	require.NoError(t, r.Clear())
}

func TestReleasedTextureIsRejected(t *testing.T) {
	r := newTestRenderer(t)
	d, err := r.CreateDepthTexture("gone", testSize, testSize)
	require.NoError(t, err)
	d.Release()
	d.Release()

	_, err = r.ReadDepth(d)
	assert.ErrorIs(t, err, ErrReleased)
	assert.True(t, d.Released())
}

func TestSentinelDepthTexture(t *testing.T) {
	r := newTestRenderer(t)
	s, err := r.CreateSentinelDepthTexture(0)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Width())
	assert.Equal(t, 1, s.Height())
	depth, err := r.ReadDepth(s)
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, depth)
	assert.Equal(t, float32(0), s.(DepthSampler).DepthAt(0, 0))
}

func TestStatsAndDeviceState(t *testing.T) {
	r := newTestRenderer(t)
	rt, err := r.CreateRenderTarget("layer", testSize, testSize, true)
	require.NoError(t, err)

	assert.Nil(t, r.RenderTarget())
	r.SetRenderTarget(rt)
	assert.Equal(t, rt, r.RenderTarget())
	r.SetBlendMode(BlendModeNone)
	assert.Equal(t, BlendModeNone, r.BlendMode())

	require.NoError(t, r.Clear())
	require.NoError(t, r.DrawScene(scene.NewScene("empty"), testCamera()))
	require.NoError(t, r.DrawFullscreen(FullscreenProgram{Pixel: func(int, int, []common.Color) common.Color {
		return common.Transparent
	}}))

	s := r.Stats()
	assert.Equal(t, Stats{SceneDraws: 1, FullscreenDraws: 1, Clears: 1, TexturesCreated: 2}, s)
	r.ResetStats()
	assert.Equal(t, Stats{}, r.Stats())
}

func TestResizeDefaultFramebuffer(t *testing.T) {
	r := newTestRenderer(t)
	r.Resize(4, 2)

	w, h := r.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
	pixels, err := r.ReadPixels(nil)
	require.NoError(t, err)
	assert.Len(t, pixels, 8)
}
