package engine

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/peel"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(name string, z float32, c common.Color) game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithName(name),
		game_object.WithModel(model.NewQuad(name, 20, 20, common.RGBA(1, 1, 1, 1))),
		game_object.WithMaterial(material.NewMaterial(material.WithName(name), material.WithBaseColor(c))),
		game_object.WithPosition(0, 0, z),
	)
}

func newHeadlessEngine(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(8, 8), renderer.WithWorkers(2))
	t.Cleanup(r.Release)
	d := peel.NewDriver(peel.WithPeelDepth(2))
	t.Cleanup(d.Dispose)
	cam := camera.NewCamera(camera.WithPosition(0, 0, 5), camera.WithAspect(1))

	opts := append([]EngineBuilderOption{WithRenderer(r), WithDriver(d), WithCamera(cam)}, options...)
	return NewEngine(opts...)
}

func overlapScene() scene.Scene {
	return scene.NewScene("overlap", scene.WithObjects(
		quad("far", 0, common.RGBA(1, 0, 0, 0.5)),
		quad("near", 1, common.RGBA(0, 1, 0, 0.5)),
	))
}

func TestFrameRequiresConfiguration(t *testing.T) {
	e := NewEngine()
	_, err := e.Frame(0)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, e.SetScene(overlapScene()), ErrNotConfigured)
}

func TestFrameWithoutSceneFails(t *testing.T) {
	e := newHeadlessEngine(t)
	_, err := e.Frame(0)
	assert.ErrorIs(t, err, peel.ErrNotPrepared)
	assert.Zero(t, e.Frames())
}

func TestFramePresentsComposite(t *testing.T) {
	e := newHeadlessEngine(t, WithProfiling(true))
	require.NoError(t, e.SetScene(overlapScene()))

	var seen float32
	e.SetFrameCallback(func(dt float32) { seen = dt })

	c, err := e.Frame(0.25)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), seen)
	assert.Equal(t, 2, c.Layers)
	assert.Nil(t, c.Target)
	assert.Equal(t, 1, e.Frames())

	want := peel.UnderBlend(common.RGBA(0, 1, 0, 0.5), common.RGBA(1, 0, 0, 0.5))
	pixels, err := e.Renderer().ReadPixels(nil)
	require.NoError(t, err)
	require.Len(t, pixels, 64)
	for i, p := range pixels {
		require.Truef(t, p.ApproxEqual(want, 1.0/255), "pixel %d: got %+v, want %+v", i, p, want)
	}
}

func TestFrameHonorsOutput(t *testing.T) {
	e := newHeadlessEngine(t, WithOutput(peel.OutputInternal()))
	require.NoError(t, e.SetScene(overlapScene()))

	c, err := e.Frame(0)
	require.NoError(t, err)
	assert.NotNil(t, c.Target)
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	e := newHeadlessEngine(t, WithRenderFrameLimit(1000))
	require.NoError(t, e.SetScene(overlapScene()))

	calls := 0
	e.SetFrameCallback(func(float32) {
		calls++
		if calls == 3 {
			e.Quit()
		}
	})

	e.Run()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, e.Frames())

	e.Quit()
}

func TestRunStopsWhenNotConfigured(t *testing.T) {
	e := NewEngine()
	e.Run()
	assert.Zero(t, e.Frames())
}

func TestResizeUpdatesRendererAndCamera(t *testing.T) {
	e := newHeadlessEngine(t)
	impl := e.(*engine)

	impl.resize(16, 8)
	w, h := e.Renderer().Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.InDelta(t, 2.0, e.Camera().Aspect(), 1e-6)

	impl.resize(0, 8)
	w, _ = e.Renderer().Size()
	assert.Equal(t, 16, w)
}

func TestFrameDuration(t *testing.T) {
	assert.Zero(t, frameDuration(0))
	assert.Zero(t, frameDuration(-5))
	assert.Equal(t, int64(1e9/4), frameDuration(4).Nanoseconds())
}
