package peel

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSize = 8

// Bytes held by the software device per 8x8 buffer.
const (
	screenBytes    = testSize * testSize * (4 + 4)
	layerBytes     = testSize * testSize * (16 + 4)
	compositeBytes = testSize * testSize * 16
)

var (
	green = common.RGBA(0, 1, 0, 0.5)
	red   = common.RGBA(1, 0, 0, 0.5)
)

func newTestDevice(t *testing.T, options ...renderer.RendererBuilderOption) renderer.Renderer {
	t.Helper()
	opts := append([]renderer.RendererBuilderOption{renderer.WithSize(testSize, testSize), renderer.WithWorkers(2)}, options...)
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, opts...)
	t.Cleanup(r.Release)
	return r
}

func newTestDriver(t *testing.T, options ...DriverBuilderOption) Driver {
	t.Helper()
	d := NewDriver(options...)
	t.Cleanup(d.Dispose)
	return d
}

func testCamera() camera.Camera {
	return camera.NewCamera(camera.WithPosition(0, 0, 5), camera.WithAspect(1))
}

// quad returns a quad at depth z large enough to cover the view of testCamera.
func quad(name string, z float32, c common.Color) game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithName(name),
		game_object.WithModel(model.NewQuad(name, 20, 20, common.RGBA(1, 1, 1, 1))),
		game_object.WithMaterial(material.NewMaterial(
			material.WithName(name),
			material.WithBaseColor(c),
		)),
		game_object.WithPosition(0, 0, z),
	)
}

// overlapScene holds a translucent green quad in front of a translucent red one, the far one
// submitted first.
func overlapScene() scene.Scene {
	return scene.NewScene("overlap", scene.WithObjects(
		quad("far", 0, red),
		quad("near", 1, green),
	))
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

func readTarget(t *testing.T, device renderer.Renderer, rt renderer.RenderTarget) []common.Color {
	t.Helper()
	pixels, err := device.ReadPixels(rt)
	require.NoError(t, err)
	return pixels
}
