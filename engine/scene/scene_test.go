package scene

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScene() (Scene, material.Material) {
	quad := model.NewQuad("quad", 1, 1, common.RGBA(1, 1, 1, 1))
	mat := material.NewMaterial(material.WithName("glass"))

	child := game_object.NewGameObject(
		game_object.WithName("child"),
		game_object.WithModel(quad),
		game_object.WithMaterial(mat),
		game_object.WithPosition(0, 1, 0),
	)
	group := game_object.NewGameObject(
		game_object.WithName("group"),
		game_object.WithPosition(2, 0, 0),
		game_object.WithChildren(child),
	)
	top := game_object.NewGameObject(
		game_object.WithName("top"),
		game_object.WithModel(quad),
		game_object.WithMaterial(mat),
	)
	return NewScene("test", WithObjects(group, top)), mat
}

func TestDrawablesResolveWorldMatrices(t *testing.T) {
	s, _ := newTestScene()

	draws := s.Drawables()
	require.Len(t, draws, 2)
	assert.Equal(t, "child", draws[0].Object.Name())
	assert.Equal(t, "top", draws[1].Object.Name())

	p := common.TransformPoint(draws[0].World[:], 0, 0, 0)
	assert.InDelta(t, 2, p[0], 1e-6)
	assert.InDelta(t, 1, p[1], 1e-6)
	assert.Equal(t, 3, s.Count())
}

func TestDisabledSubtreeSkipped(t *testing.T) {
	s, _ := newTestScene()
	s.Objects()[0].SetEnabled(false)

	draws := s.Drawables()
	require.Len(t, draws, 1)
	assert.Equal(t, "top", draws[0].Object.Name())
}

func TestCloneIsIndependent(t *testing.T) {
	s, mat := newTestScene()
	c := s.Clone()

	c.Objects()[1].SetPosition(5, 5, 5)
	assert.Equal(t, [3]float32{0, 0, 0}, s.Objects()[1].Transform().Translation)
	assert.NotEqual(t, s.Objects()[1].ID(), c.Objects()[1].ID())
	assert.Same(t, mat, c.Objects()[1].Material())
	assert.Len(t, c.Drawables(), 2)
}

func TestCloneWithReplacesDrawableMaterialsOnly(t *testing.T) {
	s, mat := newTestScene()
	calls := 0

	c, err := s.CloneWith(func(src material.Material) (material.Material, error) {
		calls++
		assert.Same(t, mat, src)
		return src.Clone(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	for _, d := range c.Drawables() {
		assert.NotEqual(t, mat.ID(), d.Object.Material().ID())
	}
	for _, d := range s.Drawables() {
		assert.Equal(t, mat.ID(), d.Object.Material().ID())
	}
	assert.Nil(t, c.Objects()[0].Material())
	assert.False(t, c.Objects()[0].Drawable())
}

func TestCloneWithPropagatesError(t *testing.T) {
	s, _ := newTestScene()
	boom := errors.New("boom")

	_, err := s.CloneWith(func(material.Material) (material.Material, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDrawableTagFixedAtConstruction(t *testing.T) {
	obj := game_object.NewGameObject(game_object.WithModel(model.NewQuad("q", 1, 1, common.RGBA(1, 1, 1, 1))))
	assert.False(t, obj.Drawable())

	obj.SetMaterial(material.NewMaterial())
	assert.False(t, obj.Drawable())
	assert.False(t, obj.Clone().Drawable())
}
