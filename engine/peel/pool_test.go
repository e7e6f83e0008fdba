package peel

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoolMode(t *testing.T) {
	for in, want := range map[string]PoolMode{
		"fixed":     PoolModeFixed,
		"":          PoolModeFixed,
		"PingPong":  PoolModePingPong,
		"ping-pong": PoolModePingPong,
	} {
		got, err := ParsePoolMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePoolMode("triple")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPoolRejectsInvalidConfig(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModeFixed)
	t.Cleanup(p.Release)

	assert.ErrorIs(t, p.Allocate(0, testSize, 1), ErrInvalidConfig)
	assert.ErrorIs(t, p.Allocate(testSize, -1, 1), ErrInvalidConfig)
	assert.ErrorIs(t, p.Allocate(testSize, testSize, -1), ErrInvalidConfig)
	assert.ErrorIs(t, p.SetCount(-2), ErrInvalidConfig)
	assert.ErrorIs(t, p.Resize(testSize, 0), ErrInvalidConfig)
}

func TestPoolFixedMode(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 3))
	assert.Equal(t, 3, p.Count())
	assert.Equal(t, 3, p.Buffers())
	for i := range 3 {
		rt := p.Layer(i)
		require.NotNil(t, rt)
		require.NotNil(t, rt.Depth())
		assert.Equal(t, testSize, rt.Width())
		for j := range i {
			assert.NotSame(t, p.Layer(j), rt)
		}
	}
	assert.Nil(t, p.Layer(3))
	assert.Nil(t, p.Layer(-1))
	assert.NotSame(t, p.Composite(0), p.Composite(1))
	assert.Same(t, p.Composite(0), p.Composite(2))
	assert.Nil(t, p.Composite(0).Depth())
}

func TestPoolPingPongMode(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModePingPong)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 5))
	assert.Equal(t, 5, p.Count())
	assert.Equal(t, 2, p.Buffers())
	assert.NotSame(t, p.Layer(0), p.Layer(1))
	assert.Same(t, p.Layer(0), p.Layer(4))
	assert.Same(t, p.Layer(1), p.Layer(3))
}

func TestPoolZeroCount(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 0))
	assert.Equal(t, 0, p.Buffers())
	assert.Nil(t, p.Layer(0))
	assert.Nil(t, p.Composite(0))
}

func TestPoolSetCountReleasesRemoved(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 3))
	kept, removed := p.Layer(0), p.Layer(2)
	require.NoError(t, p.SetCount(1))

	assert.Equal(t, 1, p.Buffers())
	assert.Same(t, kept, p.Layer(0))
	assert.False(t, kept.Color().Released())
	assert.True(t, removed.Color().Released())
	assert.True(t, removed.Depth().Released())

	require.NoError(t, p.SetCount(2))
	assert.Same(t, kept, p.Layer(0))
	assert.NotNil(t, p.Layer(1))
}

func TestPoolResizeRoundTrip(t *testing.T) {
	p := NewLayerPool(newTestDevice(t), PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 2))
	color := p.Layer(0).Color()
	oldDepth := p.Layer(0).Depth()

	require.NoError(t, p.Resize(3, 5))
	w, h := p.Size()
	assert.Equal(t, [2]int{3, 5}, [2]int{w, h})
	assert.Same(t, color, p.Layer(0).Color())
	assert.NotSame(t, oldDepth, p.Layer(0).Depth())
	assert.True(t, oldDepth.Released())
	assert.Equal(t, 3, p.Layer(0).Depth().Width())
	assert.Equal(t, 5, p.Composite(1).Height())

	require.NoError(t, p.Resize(testSize, testSize))
	w, h = p.Size()
	assert.Equal(t, [2]int{testSize, testSize}, [2]int{w, h})
	for i := range 2 {
		assert.Equal(t, testSize, p.Layer(i).Width())
		assert.Equal(t, testSize, p.Layer(i).Depth().Height())
	}
}

func TestPoolGrowFailureKeepsBuffers(t *testing.T) {
	device := newTestDevice(t, renderer.WithMemoryBudget(screenBytes+2*layerBytes+2*compositeBytes+layerBytes/2))
	p := NewLayerPool(device, PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 2))
	first := p.Layer(0)

	err := p.SetCount(4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.ErrorIs(t, err, renderer.ErrOutOfMemory)

	assert.Equal(t, 2, p.Count())
	assert.Equal(t, 2, p.Buffers())
	assert.Same(t, first, p.Layer(0))
	assert.False(t, first.Color().Released())
	assert.False(t, first.Depth().Released())
}

func TestPoolResizeFailureKeepsBuffers(t *testing.T) {
	device := newTestDevice(t, renderer.WithMemoryBudget(screenBytes+2*layerBytes+2*compositeBytes+700))
	p := NewLayerPool(device, PoolModeFixed)
	t.Cleanup(p.Release)

	require.NoError(t, p.Allocate(testSize, testSize, 2))
	depths := []renderer.Texture{p.Layer(0).Depth(), p.Layer(1).Depth()}

	// New depth textures fit, the first larger color attachment does not.
	err := p.Resize(testSize+1, testSize)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocation))

	w, h := p.Size()
	assert.Equal(t, [2]int{testSize, testSize}, [2]int{w, h})
	for i := range 2 {
		rt := p.Layer(i)
		assert.Same(t, depths[i], rt.Depth())
		assert.False(t, rt.Depth().Released())
		assert.Equal(t, testSize, rt.Width())
	}

	// Depth textures alone do not fit either.
	err = p.Resize(testSize*4, testSize*4)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.Same(t, depths[0], p.Layer(0).Depth())
}
