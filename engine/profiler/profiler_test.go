package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(time.Hour)

	assert.False(t, p.Tick())
	assert.Equal(t, Report{}, p.Last())
}

func TestTickReportsPeelPasses(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(0)

	p.Observe(2, 2*time.Millisecond)
	p.Observe(4, 6*time.Millisecond)
	assert.True(t, p.Tick())

	r := p.Last()
	assert.Equal(t, 2, r.Passes)
	assert.InDelta(t, 3.0, r.AvgLayers, 1e-9)
	assert.Equal(t, 4*time.Millisecond, r.AvgPass)
	assert.Equal(t, 6*time.Millisecond, r.MaxPass)
}

func TestTickResetsCounters(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(0)

	p.Observe(3, time.Millisecond)
	assert.True(t, p.Tick())
	assert.True(t, p.Tick())

	r := p.Last()
	assert.Zero(t, r.Passes)
	assert.Zero(t, r.AvgLayers)
	assert.Zero(t, r.MaxPass)
}
