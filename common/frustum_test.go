package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

// testFrustum looks down -Z from (0, 0, 5) with a 90 degree field of view, near 0.1 and far 100.
func testFrustum() Frustum {
	var proj, view, viewProj [16]float32
	Perspective(proj[:], math32.Pi/2, 1, 0.1, 100)
	LookAt(view[:], 0, 0, 5, 0, 0, 0, 0, 1, 0)
	Mul4(viewProj[:], proj[:], view[:])
	return FrustumFromMatrix(viewProj[:])
}

func TestFrustumPlaneDistances(t *testing.T) {
	f := testFrustum()

	assert.InDelta(t, 0.9, f.Planes[FrustumNear].SignedDistance([3]float32{0, 0, 4}), 1e-3)
	assert.InDelta(t, 95, f.Planes[FrustumFar].SignedDistance([3]float32{0, 0, 0}), 0.1)
	for _, p := range f.Planes {
		n := p.Normal
		assert.InDelta(t, 1, n[0]*n[0]+n[1]*n[1]+n[2]*n[2], 1e-4)
		assert.Positive(t, p.SignedDistance([3]float32{0, 0, 0}))
	}
}

func TestFrustumIntersectsSphere(t *testing.T) {
	f := testFrustum()

	cases := []struct {
		name   string
		center [3]float32
		radius float32
		want   bool
	}{
		{"origin", [3]float32{0, 0, 0}, 1, true},
		{"behind camera", [3]float32{0, 0, 10}, 1, false},
		{"beyond far plane", [3]float32{0, 0, -200}, 1, false},
		{"far right", [3]float32{50, 0, 0}, 1, false},
		{"straddling right plane", [3]float32{6, 0, 0}, 1.5, true},
		{"large sphere around camera", [3]float32{0, 0, 5}, 20, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, f.IntersectsSphere(tc.center, tc.radius), tc.name)
	}
}
