package common

import "github.com/chewxy/math32"

// Plane is the plane Normal·p + Distance = 0. Points with a non-negative value are inside.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum holds the six inward-facing planes of a view volume.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// Frustum plane indices.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// FrustumFromMatrix extracts the frustum planes of a column-major view-projection matrix
// (Gribb/Hartmann). The matrix must map depth to [0, w] clip space as Perspective does, so
// the near plane is the third row alone.
//
// Parameters:
//   - viewProj: 16 float32 values, column-major
//
// Returns:
//   - Frustum: the frustum with unit-length plane normals
func FrustumFromMatrix(viewProj []float32) Frustum {
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f Frustum
	set := func(index int, sign float32, r [4]float32) {
		p := Plane{
			Normal:   [3]float32{r3[0] + sign*r[0], r3[1] + sign*r[1], r3[2] + sign*r[2]},
			Distance: r3[3] + sign*r[3],
		}
		f.Planes[index] = p.normalized()
	}
	set(FrustumLeft, 1, r0)
	set(FrustumRight, -1, r0)
	set(FrustumBottom, 1, r1)
	set(FrustumTop, -1, r1)
	set(FrustumFar, -1, r2)
	f.Planes[FrustumNear] = Plane{Normal: [3]float32{r2[0], r2[1], r2[2]}, Distance: r2[3]}.normalized()
	return f
}

// normalized scales the plane so its normal has unit length.
func (p Plane) normalized() Plane {
	length := math32.Sqrt(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])
	if length == 0 {
		return p
	}
	inv := 1 / length
	return Plane{
		Normal:   [3]float32{p.Normal[0] * inv, p.Normal[1] * inv, p.Normal[2] * inv},
		Distance: p.Distance * inv,
	}
}

// SignedDistance returns the distance from the plane to point, positive on the inside.
func (p Plane) SignedDistance(point [3]float32) float32 {
	return p.Normal[0]*point[0] + p.Normal[1]*point[1] + p.Normal[2]*point[2] + p.Distance
}

// IntersectsSphere reports whether a sphere is at least partly inside the frustum.
// The test is conservative: a sphere near a frustum corner may report true while outside.
//
// Parameters:
//   - center: the sphere center, in the space the frustum was extracted for
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only when the sphere is entirely outside one plane
func (f Frustum) IntersectsSphere(center [3]float32, radius float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}
