package model

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
)

// Vertex is a single mesh vertex: a model-space position and a straight-alpha color.
type Vertex struct {
	// Position is the vertex position in model space.
	Position [3]float32

	// Color is the per-vertex color, modulated by the material's base color.
	Color common.Color
}

// Transform is a decomposed node transform.
type Transform struct {
	// Translation is the position offset.
	Translation [3]float32

	// Rotation is the orientation as Euler angles in radians (applied Y, X, Z).
	Rotation [3]float32

	// Scale is the scale factor along each axis.
	Scale [3]float32
}

// IdentityTransform returns a Transform with no translation, no rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{Scale: [3]float32{1, 1, 1}}
}

// Matrix composes the transform into a column-major model matrix.
//
// Returns:
//   - [16]float32: the model matrix
func (t Transform) Matrix() [16]float32 {
	var m [16]float32
	common.BuildModelMatrix(m[:],
		t.Translation[0], t.Translation[1], t.Translation[2],
		t.Rotation[0], t.Rotation[1], t.Rotation[2],
		t.Scale[0], t.Scale[1], t.Scale[2],
	)
	return m
}
