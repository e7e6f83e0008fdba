package model

import "github.com/Carmen-Shannon/oxy-peel/common"

// NewQuad creates a single-sided quad in the XY plane centered on the origin, facing +Z.
//
// Parameters:
//   - name: the model identifier
//   - width, height: the quad extents
//   - color: the color of every vertex
//
// Returns:
//   - Model: the quad mesh (4 vertices, 2 triangles)
func NewQuad(name string, width, height float32, color common.Color) Model {
	hw, hh := width/2, height/2
	return NewModel(
		WithName(name),
		WithVertices([]Vertex{
			{Position: [3]float32{-hw, -hh, 0}, Color: color},
			{Position: [3]float32{hw, -hh, 0}, Color: color},
			{Position: [3]float32{hw, hh, 0}, Color: color},
			{Position: [3]float32{-hw, hh, 0}, Color: color},
		}),
		WithIndices([]uint32{0, 1, 2, 0, 2, 3}),
	)
}

// NewBox creates an axis-aligned box centered on the origin with one color per vertex.
// Faces wind counter-clockwise when viewed from outside.
//
// Parameters:
//   - name: the model identifier
//   - sx, sy, sz: the box extents
//   - color: the color of every vertex
//
// Returns:
//   - Model: the box mesh (24 vertices, 12 triangles)
func NewBox(name string, sx, sy, sz float32, color common.Color) Model {
	x, y, z := sx/2, sy/2, sz/2
	faces := [6][4][3]float32{
		{{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z}},     // +Z
		{{x, -y, -z}, {-x, -y, -z}, {-x, y, -z}, {x, y, -z}}, // -Z
		{{x, -y, z}, {x, -y, -z}, {x, y, -z}, {x, y, z}},     // +X
		{{-x, -y, -z}, {-x, -y, z}, {-x, y, z}, {-x, y, -z}}, // -X
		{{-x, y, z}, {x, y, z}, {x, y, -z}, {-x, y, -z}},     // +Y
		{{-x, -y, -z}, {x, -y, -z}, {x, -y, z}, {-x, -y, z}}, // -Y
	}
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, p := range f {
			vertices = append(vertices, Vertex{Position: p, Color: color})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewModel(WithName(name), WithVertices(vertices), WithIndices(indices))
}
