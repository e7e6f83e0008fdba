package model

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/chewxy/math32"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/bind_group_provider"
)

// model is the implementation of the Model interface.
type model struct {
	name         string
	vertices     []Vertex
	indices      []uint32
	center       [3]float32
	radius       float32
	meshProvider bind_group_provider.BindGroupProvider
}

// Model defines the interface for an indexed, colored triangle mesh.
// A Model only holds geometry; materials are attached per scene node so the same mesh can be
// drawn by any number of nodes (and by any number of scene copies) without duplication.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns the mesh vertices.
	//
	// Returns:
	//   - []Vertex: the vertices, indexed by Indices
	Vertices() []Vertex

	// Indices returns the triangle list indices, three per triangle.
	//
	// Returns:
	//   - []uint32: the indices
	Indices() []uint32

	// IndexCount returns the number of indices in the model's mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// TriangleCount returns the number of triangles in the mesh.
	//
	// Returns:
	//   - int: IndexCount / 3
	TriangleCount() int

	// Bounds returns a model-space sphere enclosing every vertex.
	//
	// Returns:
	//   - [3]float32: the sphere center
	//   - float32: the sphere radius, zero for an empty mesh
	Bounds() ([3]float32, float32)

	// VertexData returns the vertex data serialized in the GPUVertex layout.
	//
	// Returns:
	//   - []byte: the vertex data
	VertexData() []byte

	// IndexData returns the index data serialized as little-endian uint32 values.
	//
	// Returns:
	//   - []byte: the index data
	IndexData() []byte

	// MeshProvider retrieves the BindGroupProvider holding GPU mesh resources, or nil when the
	// mesh has not been uploaded.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the mesh provider
	MeshProvider() bind_group_provider.BindGroupProvider

	// SetMeshProvider assigns the BindGroupProvider holding GPU mesh resources.
	//
	// Parameters:
	//   - provider: the mesh provider
	SetMeshProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
// Panics if the index count is not a multiple of three or an index is out of range.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	if len(m.indices)%3 != 0 {
		panic("model: " + m.name + " index count must be a multiple of 3")
	}
	for _, idx := range m.indices {
		if int(idx) >= len(m.vertices) {
			panic("model: " + m.name + " index out of range")
		}
	}
	m.center, m.radius = boundingSphere(m.vertices)
	return m
}

// boundingSphere centers a sphere on the vertices' bounding box and grows it to reach the
// farthest vertex.
func boundingSphere(vertices []Vertex) ([3]float32, float32) {
	if len(vertices) == 0 {
		return [3]float32{}, 0
	}
	lo, hi := vertices[0].Position, vertices[0].Position
	for _, v := range vertices[1:] {
		for i := range 3 {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	center := [3]float32{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}
	var r2 float32
	for _, v := range vertices {
		dx, dy, dz := v.Position[0]-center[0], v.Position[1]-center[1], v.Position[2]-center[2]
		r2 = max(r2, dx*dx+dy*dy+dz*dz)
	}
	return center, math32.Sqrt(r2)
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []Vertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) IndexCount() int {
	return len(m.indices)
}

func (m *model) TriangleCount() int {
	return len(m.indices) / 3
}

func (m *model) Bounds() ([3]float32, float32) {
	return m.center, m.radius
}

func (m *model) VertexData() []byte {
	buf := make([]byte, 0, len(m.vertices)*28)
	for _, v := range m.vertices {
		gv := GPUVertex{Position: v.Position, Color: v.Color.Array()}
		buf = append(buf, gv.Marshal()...)
	}
	return buf
}

func (m *model) IndexData() []byte {
	return common.SliceToBytes(m.indices)
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.meshProvider
}

func (m *model) SetMeshProvider(provider bind_group_provider.BindGroupProvider) {
	m.meshProvider = provider
}
