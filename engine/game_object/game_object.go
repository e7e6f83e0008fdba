package game_object

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
)

// objectCount is an atomic counter used to hand out object IDs when none is given.
var objectCount atomic.Uint64

type gameObject struct {
	id        uint64
	name      string
	enabled   atomic.Bool
	drawable  bool
	mdl       model.Model
	mat       material.Material
	transform model.Transform
	children  []GameObject

	// bindGroupProvider holds the per-object model matrix uniform on wgpu devices.
	bindGroupProvider bind_group_provider.BindGroupProvider
}

// GameObject defines the interface for a node of the scene tree. An object carries an
// optional mesh and material, a local transform and child objects.
//
// Whether an object is drawable is decided once, when it is created: an object built with
// both a Model and a Material is drawable. The tag survives Clone, so a scene copy draws
// exactly the objects its source draws.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Name returns the object's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Enabled returns whether this object (and its subtree) is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Drawable reports whether this object was tagged drawable at construction.
	//
	// Returns:
	//   - bool: true if the object issues a draw call
	Drawable() bool

	// Model returns the Model associated with this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// Material returns the Material associated with this object, or nil if not set.
	//
	// Returns:
	//   - material.Material: the associated material or nil
	Material() material.Material

	// Transform returns the object's local transform.
	//
	// Returns:
	//   - model.Transform: the local transform
	Transform() model.Transform

	// Children returns the child objects.
	//
	// Returns:
	//   - []GameObject: the children in insertion order
	Children() []GameObject

	// BindGroupProvider returns the provider holding the object's per-draw GPU resources, or nil.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider or nil
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetMaterial replaces the object's material. The drawable tag is unchanged.
	//
	// Parameters:
	//   - m: the new material
	SetMaterial(m material.Material)

	// SetTransform replaces the object's local transform.
	//
	// Parameters:
	//   - t: the new transform
	SetTransform(t model.Transform)

	// SetPosition sets the translation of the local transform.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation sets the Euler rotation of the local transform.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles in radians
	SetRotation(rx, ry, rz float32)

	// SetScale sets the scale of the local transform.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// AddChild appends child objects.
	//
	// Parameters:
	//   - children: the objects to append
	AddChild(children ...GameObject)

	// SetBindGroupProvider assigns the provider holding the object's per-draw GPU resources.
	//
	// Parameters:
	//   - provider: the provider
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)

	// Clone deep-copies the object and its subtree. The mesh is shared, the material reference
	// is copied (not the material itself), GPU resources are not shared, and every copy gets a
	// fresh ID. The drawable tag is preserved.
	//
	// Returns:
	//   - GameObject: the copy
	Clone() GameObject
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
// Objects are enabled by default.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		transform: model.IdentityTransform(),
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	if obj.id == 0 {
		obj.id = objectCount.Add(1)
	}
	obj.drawable = obj.mdl != nil && obj.mat != nil
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Drawable() bool {
	return g.drawable
}

func (g *gameObject) Model() model.Model {
	return g.mdl
}

func (g *gameObject) Material() material.Material {
	return g.mat
}

func (g *gameObject) Transform() model.Transform {
	return g.transform
}

func (g *gameObject) Children() []GameObject {
	return g.children
}

func (g *gameObject) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return g.bindGroupProvider
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetMaterial(m material.Material) {
	g.mat = m
}

func (g *gameObject) SetTransform(t model.Transform) {
	g.transform = t
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.transform.Translation = [3]float32{x, y, z}
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.transform.Rotation = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.transform.Scale = [3]float32{sx, sy, sz}
}

func (g *gameObject) AddChild(children ...GameObject) {
	g.children = append(g.children, children...)
}

func (g *gameObject) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	g.bindGroupProvider = provider
}

func (g *gameObject) Clone() GameObject {
	c := &gameObject{
		id:        objectCount.Add(1),
		name:      g.name,
		drawable:  g.drawable,
		mdl:       g.mdl,
		mat:       g.mat,
		transform: g.transform,
	}
	c.enabled.Store(g.enabled.Load())
	if len(g.children) > 0 {
		c.children = make([]GameObject, len(g.children))
		for i, child := range g.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}
