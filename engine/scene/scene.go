package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/game_object"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
)

// Drawable is a drawable object resolved against its ancestors: the object plus its world matrix.
type Drawable struct {
	// Object is the drawable object.
	Object game_object.GameObject
	// World is the column-major model-to-world matrix.
	World [16]float32
}

// Scene is a tree of GameObjects rooted at a list of top-level objects.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Add appends top-level objects to the scene.
	//
	// Parameters:
	//   - objects: the objects to add
	Add(objects ...game_object.GameObject)

	// Objects returns the top-level objects.
	//
	// Returns:
	//   - []game_object.GameObject: a copy of the top-level object list
	Objects() []game_object.GameObject

	// Count returns the number of objects in the tree, children included.
	//
	// Returns:
	//   - int: the object count
	Count() int

	// Traverse visits every object depth-first in insertion order. Disabled objects and their
	// subtrees are skipped. Returning false from fn stops the traversal.
	//
	// Parameters:
	//   - fn: the visitor, given the object and its world matrix
	Traverse(fn func(obj game_object.GameObject, world [16]float32) bool)

	// Drawables returns the enabled drawable objects in traversal order with their world matrices.
	//
	// Returns:
	//   - []Drawable: the draw list
	Drawables() []Drawable

	// Clone deep-copies the scene tree. Meshes are shared, material references are copied.
	//
	// Returns:
	//   - Scene: the copy
	Clone() Scene

	// CloneWith deep-copies the scene tree and replaces the material of every drawable object
	// with the result of replace. Non-drawable objects keep their material reference.
	//
	// Parameters:
	//   - replace: maps a source material to the material used by the copy
	//
	// Returns:
	//   - Scene: the copy
	//   - error: the first error returned by replace
	CloneWith(replace func(src material.Material) (material.Material, error)) (Scene, error)
}

type scene struct {
	mu      *sync.RWMutex
	name    string
	objects []game_object.GameObject
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new, empty Scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:   &sync.RWMutex{},
		name: name,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Add(objects ...game_object.GameObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, objects...)
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]game_object.GameObject(nil), s.objects...)
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	var count func(obj game_object.GameObject)
	count = func(obj game_object.GameObject) {
		n++
		for _, c := range obj.Children() {
			count(c)
		}
	}
	for _, obj := range s.objects {
		count(obj)
	}
	return n
}

func (s *scene) Traverse(fn func(obj game_object.GameObject, world [16]float32) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parent [16]float32
	common.Identity(parent[:])
	for _, obj := range s.objects {
		if !traverse(obj, parent, fn) {
			return
		}
	}
}

// traverse visits obj and its subtree. Returns false when fn asked to stop.
func traverse(obj game_object.GameObject, parent [16]float32, fn func(game_object.GameObject, [16]float32) bool) bool {
	if !obj.Enabled() {
		return true
	}
	local := obj.Transform().Matrix()
	var world [16]float32
	common.Mul4(world[:], parent[:], local[:])
	if !fn(obj, world) {
		return false
	}
	for _, child := range obj.Children() {
		if !traverse(child, world, fn) {
			return false
		}
	}
	return true
}

func (s *scene) Drawables() []Drawable {
	var out []Drawable
	s.Traverse(func(obj game_object.GameObject, world [16]float32) bool {
		if obj.Drawable() {
			out = append(out, Drawable{Object: obj, World: world})
		}
		return true
	})
	return out
}

func (s *scene) Clone() Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &scene{mu: &sync.RWMutex{}, name: s.name}
	for _, obj := range s.objects {
		c.objects = append(c.objects, obj.Clone())
	}
	return c
}

func (s *scene) CloneWith(replace func(src material.Material) (material.Material, error)) (Scene, error) {
	c := s.Clone().(*scene)
	var walk func(obj game_object.GameObject) error
	walk = func(obj game_object.GameObject) error {
		if obj.Drawable() {
			m, err := replace(obj.Material())
			if err != nil {
				return fmt.Errorf("scene %s: object %q: %w", c.name, obj.Name(), err)
			}
			obj.SetMaterial(m)
		}
		for _, child := range obj.Children() {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, obj := range c.objects {
		if err := walk(obj); err != nil {
			return nil, err
		}
	}
	return c, nil
}
