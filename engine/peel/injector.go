package peel

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// injector is the implementation of the Injector interface.
type injector struct {
	mu       *sync.Mutex
	uniforms *Uniforms
	hookSite string
	validate bool
	cache    map[uint64]material.Material
}

// Injector turns source materials into peel materials: a clone of the source with blending
// disabled and the occlusion test spliced in at the material's hook site. Peel materials are
// cached per source material, so every node sharing a material shares its peel material.
type Injector interface {
	// Inject returns the peel material for src, creating it on first use.
	//
	// Parameters:
	//   - src: the source material, left unmodified
	//
	// Returns:
	//   - material.Material: the peel material
	//   - error: ErrInjection if the hook site is missing or the instrumented shader does not compile
	Inject(src material.Material) (material.Material, error)

	// Uniforms returns the uniform block every peel material reads.
	//
	// Returns:
	//   - *Uniforms: the shared uniforms
	Uniforms() *Uniforms

	// Len returns the number of cached peel materials.
	//
	// Returns:
	//   - int: the cache size
	Len() int

	// Reset drops every cached peel material.
	Reset()
}

var _ Injector = &injector{}

// InjectorBuilderOption configures an Injector.
type InjectorBuilderOption func(*injector)

// WithHookSite sets the hook site name the occlusion test is spliced into.
// Defaults to shader.HookBeforeOutput.
//
// Parameters:
//   - name: the @oxy:hook name
//
// Returns:
//   - InjectorBuilderOption: a function that applies the hook site option
func WithHookSite(name string) InjectorBuilderOption {
	return func(i *injector) {
		if name != "" {
			i.hookSite = name
		}
	}
}

// WithValidation toggles compiling each instrumented fragment shader when it is created.
// Enabled by default.
//
// Parameters:
//   - enabled: whether to validate
//
// Returns:
//   - InjectorBuilderOption: a function that applies the validation option
func WithValidation(enabled bool) InjectorBuilderOption {
	return func(i *injector) {
		i.validate = enabled
	}
}

// NewInjector creates an Injector whose peel materials read u.
//
// Parameters:
//   - u: the shared peel uniforms
//   - options: functional options to configure the injector
//
// Returns:
//   - Injector: the new injector
func NewInjector(u *Uniforms, options ...InjectorBuilderOption) Injector {
	if u == nil {
		panic("peel: injector requires uniforms")
	}
	i := &injector{
		mu:       &sync.Mutex{},
		uniforms: u,
		hookSite: shader.HookBeforeOutput,
		validate: true,
		cache:    make(map[uint64]material.Material),
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

func (i *injector) Inject(src material.Material) (material.Material, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if m, ok := i.cache[src.ID()]; ok {
		return m, nil
	}

	m := src.Clone()
	m.SetBlending(material.BlendNone)
	hook := i.uniforms.Hook()
	hook.Name = i.hookSite
	if err := m.AddHook(hook); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInjection, err)
	}

	if i.validate {
		findings, err := renderer.ValidateMaterial(m)
		if err != nil {
			return nil, fmt.Errorf("%w: material %q: %w", ErrInjection, src.Name(), err)
		}
		for _, f := range findings {
			Logger().Warn("peel shader validation", "material", src.Name(), "finding", f)
		}
	}

	Logger().Debug("peel material created", "source", src.Name(), "source_id", src.ID(), "peel_id", m.ID())
	i.cache[src.ID()] = m
	return m, nil
}

func (i *injector) Uniforms() *Uniforms {
	return i.uniforms
}

func (i *injector) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.cache)
}

func (i *injector) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cache = make(map[uint64]material.Material)
}
