package material

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// materialCount is an atomic counter used to hand out unique material identities.
var materialCount atomic.Uint64

// BlendMode selects how a material's fragments combine with the color already in the target.
type BlendMode int

const (
	// BlendNormal is source-over blending: rgb = src.rgb*src.a + dst.rgb*(1-src.a), a = src.a + dst.a*(1-src.a).
	BlendNormal BlendMode = iota

	// BlendNone writes the fragment color (alpha included) unmodified.
	BlendNone
)

// String returns a short name for the blend mode.
func (b BlendMode) String() string {
	switch b {
	case BlendNormal:
		return "normal"
	case BlendNone:
		return "none"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(b))
	}
}

// material is the implementation of the Material interface.
type material struct {
	id         uint64
	name       string
	baseColor  common.Color
	blending   BlendMode
	depthTest  bool
	depthWrite bool
	fragment   shader.Shader
	hooks      []shader.Hook

	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Material defines the interface for an unlit surface material: a base color modulating the
// vertex color, a blend mode, depth flags, and a fragment shader that may carry hooks spliced
// in at its @oxy:hook sites.
type Material interface {
	// ID returns the unique identity of this material instance. Clones receive a new ID.
	//
	// Returns:
	//   - uint64: the material identity
	ID() uint64

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the straight-alpha RGBA base color of the material.
	//
	// Returns:
	//   - common.Color: the base color
	BaseColor() common.Color

	// Blending retrieves the blend mode used when the material is drawn.
	//
	// Returns:
	//   - BlendMode: the blend mode
	Blending() BlendMode

	// DepthTest reports whether fragments are depth tested against the target's depth attachment.
	//
	// Returns:
	//   - bool: true if depth testing is enabled
	DepthTest() bool

	// DepthWrite reports whether fragments that pass write their depth.
	//
	// Returns:
	//   - bool: true if depth writes are enabled
	DepthWrite() bool

	// FragmentShader retrieves the annotated fragment shader.
	//
	// Returns:
	//   - shader.Shader: the fragment shader
	FragmentShader() shader.Shader

	// Hooks returns the hooks registered on this material, in registration order.
	//
	// Returns:
	//   - []shader.Hook: the registered hooks
	Hooks() []shader.Hook

	// Shade returns the color a fragment of this material writes for an interpolated vertex color,
	// before hooks run. Mirrors the unlit fragment shader on the CPU.
	//
	// Parameters:
	//   - vertexColor: the interpolated vertex color
	//
	// Returns:
	//   - common.Color: the shaded color
	Shade(vertexColor common.Color) common.Color

	// PipelineKey returns a key identifying the render state this material needs: shader,
	// blend mode, depth flags and hook set. Materials with equal keys can share a pipeline.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// BindGroupProvider retrieves the bind group provider holding GPU-side resources for this material.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider, or nil if not yet initialized
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetBaseColor sets the base color.
	//
	// Parameters:
	//   - c: the new base color
	SetBaseColor(c common.Color)

	// SetBlending sets the blend mode.
	//
	// Parameters:
	//   - mode: the new blend mode
	SetBlending(mode BlendMode)

	// SetDepthTest enables or disables depth testing.
	//
	// Parameters:
	//   - enabled: the new depth test state
	SetDepthTest(enabled bool)

	// SetDepthWrite enables or disables depth writes.
	//
	// Parameters:
	//   - enabled: the new depth write state
	SetDepthWrite(enabled bool)

	// AddHook registers a hook to be spliced into the fragment shader. The fragment shader
	// must contain an @oxy:hook site with the hook's name.
	//
	// Parameters:
	//   - h: the hook to register
	//
	// Returns:
	//   - error: shader.ErrHookNotFound if the shader has no matching site, or an error for a duplicate name
	AddHook(h shader.Hook) error

	// SetBindGroupProvider sets the bind group provider for this material.
	//
	// Parameters:
	//   - provider: the bind group provider containing GPU resources for this material
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)

	// Clone returns an independent copy with a new identity. Hooks are copied by value; the
	// shader is shared. GPU resources are not shared.
	//
	// Returns:
	//   - Material: the copy
	Clone() Material
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults to an opaque white unlit material with normal blending and depth test/write enabled.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		id:         materialCount.Add(1),
		baseColor:  common.RGBA(1, 1, 1, 1),
		blending:   BlendNormal,
		depthTest:  true,
		depthWrite: true,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.fragment == nil {
		m.fragment = DefaultFragmentShader()
	}
	return m
}

func (m *material) ID() uint64 {
	return m.id
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() common.Color {
	return m.baseColor
}

func (m *material) Blending() BlendMode {
	return m.blending
}

func (m *material) DepthTest() bool {
	return m.depthTest
}

func (m *material) DepthWrite() bool {
	return m.depthWrite
}

func (m *material) FragmentShader() shader.Shader {
	return m.fragment
}

func (m *material) Hooks() []shader.Hook {
	return m.hooks
}

func (m *material) Shade(vertexColor common.Color) common.Color {
	return m.baseColor.Mul(vertexColor)
}

func (m *material) PipelineKey() string {
	var b strings.Builder
	b.WriteString(m.fragment.Key())
	fmt.Fprintf(&b, "|%s|dt=%t|dw=%t", m.blending, m.depthTest, m.depthWrite)
	for _, h := range m.hooks {
		b.WriteString("|")
		b.WriteString(h.Name)
	}
	return b.String()
}

func (m *material) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return m.bindGroupProvider
}

func (m *material) SetBaseColor(c common.Color) {
	m.baseColor = c
}

func (m *material) SetBlending(mode BlendMode) {
	m.blending = mode
}

func (m *material) SetDepthTest(enabled bool) {
	m.depthTest = enabled
}

func (m *material) SetDepthWrite(enabled bool) {
	m.depthWrite = enabled
}

func (m *material) AddHook(h shader.Hook) error {
	for _, existing := range m.hooks {
		if existing.Name == h.Name {
			return fmt.Errorf("material %q: hook %q already registered", m.name, h.Name)
		}
	}
	sites, err := shader.HookSites(m.fragment.Source())
	if err != nil {
		return fmt.Errorf("material %q: %w", m.name, err)
	}
	found := false
	for _, s := range sites {
		if s == h.Name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("material %q, shader %q: %w: %q", m.name, m.fragment.Key(), shader.ErrHookNotFound, h.Name)
	}
	m.hooks = append(m.hooks, h)
	return nil
}

func (m *material) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	m.bindGroupProvider = provider
}

func (m *material) Clone() Material {
	c := *m
	c.id = materialCount.Add(1)
	c.hooks = append([]shader.Hook(nil), m.hooks...)
	c.bindGroupProvider = nil
	return &c
}
