package shader

import "github.com/Carmen-Shannon/oxy-peel/common"

// Fragment is the CPU-side view of a fragment as seen by a fragment hook: the window
// coordinate of the pixel center, the fragment depth and the color about to be written.
type Fragment struct {
	// X and Y are the window coordinates of the pixel center (frag_coord.xy).
	X, Y float32
	// Depth is the fragment depth in [0, 1] (frag_coord.z).
	Depth float32
	// Color is the shaded color the fragment would write.
	Color common.Color
}

// FragmentHook is the CPU counterpart of a WGSL hook function, used by devices that shade
// on the CPU. Returning false discards the fragment.
type FragmentHook func(frag *Fragment) bool

// HookBinding supplies the GPU resources a hook's WGSL declarations bind. The group index
// must match the @group used in the hook's Declarations.
type HookBinding interface {
	// Group returns the bind group index used by the hook's declarations.
	Group() uint32

	// UniformBytes returns the current contents of the hook's uniform block (binding 0).
	UniformBytes() []byte

	// Texture returns the device texture bound at binding 1, or nil when the hook binds none.
	// The concrete type is owned by the device that created it.
	Texture() any
}

// Hook is a named late-stage extension spliced into a shader at a matching @oxy:hook site.
type Hook struct {
	// Name must match the name of an @oxy:hook annotation in the shader source.
	Name string

	// Declarations is module-scope WGSL (structs, bindings, helper functions) emitted once
	// at the top of the processed shader.
	Declarations string

	// Function is the WGSL function called at the hook site with the site's argument expression.
	Function string

	// Fragment is the CPU implementation of Function.
	Fragment FragmentHook

	// Binding supplies the resources bound by Declarations. May be nil.
	Binding HookBinding
}
