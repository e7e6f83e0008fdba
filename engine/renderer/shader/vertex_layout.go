package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ErrNoVertexInputs is returned when a vertex entry point takes no @location inputs.
var ErrNoVertexInputs = errors.New("shader: vertex entry point has no location inputs")

// vertexFormatKey identifies a vertex attribute type by scalar kind, scalar width and component count.
type vertexFormatKey struct {
	kind  ir.ScalarKind
	width uint8
	size  ir.VectorSize
}

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// vertexFormats maps IR attribute types to wgpu vertex formats. Scalars use size 1.
var vertexFormats = map[vertexFormatKey]vertexFormatInfo{
	{ir.ScalarFloat, 4, 1}: {wgpu.VertexFormatFloat32, 4},
	{ir.ScalarFloat, 4, 2}: {wgpu.VertexFormatFloat32x2, 8},
	{ir.ScalarFloat, 4, 3}: {wgpu.VertexFormatFloat32x3, 12},
	{ir.ScalarFloat, 4, 4}: {wgpu.VertexFormatFloat32x4, 16},
	{ir.ScalarFloat, 2, 2}: {wgpu.VertexFormatFloat16x2, 4},
	{ir.ScalarFloat, 2, 4}: {wgpu.VertexFormatFloat16x4, 8},
	{ir.ScalarSint, 4, 1}:  {wgpu.VertexFormatSint32, 4},
	{ir.ScalarSint, 4, 2}:  {wgpu.VertexFormatSint32x2, 8},
	{ir.ScalarSint, 4, 3}:  {wgpu.VertexFormatSint32x3, 12},
	{ir.ScalarSint, 4, 4}:  {wgpu.VertexFormatSint32x4, 16},
	{ir.ScalarUint, 4, 1}:  {wgpu.VertexFormatUint32, 4},
	{ir.ScalarUint, 4, 2}:  {wgpu.VertexFormatUint32x2, 8},
	{ir.ScalarUint, 4, 3}:  {wgpu.VertexFormatUint32x3, 12},
	{ir.ScalarUint, 4, 4}:  {wgpu.VertexFormatUint32x4, 16},
}

// VertexLayout reflects the vertex buffer layout of a vertex stage from its compiled IR.
// Every @location input of the entry point becomes an attribute, whether declared as a
// direct argument or as a member of a struct argument. Attributes are tightly packed in
// declaration order, so the vertex buffer must interleave them the same way.
//
// Parameters:
//   - s: a processed vertex shader (no unresolved annotations)
//
// Returns:
//   - wgpu.VertexBufferLayout: the layout for a single interleaved vertex buffer
//   - error: an error if the source does not compile, the entry point is missing, or an input has no vertex format
func VertexLayout(s Shader) (wgpu.VertexBufferLayout, error) {
	if s.ShaderType() != ShaderTypeVertex {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("shader %s: %s stage has no vertex inputs", s.Key(), s.ShaderType())
	}
	ast, err := naga.Parse(s.Source())
	if err != nil {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("shader %s: %w", s.Key(), err)
	}
	module, err := naga.LowerWithSource(ast, s.Source())
	if err != nil {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("shader %s: %w", s.Key(), err)
	}

	var entry *ir.EntryPoint
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Stage == ir.StageVertex && ep.Name == s.EntryPoint() {
			entry = ep
			break
		}
	}
	if entry == nil {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("shader %s: vertex entry point %q not found", s.Key(), s.EntryPoint())
	}

	var (
		attrs  []wgpu.VertexAttribute
		offset uint64
	)
	add := func(name string, binding *ir.Binding, ty ir.TypeHandle) error {
		loc, ok := location(binding)
		if !ok {
			return nil
		}
		info, ok := vertexFormatOf(module, ty)
		if !ok {
			return fmt.Errorf("shader %s: input %q at location %d has no vertex format", s.Key(), name, loc)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: loc,
		})
		offset += info.size
		return nil
	}

	for _, arg := range entry.Function.Arguments {
		if arg.Binding != nil {
			if err := add(arg.Name, arg.Binding, arg.Type); err != nil {
				return wgpu.VertexBufferLayout{}, err
			}
			continue
		}
		st, ok := module.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for _, m := range st.Members {
			if err := add(m.Name, m.Binding, m.Type); err != nil {
				return wgpu.VertexBufferLayout{}, err
			}
		}
	}
	if len(attrs) == 0 {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("shader %s: %w", s.Key(), ErrNoVertexInputs)
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

// location returns the @location index of a binding. Builtins and missing bindings report false.
func location(binding *ir.Binding) (uint32, bool) {
	if binding == nil {
		return 0, false
	}
	switch b := (*binding).(type) {
	case ir.LocationBinding:
		return b.Location, true
	case *ir.LocationBinding:
		return b.Location, true
	}
	return 0, false
}

// vertexFormatOf maps a scalar or vector IR type to its vertex format.
func vertexFormatOf(module *ir.Module, ty ir.TypeHandle) (vertexFormatInfo, bool) {
	if int(ty) >= len(module.Types) {
		return vertexFormatInfo{}, false
	}
	var key vertexFormatKey
	switch inner := module.Types[ty].Inner.(type) {
	case ir.ScalarType:
		key = vertexFormatKey{inner.Kind, inner.Width, 1}
	case ir.VectorType:
		key = vertexFormatKey{inner.Scalar.Kind, inner.Scalar.Width, inner.Size}
	default:
		return vertexFormatInfo{}, false
	}
	info, ok := vertexFormats[key]
	return info, ok
}
