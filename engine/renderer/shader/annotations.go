// annotations.go defines the annotation types and parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that drive
// struct injection, bind group declaration and hook splicing. The parsed results are stored
// as Annotation values and consumed by the PreProcessor.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include camera
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration for
	// a registered struct type.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <struct_type>
	//
	// Example: //@oxy:group 0 0 uniform camera camera
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeHook marks a named extension point inside a function body. When a Hook
	// with the same name is supplied to Process, the site is replaced by a call to the hook's
	// WGSL function with the site's argument expression; otherwise the site is removed.
	//
	// Syntax: //@oxy:hook <name> <argument_expression>
	//
	// Example: //@oxy:hook before_output in.clip_position
	AnnotationTypeHook AnnotationType = "hook"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include, group, or hook).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = struct type key
	//   - group:   [0] = address space, [1] = var name, [2] = struct type key
	//   - hook:    [0] = hook name, [1] = argument expression (may contain spaces)
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Indent is the leading whitespace of the annotation line, reused for generated code.
	Indent string

	// Group is the @group index for group annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for group annotations. Nil otherwise.
	Binding *int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

const (
	// AnnotationArgCamera identifies the CameraUniform struct.
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgVertex identifies the VertexInput/VertexOutput structs.
	AnnotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgModel identifies the per-draw ModelUniform struct.
	AnnotationArgModel AnnotationArg = "model"

	// AnnotationArgMaterial identifies the MaterialUniform struct.
	AnnotationArgMaterial AnnotationArg = "material"

	// annotationArgStorageTypeUniform is the uniform address space.
	annotationArgStorageTypeUniform AnnotationArg = "uniform"

	// annotationArgStorageTypeRead is the read-only storage address space.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"
)

// HookBeforeOutput is the conventional hook name placed just before a fragment entry point
// writes its final color.
const HookBeforeOutput = "before_output"

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
// Registry lookups (unknown struct types) are the PreProcessor's job; this only checks syntax.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type:   annotationTypeInclude,
			Args:   []AnnotationArg{AnnotationArg(args[1])},
			Line:   lineNum,
			Indent: indent,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy group annotation: %w", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy group annotation: %w", lineNum, args[2], err)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Indent:  indent,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case AnnotationTypeHook:
		if len(args) < 3 {
			return nil, fmt.Errorf("line %d: @oxy hook annotation requires a name and an argument expression", lineNum)
		}
		return &Annotation{
			Type:   AnnotationTypeHook,
			Args:   []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(strings.Join(args[2:], " "))},
			Line:   lineNum,
			Indent: indent,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
