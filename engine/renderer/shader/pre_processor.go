// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces include and group annotations with
// registered struct sources and generated declarations, and splices named hooks into
// their @oxy:hook extension points.
//
// The pre-processor maintains two registries:
//   - structRegistry: maps AnnotationArg keys to WGSL struct sources and their
//     resolved type names. Populated through WithInclude by the package that owns the type.
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHookNotFound is returned by Process when a requested hook has no @oxy:hook site in the source.
var ErrHookNotFound = errors.New("shader: hook site not found")

// registryEntry pairs a WGSL struct source string with the resolved WGSL type name used in
// generated @group/@binding declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations (e.g. "CameraUniform").
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct type argument keys to their WGSL source and type name.
	structRegistry map[AnnotationArg]registryEntry

	// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group and hook annotations during a Process call.
	declarations []Annotation
}

// PreProcessor expands annotated WGSL into plain WGSL.
type PreProcessor interface {
	// Process expands the annotations in source. @oxy:include is replaced with the registered
	// struct source, @oxy:group with a generated binding declaration, and each @oxy:hook site
	// with a call to the matching hook's Function (or nothing when no hook matches). Hook
	// Declarations are emitted once at the top of the output.
	//
	// Every supplied hook must have at least one site; a hook without one fails with
	// ErrHookNotFound so a shader cannot silently drop an extension.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//   - hooks: hooks to splice into matching sites
	//
	// Returns:
	//   - string: the processed WGSL
	//   - error: an error if any annotation is malformed, references an unknown type, or a hook has no site
	Process(source string, hooks ...Hook) (string, error)

	// Declarations returns the group and hook annotations collected during the most recent
	// call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor. Struct types are registered through options
// by the packages that own them, since this package sits below them in the import graph.
//
// Parameters:
//   - options: functional options registering includes
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		structRegistry: make(map[AnnotationArg]registryEntry),
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
			annotationArgStorageTypeRead:    "var<storage, read>",
		},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *preProcessor) Process(source string, hooks ...Hook) (string, error) {
	p.declarations = p.declarations[:0]

	byName := make(map[string]Hook, len(hooks))
	for _, h := range hooks {
		if _, dup := byName[h.Name]; dup {
			return "", fmt.Errorf("duplicate hook %q", h.Name)
		}
		if h.Function == "" {
			return "", fmt.Errorf("hook %q has no WGSL function", h.Name)
		}
		byName[h.Name] = h
	}
	used := make(map[string]bool, len(hooks))

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines)+len(hooks))
	for _, h := range hooks {
		if h.Declarations != "" {
			out = append(out, h.Declarations)
		}
	}

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Args[0])
			}
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			addrSpace, ok := p.addressSpaceRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown address space %q", a.Line, a.Args[0])
			}
			entry, ok := p.structRegistry[a.Args[2]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown struct type %q in @oxy:group", a.Line, a.Args[2])
			}
			out = append(out, fmt.Sprintf("%s@group(%d) @binding(%d) %s %s: %s;", a.Indent, *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeHook:
			name := string(a.Args[0])
			p.declarations = append(p.declarations, *a)
			h, ok := byName[name]
			if !ok {
				continue
			}
			used[name] = true
			out = append(out, fmt.Sprintf("%s%s(%s);", a.Indent, h.Function, a.Args[1]))
		}
	}

	for _, h := range hooks {
		if !used[h.Name] {
			return "", fmt.Errorf("%w: %q", ErrHookNotFound, h.Name)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// HookSites returns the names of every @oxy:hook site in source, in source order.
// Malformed annotations are reported as errors.
//
// Parameters:
//   - source: the annotated WGSL source
//
// Returns:
//   - []string: the hook names found
//   - error: an error if any annotation line is malformed
func HookSites(source string) ([]string, error) {
	var names []string
	for i, line := range strings.Split(source, "\n") {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return nil, err
		}
		if a != nil && a.Type == AnnotationTypeHook {
			names = append(names, string(a.Args[0]))
		}
	}
	return names, nil
}
