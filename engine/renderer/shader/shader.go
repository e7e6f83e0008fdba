package shader

import (
	"fmt"
	"os"
	"strings"
)

// ShaderType identifies which pipeline stage a shader belongs to.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL stage attribute name for the shader type.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// shader is the implementation of the Shader interface.
// It holds the raw, annotated WGSL source. Shaders are immutable once created and may be
// shared between any number of materials.
type shader struct {
	key        string
	source     string
	shaderType ShaderType
	entryPoint string
}

// Shader defines the interface for an annotated WGSL shader stage. The source is kept in its
// annotated form; it is expanded by a PreProcessor at pipeline creation time so that
// per-material hooks can be spliced in without mutating the shared shader.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the annotated WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader, annotations included
	Source() string

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "fs_main")
	EntryPoint() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType
}

var _ Shader = &shader{}

// NewShader creates a new Shader by reading WGSL source from disk.
// Panics if the file cannot be read or has no entry point for the given stage.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage of the shader
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key string, shaderType ShaderType, sourcePath string) Shader {
	if sourcePath == "" {
		panic(fmt.Sprintf("shader: %s must have a valid source path", key))
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to read source file %q: %v", sourcePath, err))
	}
	s, err := NewShaderFromSource(key, shaderType, string(data))
	if err != nil {
		panic(err)
	}
	return s
}

// NewShaderFromSource creates a new Shader from in-memory WGSL source, typically an embedded asset.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage of the shader
//   - source: the annotated WGSL source
//
// Returns:
//   - Shader: the shader
//   - error: an error if the source has no entry point for the stage
func NewShaderFromSource(key string, shaderType ShaderType, source string) (Shader, error) {
	entry := parseEntryPoint(source, shaderType)
	if entry == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point found", key, shaderType)
	}
	return &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
		entryPoint: entry,
	}, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

// parseEntryPoint finds the function name following the stage attribute (@vertex or @fragment).
// Returns an empty string when the stage attribute is absent.
func parseEntryPoint(source string, shaderType ShaderType) string {
	attr := "@" + shaderType.String()
	idx := strings.Index(source, attr)
	if idx < 0 {
		return ""
	}
	rest := source[idx+len(attr):]
	_, afterFn, ok := strings.Cut(rest, "fn ")
	if !ok {
		return ""
	}
	name, _, ok := strings.Cut(strings.TrimSpace(afterFn), "(")
	if !ok {
		return ""
	}
	return strings.TrimSpace(name)
}
