package shader

// PreProcessorBuilderOption is a functional option applied to a pre-processor during construction.
type PreProcessorBuilderOption func(*preProcessor)

// WithInclude registers a WGSL struct source under an annotation key, making it available to
// @oxy:include and as the type of @oxy:group declarations.
//
// Parameters:
//   - key: the annotation argument that names the struct (e.g. AnnotationArgCamera)
//   - typeName: the WGSL type name declared by source
//   - source: the WGSL struct definition
//
// Returns:
//   - PreProcessorBuilderOption: option function to apply
func WithInclude(key AnnotationArg, typeName, source string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.structRegistry[key] = registryEntry{Source: source, Type: typeName}
	}
}
