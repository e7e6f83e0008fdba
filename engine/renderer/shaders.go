package renderer

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
)

// sceneVertexSource is the vertex stage of every scene draw: camera at group 0, per-node model
// matrix at group 2.
//
//go:embed assets/scene_vertex.wgsl
var sceneVertexSource string

// Scene bind group indices shared by the vertex stage and material fragment stages.
const (
	cameraGroup   = 0
	materialGroup = 1
	modelGroup    = 2
)

// HookGroup is the bind group a hook's declarations must use. At most one hook per material
// may bind resources.
const HookGroup = 3

// newScenePreProcessor returns a pre-processor with every struct a scene shader may include.
func newScenePreProcessor() shader.PreProcessor {
	return shader.NewPreProcessor(
		shader.WithInclude(shader.AnnotationArgCamera, "CameraUniform", camera.GPUCameraUniformSource),
		shader.WithInclude(shader.AnnotationArgVertex, "VertexInput", model.GPUVertexSource),
		shader.WithInclude(shader.AnnotationArgModel, "ModelData", model.GPUModelDataSource),
		shader.WithInclude(shader.AnnotationArgMaterial, "MaterialUniform", material.GPUMaterialUniformSource),
	)
}

// processSceneShaders expands the scene vertex stage and a material's fragment stage with its
// hooks spliced in, and checks both compile.
func processSceneShaders(pp shader.PreProcessor, key string, mat material.Material) (shader.Shader, shader.Shader, error) {
	vsSource, err := pp.Process(sceneVertexSource)
	if err != nil {
		return nil, nil, err
	}
	fsSource, err := pp.Process(mat.FragmentShader().Source(), mat.Hooks()...)
	if err != nil {
		return nil, nil, err
	}
	vs, err := shader.NewShaderFromSource(key+" vertex", shader.ShaderTypeVertex, vsSource)
	if err != nil {
		return nil, nil, err
	}
	fs, err := shader.NewShaderFromSource(key+" fragment", shader.ShaderTypeFragment, fsSource)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range []shader.Shader{vs, fs} {
		if _, err := shader.Validate(s.Key(), s.Source()); err != nil {
			return nil, nil, err
		}
	}
	return vs, fs, nil
}

// ValidateMaterial expands a material's fragment stage with its hooks and compiles it, so a
// broken material is reported before its first draw.
//
// Parameters:
//   - mat: the material to check
//
// Returns:
//   - []string: non-fatal validation findings
//   - error: an error if the processed source does not compile
func ValidateMaterial(mat material.Material) ([]string, error) {
	source, err := newScenePreProcessor().Process(mat.FragmentShader().Source(), mat.Hooks()...)
	if err != nil {
		return nil, err
	}
	findings, err := shader.Validate(mat.PipelineKey()+" fragment", source)
	if err != nil {
		return nil, err
	}
	messages := make([]string, 0, len(findings))
	for _, f := range findings {
		messages = append(messages, f.Error())
	}
	return messages, nil
}
