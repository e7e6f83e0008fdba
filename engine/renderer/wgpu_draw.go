package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/model"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

// preparedDraw is one scene node with every GPU resource its draw call binds.
type preparedDraw struct {
	pipeline pipeline.Pipeline
	mesh     bind_group_provider.BindGroupProvider
	groups   []*wgpu.BindGroup
}

func uniformLayoutEntry(binding uint32, visibility wgpu.ShaderStage, size uint64) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}
	entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	entry.Buffer.MinBindingSize = size
	return entry
}

func textureLayoutEntry(binding uint32, sampleType wgpu.TextureSampleType) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageFragment,
	}
	entry.Texture.SampleType = sampleType
	entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	return entry
}

// createSceneLayouts creates the fixed layouts of groups 0 to 2.
func (b *wgpuRendererBackendImpl) createSceneLayouts() error {
	var cameraSize camera.GPUCameraUniform
	var materialSize material.GPUMaterialUniform
	var modelSize model.GPUModelData

	var err error
	b.cameraLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Camera Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, uint64(cameraSize.Size()))},
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group %d: %w", cameraGroup, err)
	}
	b.materialLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Material Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, wgpu.ShaderStageFragment, uint64(materialSize.Size()))},
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group %d: %w", materialGroup, err)
	}
	b.modelLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Model Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, wgpu.ShaderStageVertex, uint64(modelSize.Size()))},
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group %d: %w", modelGroup, err)
	}
	return nil
}

// hookLayout returns the group 3 layout: a uniform block and, when withTexture is set, a depth
// texture read with textureLoad.
func (b *wgpuRendererBackendImpl) hookLayout(withTexture bool) (*wgpu.BindGroupLayout, error) {
	if l, ok := b.hookLayouts[withTexture]; ok {
		return l, nil
	}
	entries := []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, wgpu.ShaderStageFragment, 0)}
	if withTexture {
		entries = append(entries, textureLayoutEntry(1, wgpu.TextureSampleTypeDepth))
	}
	l, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Hook Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", HookGroup, err)
	}
	b.hookLayouts[withTexture] = l
	return l, nil
}

// hookBinding returns the single hook of mat that binds resources, or nil.
func hookBinding(mat material.Material) (shader.HookBinding, error) {
	var found shader.HookBinding
	for _, h := range mat.Hooks() {
		if h.Binding == nil {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("material %q: more than one hook binds resources: %w", mat.Name(), ErrUnsupported)
		}
		if h.Binding.Group() != HookGroup {
			return nil, fmt.Errorf("material %q, hook %q: group %d: %w", mat.Name(), h.Name, h.Binding.Group(), ErrUnsupported)
		}
		found = h.Binding
	}
	return found, nil
}

// registerRenderPipeline creates the shader modules, pipeline layout and render pipeline of p.
// Adapted from the engine's single-target pipeline registration: one color target, optional
// depth, no multisampling.
func (b *wgpuRendererBackendImpl) registerRenderPipeline(p pipeline.Pipeline, layouts []*wgpu.BindGroupLayout) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return fmt.Errorf("pipeline %s: both vertex and fragment shaders must be set", p.PipelineKey())
	}

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fragmentShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragmentShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer fs.Release()

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    p.ColorFormat(),
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != wgpu.TextureFormatUndefined {
		depthCompare := wgpu.CompareFunctionLess
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            p.DepthFormat(),
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    p.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created, layouts)
	return nil
}

// scenePipeline returns the cached pipeline for a material drawn into a target, creating it on
// first use.
func (b *wgpuRendererBackendImpl) scenePipeline(mat material.Material, color *wgpuTexture, depth *wgpuTexture, blendOff bool) (pipeline.Pipeline, error) {
	depthFormat := wgpu.TextureFormatUndefined
	if depth != nil {
		depthFormat = depth.gpuFormat
	}
	key := fmt.Sprintf("%s|%v|%v|blendoff=%t", mat.PipelineKey(), color.gpuFormat, depthFormat, blendOff)
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	binding, err := hookBinding(mat)
	if err != nil {
		return nil, err
	}
	layouts := []*wgpu.BindGroupLayout{b.cameraLayout, b.materialLayout, b.modelLayout}
	if binding != nil {
		l, err := b.hookLayout(binding.Texture() != nil)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}

	vs, fs, err := processSceneShaders(b.preProcessor, key, mat)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", mat.Name(), err)
	}
	vertexLayout, err := shader.VertexLayout(vs)
	if err != nil {
		return nil, err
	}
	p := pipeline.NewPipeline(key,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorFormat(color.gpuFormat),
		pipeline.WithDepthFormat(depthFormat),
		pipeline.WithDepthTestEnabled(mat.DepthTest()),
		pipeline.WithDepthWriteEnabled(mat.DepthWrite()),
		pipeline.WithBlendEnabled(!blendOff && mat.Blending() == material.BlendNormal),
		pipeline.WithVertexLayouts(vertexLayout),
	)
	if err := b.registerRenderPipeline(p, layouts); err != nil {
		return nil, fmt.Errorf("material %q: %w", mat.Name(), err)
	}
	b.pipelines[key] = p
	return p, nil
}

// bindUniformGroup writes data into the provider's binding 0 buffer, creating it on first use,
// and (re)creates the bind group when the bound resources changed.
func (b *wgpuRendererBackendImpl) bindUniformGroup(provider bind_group_provider.BindGroupProvider, layout *wgpu.BindGroupLayout, data []byte, depth *wgpuTexture) (*wgpu.BindGroup, error) {
	buf := provider.Buffer(0)
	if buf == nil {
		var err error
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: provider.Label() + " Buffer",
			Size:  uint64(len(data)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		provider.SetBuffer(0, buf)
	}
	b.queue.WriteBuffer(buf, 0, data)

	entries := []wgpu.BindGroupEntry{{
		Binding: 0,
		Buffer:  buf,
		Offset:  0,
		Size:    wgpu.WholeSize,
	}}
	var key any = buf
	if depth != nil {
		key = depth.view
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     1,
			TextureView: depth.view,
		})
	}
	if provider.BindGroup() != nil && provider.BoundKey() == key {
		return provider.BindGroup(), nil
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	provider.SetBindGroup(bindGroup, key)
	return bindGroup, nil
}

// meshProvider returns the model's mesh buffers, uploading them on first use.
func (b *wgpuRendererBackendImpl) meshProvider(mdl model.Model) (bind_group_provider.BindGroupProvider, error) {
	provider := mdl.MeshProvider()
	if provider == nil {
		provider = bind_group_provider.NewBindGroupProvider(mdl.Name() + " mesh")
		mdl.SetMeshProvider(provider)
	}
	if provider.VertexBuffer() != nil {
		return provider, nil
	}

	vertexData, indexData := mdl.VertexData(), mdl.IndexData()
	vbuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: provider.Label() + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(vbuf, 0, vertexData)
	ibuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: provider.Label() + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vbuf.Release()
		return nil, err
	}
	b.queue.WriteBuffer(ibuf, 0, indexData)
	provider.SetMesh(vbuf, ibuf, mdl.IndexCount())
	return provider, nil
}

// prepareDraw resolves the pipeline, mesh and bind groups of one scene node and stages its
// uniform writes.
func (b *wgpuRendererBackendImpl) prepareDraw(d scene.Drawable, cameraGroupBG *wgpu.BindGroup, color, depth *wgpuTexture, blendOff bool) (*preparedDraw, error) {
	obj := d.Object
	mat, mdl := obj.Material(), obj.Model()

	p, err := b.scenePipeline(mat, color, depth, blendOff)
	if err != nil {
		return nil, err
	}
	mesh, err := b.meshProvider(mdl)
	if err != nil {
		return nil, err
	}

	matProvider := mat.BindGroupProvider()
	if matProvider == nil {
		matProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("material_%d", mat.ID()))
		mat.SetBindGroupProvider(matProvider)
		b.ownedProviders = append(b.ownedProviders, matProvider)
	}
	matUniform := material.GPUMaterialUniform{BaseColor: mat.BaseColor().Array()}
	matBG, err := b.bindUniformGroup(matProvider, b.materialLayout, matUniform.Marshal(), nil)
	if err != nil {
		return nil, err
	}

	nodeProvider := obj.BindGroupProvider()
	if nodeProvider == nil {
		nodeProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("node_%d", obj.ID()))
		obj.SetBindGroupProvider(nodeProvider)
		b.ownedProviders = append(b.ownedProviders, nodeProvider)
	}
	modelData := model.GPUModelData{Model: d.World}
	nodeBG, err := b.bindUniformGroup(nodeProvider, b.modelLayout, modelData.Marshal(), nil)
	if err != nil {
		return nil, err
	}

	prepared := &preparedDraw{
		pipeline: p,
		mesh:     mesh,
		groups:   []*wgpu.BindGroup{cameraGroupBG, matBG, nodeBG},
	}

	binding, err := hookBinding(mat)
	if err != nil || binding == nil {
		return prepared, err
	}
	hookProvider, ok := b.hookProviders[binding]
	if !ok {
		hookProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("hook_%p", binding))
		b.hookProviders[binding] = hookProvider
	}
	var hookTexture *wgpuTexture
	if t, ok := binding.Texture().(Texture); ok && t != nil {
		if hookTexture, err = b.texture(t); err != nil {
			return nil, err
		}
	}
	layout, err := b.hookLayout(hookTexture != nil)
	if err != nil {
		return nil, err
	}
	hookBG, err := b.bindUniformGroup(hookProvider, layout, binding.UniformBytes(), hookTexture)
	if err != nil {
		return nil, err
	}
	prepared.groups = append(prepared.groups, hookBG)
	return prepared, nil
}

// DrawScene records every drawable into one render pass that loads and stores the target.
func (b *wgpuRendererBackendImpl) DrawScene(target RenderTarget, draws []scene.Drawable, cam camera.Camera, blendOff bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	color, depth, err := b.attachments(target)
	if err != nil {
		return err
	}
	if len(draws) == 0 {
		return nil
	}

	camUniform := cam.Uniform()
	cameraBG, err := b.bindUniformGroup(cam.BindGroupProvider(), b.cameraLayout, camUniform.Marshal(), nil)
	if err != nil {
		return err
	}

	prepared := make([]*preparedDraw, 0, len(draws))
	for _, d := range draws {
		if d.Object.Model() == nil || d.Object.Material() == nil {
			continue
		}
		pd, err := b.prepareDraw(d, cameraBG, color, depth, blendOff)
		if err != nil {
			return fmt.Errorf("draw %q: %w", d.Object.Name(), err)
		}
		prepared = append(prepared, pd)
	}

	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    color.view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:         depth.view,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
	}

	return b.submit(func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginRenderPass(desc)
		for _, pd := range prepared {
			pass.SetPipeline(pd.pipeline.RenderPipeline())
			for i, bg := range pd.groups {
				pass.SetBindGroup(uint32(i), bg, nil)
			}
			pass.SetVertexBuffer(0, pd.mesh.VertexBuffer(), 0, wgpu.WholeSize)
			pass.SetIndexBuffer(pd.mesh.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(uint32(pd.mesh.IndexCount()), 1, 0, 0, 0)
		}
		pass.End()
		return nil
	})
}

// fullscreenPipeline returns the cached pipeline for a full-screen program with n inputs.
func (b *wgpuRendererBackendImpl) fullscreenPipeline(program FullscreenProgram, n int, color *wgpuTexture, blendOff bool) (pipeline.Pipeline, *wgpu.BindGroupLayout, error) {
	layout, ok := b.fullscreenLayouts[n]
	if !ok {
		entries := make([]wgpu.BindGroupLayoutEntry, n)
		for i := range entries {
			entries[i] = textureLayoutEntry(uint32(i), wgpu.TextureSampleTypeUnfilterableFloat)
		}
		var err error
		layout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("Fullscreen Layout %d", n),
			Entries: entries,
		})
		if err != nil {
			return nil, nil, err
		}
		b.fullscreenLayouts[n] = layout
	}

	key := fmt.Sprintf("fullscreen|%s|%d|%v|blendoff=%t", program.Name, n, color.gpuFormat, blendOff)
	if p, ok := b.pipelines[key]; ok {
		return p, layout, nil
	}
	if program.Fragment == nil {
		return nil, nil, fmt.Errorf("program %s: no fragment shader: %w", program.Name, ErrUnsupported)
	}
	if _, err := shader.Validate(program.Fragment.Key(), program.Fragment.Source()); err != nil {
		return nil, nil, err
	}

	p := pipeline.NewPipeline(key,
		pipeline.WithVertexShader(FullscreenVertexShader()),
		pipeline.WithFragmentShader(program.Fragment),
		pipeline.WithColorFormat(color.gpuFormat),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithBlendEnabled(!blendOff),
	)
	if err := b.registerRenderPipeline(p, []*wgpu.BindGroupLayout{layout}); err != nil {
		return nil, nil, fmt.Errorf("program %s: %w", program.Name, err)
	}
	b.pipelines[key] = p
	return p, layout, nil
}

// blankTexture returns a 1x1 transparent float texture bound in place of nil inputs.
func (b *wgpuRendererBackendImpl) blankTexture() (*wgpuTexture, error) {
	if b.blank != nil {
		return b.blank, nil
	}
	t, err := b.newTexture("blank", 1, 1, TextureFormatRGBA32Float)
	if err != nil {
		return nil, err
	}
	b.blank = t
	return t, nil
}

// DrawFullscreen draws one oversized triangle with the program's fragment stage.
func (b *wgpuRendererBackendImpl) DrawFullscreen(target RenderTarget, program FullscreenProgram, inputs []Texture, blendOff bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	color, _, err := b.attachments(target)
	if err != nil {
		return err
	}
	p, layout, err := b.fullscreenPipeline(program, len(inputs), color, blendOff)
	if err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, len(inputs))
	for i, in := range inputs {
		var t *wgpuTexture
		if in == nil {
			t, err = b.blankTexture()
		} else {
			t, err = b.texture(in)
		}
		if err != nil {
			return err
		}
		if t.format.IsDepth() {
			return fmt.Errorf("program %s, input %d: depth textures cannot be sampled as color: %w", program.Name, i, ErrUnsupported)
		}
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), TextureView: t.view}
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   program.Name + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	return b.submit(func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{
				{
					View:    color.view,
					LoadOp:  wgpu.LoadOpLoad,
					StoreOp: wgpu.StoreOpStore,
				},
			},
		})
		pass.SetPipeline(p.RenderPipeline())
		pass.SetBindGroup(0, bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
		pass.End()
		return nil
	})
}
