package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mrjoshuak/go-openexr/half"
)

// wgpuTexture is a GPU texture and its default view. The swapchain color texture is not owned
// and is swapped in by BeginFrame.
type wgpuTexture struct {
	label         string
	width, height int
	format        TextureFormat
	gpuFormat     wgpu.TextureFormat
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	owned         bool
	released      bool
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string {
	return t.label
}

func (t *wgpuTexture) Width() int {
	return t.width
}

func (t *wgpuTexture) Height() int {
	return t.height
}

func (t *wgpuTexture) Format() TextureFormat {
	return t.format
}

func (t *wgpuTexture) Released() bool {
	return t.released
}

func (t *wgpuTexture) Release() {
	if t.released || !t.owned {
		return
	}
	t.released = true
	t.releaseGPU()
}

func (t *wgpuTexture) releaseGPU() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// gpuTextureFormat maps a device format onto the wgpu format backing it. Float layers are
// stored as RGBA16Float, the widest color format core WebGPU can blend into.
func gpuTextureFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case TextureFormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case TextureFormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA16Float
	}
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	// screen is the default framebuffer: the swapchain texture of the current frame plus an
	// owned depth texture sized to the surface.
	screen     *renderTarget
	frameColor *wgpuTexture

	preProcessor shader.PreProcessor

	// Fixed bind group layouts shared by every scene pipeline.
	cameraLayout   *wgpu.BindGroupLayout
	materialLayout *wgpu.BindGroupLayout
	modelLayout    *wgpu.BindGroupLayout
	hookLayouts    map[bool]*wgpu.BindGroupLayout

	fullscreenLayouts map[int]*wgpu.BindGroupLayout
	pipelines         map[string]pipeline.Pipeline
	hookProviders     map[shader.HookBinding]bind_group_provider.BindGroupProvider
	ownedProviders    []bind_group_provider.BindGroupProvider
	blank             *wgpuTexture
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:                &sync.Mutex{},
		instance:          wgpu.CreateInstance(nil),
		presentMode:       wgpu.PresentModeImmediate,
		preProcessor:      newScenePreProcessor(),
		hookLayouts:       make(map[bool]*wgpu.BindGroupLayout),
		fullscreenLayouts: make(map[int]*wgpu.BindGroupLayout),
		pipelines:         make(map[string]pipeline.Pipeline),
		hookProviders:     make(map[shader.HookBinding]bind_group_provider.BindGroupProvider),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	if err := w.createSceneLayouts(); err != nil {
		panic(err)
	}
	w.frameColor = &wgpuTexture{label: "swapchain", format: TextureFormatRGBA8}

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatRGBA8Unorm || f == wgpu.TextureFormatBGRA8Unorm {
			b.surfaceFormat = f
			break
		}
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.frameColor.width, b.frameColor.height = width, height
	b.frameColor.gpuFormat = b.surfaceFormat

	depth, err := b.newTexture("default depth", width, height, TextureFormatDepth32Float)
	if err != nil {
		panic(err)
	}
	if b.screen == nil {
		b.screen = &renderTarget{label: "default", color: b.frameColor, backend: b}
	} else if prev := b.screen.SetDepth(nil); prev != nil {
		prev.Release()
	}
	b.screen.SetDepth(depth)
}

// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
//
// Parameters:
//   - mode: the PresentMode to use
func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) DefaultTarget() RenderTarget {
	return b.screen
}

// newTexture creates an owned texture usable as an attachment, a binding and a copy source.
// Depth textures start at 1. Callers hold b.mu.
func (b *wgpuRendererBackendImpl) newTexture(label string, width, height int, format TextureFormat) (*wgpuTexture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("texture %s: invalid size %dx%d", label, width, height)
	}
	t := &wgpuTexture{
		label:     label,
		format:    format,
		gpuFormat: gpuTextureFormat(format),
		owned:     true,
	}
	if err := b.allocate(t, width, height); err != nil {
		return nil, err
	}
	return t, nil
}

// allocate (re)creates the GPU storage of t at the given size.
func (b *wgpuRendererBackendImpl) allocate(t *wgpuTexture, width, height int) error {
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc
	if !t.format.IsDepth() {
		usage |= wgpu.TextureUsageCopyDst
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: t.label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        t.gpuFormat,
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("texture %s (%dx%d %s): %w: %v", t.label, width, height, t.format, ErrOutOfMemory, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("texture %s: %w", t.label, err)
	}

	t.releaseGPU()
	t.texture, t.view = tex, view
	t.width, t.height = width, height

	if t.format.IsDepth() {
		return b.clearDepth(t, 1)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, width, height int, format TextureFormat) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newTexture(label, width, height, format)
}

func (b *wgpuRendererBackendImpl) FillDepth(t Texture, value float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, err := b.texture(t)
	if err != nil {
		return err
	}
	if !wt.format.IsDepth() {
		return fmt.Errorf("texture %s: not a depth texture", wt.label)
	}
	return b.clearDepth(wt, value)
}

func (b *wgpuRendererBackendImpl) ResizeTexture(t Texture, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, err := b.texture(t)
	if err != nil {
		return err
	}
	if !wt.owned {
		return fmt.Errorf("texture %s: %w", wt.label, ErrUnsupported)
	}
	if width == wt.width && height == wt.height {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("texture %s: invalid size %dx%d", wt.label, width, height)
	}
	return b.allocate(wt, width, height)
}

// clearDepth fills a depth texture with a depth-only clear pass. Depth formats cannot be
// written with queue copies.
func (b *wgpuRendererBackendImpl) clearDepth(t *wgpuTexture, value float32) error {
	return b.submit(func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            t.view,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: value,
			},
		})
		pass.End()
		return nil
	})
}

func (b *wgpuRendererBackendImpl) Clear(target RenderTarget, c common.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	color, depth, err := b.attachments(target)
	if err != nil {
		return err
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       color.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: c.WGPU(),
			},
		},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	return b.submit(func(encoder *wgpu.CommandEncoder) error {
		encoder.BeginRenderPass(desc).End()
		return nil
	})
}

func (b *wgpuRendererBackendImpl) ReadPixels(t Texture) ([]common.Color, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, err := b.texture(t)
	if err != nil {
		return nil, err
	}
	if wt.format.IsDepth() {
		return nil, fmt.Errorf("texture %s: not a color texture", wt.label)
	}
	if wt.view == nil {
		return nil, ErrNoFrame
	}

	switch wt.gpuFormat {
	case wgpu.TextureFormatRGBA16Float:
		data, err := b.readTexture(wt, 8, wgpu.TextureAspectAll)
		if err != nil {
			return nil, err
		}
		channels := make([]float32, len(data)/2)
		half.ConvertBytesToFloat32(channels, data)
		out := make([]common.Color, wt.width*wt.height)
		for i := range out {
			out[i] = common.RGBA(channels[i*4], channels[i*4+1], channels[i*4+2], channels[i*4+3])
		}
		return out, nil
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatBGRA8Unorm:
		data, err := b.readTexture(wt, 4, wgpu.TextureAspectAll)
		if err != nil {
			return nil, err
		}
		out := make([]common.Color, wt.width*wt.height)
		for i := range out {
			r, g, bl, a := data[i*4], data[i*4+1], data[i*4+2], data[i*4+3]
			if wt.gpuFormat == wgpu.TextureFormatBGRA8Unorm {
				r, bl = bl, r
			}
			out[i] = common.RGBA(float32(r)/255, float32(g)/255, float32(bl)/255, float32(a)/255)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("texture %s: readback of format %v: %w", wt.label, wt.gpuFormat, ErrUnsupported)
	}
}

func (b *wgpuRendererBackendImpl) ReadDepth(t Texture) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, err := b.texture(t)
	if err != nil {
		return nil, err
	}
	if !wt.format.IsDepth() {
		return nil, fmt.Errorf("texture %s: not a depth texture", wt.label)
	}
	data, err := b.readTexture(wt, 4, wgpu.TextureAspectDepthOnly)
	if err != nil {
		return nil, err
	}
	out := make([]float32, wt.width*wt.height)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// readTexture copies a texture into a mappable buffer and returns its tightly packed rows.
func (b *wgpuRendererBackendImpl) readTexture(t *wgpuTexture, bytesPerPixel int, aspect wgpu.TextureAspect) ([]byte, error) {
	unpadded := uint64(t.width * bytesPerPixel)
	align := uint64(wgpu.CopyBytesPerRowAlignment)
	padded := unpadded + (align-unpadded%align)%align
	size := padded * uint64(t.height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: t.label + " Readback Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	err = b.submit(func(encoder *wgpu.CommandEncoder) error {
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  t.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   aspect,
			},
			&wgpu.ImageCopyBuffer{
				Buffer: buf,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  uint32(padded),
					RowsPerImage: uint32(t.height),
				},
			},
			&wgpu.Extent3D{
				Width:              uint32(t.width),
				Height:             uint32(t.height),
				DepthOrArrayLayers: 1,
			},
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var status wgpu.BufferMapAsyncStatus
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("texture %s: readback map failed with status %v", t.label, status)
	}

	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, unpadded*uint64(t.height))
	for y := uint64(0); y < uint64(t.height); y++ {
		copy(out[y*unpadded:(y+1)*unpadded], mapped[y*padded:y*padded+unpadded])
	}
	buf.Unmap()
	return out, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameColor.texture != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	b.frameColor.texture = surfaceTexture
	b.frameColor.view = view
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameColor.texture == nil {
		return
	}
	b.surface.Present()
	b.frameColor.releaseGPU()
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, key)
	}
	for binding, p := range b.hookProviders {
		p.Release()
		delete(b.hookProviders, binding)
	}
	for _, p := range b.ownedProviders {
		p.Release()
	}
	b.ownedProviders = nil
	for _, l := range b.fullscreenLayouts {
		l.Release()
	}
	for _, l := range b.hookLayouts {
		l.Release()
	}
	for _, l := range []*wgpu.BindGroupLayout{b.cameraLayout, b.materialLayout, b.modelLayout} {
		if l != nil {
			l.Release()
		}
	}
	if b.blank != nil {
		b.blank.Release()
	}
	if b.screen != nil && b.screen.Depth() != nil {
		b.screen.Depth().Release()
	}
	b.frameColor.releaseGPU()
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	runtime.UnlockOSThread()
}

// submit records commands with fn into a fresh encoder and submits them.
func (b *wgpuRendererBackendImpl) submit(fn func(encoder *wgpu.CommandEncoder) error) error {
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	if err := fn(encoder); err != nil {
		return err
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// texture unwraps a Texture created by this backend.
func (b *wgpuRendererBackendImpl) texture(t Texture) (*wgpuTexture, error) {
	wt, ok := t.(*wgpuTexture)
	if !ok || wt == nil {
		return nil, fmt.Errorf("texture %T was not created by the wgpu backend: %w", t, ErrUnsupported)
	}
	if wt.released {
		return nil, fmt.Errorf("texture %s: %w", wt.label, ErrReleased)
	}
	return wt, nil
}

// attachments unwraps a target's color and optional depth attachments.
func (b *wgpuRendererBackendImpl) attachments(target RenderTarget) (*wgpuTexture, *wgpuTexture, error) {
	color, err := b.texture(target.Color())
	if err != nil {
		return nil, nil, fmt.Errorf("target %s: %w", target.Label(), err)
	}
	if color.view == nil {
		return nil, nil, fmt.Errorf("target %s: %w", target.Label(), ErrNoFrame)
	}
	if target.Depth() == nil {
		return color, nil, nil
	}
	depth, err := b.texture(target.Depth())
	if err != nil {
		return nil, nil, fmt.Errorf("target %s: %w", target.Label(), err)
	}
	if depth.width != color.width || depth.height != color.height {
		return nil, nil, fmt.Errorf("target %s: depth %dx%d does not match color %dx%d",
			target.Label(), depth.width, depth.height, color.width, color.height)
	}
	return color, depth, nil
}
