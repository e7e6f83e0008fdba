package renderer

import (
	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/camera"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-peel/engine/scene"
)

// clipEpsilon is the smallest clip-space w accepted for a vertex. Triangles with a vertex
// behind or on the camera plane are dropped rather than clipped.
const clipEpsilon = 1e-6

// screenVertex is a vertex after projection and viewport mapping.
type screenVertex struct {
	x, y, z float32
	invW    float32
	color   common.Color
}

// screenTriangle is a projected triangle ready for scan conversion, with its material state.
type screenTriangle struct {
	v          [3]screenVertex
	area       float32
	minX, maxX int
	minY, maxY int
	mat        material.Material
	hooks      []shader.Hook
	blend      bool
}

// edge is the signed area of (a, b, p). The shared edge of two adjacent triangles is always
// evaluated in the same vertex order so both sides see exactly negated values.
func edge(ax, ay, bx, by, px, py float32) float32 {
	if ay > by || (ay == by && ax > bx) {
		return -((px-bx)*(ay-by) - (py-by)*(ax-bx))
	}
	return (px-ax)*(by-ay) - (py-ay)*(bx-ax)
}

// isTopLeft reports whether edge a->b is a top or left edge, for the fill convention.
func isTopLeft(a, b screenVertex) bool {
	return (a.y == b.y && b.x < a.x) || b.y > a.y
}

// setupTriangles projects every drawable into window space for a width x height target.
func setupTriangles(draws []scene.Drawable, cam camera.Camera, width, height int, blendOff bool) []screenTriangle {
	viewProj := cam.ViewProjectionMatrix()
	fw, fh := float32(width), float32(height)
	var tris []screenTriangle

	for _, d := range draws {
		mdl := d.Object.Model()
		mat := d.Object.Material()
		if mdl == nil || mat == nil {
			continue
		}
		var mvp [16]float32
		common.Mul4(mvp[:], viewProj[:], d.World[:])

		verts := mdl.Vertices()
		projected := make([]screenVertex, len(verts))
		valid := make([]bool, len(verts))
		for i, v := range verts {
			clip := common.TransformPoint(mvp[:], v.Position[0], v.Position[1], v.Position[2])
			if clip[3] <= clipEpsilon {
				continue
			}
			invW := 1 / clip[3]
			projected[i] = screenVertex{
				x:     (clip[0]*invW*0.5 + 0.5) * fw,
				y:     (0.5 - clip[1]*invW*0.5) * fh,
				z:     clip[2] * invW,
				invW:  invW,
				color: v.Color,
			}
			valid[i] = true
		}

		hooks := mat.Hooks()
		blend := !blendOff && mat.Blending() == material.BlendNormal
		indices := mdl.Indices()
		for i := 0; i+2 < len(indices); i += 3 {
			a, b, c := indices[i], indices[i+1], indices[i+2]
			if !valid[a] || !valid[b] || !valid[c] {
				continue
			}
			t := screenTriangle{
				v:     [3]screenVertex{projected[a], projected[b], projected[c]},
				mat:   mat,
				hooks: hooks,
				blend: blend,
			}
			t.area = edge(t.v[0].x, t.v[0].y, t.v[1].x, t.v[1].y, t.v[2].x, t.v[2].y)
			if t.area == 0 {
				continue
			}
			if t.area < 0 {
				t.v[1], t.v[2] = t.v[2], t.v[1]
				t.area = -t.area
			}
			t.minX = max(int(min(t.v[0].x, t.v[1].x, t.v[2].x)), 0)
			t.maxX = min(int(max(t.v[0].x, t.v[1].x, t.v[2].x))+1, width-1)
			t.minY = max(int(min(t.v[0].y, t.v[1].y, t.v[2].y)), 0)
			t.maxY = min(int(max(t.v[0].y, t.v[1].y, t.v[2].y))+1, height-1)
			if t.minX > t.maxX || t.minY > t.maxY {
				continue
			}
			tris = append(tris, t)
		}
	}
	return tris
}

// rasterizeBand draws every triangle into rows [y0, y1) of the target in submission order.
func rasterizeBand(tris []screenTriangle, color, depth *softwareTexture, y0, y1 int) {
	frag := &shader.Fragment{}
	for ti := range tris {
		t := &tris[ti]
		if t.maxY < y0 || t.minY >= y1 {
			continue
		}
		v0, v1, v2 := t.v[0], t.v[1], t.v[2]
		tl0, tl1, tl2 := isTopLeft(v1, v2), isTopLeft(v2, v0), isTopLeft(v0, v1)
		depthTest := depth != nil && t.mat.DepthTest()
		depthWrite := depth != nil && t.mat.DepthWrite()

		for y := max(t.minY, y0); y <= t.maxY && y < y1; y++ {
			py := float32(y) + 0.5
			for x := t.minX; x <= t.maxX; x++ {
				px := float32(x) + 0.5
				w0 := edge(v1.x, v1.y, v2.x, v2.y, px, py)
				w1 := edge(v2.x, v2.y, v0.x, v0.y, px, py)
				w2 := edge(v0.x, v0.y, v1.x, v1.y, px, py)
				if !inside(w0, tl0) || !inside(w1, tl1) || !inside(w2, tl2) {
					continue
				}
				b0, b1, b2 := w0/t.area, w1/t.area, w2/t.area
				z := b0*v0.z + b1*v1.z + b2*v2.z
				if z < 0 || z > 1 {
					continue
				}
				i := y*color.width + x
				if depthTest && z >= depth.depth[i] {
					continue
				}

				// Offsets from v0 keep a flat-coloured triangle exact.
				p0, p1, p2 := b0*v0.invW, b1*v1.invW, b2*v2.invW
				norm := 1 / (p0 + p1 + p2)
				p1, p2 = p1*norm, p2*norm
				c0, c1, c2 := v0.color, v1.color, v2.color
				vc := common.Color{
					R: c0.R + p1*(c1.R-c0.R) + p2*(c2.R-c0.R),
					G: c0.G + p1*(c1.G-c0.G) + p2*(c2.G-c0.G),
					B: c0.B + p1*(c1.B-c0.B) + p2*(c2.B-c0.B),
					A: c0.A + p1*(c1.A-c0.A) + p2*(c2.A-c0.A),
				}

				*frag = shader.Fragment{X: px, Y: py, Depth: z, Color: t.mat.Shade(vc).Clamped()}
				if !runHooks(t.hooks, frag) {
					continue
				}

				out := frag.Color
				if t.blend {
					out = blendOver(out, color.color[i])
				}
				color.store(i, out)
				if depthWrite {
					depth.depth[i] = z
				}
			}
		}
	}
}

func inside(w float32, topLeft bool) bool {
	return w > 0 || (w == 0 && topLeft)
}

// runHooks applies each hook's CPU stage in order. Returns false when a hook discards.
func runHooks(hooks []shader.Hook, frag *shader.Fragment) bool {
	for _, h := range hooks {
		if h.Fragment != nil && !h.Fragment(frag) {
			return false
		}
	}
	return true
}

// blendOver applies the pipeline blend state (see pipeline.OverBlendState):
// rgb = src.rgb*src.a + dst.rgb*(1-src.a), a = src.a + dst.a*(1-src.a).
// The stored rgb is not divided by a, so over a translucent destination it is premultiplied
// by coverage. Peeled layers disable blending; only the direct path goes through here.
func blendOver(src, dst common.Color) common.Color {
	inv := 1 - src.A
	return common.Color{
		R: src.R*src.A + dst.R*inv,
		G: src.G*src.A + dst.G*inv,
		B: src.B*src.A + dst.B*inv,
		A: src.A + dst.A*inv,
	}
}

// DrawScene rasterizes the draw list into target, splitting the target into row bands that are
// shaded in parallel. Triangles keep submission order within each band.
func (b *softwareRendererBackendImpl) DrawScene(target RenderTarget, draws []scene.Drawable, cam camera.Camera, blendOff bool) error {
	color, depth, err := b.attachments(target)
	if err != nil {
		return err
	}
	tris := setupTriangles(draws, cam, color.width, color.height, blendOff)
	if len(tris) == 0 {
		return nil
	}
	b.runBands(color.height, func(y0, y1 int) {
		rasterizeBand(tris, color, depth, y0, y1)
	})
	return nil
}

// DrawFullscreen evaluates program.Pixel at every texel of target.
func (b *softwareRendererBackendImpl) DrawFullscreen(target RenderTarget, program FullscreenProgram, inputs []Texture, blendOff bool) error {
	color, _, err := b.attachments(target)
	if err != nil {
		return err
	}
	samplers := make([]*softwareTexture, len(inputs))
	for i, in := range inputs {
		if in == nil {
			continue
		}
		st, err := b.texture(in)
		if err != nil {
			return err
		}
		if st.format.IsDepth() {
			return ErrUnsupported
		}
		samplers[i] = st
	}

	b.runBands(color.height, func(y0, y1 int) {
		texels := make([]common.Color, len(samplers))
		for y := y0; y < y1; y++ {
			for x := 0; x < color.width; x++ {
				for i, s := range samplers {
					if s == nil {
						texels[i] = common.Transparent
						continue
					}
					texels[i] = s.ColorAt(min(x, s.width-1), min(y, s.height-1))
				}
				i := y*color.width + x
				out := program.Pixel(x, y, texels)
				if !blendOff {
					out = blendOver(out, color.color[i])
				}
				color.store(i, out)
			}
		}
	})
	return nil
}
