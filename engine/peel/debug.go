package peel

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-peel/common"
	"github.com/Carmen-Shannon/oxy-peel/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/mrjoshuak/go-openexr/exr"
	"golang.org/x/image/draw"
)

// TargetImage reads a render target's color back into an 8-bit straight-alpha image.
//
// Parameters:
//   - device: the renderer that owns rt
//   - rt: the render target, or nil for the default framebuffer
//
// Returns:
//   - *image.NRGBA: the image, top row first
//   - error: the readback error, if any
func TargetImage(device renderer.Renderer, rt renderer.RenderTarget) (*image.NRGBA, error) {
	pixels, err := device.ReadPixels(rt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", targetLabel(rt), err)
	}
	var w, h int
	if rt != nil {
		w, h = rt.Width(), rt.Height()
	} else {
		w, h = device.Size()
	}
	if len(pixels) != w*h {
		return nil, fmt.Errorf("read %s: got %d pixels for %dx%d", targetLabel(rt), len(pixels), w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, c := range pixels {
		img.SetNRGBA(i%w, i/w, toNRGBA(c))
	}
	return img, nil
}

func toNRGBA(c common.Color) color.NRGBA {
	c = c.Clamped()
	return color.NRGBA{
		R: uint8(math32.Round(c.R * 255)),
		G: uint8(math32.Round(c.G * 255)),
		B: uint8(math32.Round(c.B * 255)),
		A: uint8(math32.Round(c.A * 255)),
	}
}

// TargetEXR reads a render target's color back into a floating point image without
// quantizing it, so layer colors can be inspected at full precision.
//
// Parameters:
//   - device: the renderer that owns rt
//   - rt: the render target, or nil for the default framebuffer
//
// Returns:
//   - *exr.RGBAImage: the image, top row first
//   - error: the readback error, if any
func TargetEXR(device renderer.Renderer, rt renderer.RenderTarget) (*exr.RGBAImage, error) {
	pixels, err := device.ReadPixels(rt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", targetLabel(rt), err)
	}
	var w, h int
	if rt != nil {
		w, h = rt.Width(), rt.Height()
	} else {
		w, h = device.Size()
	}
	if len(pixels) != w*h {
		return nil, fmt.Errorf("read %s: got %d pixels for %dx%d", targetLabel(rt), len(pixels), w, h)
	}

	img := exr.NewRGBAImage(image.Rect(0, 0, w, h))
	for i, c := range pixels {
		img.SetRGBA(i%w, i/w, c.R, c.G, c.B, c.A)
	}
	return img, nil
}

// DepthImage reads a depth texture back into a 16-bit grayscale image, near surfaces dark.
//
// Parameters:
//   - device: the renderer that owns t
//   - t: the depth texture
//
// Returns:
//   - *image.Gray16: the image, top row first
//   - error: the readback error, if any
func DepthImage(device renderer.Renderer, t renderer.Texture) (*image.Gray16, error) {
	depth, err := device.ReadDepth(t)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Label(), err)
	}
	w := t.Width()
	img := image.NewGray16(image.Rect(0, 0, w, t.Height()))
	for i, z := range depth {
		img.SetGray16(i%w, i/w, color.Gray16{Y: uint16(math32.Round(common.Clamp(z, 0, 1) * 0xffff))})
	}
	return img, nil
}

// DumpTarget encodes a render target's color as PNG. A positive scale resizes the image with
// bilinear filtering first.
//
// Parameters:
//   - device: the renderer that owns rt
//   - rt: the render target, or nil for the default framebuffer
//   - scale: the resize factor, or 0 to keep the size
//   - w: the destination
//
// Returns:
//   - error: the readback or encoding error, if any
func DumpTarget(device renderer.Renderer, rt renderer.RenderTarget, scale float32, w io.Writer) error {
	img, err := TargetImage(device, rt)
	if err != nil {
		return err
	}
	return png.Encode(w, scaled(img, scale))
}

// scaled returns img resized by scale, or img itself when scale is 0 or 1.
func scaled(img image.Image, scale float32) image.Image {
	if scale <= 0 || scale == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(math32.Round(float32(b.Dx())*scale)))
	h := max(1, int(math32.Round(float32(b.Dy())*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// DumpLayers writes every layer buffer of a fixed-mode driver and the final composite to dir
// as layer_<i>.png and layer_<i>_depth.png, plus composite.png and a full precision
// composite.exr.
//
// Parameters:
//   - d: the driver, after a Render
//   - device: the renderer the driver rendered with
//   - c: the composite returned by Render, or nil to skip it
//   - dir: the output directory, created if missing
//
// Returns:
//   - error: the first readback, encoding or file error
func DumpLayers(d Driver, device renderer.Renderer, c *Composite, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; ; i++ {
		rt := d.LayerTarget(i)
		if rt == nil {
			break
		}
		img, err := TargetImage(device, rt)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("layer_%d.png", i)), img); err != nil {
			return err
		}
		depth, err := DepthImage(device, rt.Depth())
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("layer_%d_depth.png", i)), depth); err != nil {
			return err
		}
	}
	if c == nil {
		return nil
	}
	img, err := TargetImage(device, c.Target)
	if err != nil {
		return err
	}
	if err := writePNG(filepath.Join(dir, "composite.png"), img); err != nil {
		return err
	}
	hdr, err := TargetEXR(device, c.Target)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "composite.exr")
	if err := exr.EncodeFile(path, hdr); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
