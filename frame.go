package anim

import (
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Frame is one decoded, render-ready frame of an animated image.
// A Frame is immutable once produced; it is safe to share across goroutines.
//
// Frame implements image.Image.
type Frame struct {
	index  int
	width  int
	height int
	data   []uint8 // NRGBA format, 4 bytes per pixel
}

// newFrame pre-draws a composed bitmap into a render-ready frame, downscaling
// to maxDim on the long side when maxDim > 0.
func newFrame(index int, src *image.NRGBA, maxDim int) *Frame {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	w, h := scaledDims(sw, sh, maxDim)

	f := &Frame{
		index:  index,
		width:  w,
		height: h,
		data:   make([]uint8, w*h*4),
	}

	dst := &image.NRGBA{Pix: f.data, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	if w == sw && h == sh {
		if src.Stride == dst.Stride {
			copy(dst.Pix, src.Pix)
		} else {
			for y := range h {
				copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride],
					src.Pix[y*src.Stride:y*src.Stride+w*4])
			}
		}
		return f
	}

	xdraw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return f
}

// scaledDims fits (w, h) into maxDim on the long side, preserving aspect
// ratio. maxDim <= 0 means no scaling. Dimensions never drop below 1.
func scaledDims(w, h, maxDim int) (int, int) {
	long := max(w, h)
	if maxDim <= 0 || long <= maxDim {
		return w, h
	}
	sw := w * maxDim / long
	sh := h * maxDim / long
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

// Index returns the zero-based frame index within the animation.
func (f *Frame) Index() int {
	return f.index
}

// Width returns the width of the frame in pixels.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the height of the frame in pixels.
func (f *Frame) Height() int {
	return f.height
}

// Data returns the raw pixel data (NRGBA format). The returned slice is the
// frame's backing store and must not be modified.
func (f *Frame) Data() []uint8 {
	return f.data
}

// ToImage converts the frame to a standalone image.NRGBA.
func (f *Frame) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	copy(img.Pix, f.data)
	return img
}

// SavePNG saves the frame to a PNG file.
func (f *Frame) SavePNG(path string) error {
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	return png.Encode(file, f.ToImage())
}

// At implements the image.Image interface.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return color.NRGBA{}
	}
	i := (y*f.width + x) * 4
	return color.NRGBA{R: f.data[i], G: f.data[i+1], B: f.data[i+2], A: f.data[i+3]}
}

// Bounds implements the image.Image interface.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// ColorModel implements the image.Image interface.
func (f *Frame) ColorModel() color.Model {
	return color.NRGBAModel
}
