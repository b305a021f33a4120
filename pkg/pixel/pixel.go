package pixel

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
)

// Pixel is a single non-premultiplied RGBA value.
type Pixel struct {
	R, G, B, A uint8
}

// Sequence is a row-major run of pixels.
type Sequence []Pixel

// Clone returns a copy of s that shares no memory with it.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Color returns p as a color.NRGBA.
func (p Pixel) Color() color.NRGBA {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A}
}

// FromImage flattens img into a row-major sequence and returns it together
// with the image dimensions.
func FromImage(img image.Image) (Sequence, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
		b = nrgba.Bounds()
	}

	seq := make(Sequence, 0, w*h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[nrgba.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			i := x * 4
			seq = append(seq, Pixel{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]})
		}
	}
	return seq, w, h
}

// ToImage reshapes seq into a width x height image. The sequence length
// must match the raster exactly; a mismatch is never padded.
func ToImage(seq Sequence, width, height int) (*image.NRGBA, error) {
	if width < 0 || height < 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "invalid dimensions %dx%d", width, height)
	}
	if len(seq) != width*height {
		return nil, errors.New(errors.ErrCodeLengthInvariant,
			"sequence has %d pixels, %dx%d image needs %d", len(seq), width, height, width*height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range seq {
		o := i * 4
		img.Pix[o] = p.R
		img.Pix[o+1] = p.G
		img.Pix[o+2] = p.B
		img.Pix[o+3] = p.A
	}
	return img, nil
}
