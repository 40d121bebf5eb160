package imgutils

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/golang/geo/r2"

	"go.viam.com/rdk/rimage"

	"github.com/erh/omnirectify/ocam"
)

// Interpolation selects how Remap samples between source pixels.
type Interpolation int

const (
	Bilinear Interpolation = iota
	Nearest
)

func (i Interpolation) String() string {
	switch i {
	case Bilinear:
		return "bilinear"
	case Nearest:
		return "nearest"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// ParseInterpolation accepts "bilinear" (also "linear" or empty) and "nearest".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bilinear", "linear":
		return Bilinear, nil
	case "nearest":
		return Nearest, nil
	default:
		return Bilinear, fmt.Errorf("unknown interpolation %q", s)
	}
}

var black = color.RGBA{A: 255}

// Remap builds a lut.Key.Width x lut.Key.Height image whose pixel (x=j, y=i) is src sampled at
// column lut.Cols(i, j) and row lut.Rows(i, j), both relative to src.Bounds().Min.
// Samples outside [0, width-1] x [0, height-1] are black.
func Remap(src image.Image, lut *ocam.LUT, mode Interpolation) *image.RGBA {
	h, w := lut.Key.Height, lut.Key.Width
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	img := toRimage(src)

	sample := rimage.BilinearInterpolationColor
	if mode == Nearest {
		sample = rimage.NearestNeighborColor
	}

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			p := lut.At(i, j)
			c := sample(r2.Point{X: p.Col, Y: p.Row}, img)
			if c == nil {
				dst.SetRGBA(j, i, black)
				continue
			}
			dst.Set(j, i, *c)
		}
	}
	return dst
}

// toRimage converts src once per frame. rimage indexes from (0, 0), so offset images are
// copied down to the origin first.
func toRimage(src image.Image) *rimage.Image {
	b := src.Bounds()
	if b.Min == (image.Point{}) {
		return rimage.ConvertImage(src)
	}

	img := rimage.NewImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			img.SetXY(x, y, rimage.NewColorFromColor(src.At(x+b.Min.X, y+b.Min.Y)))
		}
	}
	return img
}
