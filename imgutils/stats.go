package imgutils

import (
	"image"
	"image/color"

	"github.com/erh/omnirectify/ocam"
)

// ComputeGrayscaleAverage returns the mean luminance of img, 0 for an empty image.
func ComputeGrayscaleAverage(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0
	}

	totalValue := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			grayColor := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			totalValue += float64(grayColor.Y)
		}
	}

	return totalValue / float64(bounds.Dx()*bounds.Dy())
}

// Coverage returns the fraction of lut samples that land inside a sensor of the given size.
// Everything else comes out black after Remap.
func Coverage(lut *ocam.LUT, height, width int) float64 {
	h, w := lut.Key.Height, lut.Key.Width
	if h*w == 0 {
		return 0
	}

	inside := 0
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			p := lut.At(i, j)
			if p.Row >= 0 && p.Row <= float64(height-1) && p.Col >= 0 && p.Col <= float64(width-1) {
				inside++
			}
		}
	}
	return float64(inside) / float64(h*w)
}
