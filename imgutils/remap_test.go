package imgutils

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/rimage"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/erh/omnirectify/ocam"
)

func lutFromFunc(h, w int, f func(i, j int) (float64, float64)) *ocam.LUT {
	rows := mat.NewDense(h, w, nil)
	cols := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			r, c := f(i, j)
			rows.Set(i, j, r)
			cols.Set(i, j, c)
		}
	}
	return &ocam.LUT{Key: ocam.Key{Height: h, Width: w, FocalLength: 1}, Rows: rows, Cols: cols}
}

func testPattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 20), uint8(x + y), 255})
		}
	}
	return img
}

func TestParseInterpolation(t *testing.T) {
	for in, want := range map[string]Interpolation{
		"":          Bilinear,
		"bilinear":  Bilinear,
		"Linear":    Bilinear,
		" nearest ": Nearest,
	} {
		got, err := ParseInterpolation(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}

	_, err := ParseInterpolation("cubic")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, Nearest.String(), test.ShouldEqual, "nearest")
	test.That(t, Bilinear.String(), test.ShouldEqual, "bilinear")
}

func TestRemapIdentity(t *testing.T) {
	src := testPattern(8, 6)
	lut := lutFromFunc(6, 8, func(i, j int) (float64, float64) { return float64(i), float64(j) })

	for _, mode := range []Interpolation{Nearest, Bilinear} {
		out := Remap(src, lut, mode)
		test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 8, 6))
		test.That(t, out.Pix, test.ShouldResemble, src.Pix)
	}
}

func TestRemapTransposeAndOffset(t *testing.T) {
	src := testPattern(8, 6)
	// shift the source so its bounds do not start at the origin
	shifted := src.SubImage(image.Rect(2, 1, 8, 6)).(*image.RGBA)

	lut := lutFromFunc(3, 2, func(i, j int) (float64, float64) { return float64(j), float64(i) })
	for _, mode := range []Interpolation{Nearest, Bilinear} {
		out := Remap(shifted, lut, mode)
		for i := 0; i < 3; i++ {
			for j := 0; j < 2; j++ {
				test.That(t, out.At(j, i), test.ShouldResemble, src.At(2+i, 1+j))
			}
		}
	}
}

func TestRemapSampling(t *testing.T) {
	// black left column, white right column
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		src.Set(0, y, color.RGBA{0, 0, 0, 255})
		src.Set(1, y, color.RGBA{255, 255, 255, 255})
	}

	lut := lutFromFunc(1, 6, func(i, j int) (float64, float64) {
		return 0.5, []float64{0.5, 0.6, -5, 1.0, 1.5, -0.25}[j]
	})

	bl := Remap(src, lut, Bilinear)
	test.That(t, bl.At(0, 0), test.ShouldResemble, color.RGBA{128, 128, 128, 255})
	test.That(t, bl.At(2, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})
	test.That(t, bl.At(3, 0), test.ShouldResemble, color.RGBA{255, 255, 255, 255})

	// no blending with the border: anything past the outermost pixel centres is black
	test.That(t, bl.At(4, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})
	test.That(t, bl.At(5, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})

	nn := Remap(src, lut, Nearest)
	test.That(t, nn.At(1, 0), test.ShouldResemble, color.RGBA{255, 255, 255, 255})
	test.That(t, nn.At(2, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})
	test.That(t, nn.At(4, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})
}

func TestRemapMatchesRimage(t *testing.T) {
	src := testPattern(8, 6)
	img := rimage.ConvertImage(src)

	pts := []r2.Point{{X: 0.2, Y: 0.7}, {X: 3.5, Y: 2.5}, {X: 6.9, Y: 4.1}, {X: 7, Y: 5}, {X: 1.49, Y: 3.51}, {X: 2.5, Y: 0}}
	lut := lutFromFunc(1, len(pts), func(i, j int) (float64, float64) { return pts[j].Y, pts[j].X })

	for _, tc := range []struct {
		mode   Interpolation
		sample func(r2.Point, *rimage.Image) *rimage.Color
	}{
		{Nearest, rimage.NearestNeighborColor},
		{Bilinear, rimage.BilinearInterpolationColor},
	} {
		out := Remap(src, lut, tc.mode)
		for j, pt := range pts {
			want := tc.sample(pt, img)
			test.That(t, want, test.ShouldNotBeNil)
			test.That(t, out.At(j, 0), test.ShouldResemble, color.RGBAModel.Convert(*want))
		}
	}
}

func TestRemapThroughModel(t *testing.T) {
	cal, err := ocam.ParseCalibration(strings.NewReader(`#forward
3 -120.0 0.0 2.5e-3
#inverse
2 80.0 40.0
#center
60.0 80.0
#affine
1.0 0.0 0.0
#size
120 160
`))
	test.That(t, err, test.ShouldBeNil)
	m, err := ocam.NewModel(cal)
	test.That(t, err, test.ShouldBeNil)

	lut, err := ocam.NewSampler(m, nil).Build(ocam.Key{Height: 40, Width: 50, FocalLength: 1})
	test.That(t, err, test.ShouldBeNil)

	gray := color.RGBA{90, 90, 90, 255}
	src := uniformImage(160, 120, gray)
	out := Remap(src, lut, Bilinear)
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 50)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 40)

	inside := 0
	for i := 0; i < 40; i++ {
		for j := 0; j < 50; j++ {
			p := lut.At(i, j)
			if p.Row >= 0 && p.Row <= 119 && p.Col >= 0 && p.Col <= 159 {
				test.That(t, out.At(j, i), test.ShouldResemble, gray)
				inside++
			}
		}
	}
	test.That(t, inside, test.ShouldBeGreaterThan, 0)
	test.That(t, ComputeGrayscaleAverage(out), test.ShouldBeLessThanOrEqualTo, 90.0)
}
