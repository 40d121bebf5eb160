package ocam

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Key identifies a virtual view configuration. Two LUTs built from equal keys are identical.
type Key struct {
	Height      int
	Width       int
	FocalLength float64
}

// Validate checks that the key describes a non-empty frame with a positive focal length.
func (k Key) Validate() error {
	if k.Height <= 0 || k.Width <= 0 {
		return errors.Wrapf(ErrInvalidKey, "invalid output size (%d, %d)", k.Height, k.Width)
	}
	if !(k.FocalLength > 0) || math.IsInf(k.FocalLength, 0) {
		return errors.Wrapf(ErrInvalidKey, "invalid focal length %v", k.FocalLength)
	}
	return nil
}

// LUT maps every destination pixel (i, j) of a virtual perspective frame to the fractional
// source row Rows(i, j) and column Cols(i, j) on the omnidirectional sensor.
type LUT struct {
	Key  Key
	Rows *mat.Dense
	Cols *mat.Dense
}

func (l *LUT) At(i, j int) Pixel {
	return Pixel{Row: l.Rows.At(i, j), Col: l.Cols.At(i, j)}
}

// Sampler builds LUTs by casting one ray per destination pixel through a Model.
type Sampler struct {
	model     *Model
	transform RayTransform
}

// NewSampler returns a sampler. A nil transform leaves the virtual rays in the sensor frame.
func NewSampler(model *Model, transform RayTransform) *Sampler {
	if transform == nil {
		transform = IdentityTransform{}
	}
	return &Sampler{model: model, transform: transform}
}

// Build computes the full LUT for key.
func (s *Sampler) Build(key Key) (*LUT, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	h, w := key.Height, key.Width
	rows := mat.NewDense(h, w, nil)
	cols := mat.NewDense(h, w, nil)

	centerRow := float64(h) / 2
	centerCol := float64(w) / 2
	depth := -float64(w) / key.FocalLength

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			ray := s.transform.Transform(r3.Vector{
				X: float64(i) - centerRow,
				Y: float64(j) - centerCol,
				Z: depth,
			})
			p := s.model.PixelFromRay(ray)
			if !isFinite(p.Row) || !isFinite(p.Col) {
				return nil, errors.Wrapf(ErrNonFiniteLUT, "destination (%d, %d) maps to (%v, %v)", i, j, p.Row, p.Col)
			}
			rows.Set(i, j, p.Row)
			cols.Set(i, j, p.Col)
		}
	}

	return &LUT{Key: key, Rows: rows, Cols: cols}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
