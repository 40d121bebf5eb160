package ocam

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pixel is a location on the sensor in the OCamCalib convention: Row runs along Xc, Col along Yc.
type Pixel struct {
	Row float64
	Col float64
}

// Model projects between sensor pixels and viewing rays. A Model never changes after
// construction, so its methods are safe to call from many goroutines.
type Model struct {
	cal    Calibration
	invDet float64
}

// NewModel validates the calibration and returns a model holding its own copy of it.
func NewModel(cal *Calibration) (*Model, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		cal:    *cal.Clone(),
		invDet: 1 / (cal.C - cal.D*cal.E),
	}, nil
}

// LoadModel reads a calibration file and builds a model from it.
func LoadModel(path string) (*Model, error) {
	cal, err := LoadCalibration(path)
	if err != nil {
		return nil, err
	}
	return NewModel(cal)
}

func (m *Model) Calibration() *Calibration {
	return m.cal.Clone()
}

func (m *Model) Center() Pixel {
	return Pixel{Row: m.cal.Xc, Col: m.cal.Yc}
}

// evalPoly sums coeffs[k]*x^k, accumulating the powers of x in index order.
func evalPoly(coeffs []float64, x float64) float64 {
	sum := coeffs[0]
	xi := 1.0
	for _, c := range coeffs[1:] {
		xi *= x
		sum += xi * c
	}
	return sum
}

// RayFromPixel back-projects a pixel onto the unit sphere.
func (m *Model) RayFromPixel(p Pixel) r3.Vector {
	u := p.Row - m.cal.Xc
	v := p.Col - m.cal.Yc

	xp := m.invDet * (u - m.cal.D*v)
	yp := m.invDet * (-m.cal.E*u + m.cal.C*v)

	r := math.Hypot(xp, yp)
	zp := evalPoly(m.cal.ForwardPoly, r)

	invNorm := 1 / math.Sqrt(xp*xp+yp*yp+zp*zp)
	return r3.Vector{X: invNorm * xp, Y: invNorm * yp, Z: invNorm * zp}
}

// PixelFromRay projects a ray onto the sensor. A ray along the optical axis lands exactly
// on the principal point.
func (m *Model) PixelFromRay(ray r3.Vector) Pixel {
	norm := math.Sqrt(ray.X*ray.X + ray.Y*ray.Y)
	if norm == 0 {
		return m.Center()
	}

	invNorm := 1 / norm
	theta := math.Atan(ray.Z / norm)
	rho := evalPoly(m.cal.InversePoly, theta)

	x := ray.X * invNorm * rho
	y := ray.Y * invNorm * rho

	return Pixel{
		Row: x*m.cal.C + y*m.cal.D + m.cal.Xc,
		Col: x*m.cal.E + y + m.cal.Yc,
	}
}
