package ocam

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// antiparallelEpsilon bounds 1 + cos(angle) below which two directions are treated as opposite.
const antiparallelEpsilon = 1e-12

var (
	// ReferenceAxis is the axis the virtual camera's rays are built around.
	ReferenceAxis = r3.Vector{Z: 1}

	// sensorPermutation maps the virtual camera's axes onto the sensor's axes.
	sensorPermutation = mat.NewDense(3, 3, []float64{
		0, -1, 0,
		0, 0, -1,
		1, 0, 0,
	})
)

func DefaultView() spatialmath.OrientationVectorDegrees {
	return spatialmath.OrientationVectorDegrees{OX: 1}
}

func alignQuat(direction, reference r3.Vector) (quat.Number, error) {
	if direction.Norm() == 0 || reference.Norm() == 0 {
		return quat.Number{}, errors.Errorf("cannot rotate between zero length vectors %v and %v", reference, direction)
	}
	from := reference.Normalize()
	to := direction.Normalize()

	d := from.Dot(to)
	if 1+d < antiparallelEpsilon {
		axis := from.Ortho()
		return quat.Number{Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}, nil
	}
	c := from.Cross(to)
	q := quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z}
	return quat.Scale(1/quat.Abs(q), q), nil
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

func matrixFromQuat(q quat.Number) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for j, basis := range []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}} {
		col := rotate(q, basis)
		m.Set(0, j, col.X)
		m.Set(1, j, col.Y)
		m.Set(2, j, col.Z)
	}
	return m
}

// RotationFromDirection returns the shortest-arc rotation that carries reference onto direction.
func RotationFromDirection(direction, reference r3.Vector) (*mat.Dense, error) {
	q, err := alignQuat(direction, reference)
	if err != nil {
		return nil, err
	}
	return matrixFromQuat(q), nil
}

// ViewRotation returns the rotation for a view looking along (OX, OY, OZ): ReferenceAxis is
// carried onto that direction, then the view is rolled Theta degrees about it.
func ViewRotation(view spatialmath.OrientationVectorDegrees) (*mat.Dense, error) {
	direction := r3.Vector{X: view.OX, Y: view.OY, Z: view.OZ}
	q, err := alignQuat(direction, ReferenceAxis)
	if err != nil {
		return nil, errors.Wrap(err, "invalid view direction")
	}
	if view.Theta != 0 {
		half := view.Theta * math.Pi / 360
		axis := direction.Normalize().Mul(math.Sin(half))
		roll := quat.Number{Real: math.Cos(half), Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
		q = quat.Mul(roll, q)
	}
	return matrixFromQuat(q), nil
}

// RayTransform maps a ray built in the virtual camera's frame into the sensor's frame.
type RayTransform interface {
	Transform(ray r3.Vector) r3.Vector
}

// MatrixTransform is a RayTransform backed by a fixed 3x3 matrix.
type MatrixTransform struct {
	rows [3]r3.Vector
}

// NewMatrixTransform copies m, which must be 3x3.
func NewMatrixTransform(m mat.Matrix) (*MatrixTransform, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("ray transform must be 3x3, got %dx%d", r, c)
	}
	t := &MatrixTransform{}
	for i := range t.rows {
		t.rows[i] = r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
	}
	return t, nil
}

func (t *MatrixTransform) Transform(ray r3.Vector) r3.Vector {
	return r3.Vector{X: t.rows[0].Dot(ray), Y: t.rows[1].Dot(ray), Z: t.rows[2].Dot(ray)}
}

// NewViewTransform builds the transform for a view: the view rotation followed by the
// transposed virtual-to-sensor axis permutation.
func NewViewTransform(view spatialmath.OrientationVectorDegrees) (*MatrixTransform, error) {
	rot, err := ViewRotation(view)
	if err != nil {
		return nil, err
	}
	var combined mat.Dense
	combined.Mul(sensorPermutation.T(), rot)
	return NewMatrixTransform(&combined)
}

type IdentityTransform struct{}

func (IdentityTransform) Transform(ray r3.Vector) r3.Vector {
	return ray
}
