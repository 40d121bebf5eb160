package ocam

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingField is returned when the calibration file ends before a field is read.
	ErrMissingField = errors.New("missing field")

	// ErrBadNumber is returned when a calibration token cannot be parsed as a number.
	ErrBadNumber = errors.New("not a number")

	// ErrCountMismatch is returned when a polynomial count does not match the coefficients that follow it.
	ErrCountMismatch = errors.New("coefficient count mismatch")

	// ErrUnexpectedData is returned when a section carries more values than its layout allows.
	ErrUnexpectedData = errors.New("unexpected data")

	// ErrInvalidCalibration is returned when a calibration has out of range values.
	ErrInvalidCalibration = errors.New("invalid calibration")

	// ErrSingularAffine is returned when the affine matrix [[c, d],[e, 1]] cannot be inverted.
	ErrSingularAffine = errors.New("affine matrix is singular (c - d*e == 0)")

	// ErrInvalidKey is returned when a LUT is requested for a non-positive size or focal length.
	ErrInvalidKey = errors.New("invalid lut key")

	// ErrNonFiniteLUT is returned when a LUT entry comes out as NaN or Inf.
	ErrNonFiniteLUT = errors.New("non-finite lut entry")
)

// ParseError reports a calibration field that could not be read.
type ParseError struct {
	Path  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("calibration field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("calibration file %s, field %q: %v", e.Path, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(field string, err error) *ParseError {
	return &ParseError{Field: field, Err: err}
}
