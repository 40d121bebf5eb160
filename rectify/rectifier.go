package rectify

import (
	"fmt"
	"image"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/erh/omnirectify/imgutils"
	"github.com/erh/omnirectify/ocam"
)

// Rectifier turns raw omnidirectional frames into perspective views looking in one fixed direction.
// It is safe for concurrent use.
type Rectifier struct {
	model  *ocam.Model
	cache  *ocam.LUTCache
	mode   imgutils.Interpolation
	logger logging.Logger
}

// NewRectifier returns a Rectifier for the given view. The LUT is built lazily on first use.
func NewRectifier(
	model *ocam.Model,
	view spatialmath.OrientationVectorDegrees,
	mode imgutils.Interpolation,
	logger logging.Logger,
) (*Rectifier, error) {
	vt, err := ocam.NewViewTransform(view)
	if err != nil {
		return nil, err
	}
	return &Rectifier{
		model:  model,
		cache:  ocam.NewLUTCache(ocam.NewSampler(model, vt), logger),
		mode:   mode,
		logger: logger,
	}, nil
}

// LUT returns the lookup table for a height x width view with the given virtual focal length,
// reusing the previous one when none of those changed.
func (r *Rectifier) LUT(height, width int, focalLength float64) (*ocam.LUT, error) {
	return r.cache.EnsureUpToDate(ocam.Key{Height: height, Width: width, FocalLength: focalLength})
}

// Rectify resamples img into a height x width perspective view. A zero height or width takes
// the size of img.
func (r *Rectifier) Rectify(img image.Image, height, width int, focalLength float64) (*image.RGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to rectify")
	}
	if height == 0 {
		height = img.Bounds().Dy()
	}
	if width == 0 {
		width = img.Bounds().Dx()
	}

	lut, err := r.LUT(height, width, focalLength)
	if err != nil {
		return nil, err
	}
	return imgutils.Remap(img, lut, r.mode), nil
}

func (r *Rectifier) Model() *ocam.Model {
	return r.model
}

func (r *Rectifier) Builds() int {
	return r.cache.Builds()
}
