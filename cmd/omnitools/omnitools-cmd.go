package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/utils"

	"github.com/erh/omnirectify"
	"github.com/erh/omnirectify/imgutils"
	"github.com/erh/omnirectify/ocam"
	"github.com/erh/omnirectify/rectify"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	logger := logging.NewLogger("omnitools")
	ctx := context.Background()

	cmd := flag.String("cmd", "", "info|emit|lut|rectify|remote")
	calibration := flag.String("calibration", "", "calib_results.txt from OCamCalib")
	in := flag.String("in", "", "input image")
	out := flag.String("out", "", "output file")

	width := flag.Int("width", 0, "output width, 0 for the input width")
	height := flag.Int("height", 0, "output height, 0 for the input height")
	focal := flag.Float64("focal", 1, "virtual focal length, as a fraction of the output width")
	direction := flag.String("direction", "1,0,0", "view direction x,y,z")
	roll := flag.Float64("roll", 0, "roll about the view direction in degrees")
	interpolation := flag.String("interpolation", "bilinear", "bilinear|nearest")

	host := flag.String("host", "", "hostname")
	apiKeyID := flag.String("api-key-id", "", "api key id, the viam cli token is used if empty")
	apiKey := flag.String("api-key", "", "api key")
	cameraName := flag.String("camera", "", "camera to use")

	flag.Parse()

	if *cmd == "" {
		return fmt.Errorf("need a cmd")
	}
	if *calibration == "" {
		return fmt.Errorf("need a calibration")
	}

	if *cmd == "info" {
		model, err := ocam.LoadModel(*calibration)
		if err != nil {
			return err
		}
		cal := model.Calibration()
		logger.Infof("image size: %d x %d", cal.Width, cal.Height)
		logger.Infof("center: row %v col %v", cal.Xc, cal.Yc)
		logger.Infof("affine: c %v d %v e %v", cal.C, cal.D, cal.E)
		logger.Infof("forward polynomial (%d): %v", len(cal.ForwardPoly), cal.ForwardPoly)
		logger.Infof("inverse polynomial (%d): %v", len(cal.InversePoly), cal.InversePoly)
		logger.Infof("ray through center: %v", model.RayFromPixel(model.Center()))
		return nil
	}

	if *cmd == "emit" {
		cal, err := ocam.LoadCalibration(*calibration)
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = cal.WriteTo(os.Stdout)
			return err
		}

		f, err := os.OpenFile(*out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer utils.UncheckedErrorFunc(f.Close)

		_, err = cal.WriteTo(f)
		return err
	}

	view, err := parseView(*direction, *roll)
	if err != nil {
		return err
	}
	mode, err := imgutils.ParseInterpolation(*interpolation)
	if err != nil {
		return err
	}
	model, err := ocam.LoadModel(*calibration)
	if err != nil {
		return err
	}
	r, err := rectify.NewRectifier(model, view, mode, logger)
	if err != nil {
		return err
	}

	if *cmd == "lut" {
		cal := model.Calibration()
		h, w := *height, *width
		if h == 0 {
			h = cal.Height
		}
		if w == 0 {
			w = cal.Width
		}

		lut, err := r.LUT(h, w, *focal)
		if err != nil {
			return err
		}

		logger.Infof("lut %d x %d focal %v", w, h, *focal)
		logger.Infof("rows: %v to %v", mat.Min(lut.Rows), mat.Max(lut.Rows))
		logger.Infof("cols: %v to %v", mat.Min(lut.Cols), mat.Max(lut.Cols))
		logger.Infof("%.1f%% of samples inside the sensor", 100*imgutils.Coverage(lut, cal.Height, cal.Width))
		return nil
	}

	if *cmd == "rectify" {
		if *in == "" {
			return fmt.Errorf("need an 'in'")
		}
		if *out == "" {
			return fmt.Errorf("need an 'out'")
		}

		img, err := rimage.ReadImageFromFile(*in)
		if err != nil {
			return err
		}

		rectified, err := r.Rectify(img, *height, *width, *focal)
		if err != nil {
			return err
		}

		logger.Infof("average gray in %.1f out %.1f", imgutils.ComputeGrayscaleAverage(img), imgutils.ComputeGrayscaleAverage(rectified))
		return rimage.WriteImageToFile(*out, rectified)
	}

	if *cmd == "remote" {
		if *out == "" {
			return fmt.Errorf("need an 'out'")
		}

		machine, err := omnirectify.Connect(ctx, omnirectify.MachineAccess{
			Host:     *host,
			APIKeyID: *apiKeyID,
			APIKey:   *apiKey,
		}, logger)
		if err != nil {
			return err
		}
		defer machine.Close(ctx)

		deps, err := omnirectify.CameraDependencies(machine)
		if err != nil {
			return err
		}

		src, err := omnirectify.FindCamera(deps, *cameraName)
		if err != nil {
			return err
		}

		img, err := omnirectify.GrabImage(ctx, src, nil)
		if err != nil {
			return err
		}

		rectified, err := r.Rectify(img, *height, *width, *focal)
		if err != nil {
			return err
		}

		logger.Infof("rectified %v from %s into %v", img.Bounds(), *cameraName, rectified.Bounds())
		return rimage.WriteImageToFile(*out, rectified)
	}

	return fmt.Errorf("invalid command [%s]", *cmd)
}

func parseView(direction string, roll float64) (spatialmath.OrientationVectorDegrees, error) {
	pieces := strings.Split(direction, ",")
	if len(pieces) != 3 {
		return spatialmath.OrientationVectorDegrees{}, fmt.Errorf("direction needs 3 values, got [%s]", direction)
	}

	vals := make([]float64, 3)
	for i, p := range pieces {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return spatialmath.OrientationVectorDegrees{}, fmt.Errorf("bad direction [%s]: %w", direction, err)
		}
		vals[i] = v
	}

	d := r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}
	if d.Norm() == 0 {
		return spatialmath.OrientationVectorDegrees{}, fmt.Errorf("direction cannot be zero")
	}
	return spatialmath.OrientationVectorDegrees{OX: d.X, OY: d.Y, OZ: d.Z, Theta: roll}, nil
}
