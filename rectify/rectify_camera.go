package rectify

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
	goutils "go.viam.com/utils"

	"github.com/erh/omnirectify"
	"github.com/erh/omnirectify/imgutils"
	"github.com/erh/omnirectify/ocam"
)

var Model = omnirectify.NamespaceFamily.WithModel("omni-rectify")

const defaultFocalLength = 1.0

func init() {
	resource.RegisterComponent(
		camera.API,
		Model,
		resource.Registration[camera.Camera, *Config]{
			Constructor: newRectifyCamera,
		})
}

type Config struct {
	Src             string
	CalibrationFile string     `json:"calibration_file"`
	WidthPx         int        `json:"width_px,omitempty"`
	HeightPx        int        `json:"height_px,omitempty"`
	FocalLength     float64    `json:"focal_length,omitempty"`
	Direction       *r3.Vector `json:"direction,omitempty"`
	RollDegrees     float64    `json:"roll_degrees,omitempty"`
	Interpolation   string     `json:"interpolation,omitempty"`
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Src == "" {
		return nil, nil, goutils.NewConfigValidationFieldRequiredError(path, "src")
	}
	if cfg.CalibrationFile == "" {
		return nil, nil, goutils.NewConfigValidationFieldRequiredError(path, "calibration_file")
	}
	if cfg.WidthPx < 0 || cfg.HeightPx < 0 {
		return nil, nil, fmt.Errorf("width_px and height_px cannot be negative")
	}
	if cfg.FocalLength < 0 || math.IsNaN(cfg.FocalLength) || math.IsInf(cfg.FocalLength, 0) {
		return nil, nil, fmt.Errorf("focal_length must be a positive number, got %v", cfg.FocalLength)
	}
	if cfg.Direction != nil && cfg.Direction.Norm() == 0 {
		return nil, nil, fmt.Errorf("direction cannot be the zero vector")
	}
	if _, err := imgutils.ParseInterpolation(cfg.Interpolation); err != nil {
		return nil, nil, err
	}
	return []string{cfg.Src}, nil, nil
}

func (cfg *Config) focalLength() float64 {
	if cfg.FocalLength == 0 {
		return defaultFocalLength
	}
	return cfg.FocalLength
}

func (cfg *Config) view() spatialmath.OrientationVectorDegrees {
	v := ocam.DefaultView()
	if cfg.Direction != nil {
		v.OX, v.OY, v.OZ = cfg.Direction.X, cfg.Direction.Y, cfg.Direction.Z
	}
	v.Theta = cfg.RollDegrees
	return v
}

func newRectifyCamera(ctx context.Context, deps resource.Dependencies, config resource.Config, logger logging.Logger) (camera.Camera, error) {
	newConf, err := resource.NativeConfig[*Config](config)
	if err != nil {
		return nil, err
	}

	model, err := ocam.LoadModel(newConf.CalibrationFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load calibration for %s: %w", config.Name, err)
	}

	mode, err := imgutils.ParseInterpolation(newConf.Interpolation)
	if err != nil {
		return nil, err
	}

	rc := &rectifyCamera{
		name:   config.ResourceName(),
		cfg:    newConf,
		logger: logger,
	}

	rc.rectifier, err = NewRectifier(model, newConf.view(), mode, logger)
	if err != nil {
		return nil, err
	}

	rc.src, err = camera.FromProvider(deps, newConf.Src)
	if err != nil {
		return nil, err
	}

	return rc, nil
}

type rectifyCamera struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	cfg    *Config
	logger logging.Logger

	src       camera.Camera
	rectifier *Rectifier
}

func (rc *rectifyCamera) Name() resource.Name {
	return rc.name
}

func (rc *rectifyCamera) rectified(ctx context.Context, extra map[string]interface{}) (image.Image, error) {
	raw, err := omnirectify.GrabImage(ctx, rc.src, extra)
	if err != nil {
		return nil, fmt.Errorf("cannot get image from %s: %w", rc.cfg.Src, err)
	}

	start := time.Now()
	img, err := rc.rectifier.Rectify(raw, rc.cfg.HeightPx, rc.cfg.WidthPx, rc.cfg.focalLength())
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	if elapsed > (time.Millisecond * 100) {
		rc.logger.Infof("rectify took %v", elapsed)
	}
	return img, nil
}

func (rc *rectifyCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	img, err := rc.rectified(ctx, extra)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	if mimeType == "" {
		mimeType = utils.MimeTypePNG
	}

	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	return data, camera.ImageMetadata{MimeType: mimeType}, nil
}

func (rc *rectifyCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	img, err := rc.rectified(ctx, extra)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	ni, err := camera.NamedImageFromImage(img, "rectified", utils.MimeTypePNG, data.Annotations{})
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	return []camera.NamedImage{ni}, resource.ResponseMetadata{CapturedAt: time.Now()}, nil
}

func (rc *rectifyCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	res := map[string]interface{}{}
	if _, ok := cmd["lut_builds"]; ok {
		res["lut_builds"] = rc.rectifier.Builds()
	}
	if _, ok := cmd["calibration"]; ok {
		cal := rc.rectifier.Model().Calibration()
		res["calibration"] = map[string]interface{}{
			"xc":     cal.Xc,
			"yc":     cal.Yc,
			"height": cal.Height,
			"width":  cal.Width,
		}
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("unknown command %v", cmd)
	}
	return res, nil
}

func (rc *rectifyCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, fmt.Errorf("%s does not produce point clouds", Model)
}

// Properties advertises the virtual pinhole only when the output size does not follow the source.
func (rc *rectifyCamera) Properties(ctx context.Context) (camera.Properties, error) {
	props := camera.Properties{
		ImageType: camera.ColorStream,
		MimeTypes: []string{utils.MimeTypePNG},
	}
	if rc.cfg.WidthPx > 0 && rc.cfg.HeightPx > 0 {
		props.IntrinsicParams = pinholeIntrinsics(rc.cfg.HeightPx, rc.cfg.WidthPx, rc.cfg.focalLength())
	}
	return props, nil
}

// pinholeIntrinsics describes the ideal camera a LUT of this size and focal length emulates.
func pinholeIntrinsics(height, width int, focalLength float64) *transform.PinholeCameraIntrinsics {
	f := float64(width) / focalLength
	return &transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     f,
		Fy:     f,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
}

func (rc *rectifyCamera) Geometries(ctx context.Context, _ map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}
