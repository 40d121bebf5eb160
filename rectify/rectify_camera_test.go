package rectify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/utils"
	"go.viam.com/test"
)

type fakeCamera struct {
	camera.Camera
	name  resource.Name
	img   image.Image
	calls int
}

func (fc *fakeCamera) Name() resource.Name {
	return fc.name
}

func (fc *fakeCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	fc.calls++
	ni, err := camera.NamedImageFromImage(fc.img, "color", utils.MimeTypePNG, data.Annotations{})
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	return []camera.NamedImage{ni}, resource.ResponseMetadata{}, nil
}

func newTestCamera(t *testing.T, cfg *Config, src image.Image) (camera.Camera, *fakeCamera) {
	t.Helper()

	fake := &fakeCamera{name: camera.Named("fisheye"), img: src}
	deps := resource.Dependencies{fake.name: fake}

	cam, err := newRectifyCamera(context.Background(), deps, resource.Config{
		Name:                "rect",
		API:                 camera.API,
		Model:               Model,
		ConvertedAttributes: cfg,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return cam, fake
}

func TestConfigValidate(t *testing.T) {
	good := &Config{Src: "fisheye", CalibrationFile: "calib_results.txt"}
	deps, optional, err := good.Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"fisheye"})
	test.That(t, optional, test.ShouldBeNil)

	for _, bad := range []*Config{
		{CalibrationFile: "calib_results.txt"},
		{Src: "fisheye"},
		{Src: "fisheye", CalibrationFile: "c", WidthPx: -1},
		{Src: "fisheye", CalibrationFile: "c", FocalLength: -2},
		{Src: "fisheye", CalibrationFile: "c", Direction: &r3.Vector{}},
		{Src: "fisheye", CalibrationFile: "c", Interpolation: "cubic"},
	} {
		_, _, err := bad.Validate("path")
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	test.That(t, cfg.focalLength(), test.ShouldEqual, 1.0)
	v := cfg.view()
	test.That(t, v.OX, test.ShouldEqual, 1.0)
	test.That(t, v.OY, test.ShouldEqual, 0.0)
	test.That(t, v.OZ, test.ShouldEqual, 0.0)

	cfg = &Config{FocalLength: 2.5, Direction: &r3.Vector{Y: -1}, RollDegrees: 30}
	test.That(t, cfg.focalLength(), test.ShouldEqual, 2.5)
	v = cfg.view()
	test.That(t, v.OY, test.ShouldEqual, -1.0)
	test.That(t, v.Theta, test.ShouldEqual, 30.0)
}

func TestRectifyCameraImages(t *testing.T) {
	ctx := context.Background()
	gray := color.RGBA{120, 120, 120, 255}

	cam, fake := newTestCamera(t, &Config{
		Src:             "fisheye",
		CalibrationFile: writeCalibration(t, smallCalibration()),
		WidthPx:         40,
		HeightPx:        30,
		Direction:       &r3.Vector{Y: -1},
	}, uniform(200, 200, gray))

	for i := 0; i < 3; i++ {
		imgs, _, err := cam.Images(ctx, nil, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(imgs), test.ShouldEqual, 1)
		test.That(t, imgs[0].SourceName, test.ShouldEqual, "rectified")

		img, err := imgs[0].Image(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 40, 30))
		test.That(t, img.At(20, 15), test.ShouldResemble, gray)
	}
	test.That(t, fake.calls, test.ShouldEqual, 3)

	res, err := cam.DoCommand(ctx, map[string]interface{}{"lut_builds": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res["lut_builds"], test.ShouldEqual, 1)

	_, err = cam.DoCommand(ctx, map[string]interface{}{"bogus": true})
	test.That(t, err, test.ShouldNotBeNil)

	raw, meta, err := cam.Image(ctx, "", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, meta.MimeType, test.ShouldEqual, utils.MimeTypePNG)
	decoded, err := png.Decode(bytes.NewReader(raw))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds().Dx(), test.ShouldEqual, 40)
	test.That(t, decoded.Bounds().Dy(), test.ShouldEqual, 30)

	_, err = cam.NextPointCloud(ctx, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRectifyCameraSourceFailure(t *testing.T) {
	cam, fake := newTestCamera(t, &Config{
		Src:             "fisheye",
		CalibrationFile: writeCalibration(t, smallCalibration()),
	}, nil)

	_, _, err := cam.Images(context.Background(), nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fisheye")
	test.That(t, fake.calls, test.ShouldEqual, 1)
}

func TestRectifyCameraProperties(t *testing.T) {
	ctx := context.Background()
	calFile := writeCalibration(t, smallCalibration())

	cam, _ := newTestCamera(t, &Config{
		Src:             "fisheye",
		CalibrationFile: calFile,
		WidthPx:         800,
		HeightPx:        600,
		FocalLength:     2,
	}, uniform(200, 200, color.Black))

	props, err := cam.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.SupportsPCD, test.ShouldBeFalse)
	test.That(t, props.IntrinsicParams, test.ShouldNotBeNil)
	test.That(t, props.IntrinsicParams.Width, test.ShouldEqual, 800)
	test.That(t, props.IntrinsicParams.Height, test.ShouldEqual, 600)
	test.That(t, props.IntrinsicParams.Fx, test.ShouldEqual, 400.0)
	test.That(t, props.IntrinsicParams.Fy, test.ShouldEqual, 400.0)
	test.That(t, props.IntrinsicParams.Ppx, test.ShouldEqual, 400.0)
	test.That(t, props.IntrinsicParams.Ppy, test.ShouldEqual, 300.0)

	cam, _ = newTestCamera(t, &Config{Src: "fisheye", CalibrationFile: calFile}, uniform(200, 200, color.Black))
	props, err = cam.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.IntrinsicParams, test.ShouldBeNil)
}

func TestRectifyCameraBadCalibration(t *testing.T) {
	fake := &fakeCamera{name: camera.Named("fisheye"), img: uniform(4, 4, color.Black)}
	deps := resource.Dependencies{fake.name: fake}

	_, err := newRectifyCamera(context.Background(), deps, resource.Config{
		Name:                "rect",
		API:                 camera.API,
		Model:               Model,
		ConvertedAttributes: &Config{Src: "fisheye", CalibrationFile: "/does/not/exist.txt"},
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "/does/not/exist.txt")
}
