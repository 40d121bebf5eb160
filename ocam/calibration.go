// Package ocam implements the OCamCalib unified polynomial model for omnidirectional
// cameras and the lookup tables used to rectify their images into a perspective view.
package ocam

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// MaxPolyLength is the longest polynomial a calibration file may carry.
const MaxPolyLength = 64

const (
	fieldForwardPoly = "forward polynomial"
	fieldInversePoly = "inverse polynomial"
	fieldCenter      = "center"
	fieldAffine      = "affine"
	fieldImageSize   = "image size"
)

var sectionFields = []string{fieldForwardPoly, fieldInversePoly, fieldCenter, fieldAffine, fieldImageSize}

// Calibration holds the parameters of an OCamCalib model as stored in a calib_results.txt file.
//
// Pixel coordinates follow the OCamCalib convention: Xc is the row of the image center and
// Yc its column.
type Calibration struct {
	ForwardPoly []float64 `json:"forward_poly"`
	InversePoly []float64 `json:"inverse_poly"`
	Xc          float64   `json:"xc"`
	Yc          float64   `json:"yc"`
	C           float64   `json:"c"`
	D           float64   `json:"d"`
	E           float64   `json:"e"`
	Height      int       `json:"height"`
	Width       int       `json:"width"`
}

// Validate checks that the calibration can be used for projection.
func (cal *Calibration) Validate() error {
	if cal == nil {
		return errors.Wrap(ErrInvalidCalibration, "calibration not provided")
	}
	if err := checkPoly(fieldForwardPoly, cal.ForwardPoly); err != nil {
		return err
	}
	if err := checkPoly(fieldInversePoly, cal.InversePoly); err != nil {
		return err
	}
	for _, v := range []float64{cal.Xc, cal.Yc, cal.C, cal.D, cal.E} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidCalibration, "center and affine values must be finite, got %v", v)
		}
	}
	if cal.Height <= 0 || cal.Width <= 0 {
		return errors.Wrapf(ErrInvalidCalibration, "invalid image size (%d, %d)", cal.Height, cal.Width)
	}
	if cal.C-cal.D*cal.E == 0 {
		return errors.Wrapf(ErrSingularAffine, "c=%v d=%v e=%v", cal.C, cal.D, cal.E)
	}
	return nil
}

func checkPoly(name string, poly []float64) error {
	if len(poly) == 0 || len(poly) > MaxPolyLength {
		return errors.Wrapf(ErrInvalidCalibration, "%s must have between 1 and %d coefficients, got %d",
			name, MaxPolyLength, len(poly))
	}
	for i, v := range poly {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidCalibration, "%s coefficient %d is not finite", name, i)
		}
	}
	return nil
}

func (cal *Calibration) Clone() *Calibration {
	c := *cal
	c.ForwardPoly = append([]float64(nil), cal.ForwardPoly...)
	c.InversePoly = append([]float64(nil), cal.InversePoly...)
	return &c
}

// LoadCalibration reads and validates a calibration file.
func LoadCalibration(path string) (*Calibration, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open calibration file %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	cal, err := ParseCalibration(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, errors.Wrapf(err, "calibration file %s", path)
	}
	return cal, nil
}

type section struct {
	line   int
	tokens []string
}

// ParseCalibration reads a calibration in the OCamCalib text layout:
//
//	comment / N_f c_0 .. c_{N_f-1} / comment / N_i c_0 .. c_{N_i-1} /
//	comment / xc yc / comment / c d e / comment / height width
//
// A comment is any line whose first token is not a number. Blank lines are ignored.
func ParseCalibration(r io.Reader) (*Calibration, error) {
	sections, err := readSections(r)
	if err != nil {
		return nil, err
	}

	cal := &Calibration{}
	if cal.ForwardPoly, err = parsePoly(fieldForwardPoly, sections[0]); err != nil {
		return nil, err
	}
	if cal.InversePoly, err = parsePoly(fieldInversePoly, sections[1]); err != nil {
		return nil, err
	}

	center, err := parseFloats(sections[2], "xc", "yc")
	if err != nil {
		return nil, err
	}
	cal.Xc, cal.Yc = center[0], center[1]

	affine, err := parseFloats(sections[3], "c", "d", "e")
	if err != nil {
		return nil, err
	}
	cal.C, cal.D, cal.E = affine[0], affine[1], affine[2]

	size, err := parseInts(sections[4], "height", "width")
	if err != nil {
		return nil, err
	}
	cal.Height, cal.Width = size[0], size[1]

	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

func isNumber(tok string) bool {
	if strings.HasPrefix(tok, "#") {
		return false
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func readSections(r io.Reader) ([]section, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sections []section
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !isNumber(fields[0]) {
			sections = append(sections, section{line: lineNo})
			continue
		}
		if len(sections) == 0 {
			return nil, newParseError(fieldForwardPoly,
				errors.Wrapf(ErrUnexpectedData, "line %d: values before the first comment line", lineNo))
		}
		cur := &sections[len(sections)-1]
		cur.tokens = append(cur.tokens, fields...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading calibration data")
	}

	for len(sections) > len(sectionFields) {
		extra := sections[len(sections)-1]
		if len(extra.tokens) > 0 {
			return nil, newParseError(fieldImageSize,
				errors.Wrapf(ErrUnexpectedData, "line %d: trailing section after image size", extra.line))
		}
		sections = sections[:len(sections)-1]
	}
	if len(sections) < len(sectionFields) {
		return nil, newParseError(sectionFields[len(sections)], ErrMissingField)
	}
	return sections, nil
}

func parsePoly(name string, sec section) ([]float64, error) {
	countField := name + " count"
	if len(sec.tokens) == 0 {
		return nil, newParseError(countField, ErrMissingField)
	}
	count, err := strconv.Atoi(sec.tokens[0])
	if err != nil {
		return nil, newParseError(countField, errors.Wrapf(ErrBadNumber, "line %d: %q", sec.line, sec.tokens[0]))
	}
	if count < 1 || count > MaxPolyLength {
		return nil, newParseError(countField,
			errors.Wrapf(ErrInvalidCalibration, "count %d outside [1, %d]", count, MaxPolyLength))
	}

	values := sec.tokens[1:]
	if len(values) != count {
		return nil, newParseError(name,
			errors.Wrapf(ErrCountMismatch, "expected %d coefficients, found %d", count, len(values)))
	}

	poly := make([]float64, count)
	for i, tok := range values {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, newParseError(fmt.Sprintf("%s coefficient %d", name, i),
				errors.Wrapf(ErrBadNumber, "%q", tok))
		}
		poly[i] = v
	}
	return poly, nil
}

func checkArity(sec section, names []string) error {
	if len(sec.tokens) < len(names) {
		return newParseError(names[len(sec.tokens)], ErrMissingField)
	}
	if len(sec.tokens) > len(names) {
		return newParseError(names[len(names)-1],
			errors.Wrapf(ErrUnexpectedData, "line %d: expected %d values, found %d", sec.line, len(names), len(sec.tokens)))
	}
	return nil
}

func parseFloats(sec section, names ...string) ([]float64, error) {
	if err := checkArity(sec, names); err != nil {
		return nil, err
	}
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(sec.tokens[i], 64)
		if err != nil {
			return nil, newParseError(name, errors.Wrapf(ErrBadNumber, "%q", sec.tokens[i]))
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(sec section, names ...string) ([]int, error) {
	if err := checkArity(sec, names); err != nil {
		return nil, err
	}
	out := make([]int, len(names))
	for i, name := range names {
		v, err := strconv.Atoi(sec.tokens[i])
		if err != nil {
			return nil, newParseError(name, errors.Wrapf(ErrBadNumber, "%q", sec.tokens[i]))
		}
		out[i] = v
	}
	return out, nil
}

// WriteTo writes the calibration in the same layout ParseCalibration reads, using the comment
// lines OCamCalib itself emits.
func (cal *Calibration) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	writePoly := func(comment string, poly []float64) {
		fmt.Fprintf(&buf, "%s\n\n%d", comment, len(poly))
		for _, v := range poly {
			buf.WriteByte(' ')
			buf.WriteString(formatFloat(v))
		}
		buf.WriteString("\n\n")
	}

	writePoly("#polynomial coefficients for the DIRECT mapping function (ocam_model.ss in MATLAB). "+
		"These are used by cam2world", cal.ForwardPoly)
	writePoly("#polynomial coefficients for the inverse mapping function (ocam_model.invpol in MATLAB). "+
		"These are used by world2cam", cal.InversePoly)

	fmt.Fprintf(&buf, "#center: \"row\" and \"column\", starting from 0 (C convention)\n\n%s %s\n\n",
		formatFloat(cal.Xc), formatFloat(cal.Yc))
	fmt.Fprintf(&buf, "#affine parameters \"c\", \"d\", \"e\"\n\n%s %s %s\n\n",
		formatFloat(cal.C), formatFloat(cal.D), formatFloat(cal.E))
	fmt.Fprintf(&buf, "#image size: \"height\" and \"width\"\n\n%d %d\n", cal.Height, cal.Width)

	return buf.WriteTo(w)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
