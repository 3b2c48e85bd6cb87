// Package opencv finds chessboards and calibrates cameras with OpenCV.
package opencv

import (
	"errors"
	"fmt"
	"image"

	"pose-aligner/internal/frame"
	"pose-aligner/internal/session"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrNotMat is returned for frames that are not OpenCV images.
var ErrNotMat = errors.New("frame is not backed by an OpenCV image")

// Sub-pixel refinement window, as used for every board detection.
var (
	subPixWindow = image.Pt(11, 11)
	subPixZero   = image.Pt(-1, -1)
)

// Backend detects the board in frames and solves its pose with the camera
// model. Intrinsics may be nil for corner finding and calibration.
type Backend struct {
	pattern    vision.Pattern
	intrinsics *vision.Intrinsics
	criteria   gocv.TermCriteria
}

// New returns a backend that refines corners until maxIter iterations or a
// move below eps.
func New(pattern vision.Pattern, in *vision.Intrinsics, maxIter int, eps float64) *Backend {
	return &Backend{
		pattern:    pattern,
		intrinsics: in,
		criteria:   gocv.NewTermCriteria(gocv.EPS+gocv.MaxIter, maxIter, eps),
	}
}

func matOf(f session.Frame) (gocv.Mat, error) {
	mf, ok := f.(*frame.MatFrame)
	if !ok {
		return gocv.Mat{}, ErrNotMat
	}
	return mf.Mat(), nil
}

// FindCorners returns the refined inner corners, or nil when the board is
// not in view.
func (b *Backend) FindCorners(f session.Frame, pattern vision.Pattern) ([]geometry.Point2D, error) {
	img, err := matOf(f)
	if err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()
	size := image.Pt(pattern.Rows, pattern.Cols)
	if !gocv.FindChessboardCorners(gray, size, &corners, gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage) {
		return nil, nil
	}
	gocv.CornerSubPix(gray, &corners, subPixWindow, subPixZero, b.criteria)

	pts := make([]geometry.Point2D, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		v := corners.GetVecfAt(i, 0)
		if len(v) < 2 {
			return nil, fmt.Errorf("unexpected corner layout: %d channels", len(v))
		}
		pts = append(pts, geometry.Point2D{X: float64(v[0]), Y: float64(v[1])})
	}
	if len(pts) != pattern.Size() {
		return nil, fmt.Errorf("found %d corners, pattern has %d", len(pts), pattern.Size())
	}
	return pts, nil
}

// Detect finds the board and solves its pose. A frame without the board
// is a miss, not an error.
func (b *Backend) Detect(f session.Frame) (vision.Detection, error) {
	if b.intrinsics == nil {
		return vision.Detection{}, errors.New("no camera calibration loaded")
	}
	corners, err := b.FindCorners(f, b.pattern)
	if err != nil || corners == nil {
		return vision.Detection{}, err
	}
	return vision.Locate(corners, b.pattern, b.intrinsics)
}

// DrawCorners draws the corners with OpenCV's chessboard rendering.
func (b *Backend) DrawCorners(f session.Frame, pattern vision.Pattern, corners []geometry.Point2D) {
	mf, ok := f.(*frame.MatFrame)
	if !ok || len(corners) == 0 {
		return
	}
	pts := gocv.NewMatWithSize(len(corners), 2, gocv.MatTypeCV32F)
	defer pts.Close()
	for i, p := range corners {
		pts.SetFloatAt(i, 0, float32(p.X))
		pts.SetFloatAt(i, 1, float32(p.Y))
	}
	img := mf.Mat()
	gocv.DrawChessboardCorners(&img, image.Pt(pattern.Rows, pattern.Cols), pts, true)
}

// Calibrate solves the camera model from the samples, then recovers each
// view's pose against that model.
func (b *Backend) Calibrate(samples []vision.Sample, size image.Point) (*vision.Calibration, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples to calibrate")
	}

	objects := gocv.NewPoints3fVector()
	defer objects.Close()
	images := gocv.NewPoints2fVector()
	defer images.Close()
	for _, s := range samples {
		obj := make([]gocv.Point3f, len(s.Object))
		for i, p := range s.Object {
			obj[i] = gocv.Point3f{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
		}
		img := make([]gocv.Point2f, len(s.Image))
		for i, p := range s.Image {
			img[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
		}
		ov := gocv.NewPoint3fVectorFromPoints(obj)
		iv := gocv.NewPoint2fVectorFromPoints(img)
		objects.Append(ov)
		images.Append(iv)
		ov.Close()
		iv.Close()
	}

	camera := gocv.NewMat()
	defer camera.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objects, images, size, &camera, &dist, &rvecs, &tvecs, 0)

	if camera.Rows() != 3 || camera.Cols() != 3 {
		return nil, fmt.Errorf("calibration returned a %dx%d camera matrix", camera.Rows(), camera.Cols())
	}
	rows := make([][]float64, 3)
	for r := range rows {
		rows[r] = make([]float64, 3)
		for c := range rows[r] {
			rows[r][c] = camera.GetDoubleAt(r, c)
		}
	}
	coeffs := make([]float64, 0, 5)
	for i := 0; i < dist.Total() && i < 5; i++ {
		coeffs = append(coeffs, dist.GetDoubleAt(0, i))
	}

	in, err := vision.NewIntrinsics(rows, coeffs)
	if err != nil {
		return nil, err
	}
	views, err := vision.SolveViews(samples, in)
	if err != nil {
		return nil, fmt.Errorf("failed to recover views: %w", err)
	}
	return &vision.Calibration{Intrinsics: in, RMS: rms, Views: views}, nil
}
