// Package frame wraps OpenCV images as drawable session frames.
package frame

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// MatFrame is a BGR image owned by one loop iteration. Colors are given in
// RGB; gocv converts them for the BGR buffer.
type MatFrame struct {
	mat gocv.Mat
}

// Wrap takes ownership of mat.
func Wrap(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// FromImage copies a decoded image into a new frame.
func FromImage(img image.Image) (*MatFrame, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	return Wrap(mat), nil
}

// Load reads an image file into a new frame.
func Load(path string) (*MatFrame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	return Wrap(mat), nil
}

// Mat returns the underlying image. It stays owned by the frame.
func (f *MatFrame) Mat() gocv.Mat { return f.mat }

func (f *MatFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

func (f *MatFrame) Line(from, to image.Point, c color.RGBA, thickness int) {
	gocv.Line(&f.mat, from, to, c, thickness)
}

func (f *MatFrame) Circle(center image.Point, radius int, c color.RGBA, thickness int) {
	gocv.Circle(&f.mat, center, radius, c, thickness)
}

func (f *MatFrame) Ellipse(center, axes image.Point, startDeg, endDeg float64, c color.RGBA, thickness int) {
	gocv.Ellipse(&f.mat, center, axes, 0, startDeg, endDeg, c, thickness)
}

func (f *MatFrame) Rectangle(r image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(&f.mat, r, c, thickness)
}

func (f *MatFrame) Text(s string, org image.Point, scale float64, c color.RGBA, thickness int) {
	gocv.PutText(&f.mat, s, org, gocv.FontHersheySimplex, scale, c, thickness)
}

// Flip rotates the image by 180 degrees.
func (f *MatFrame) Flip() {
	dst := gocv.NewMat()
	gocv.Rotate(f.mat, &dst, gocv.Rotate180Clockwise)
	f.mat.Close()
	f.mat = dst
}

// Save writes the image; the extension picks the format.
func (f *MatFrame) Save(path string) error {
	if ok := gocv.IMWrite(path, f.mat); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}
