// Package vision holds the camera model and chessboard geometry used to turn
// detected corners into poses. The OpenCV-backed detector lives in
// vision/opencv; everything here is plain Go so it can run offline.
package vision

import (
	"errors"
	"fmt"

	"pose-aligner/internal/pose"
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCameraMatrix is returned for a camera matrix that is not 3x3.
var ErrInvalidCameraMatrix = errors.New("camera matrix must be 3x3")

// Intrinsics is a pinhole camera with Brown-Conrady distortion
// (k1, k2, p1, p2, k3). Missing distortion terms are zero.
type Intrinsics struct {
	K    *mat.Dense
	Dist [5]float64
}

// NewIntrinsics validates a row-major camera matrix and distortion vector.
func NewIntrinsics(rows [][]float64, dist []float64) (*Intrinsics, error) {
	if len(rows) != 3 {
		return nil, fmt.Errorf("%w: got %d rows", ErrInvalidCameraMatrix, len(rows))
	}
	data := make([]float64, 0, 9)
	for i, r := range rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrInvalidCameraMatrix, i, len(r))
		}
		data = append(data, r...)
	}
	if len(dist) > 5 {
		return nil, fmt.Errorf("expected at most 5 distortion coefficients, got %d", len(dist))
	}
	in := &Intrinsics{K: mat.NewDense(3, 3, data)}
	copy(in.Dist[:], dist)
	return in, nil
}

// Rows returns the camera matrix row by row.
func (in *Intrinsics) Rows() [][]float64 {
	out := make([][]float64, 3)
	for i := range out {
		out[i] = mat.Row(nil, i, in.K)
	}
	return out
}

func (in *Intrinsics) fx() float64 { return in.K.At(0, 0) }
func (in *Intrinsics) fy() float64 { return in.K.At(1, 1) }
func (in *Intrinsics) cx() float64 { return in.K.At(0, 2) }
func (in *Intrinsics) cy() float64 { return in.K.At(1, 2) }

// PrincipalPoint returns the optical center in pixels.
func (in *Intrinsics) PrincipalPoint() geometry.Point2D {
	return geometry.Point2D{X: in.cx(), Y: in.cy()}
}

// distort applies the lens model to a normalized image point.
func (in *Intrinsics) distort(x, y float64) (float64, float64) {
	k1, k2, p1, p2, k3 := in.Dist[0], in.Dist[1], in.Dist[2], in.Dist[3], in.Dist[4]
	r2 := x*x + y*y
	radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// Normalize removes the camera matrix and lens distortion from a pixel
// position using fixed-point iteration.
func (in *Intrinsics) Normalize(p geometry.Point2D) (float64, float64) {
	xd := (p.X - in.cx()) / in.fx()
	yd := (p.Y - in.cy()) / in.fy()
	x, y := xd, yd
	for i := 0; i < 20; i++ {
		k1, k2, p1, p2, k3 := in.Dist[0], in.Dist[1], in.Dist[2], in.Dist[3], in.Dist[4]
		r2 := x*x + y*y
		radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return x, y
}

// Project maps object points through pose p onto the image.
func (in *Intrinsics) Project(points []r3.Vector, p pose.Pose) []geometry.Point2D {
	r := pose.Rodrigues(p.Rotation)
	out := make([]geometry.Point2D, len(points))
	for i, pt := range points {
		cam := transform(r, p.Translation, pt)
		x, y := cam.X/cam.Z, cam.Y/cam.Z
		xd, yd := in.distort(x, y)
		out[i] = geometry.Point2D{
			X: in.fx()*xd + in.K.At(0, 1)*yd + in.cx(),
			Y: in.fy()*yd + in.cy(),
		}
	}
	return out
}

func transform(r mat.Matrix, t, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z + t.X,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z + t.Y,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z + t.Z,
	}
}
