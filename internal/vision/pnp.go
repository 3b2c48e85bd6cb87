package vision

import (
	"errors"
	"fmt"
	"math"

	"pose-aligner/internal/pose"
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the correspondences do not determine a pose.
var ErrDegenerate = errors.New("degenerate point configuration")

const (
	refineIterations = 50
	jacobianStep     = 1e-7
)

// SolvePlanar estimates the pose of a planar target (all object points on
// z = 0) from its image. The initial estimate comes from decomposing the
// plane-to-image homography and is then refined by Levenberg-Marquardt on
// the pixel reprojection error.
func SolvePlanar(object []r3.Vector, imagePts []geometry.Point2D, in *Intrinsics) (pose.Pose, error) {
	if len(object) != len(imagePts) {
		return pose.Pose{}, fmt.Errorf("%d object points but %d image points", len(object), len(imagePts))
	}
	if len(object) < 4 {
		return pose.Pose{}, fmt.Errorf("%w: need at least 4 points, got %d", ErrDegenerate, len(object))
	}

	normalized := make([]geometry.Point2D, len(imagePts))
	for i, p := range imagePts {
		x, y := in.Normalize(p)
		normalized[i] = geometry.Point2D{X: x, Y: y}
	}

	h, err := planarHomography(object, normalized)
	if err != nil {
		return pose.Pose{}, err
	}
	initial, err := decomposeHomography(h)
	if err != nil {
		return pose.Pose{}, err
	}
	return refinePose(object, imagePts, in, initial), nil
}

// planarHomography fits H mapping board (X, Y) to normalized image (x, y)
// with the normalized DLT.
func planarHomography(object []r3.Vector, image []geometry.Point2D) (*mat.Dense, error) {
	src := make([]geometry.Point2D, len(object))
	for i, o := range object {
		src[i] = geometry.Point2D{X: o.X, Y: o.Y}
	}
	tSrc := conditioner(src)
	tDst := conditioner(image)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range src {
		s := apply(tSrc, src[i])
		d := apply(tDst, image[i])
		a.SetRow(2*i, []float64{s.X, s.Y, 1, 0, 0, 0, -d.X * s.X, -d.X * s.Y, -d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, s.X, s.Y, 1, -d.Y * s.X, -d.Y * s.Y, -d.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, fmt.Errorf("%w: homography SVD failed", ErrDegenerate)
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, mat.Col(nil, 8, &v))

	// H = inv(Tdst) * Hn * Tsrc
	var inv mat.Dense
	if err := inv.Inverse(tDst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	var h mat.Dense
	h.Product(&inv, hn, tSrc)
	return &h, nil
}

// conditioner returns the similarity that centers pts and scales their mean
// distance from the origin to sqrt(2).
func conditioner(pts []geometry.Point2D) *mat.Dense {
	c := geometry.Centroid(pts)
	var mean float64
	for _, p := range pts {
		mean += p.Distance(c)
	}
	mean /= float64(len(pts))
	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}
	return mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	})
}

func apply(t mat.Matrix, p geometry.Point2D) geometry.Point2D {
	w := t.At(2, 0)*p.X + t.At(2, 1)*p.Y + t.At(2, 2)
	return geometry.Point2D{
		X: (t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2)) / w,
		Y: (t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2)) / w,
	}
}

// decomposeHomography splits H = [r1 r2 t] up to scale into a rotation and
// translation with the target in front of the camera.
func decomposeHomography(h *mat.Dense) (pose.Pose, error) {
	col := func(j int) r3.Vector {
		return r3.Vector{X: h.At(0, j), Y: h.At(1, j), Z: h.At(2, j)}
	}
	h1, h2, h3 := col(0), col(1), col(2)

	n := (h1.Norm() + h2.Norm()) / 2
	if n < 1e-12 {
		return pose.Pose{}, fmt.Errorf("%w: homography has no rotation part", ErrDegenerate)
	}
	lambda := 1 / n
	if h3.Z < 0 {
		lambda = -lambda
	}
	r1, r2, t := h1.Mul(lambda), h2.Mul(lambda), h3.Mul(lambda)
	r3v := r1.Cross(r2)

	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	var svd mat.SVD
	if !svd.Factorize(approx, mat.SVDFull) {
		return pose.Pose{}, fmt.Errorf("%w: rotation SVD failed", ErrDegenerate)
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		u.Set(0, 2, -u.At(0, 2))
		u.Set(1, 2, -u.At(1, 2))
		u.Set(2, 2, -u.At(2, 2))
		r.Mul(&u, v.T())
	}
	return pose.Pose{Rotation: pose.AxisAngle(&r), Translation: t}, nil
}

func poseParams(p pose.Pose) []float64 {
	return []float64{p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Translation.X, p.Translation.Y, p.Translation.Z}
}

func paramsPose(x []float64) pose.Pose {
	return pose.Pose{
		Rotation:    r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		Translation: r3.Vector{X: x[3], Y: x[4], Z: x[5]},
	}
}

func residuals(object []r3.Vector, image []geometry.Point2D, in *Intrinsics, x []float64) []float64 {
	proj := in.Project(object, paramsPose(x))
	res := make([]float64, 2*len(proj))
	for i, p := range proj {
		res[2*i] = p.X - image[i].X
		res[2*i+1] = p.Y - image[i].Y
	}
	return res
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

// refinePose runs Levenberg-Marquardt with a forward-difference Jacobian.
func refinePose(object []r3.Vector, image []geometry.Point2D, in *Intrinsics, start pose.Pose) pose.Pose {
	x := poseParams(start)
	res := residuals(object, image, in, x)
	cost := sumSquares(res)
	damping := 1e-3
	m := len(res)

	for iter := 0; iter < refineIterations && cost > 1e-18; iter++ {
		jac := mat.NewDense(m, 6, nil)
		for k := 0; k < 6; k++ {
			step := jacobianStep * math.Max(1, math.Abs(x[k]))
			xs := append([]float64(nil), x...)
			xs[k] += step
			rs := residuals(object, image, in, xs)
			for i := range rs {
				jac.Set(i, k, (rs[i]-res[i])/step)
			}
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), mat.NewVecDense(m, res))

		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			a := mat.DenseCopyOf(&jtj)
			for k := 0; k < 6; k++ {
				a.Set(k, k, a.At(k, k)*(1+damping))
			}
			var delta mat.VecDense
			if err := delta.SolveVec(a, &jtr); err != nil {
				damping *= 10
				continue
			}
			next := make([]float64, 6)
			for k := range next {
				next[k] = x[k] - delta.AtVec(k)
			}
			nextRes := residuals(object, image, in, next)
			if nextCost := sumSquares(nextRes); nextCost < cost {
				x, res, cost = next, nextRes, nextCost
				damping = math.Max(damping/10, 1e-12)
				improved = true
				break
			}
			damping *= 10
		}
		if !improved {
			break
		}
	}
	return paramsPose(x)
}
