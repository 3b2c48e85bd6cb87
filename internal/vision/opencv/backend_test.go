package opencv

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"pose-aligner/internal/frame"
	"pose-aligner/internal/pose"
	"pose-aligner/internal/render"
	"pose-aligner/internal/vision"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var board = vision.Pattern{Rows: 5, Cols: 7, SquareSize: 25}

// chessboard renders a flat board with (Rows+1) x (Cols+1) squares.
func chessboard(square, margin int) *image.RGBA {
	w := (board.Rows+1)*square + 2*margin
	h := (board.Cols+1)*square + 2*margin
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for j := 0; j <= board.Cols; j++ {
		for i := 0; i <= board.Rows; i++ {
			if (i+j)%2 == 1 {
				continue
			}
			r := image.Rect(margin+i*square, margin+j*square, margin+(i+1)*square, margin+(j+1)*square)
			draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
		}
	}
	return img
}

func TestFindCornersOnSyntheticBoard(t *testing.T) {
	f, err := frame.FromImage(chessboard(40, 60))
	require.NoError(t, err)
	defer f.Close()

	b := New(board, nil, 30, 0.001)
	corners, err := b.FindCorners(f, board)
	require.NoError(t, err)
	require.Len(t, corners, board.Size())

	xs := map[int]bool{}
	for _, c := range corners {
		xs[int(c.X+0.5)] = true
	}
	assert.Len(t, xs, board.Rows, "one column of x positions per inner corner")

	b.DrawCorners(f, board, corners)
	_, err = b.Detect(f)
	assert.Error(t, err, "pose needs a camera model")
}

func TestDetectSolvesPose(t *testing.T) {
	img := chessboard(40, 60)
	in, err := vision.NewIntrinsics([][]float64{
		{800, 0, float64(img.Bounds().Dx()) / 2},
		{0, 800, float64(img.Bounds().Dy()) / 2},
		{0, 0, 1},
	}, nil)
	require.NoError(t, err)

	f, err := frame.FromImage(img)
	require.NoError(t, err)
	defer f.Close()

	det, err := New(board, in, 30, 0.001).Detect(f)
	require.NoError(t, err)
	require.True(t, det.Found)
	assert.Len(t, det.Translation, 3)
	assert.Greater(t, det.Translation[2], 0.0)
}

func TestFindCornersMissIsNotAnError(t *testing.T) {
	blank := render.NewRGBACanvas(320, 240, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	f, err := frame.FromImage(blank.Image())
	require.NoError(t, err)
	defer f.Close()

	corners, err := New(board, nil, 30, 0.001).FindCorners(f, board)
	assert.NoError(t, err)
	assert.Nil(t, corners)
}

func TestFindCornersRejectsOtherFrames(t *testing.T) {
	_, err := New(board, nil, 30, 0.001).FindCorners(nil, board)
	assert.ErrorIs(t, err, ErrNotMat)
}

func TestCalibrateFromProjectedViews(t *testing.T) {
	truth, err := vision.NewIntrinsics([][]float64{{700, 0, 320}, {0, 700, 240}, {0, 0, 1}}, nil)
	require.NoError(t, err)

	obj := board.ObjectPoints()
	var samples []vision.Sample
	for _, p := range []pose.Pose{
		{Rotation: r3.Vector{X: 0.2, Y: -0.1}, Translation: r3.Vector{X: -60, Y: -80, Z: 500}},
		{Rotation: r3.Vector{X: -0.3, Y: 0.2, Z: 0.1}, Translation: r3.Vector{X: -40, Y: -90, Z: 450}},
		{Rotation: r3.Vector{Y: 0.35, Z: -0.2}, Translation: r3.Vector{X: -70, Y: -60, Z: 550}},
		{Rotation: r3.Vector{X: 0.1, Y: 0.3, Z: 0.5}, Translation: r3.Vector{X: -30, Y: -70, Z: 480}},
	} {
		samples = append(samples, vision.Sample{Object: obj, Image: truth.Project(obj, p)})
	}

	cal, err := New(board, nil, 30, 0.001).Calibrate(samples, image.Pt(640, 480))
	require.NoError(t, err)
	assert.Less(t, cal.RMS, 0.1)
	assert.InDelta(t, 700, cal.Intrinsics.Rows()[0][0], 5)
	assert.Len(t, cal.Views, len(samples))
}
