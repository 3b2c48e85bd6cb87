// Package capture reads frames from a camera.
package capture

import (
	"context"
	"fmt"
	"runtime"

	"pose-aligner/internal/frame"
	"pose-aligner/internal/session"

	"gocv.io/x/gocv"
)

// MaxProbe is how many device indexes DetectIndexes tries.
const MaxProbe = 9

// Camera is an open video device.
type Camera struct {
	index int
	vc    *gocv.VideoCapture
}

func open(index int) (*gocv.VideoCapture, error) {
	if runtime.GOOS == "windows" {
		return gocv.VideoCaptureDeviceWithAPI(index, gocv.VideoCaptureDshow)
	}
	return gocv.VideoCaptureDevice(index)
}

// Open starts device index, requesting the given frame size when non-zero.
func Open(index int, width, height float64) (*Camera, error) {
	vc, err := open(index)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("cannot initialize camera %d", index)
	}
	if width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, width)
	}
	if height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, height)
	}
	return &Camera{index: index, vc: vc}, nil
}

// Index returns the device index.
func (c *Camera) Index() int { return c.index }

// Size returns the frame size the device reports.
func (c *Camera) Size() (width, height float64) {
	return c.vc.Get(gocv.VideoCaptureFrameWidth), c.vc.Get(gocv.VideoCaptureFrameHeight)
}

// Read grabs the next frame.
func (c *Camera) Read(ctx context.Context) (session.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: no frame", c.index)
	}
	return frame.Wrap(mat), nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.vc.Close()
}

// DetectIndexes returns the device indexes that open and deliver a frame.
func DetectIndexes() []int {
	var found []int
	for i := 0; i < MaxProbe; i++ {
		vc, err := open(i)
		if err != nil {
			continue
		}
		mat := gocv.NewMat()
		if vc.IsOpened() && vc.Read(&mat) && !mat.Empty() {
			found = append(found, i)
		}
		mat.Close()
		vc.Close()
	}
	return found
}
