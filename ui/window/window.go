// Package window shows frames in an OpenCV window and reads its keys.
package window

import (
	"errors"
	"time"

	"pose-aligner/internal/frame"
	"pose-aligner/internal/session"

	"gocv.io/x/gocv"
)

// Window is the display surface and key source of a session.
type Window struct {
	w *gocv.Window
}

// New opens a window, resized when width and height are set.
func New(title string, width, height int) *Window {
	w := gocv.NewWindow(title)
	if width > 0 && height > 0 {
		w.ResizeWindow(width, height)
	}
	return &Window{w: w}
}

// Show displays f.
func (w *Window) Show(f session.Frame) error {
	mf, ok := f.(*frame.MatFrame)
	if !ok {
		return errors.New("window can only show OpenCV frames")
	}
	w.w.IMShow(mf.Mat())
	return nil
}

// PollKey waits up to timeout for a key press.
func (w *Window) PollKey(timeout time.Duration) (session.Key, bool) {
	ms := int(timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	k := w.w.WaitKey(ms)
	if k < 0 {
		return 0, false
	}
	return session.Key(k & 0xFF), true
}

// Close destroys the window.
func (w *Window) Close() error {
	err := w.w.Close()
	gocv.WaitKey(1)
	return err
}
