// Package session runs the interactive display loops: positioning against a
// stored reference, capturing a reference, and collecting calibration views.
package session

import (
	"context"
	"errors"
	"time"
	"unicode"

	"pose-aligner/internal/render"
)

// Key is a key code as reported by the display. Letters match either case.
type Key int

// KeyEsc is the escape key.
const KeyEsc Key = 27

// Is reports whether k is the letter r, ignoring case.
func (k Key) Is(r rune) bool {
	return k == Key(unicode.ToLower(r)) || k == Key(unicode.ToUpper(r))
}

// Frame is one camera image, owned by a single loop iteration until it is
// shown and replaced.
type Frame interface {
	render.Canvas
	// Flip rotates the image by 180 degrees in place.
	Flip()
	Save(path string) error
	Close() error
}

// EventKind tags an Event.
type EventKind int

const (
	EventFrame EventKind = iota
	EventKey
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventFrame:
		return "frame"
	case EventKey:
		return "key"
	case EventTimeout:
		return "timeout"
	}
	return "unknown"
}

// Event is the next thing the loop has to react to.
type Event struct {
	Kind  EventKind
	Frame Frame
	Key   Key
}

// ErrEndOfInput ends a loop without error when an event source runs dry.
var ErrEndOfInput = errors.New("end of input")

// EventSource yields events one at a time.
type EventSource interface {
	Next(ctx context.Context) (Event, error)
}

// FrameSource reads camera frames.
type FrameSource interface {
	Read(ctx context.Context) (Frame, error)
}

// KeyPoller waits up to timeout for a key press.
type KeyPoller interface {
	PollKey(timeout time.Duration) (Key, bool)
}

// Display presents a composed frame.
type Display interface {
	Show(Frame) error
}

// DefaultKeyWait is the key poll timeout between frames.
const DefaultKeyWait = 5 * time.Millisecond

// LiveEvents alternates between reading a frame and polling for a key, so
// every frame is followed by exactly one key or timeout event.
type LiveEvents struct {
	Frames FrameSource
	Keys   KeyPoller

	wait    time.Duration
	pollKey bool
}

// NewLiveEvents pairs a frame source with a key poller.
func NewLiveEvents(frames FrameSource, keys KeyPoller) *LiveEvents {
	return &LiveEvents{Frames: frames, Keys: keys, wait: DefaultKeyWait}
}

// SetWait changes the key poll timeout; zero restores the default.
func (l *LiveEvents) SetWait(d time.Duration) {
	if d <= 0 {
		d = DefaultKeyWait
	}
	l.wait = d
}

// Next returns the next event.
func (l *LiveEvents) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if l.pollKey {
		l.pollKey = false
		if k, ok := l.Keys.PollKey(l.wait); ok {
			return Event{Kind: EventKey, Key: k}, nil
		}
		return Event{Kind: EventTimeout}, nil
	}
	f, err := l.Frames.Read(ctx)
	if err != nil {
		return Event{}, err
	}
	l.pollKey = true
	return Event{Kind: EventFrame, Frame: f}, nil
}

// Script replays a fixed list of events, then reports ErrEndOfInput.
type Script struct {
	Events []Event
	pos    int
}

// Next returns the next scripted event.
func (s *Script) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.Events) {
		return Event{}, ErrEndOfInput
	}
	ev := s.Events[s.pos]
	s.pos++
	return ev, nil
}
