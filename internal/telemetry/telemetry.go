// Package telemetry publishes per-frame alignment samples to external
// listeners. Publishing never blocks the frame loop.
package telemetry

import (
	"time"

	"pose-aligner/internal/deviation"

	"github.com/google/uuid"
)

// Sample is the deviation state of one positioning frame. Unavailable
// components are null.
type Sample struct {
	Session  string      `json:"session"`
	Frame    uint64      `json:"frame"`
	Time     time.Time   `json:"time"`
	Found    bool        `json:"found"`
	Angle    [3]*float64 `json:"angle"`
	Distance [3]*float64 `json:"distance"`
	Aligned  bool        `json:"aligned"`
}

// NewSample captures a deviation for publishing.
func NewSample(session string, frame uint64, found bool, dev deviation.Deviation, tolerance float64) Sample {
	return Sample{
		Session:  session,
		Frame:    frame,
		Time:     time.Now().UTC(),
		Found:    found,
		Angle:    pointers(dev.Angle),
		Distance: pointers(dev.Distance),
		Aligned:  dev.Aligned(tolerance),
	}
}

func pointers(t deviation.Triple) [3]*float64 {
	var out [3]*float64
	for i, s := range t {
		if v, ok := s.Value(); ok {
			out[i] = &v
		}
	}
	return out
}

// NewSessionID returns a random identifier grouping the samples of one run.
func NewSessionID() string {
	return uuid.NewString()
}

// Publisher receives samples.
type Publisher interface {
	Publish(Sample)
}

// Nop discards every sample.
type Nop struct{}

func (Nop) Publish(Sample) {}

// Multi fans a sample out to several publishers.
type Multi []Publisher

func (m Multi) Publish(s Sample) {
	for _, p := range m {
		p.Publish(s)
	}
}
