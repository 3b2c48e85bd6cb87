package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"pose-aligner/internal/deviation"
	"pose-aligner/internal/overlay"
	"pose-aligner/internal/pose"
	"pose-aligner/internal/render"
	"pose-aligner/internal/store"
	"pose-aligner/internal/telemetry"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	*render.Recorder
	flips  int
	saved  []string
	closed bool
}

func newFrame() *fakeFrame { return &fakeFrame{Recorder: render.NewRecorder(1280, 720)} }

func (f *fakeFrame) Flip()                  { f.flips++ }
func (f *fakeFrame) Save(path string) error { f.saved = append(f.saved, path); return nil }
func (f *fakeFrame) Close() error           { f.closed = true; return nil }

type fakeDisplay struct{ shown []Frame }

func (d *fakeDisplay) Show(f Frame) error { d.shown = append(d.shown, f); return nil }

// scriptedDetector returns one detection per call, then misses.
type scriptedDetector struct {
	results []vision.Detection
	calls   int
}

func (d *scriptedDetector) Detect(Frame) (vision.Detection, error) {
	d.calls++
	if d.calls > len(d.results) {
		return vision.Detection{}, nil
	}
	return d.results[d.calls-1], nil
}

var testPattern = vision.Pattern{Rows: 2, Cols: 2, SquareSize: 10}

func found(translation ...float64) vision.Detection {
	return vision.Detection{
		Found:       true,
		Corners:     []geometry.Point2D{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 10, Y: 20}, {X: 20, Y: 20}},
		Rotation:    []float64{0, 0, 0},
		Translation: translation,
	}
}

func frameEvent(f Frame) Event { return Event{Kind: EventFrame, Frame: f} }
func keyEvent(k rune) Event    { return Event{Kind: EventKey, Key: Key(k)} }

var escEvent = Event{Kind: EventKey, Key: KeyEsc}

func testIntrinsics(t *testing.T) *vision.Intrinsics {
	t.Helper()
	in, err := vision.NewIntrinsics([][]float64{{800, 0, 640}, {0, 800, 360}, {0, 0, 1}}, nil)
	require.NoError(t, err)
	return in
}

func newPositioner(t *testing.T, det Detector, pub telemetry.Publisher) *Positioner {
	t.Helper()
	palette := colorutil.DefaultPalette()
	return NewPositioner(PositionOptions{
		Detector:   det,
		Intrinsics: testIntrinsics(t),
		Reference: &pose.Reference{
			Corners: []geometry.Point2D{{X: 11, Y: 11}, {X: 21, Y: 11}, {X: 11, Y: 21}, {X: 21, Y: 21}},
		},
		Pattern: testPattern,
		Palette: palette,
		Units:   overlay.Units{Distance: "mm", Angle: "deg"},
		NavStyle: overlay.Style{
			WidgetSize: 300,
			BallColor:  colorutil.Grey,
			Palette:    palette,
			Tolerance:  0.5,
		},
		Publisher: pub,
		Session:   "test",
	})
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	assert.True(t, Key('p').Is('P'))
	assert.True(t, Key('P').Is('p'))
	assert.False(t, KeyEsc.Is('p'))
}

func TestIdleStartAndEscape(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   State
	}{
		{"waits for start key", []Event{frameEvent(newFrame()), keyEvent('x')}, Idle},
		{"start key activates", []Event{keyEvent('P')}, Active},
		{"escape from idle", []Event{escEvent}, Terminated},
		{"escape from active", []Event{keyEvent('p'), escEvent}, Terminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{
				Events:   &Script{Events: tt.events},
				Display:  &fakeDisplay{},
				Mode:     newPositioner(t, &scriptedDetector{}, nil),
				StartKey: 'p',
				IdleMenu: []overlay.MenuItem{{Key: "P", Label: "Position"}, {Key: "ESC", Label: "Escape"}},
			})
			require.NoError(t, m.Run(context.Background()))
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestIdleFrameShowsOnlyMenu(t *testing.T) {
	f := newFrame()
	det := &scriptedDetector{results: []vision.Detection{found(1, 2, 3)}}
	m := New(Config{
		Events:   &Script{Events: []Event{frameEvent(f)}},
		Display:  &fakeDisplay{},
		Mode:     newPositioner(t, det, nil),
		StartKey: 'p',
		IdleMenu: []overlay.MenuItem{{Key: "P", Label: "Position"}, {Key: "ESC", Label: "Escape"}},
	})
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{"[P] Position", "[ESC] Escape"}, f.Texts())
	assert.Zero(t, det.calls)
}

func TestTogglesAreIndependentAndIdempotent(t *testing.T) {
	tg := DefaultToggles()
	assert.Equal(t, Toggles{Corners: true, Measurements: true}, tg)

	for _, k := range "acfmn" {
		before := tg
		require.True(t, tg.Toggle(Key(k)))
		assert.NotEqual(t, before, tg)
		require.True(t, tg.Toggle(Key(k)))
		assert.Equal(t, before, tg, "pressing %q twice restores the state", k)
	}
	assert.False(t, tg.Toggle(Key('z')))

	tg.Toggle('N')
	tg.Toggle('a')
	assert.Equal(t, Toggles{AddInfo: true, Corners: true, Measurements: true, Navigation: true}, tg)
}

func TestPositionerCarriesValuesOverMissedFrames(t *testing.T) {
	det := &scriptedDetector{results: []vision.Detection{found(1, 2, 3), {}}}
	p := newPositioner(t, det, nil)

	assert.Equal(t, deviation.Deviation{}, p.Deviation(), "nothing before the first frame")

	p.Frame(newFrame())
	want := deviation.TripleOf(1, 2, 3)
	assert.Equal(t, want, p.Deviation().Distance)
	assert.Equal(t, deviation.TripleOf(0, 0, 0), p.Deviation().Angle)
	assert.False(t, p.Deviation().Within(0.5))

	p.Frame(newFrame())
	assert.Equal(t, want, p.Deviation().Distance, "a miss keeps the previous values")
	assert.Equal(t, want, p.Measurement().Distances)
}

func TestPositionerInvalidPoseBecomesUnavailable(t *testing.T) {
	bad := found(1, 2, 3)
	bad.Rotation = []float64{0, 0}
	p := newPositioner(t, &scriptedDetector{results: []vision.Detection{found(1, 2, 3), bad}}, nil)

	p.Frame(newFrame())
	p.Frame(newFrame())
	assert.Equal(t, deviation.Unknown, p.Deviation().Distance)
	assert.Equal(t, deviation.Unknown, p.Measurement().Angles)
}

func TestPositionerDrawsEnabledOverlays(t *testing.T) {
	det := &scriptedDetector{results: []vision.Detection{found(1, 2, 3), found(1, 2, 3)}}
	p := newPositioner(t, det, nil)

	f := newFrame()
	p.Frame(f)
	texts := strings.Join(f.Texts(), "\n")
	assert.Contains(t, texts, "Difference")
	assert.Contains(t, texts, "x=1 mm, r=0 deg")
	assert.Contains(t, texts, "Reference")
	assert.Contains(t, texts, "x=0 mm, r=0 deg")
	assert.Len(t, f.Filter("circle"), 8, "reference and detected corners")
	assert.NotContains(t, texts, "principal point")

	p.Key('m')
	p.Key('n')
	p.Key('a')
	p.Key('f')
	f = newFrame()
	p.Frame(f)
	texts = strings.Join(f.Texts(), "\n")
	assert.NotContains(t, texts, "Difference")
	assert.Contains(t, texts, "x: 1.00 ")
	assert.Contains(t, texts, "z: 3.00 ")
	assert.Contains(t, texts, "principal point")
	assert.Equal(t, 1, f.flips)
}

func TestPositionerMatchedCorners(t *testing.T) {
	p := newPositioner(t, &scriptedDetector{results: []vision.Detection{found(0.1, 0.1, 0.1)}}, nil)
	f := newFrame()
	p.Frame(f)

	circles := f.Filter("circle")
	require.Len(t, circles, 12)
	palette := colorutil.DefaultPalette()
	assert.Equal(t, palette.Reference, circles[0].Color)
	assert.Equal(t, palette.Detected, circles[4].Color)
	assert.Equal(t, palette.Matched, circles[8].Color)
}

func TestPositionerPublishesEveryFrame(t *testing.T) {
	pub := &recordingPublisher{}
	p := newPositioner(t, &scriptedDetector{results: []vision.Detection{found(1, 2, 3)}}, pub)
	p.Frame(newFrame())
	p.Frame(newFrame())

	require.Len(t, pub.got, 2)
	assert.True(t, pub.got[0].Found)
	assert.False(t, pub.got[1].Found)
	assert.Equal(t, uint64(2), pub.got[1].Frame)
	assert.Equal(t, 3.0, *pub.got[1].Distance[2])
}

type recordingPublisher struct{ got []telemetry.Sample }

func (r *recordingPublisher) Publish(s telemetry.Sample) { r.got = append(r.got, s) }

func TestMachineSavesDisplayedImageAndReleasesFrames(t *testing.T) {
	f1, f2 := newFrame(), newFrame()
	disp := &fakeDisplay{}
	var out bytes.Buffer
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m := New(Config{
		Events:  &Script{Events: []Event{frameEvent(f1), keyEvent('I'), frameEvent(f2), escEvent}},
		Display: disp,
		Mode:    newPositioner(t, &scriptedDetector{}, nil),
		Images:  store.Namer{Dir: "out", Pattern: "cb", Now: func() time.Time { return now }},
		Out:     &out,
	})
	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, Terminated, m.State())
	assert.Len(t, disp.shown, 2)
	require.Len(t, f1.saved, 1)
	assert.Contains(t, f1.saved[0], "pose_jpg_of_cb_2025_01_02__03_04_05.jpg")
	assert.True(t, f1.closed)
	assert.True(t, f2.closed)
	assert.Contains(t, out.String(), "Leaving position estimation process...")
	assert.Contains(t, strings.Join(f2.Texts(), "\n"), "[ESC] Escape")
}

func TestMachineStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(Config{Events: &Script{Events: []Event{escEvent}}, Display: &fakeDisplay{}, Mode: newPositioner(t, nil, nil)})
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)
	assert.Equal(t, Active, m.State())
}

func TestReferenceCapture(t *testing.T) {
	var saved []pose.Reference
	var out bytes.Buffer
	det := &scriptedDetector{results: []vision.Detection{found(5, 6, 400)}}
	r := NewReferenceCapture(ReferenceOptions{
		Detector:   det,
		Intrinsics: testIntrinsics(t),
		Pattern:    testPattern,
		Palette:    colorutil.DefaultPalette(),
		Units:      overlay.Units{Distance: "mm", Angle: "deg"},
		Save:       func(ref pose.Reference) error { saved = append(saved, ref); return nil },
		Out:        &out,
	})

	require.True(t, r.Key('s'))
	assert.Contains(t, out.String(), "No reference detected yet")
	assert.Empty(t, saved)

	f := newFrame()
	r.Frame(f)
	assert.Contains(t, f.Texts(), "x=5 mm, r=0 deg")
	assert.Len(t, f.Filter("line"), 3, "axis")

	require.True(t, r.Key('S'))
	require.Len(t, saved, 1)
	assert.Equal(t, r3.Vector{X: 5, Y: 6, Z: 400}, saved[0].Distances)
	assert.Len(t, saved[0].Corners, 4)

	f = newFrame()
	require.True(t, r.Key('f'))
	r.Frame(f)
	assert.Equal(t, 1, f.flips)
	assert.Contains(t, f.Texts(), "x=5 mm, r=0 deg", "values carry over")
	assert.False(t, r.Key('m'))
	assert.Equal(t, "ref", r.ImageTitle())
}

type fakeCalibrator struct {
	corners   [][]geometry.Point2D
	calls     int
	drawn     int
	calibrate int
	size      image.Point
}

func (c *fakeCalibrator) FindCorners(Frame, vision.Pattern) ([]geometry.Point2D, error) {
	c.calls++
	if c.calls > len(c.corners) {
		return nil, nil
	}
	return c.corners[c.calls-1], nil
}

func (c *fakeCalibrator) DrawCorners(Frame, vision.Pattern, []geometry.Point2D) { c.drawn++ }

func (c *fakeCalibrator) Calibrate(samples []vision.Sample, size image.Point) (*vision.Calibration, error) {
	c.calibrate++
	c.size = size
	if len(samples) == 0 {
		return nil, errors.New("no samples")
	}
	return &vision.Calibration{RMS: 0.2, Views: make([]pose.Pose, len(samples))}, nil
}

func TestCalibrationCollectAndDelete(t *testing.T) {
	corners := []geometry.Point2D{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}}
	cal := &fakeCalibrator{corners: [][]geometry.Point2D{corners, nil, corners}}
	answers := []string{"abc", "7", "1"}
	var out bytes.Buffer
	c := NewCalibrationCollector(CalibrationOptions{
		Calibrator: cal,
		Pattern:    testPattern,
		Ask: func(string) (string, error) {
			a := answers[0]
			answers = answers[1:]
			return a, nil
		},
		Out: &out,
	})

	m := New(Config{
		Events: &Script{Events: []Event{
			frameEvent(newFrame()),
			keyEvent('c'),
			frameEvent(newFrame()),
			frameEvent(newFrame()),
			frameEvent(newFrame()),
		}},
		Display: &fakeDisplay{},
		Mode:    c,
	})
	require.NoError(t, m.Run(context.Background()))

	assert.True(t, c.Collecting())
	assert.Equal(t, CollectKeyWait, c.KeyWait())
	assert.Equal(t, collectMenu, c.Menu())
	assert.Len(t, c.Samples(), 2)
	assert.Equal(t, 2, cal.drawn)

	require.True(t, c.Key(KeyEsc), "escape ends collection, not the session")
	assert.False(t, c.Collecting())
	assert.Equal(t, image.Pt(1280, 720), cal.size)
	require.NotNil(t, c.Calibration())
	assert.Contains(t, out.String(), "Leaving data collection process...")
	assert.Contains(t, out.String(), "Camera has been calibrated")

	c.Key('d')
	assert.Contains(t, out.String(), "Invalid index. Please enter a valid integer")
	c.Key('d')
	assert.Contains(t, out.String(), "Index 7 is out of range")
	c.Key('D')
	assert.Contains(t, out.String(), "Object and image points with index 1 have been deleted")
	assert.Len(t, c.Samples(), 1)
	assert.Equal(t, 2, cal.calibrate)

	assert.False(t, c.Key(KeyEsc), "escape outside collection is left to the machine")
	assert.Equal(t, CalibrationMenu, c.Menu())
}

func TestCalibrationWithoutSamples(t *testing.T) {
	var out bytes.Buffer
	cal := &fakeCalibrator{}
	c := NewCalibrationCollector(CalibrationOptions{Calibrator: cal, Pattern: testPattern, Out: &out})

	c.Key('c')
	c.Key(KeyEsc)
	assert.Contains(t, out.String(), "No points to perform camera calibration")
	assert.Zero(t, cal.calibrate)

	c.Key('s')
	assert.Contains(t, out.String(), "No calibration to save")
	c.Key('v')
	assert.Contains(t, out.String(), "No re-projection errors to visualize")
}

type fakeSource struct{ frames int }

func (s *fakeSource) Read(context.Context) (Frame, error) {
	s.frames++
	return newFrame(), nil
}

type fakeKeys struct {
	keys  []Key
	waits []time.Duration
}

func (k *fakeKeys) PollKey(d time.Duration) (Key, bool) {
	k.waits = append(k.waits, d)
	if len(k.keys) == 0 {
		return 0, false
	}
	key := k.keys[0]
	k.keys = k.keys[1:]
	return key, true
}

func TestLiveEventsAlternate(t *testing.T) {
	src := &fakeSource{}
	keys := &fakeKeys{keys: []Key{'a'}}
	ev := NewLiveEvents(src, keys)
	ctx := context.Background()

	kinds := make([]EventKind, 0, 4)
	for i := 0; i < 4; i++ {
		e, err := ev.Next(ctx)
		require.NoError(t, err)
		kinds = append(kinds, e.Kind)
		if i == 1 {
			ev.SetWait(CollectKeyWait)
		}
	}
	assert.Equal(t, []EventKind{EventFrame, EventKey, EventFrame, EventTimeout}, kinds)
	assert.Equal(t, []time.Duration{DefaultKeyWait, CollectKeyWait}, keys.waits)
	assert.Equal(t, 2, src.frames)
}

func TestMachinePacesCollection(t *testing.T) {
	keys := &fakeKeys{keys: []Key{'c', KeyEsc}}
	cal := &fakeCalibrator{}
	m := New(Config{
		Events:  NewLiveEvents(&fakeSource{}, keys),
		Display: &fakeDisplay{},
		Mode:    NewCalibrationCollector(CalibrationOptions{Calibrator: cal, Pattern: testPattern}),
	})
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Step(context.Background()))
	}
	assert.Equal(t, []time.Duration{DefaultKeyWait, CollectKeyWait}, keys.waits)
	assert.Equal(t, Active, m.State())
}
