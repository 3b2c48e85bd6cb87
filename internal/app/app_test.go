package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pose-aligner/internal/config"
	"pose-aligner/internal/store"
	"pose-aligner/ui/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	calls   []string
	camera  int
	cal     *store.Calibration
	ref     *store.Reference
	cameras []int
}

func (f *fakeLauncher) Position(_ context.Context, camera int, cal *store.Calibration, ref *store.Reference) error {
	f.calls = append(f.calls, "position")
	f.camera, f.cal, f.ref = camera, cal, ref
	return nil
}

func (f *fakeLauncher) Reference(_ context.Context, camera int, cal *store.Calibration) error {
	f.calls = append(f.calls, "reference")
	f.camera, f.cal = camera, cal
	return nil
}

func (f *fakeLauncher) Calibration(_ context.Context, camera int) error {
	f.calls = append(f.calls, "calibration")
	f.camera = camera
	return nil
}

func (f *fakeLauncher) DetectCameras() []int { return f.cameras }

type fixture struct {
	cfg    *config.Config
	prefs  *prefs.Prefs
	launch *fakeLauncher
	out    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return &fixture{
		cfg:    cfg,
		prefs:  prefs.LoadFile(filepath.Join(t.TempDir(), "prefs.json")),
		launch: &fakeLauncher{},
		out:    &bytes.Buffer{},
	}
}

func (f *fixture) run(t *testing.T, input string) {
	t.Helper()
	a := New(f.cfg, f.prefs, strings.NewReader(input), f.out, f.launch)
	require.NoError(t, a.Run(context.Background()))
}

func (f *fixture) writeData(t *testing.T) (calPath, refPath string) {
	t.Helper()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := store.Namer{Dir: f.cfg.DataDir, Pattern: f.cfg.PatternName, Now: func() time.Time { return now }}

	calPath = n.Path("cal", store.Extension)
	require.NoError(t, store.Save(calPath, &store.Calibration{
		Version:      store.FormatVersion,
		CameraMatrix: [][]float64{{800, 0, 320}, {0, 800, 240}, {0, 0, 1}},
		Distortion:   []float64{0, 0, 0, 0, 0},
	}))
	refPath = n.Path("ref", store.Extension)
	require.NoError(t, store.Save(refPath, &store.Reference{
		Version:   store.FormatVersion,
		Distances: [3]float64{1, 2, 300},
	}))
	return calPath, refPath
}

func TestExit(t *testing.T) {
	f := newFixture(t)
	f.run(t, "0\n")
	assert.Contains(t, f.out.String(), "1 - Select camera index")
	assert.Contains(t, f.out.String(), "Exiting...")
}

func TestEndOfInputExits(t *testing.T) {
	f := newFixture(t)
	f.run(t, "")
	assert.Contains(t, f.out.String(), "Exiting...")
}

func TestInvalidChoice(t *testing.T) {
	f := newFixture(t)
	f.run(t, "9\n0\n")
	assert.Contains(t, f.out.String(), "Invalid input")
}

func TestSessionsNeedCamera(t *testing.T) {
	f := newFixture(t)
	f.run(t, "2\n3\n4\n0\n")
	assert.Equal(t, 3, strings.Count(f.out.String(), "Select camera index first"))
	assert.Empty(t, f.launch.calls)
}

func TestSelectCameraIsRemembered(t *testing.T) {
	f := newFixture(t)
	f.run(t, "1\nabc\n-1\n2\n4\n0\n")
	out := f.out.String()
	assert.Equal(t, 2, strings.Count(out, "Invalid input"))
	assert.Contains(t, out, "Selected camera index 2")
	assert.Equal(t, []string{"calibration"}, f.launch.calls)
	assert.Equal(t, 2, f.launch.camera)

	reloaded := New(f.cfg, f.prefs, strings.NewReader(""), &bytes.Buffer{}, f.launch)
	assert.Equal(t, 2, reloaded.Camera())
}

func TestDetectCameras(t *testing.T) {
	f := newFixture(t)
	f.launch.cameras = []int{0, 2}
	f.run(t, "5\n0\n")
	assert.Contains(t, f.out.String(), "Detected camera indexes: [0 2]")
}

func TestPositionLoadsSelectedData(t *testing.T) {
	f := newFixture(t)
	calPath, refPath := f.writeData(t)
	f.prefs.SetInt(prefs.KeyCamera, 1)

	f.run(t, "2\n1\n1\n0\n")
	out := f.out.String()
	assert.Contains(t, out, "Please select calibration data")
	assert.Contains(t, out, "Please select reference data")
	assert.Contains(t, out, "1 - "+filepath.Base(calPath))
	require.Equal(t, []string{"position"}, f.launch.calls)
	assert.Equal(t, 1, f.launch.camera)
	require.NotNil(t, f.launch.ref)
	assert.Equal(t, 300.0, f.launch.ref.Distances[2])

	assert.Equal(t, calPath, f.prefs.String(prefs.KeyCalibration))
	assert.Equal(t, refPath, f.prefs.String(prefs.KeyReference))
}

func TestBlankAnswerReusesLastFile(t *testing.T) {
	f := newFixture(t)
	calPath, _ := f.writeData(t)
	f.prefs.SetInt(prefs.KeyCamera, 0)
	f.prefs.SetString(prefs.KeyCalibration, calPath)

	f.run(t, "3\n\n0\n")
	assert.Contains(t, f.out.String(), "(last used)")
	require.Equal(t, []string{"reference"}, f.launch.calls)
	require.NotNil(t, f.launch.cal)
	assert.Equal(t, 800.0, f.launch.cal.CameraMatrix[0][0])
}

func TestBadSelection(t *testing.T) {
	f := newFixture(t)
	f.writeData(t)
	f.prefs.SetInt(prefs.KeyCamera, 0)

	f.run(t, "3\n7\n3\nx\n0\n")
	out := f.out.String()
	assert.Contains(t, out, "No valid selection made")
	assert.Contains(t, out, "Invalid input")
	assert.Empty(t, f.launch.calls)
}

func TestNoSavedData(t *testing.T) {
	f := newFixture(t)
	f.prefs.SetInt(prefs.KeyCamera, 0)
	f.run(t, "3\n0\n")
	assert.Contains(t, f.out.String(), "No saved data found")
	assert.Empty(t, f.launch.calls)
}
