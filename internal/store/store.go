// Package store persists calibration and reference data as JSON files.
package store

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pose-aligner/internal/pose"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// FormatVersion is written into every file.
const FormatVersion = 1

// Extension is the file extension used for saved data.
const Extension = "json"

// ErrShape is returned when a loaded file has arrays of the wrong size.
var ErrShape = errors.New("unexpected data shape")

// Calibration is the on-disk form of a camera calibration.
type Calibration struct {
	Version      int            `json:"version"`
	Created      time.Time      `json:"created"`
	Pattern      vision.Pattern `json:"pattern"`
	ImageWidth   int            `json:"image_width"`
	ImageHeight  int            `json:"image_height"`
	CameraMatrix [][]float64    `json:"camera_matrix"`
	Distortion   []float64      `json:"distortion"`
	RMS          float64        `json:"rms"`
	Rotations    [][3]float64   `json:"rotations"`
	Translations [][3]float64   `json:"translations"`

	// Detected corners per view, kept so the report can be rebuilt offline.
	Samples [][]geometry.Point2D `json:"samples,omitempty"`
}

// NewCalibration converts a calibration result for saving.
func NewCalibration(cal *vision.Calibration, samples []vision.Sample, size image.Point, pattern vision.Pattern, now time.Time) *Calibration {
	c := &Calibration{
		Version:      FormatVersion,
		Created:      now.UTC(),
		Pattern:      pattern,
		ImageWidth:   size.X,
		ImageHeight:  size.Y,
		CameraMatrix: cal.Intrinsics.Rows(),
		Distortion:   append([]float64(nil), cal.Intrinsics.Dist[:]...),
		RMS:          cal.RMS,
	}
	for _, v := range cal.Views {
		c.Rotations = append(c.Rotations, vec3(v.Rotation))
		c.Translations = append(c.Translations, vec3(v.Translation))
	}
	for _, s := range samples {
		c.Samples = append(c.Samples, s.Image)
	}
	return c
}

func vec3(v r3.Vector) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func fromVec3(v [3]float64) r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

// Intrinsics validates and returns the camera model.
func (c *Calibration) Intrinsics() (*vision.Intrinsics, error) {
	in, err := vision.NewIntrinsics(c.CameraMatrix, c.Distortion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShape, err)
	}
	return in, nil
}

// Restore rebuilds the calibration and its samples for reporting.
func (c *Calibration) Restore() (*vision.Calibration, []vision.Sample, error) {
	in, err := c.Intrinsics()
	if err != nil {
		return nil, nil, err
	}
	if len(c.Rotations) != len(c.Translations) {
		return nil, nil, errors.Wrapf(ErrShape, "%d rotations but %d translations", len(c.Rotations), len(c.Translations))
	}
	cal := &vision.Calibration{Intrinsics: in, RMS: c.RMS}
	for i := range c.Rotations {
		cal.Views = append(cal.Views, pose.Pose{
			Rotation:    fromVec3(c.Rotations[i]),
			Translation: fromVec3(c.Translations[i]),
		})
	}

	objects := c.Pattern.ObjectPoints()
	samples := make([]vision.Sample, 0, len(c.Samples))
	for i, img := range c.Samples {
		if len(img) != len(objects) {
			return nil, nil, errors.Wrapf(ErrShape, "sample %d has %d corners, pattern has %d", i+1, len(img), len(objects))
		}
		samples = append(samples, vision.Sample{Object: objects, Image: img})
	}
	return cal, samples, nil
}

// Reference is the on-disk form of a reference pose.
type Reference struct {
	Version   int                `json:"version"`
	Created   time.Time          `json:"created"`
	Pattern   vision.Pattern     `json:"pattern"`
	Corners   []geometry.Point2D `json:"corners"`
	Distances [3]float64         `json:"distances"`
	Angles    pose.EulerAngles   `json:"angles"`
}

// NewReference converts a captured reference for saving. Every value must be
// finite; a reference is only captured from a solved pose.
func NewReference(ref pose.Reference, pattern vision.Pattern, now time.Time) (*Reference, error) {
	r := &Reference{
		Version:   FormatVersion,
		Created:   now.UTC(),
		Pattern:   pattern,
		Corners:   ref.Corners,
		Distances: vec3(ref.Distances),
		Angles:    ref.Angles,
	}
	vals := append(r.Distances[:], ref.Angles.Roll, ref.Angles.Pitch, ref.Angles.Yaw)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("reference has no measured pose")
		}
	}
	return r, nil
}

// Pose returns the reference in the form the deviation code consumes.
func (r *Reference) Pose() *pose.Reference {
	return &pose.Reference{
		Corners:   r.Corners,
		Distances: fromVec3(r.Distances),
		Angles:    r.Angles,
	}
}

// Save writes v as indented JSON, creating the directory if needed.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

// LoadCalibration reads and validates a calibration file.
func LoadCalibration(path string) (*Calibration, error) {
	var c Calibration
	if err := load(path, &c); err != nil {
		return nil, err
	}
	if _, err := c.Intrinsics(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &c, nil
}

// LoadReference reads and validates a reference file.
func LoadReference(path string) (*Reference, error) {
	var r Reference
	if err := load(path, &r); err != nil {
		return nil, err
	}
	if n := r.Pattern.Size(); n > 0 && len(r.Corners) != n {
		return nil, errors.Wrapf(ErrShape, "%s: %d corners, pattern has %d", path, len(r.Corners), n)
	}
	return &r, nil
}

// FileName builds "<title>_<ext>_of_<pattern>_<UTC timestamp>.<ext>".
func FileName(title, ext, pattern string, now time.Time) string {
	return fmt.Sprintf("%s_%s_of_%s_%s.%s", title, ext, pattern, now.UTC().Format("2006_01_02__15_04_05"), ext)
}

// Namer places timestamped files in a directory.
type Namer struct {
	Dir     string
	Pattern string
	Now     func() time.Time
}

// Path returns a new file path for title and ext.
func (n Namer) Path(title, ext string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return filepath.Join(n.Dir, FileName(title, ext, n.Pattern, now()))
}

// List returns the files in dir whose names start with prefix and end in
// ext, newest name first. A missing directory yields no files.
func List(dir, prefix, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "."+ext) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}
