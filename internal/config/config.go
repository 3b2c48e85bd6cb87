// Package config loads the KEY=VALUE settings file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"pose-aligner/internal/overlay"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/colorutil"
)

// DefaultPath is the settings file read when no path is given.
const DefaultPath = "config.env"

// Config holds all application configuration values.
type Config struct {
	// Naming
	PatternName string

	// Window
	WindowWidth  int
	WindowHeight int

	// Camera
	FrameWidth  float64
	FrameHeight float64

	// Chessboard
	Rows       int
	Columns    int
	SquareSize float64

	// Corner refinement termination
	TermMaxIter int
	TermEpsilon float64

	// Alignment
	Tolerance    float64
	DistanceUnit string
	AngleUnit    string

	// Navigation ball
	NavBallSize       int
	NavBallColor      color.RGBA
	NavBallBackground color.RGBA

	// Telemetry, empty disables
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	WSAddr       string

	// Where calibration, reference and image files go.
	DataDir string
}

// Default returns the settings used for keys the file does not set.
func Default() *Config {
	return &Config{
		PatternName:       "chessboard",
		WindowWidth:       1280,
		WindowHeight:      720,
		FrameWidth:        1280,
		FrameHeight:       720,
		Rows:              5,
		Columns:           7,
		SquareSize:        25,
		TermMaxIter:       30,
		TermEpsilon:       0.001,
		Tolerance:         0.5,
		DistanceUnit:      "mm",
		AngleUnit:         "deg",
		NavBallSize:       300,
		NavBallColor:      colorutil.Grey,
		NavBallBackground: colorutil.Black,
		MQTTTopic:         "pose-aligner/deviation",
		MQTTClientID:      "pose-aligner",
		DataDir:           "data",
	}
}

// Load reads the configuration file over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines over the defaults. Blank lines and lines
// starting with # are skipped; values may be quoted.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := unquote(strings.TrimSpace(parts[1]))

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// rgbTuple accepts "R,G,B" as well as "(R, G, B)".
func rgbTuple(key, value string) (color.RGBA, error) {
	c, err := colorutil.ParseRGB(strings.Trim(value, "()[] "))
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return c, nil
}

func atoi(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func atof(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "CB_PATT":
		c.PatternName = value

	case "WINDOW_WIDTH":
		c.WindowWidth, err = atoi(key, value)
	case "WINDOW_HEIGHT":
		c.WindowHeight, err = atoi(key, value)

	case "FRAME_WIDTH":
		c.FrameWidth, err = atof(key, value)
	case "FRAME_HEIGHT":
		c.FrameHeight, err = atof(key, value)

	case "CB_ROWS":
		c.Rows, err = atoi(key, value)
	case "CB_COLUMNS":
		c.Columns, err = atoi(key, value)
	case "SQUARE_SIZE":
		c.SquareSize, err = atof(key, value)

	case "TERM_CRIT_MAX_ITER":
		c.TermMaxIter, err = atoi(key, value)
	case "TERM_CRIT_EPS":
		c.TermEpsilon, err = atof(key, value)

	case "MEAS_TOL":
		c.Tolerance, err = atof(key, value)
	case "DIST_UNIT":
		c.DistanceUnit = value
	case "ANGLE_UNIT":
		c.AngleUnit = value

	case "NAV_BALL_WDGT_SIZE":
		c.NavBallSize, err = atoi(key, value)
	case "NAV_BALL_CLR":
		c.NavBallColor, err = rgbTuple(key, value)
	case "NAV_BALL_BCKGRND_CLR":
		c.NavBallBackground, err = rgbTuple(key, value)

	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "WS_ADDR":
		c.WSAddr = value

	case "DATA_DIR":
		c.DataDir = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks that the values can drive a session.
func (c *Config) validate() error {
	if c.Rows < 2 || c.Columns < 2 {
		return fmt.Errorf("CB_ROWS and CB_COLUMNS must be at least 2, got %dx%d", c.Rows, c.Columns)
	}
	if c.SquareSize <= 0 {
		return fmt.Errorf("SQUARE_SIZE must be positive, got %g", c.SquareSize)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("MEAS_TOL must be positive, got %g", c.Tolerance)
	}
	if c.NavBallSize <= 0 {
		return fmt.Errorf("NAV_BALL_WDGT_SIZE must be positive, got %d", c.NavBallSize)
	}
	if c.TermMaxIter <= 0 || c.TermEpsilon <= 0 {
		return fmt.Errorf("TERM_CRIT_MAX_ITER and TERM_CRIT_EPS must be positive")
	}
	if c.WindowWidth < 0 || c.WindowHeight < 0 || c.FrameWidth < 0 || c.FrameHeight < 0 {
		return fmt.Errorf("window and frame sizes must not be negative")
	}
	if c.PatternName == "" {
		return fmt.Errorf("CB_PATT is required")
	}
	return nil
}

// Pattern returns the chessboard geometry.
func (c *Config) Pattern() vision.Pattern {
	return vision.Pattern{Rows: c.Rows, Cols: c.Columns, SquareSize: c.SquareSize}
}

// NavStyle returns the navigation ball style for these settings.
func (c *Config) NavStyle(palette colorutil.Palette) overlay.Style {
	return overlay.Style{
		WidgetSize:      c.NavBallSize,
		BallColor:       c.NavBallColor,
		BackgroundColor: c.NavBallBackground,
		Palette:         palette,
		Tolerance:       c.Tolerance,
		DistanceUnit:    c.DistanceUnit,
		AngleUnit:       c.AngleUnit,
	}
}

// Units returns the units printed in the measurement blocks.
func (c *Config) Units() overlay.Units {
	return overlay.Units{Distance: c.DistanceUnit, Angle: c.AngleUnit}
}
