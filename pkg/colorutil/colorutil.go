// Package colorutil provides shared color utilities for the pose aligner.
package colorutil

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Common overlay colors used throughout the application.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Grey  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// Palette is the fixed set of colors the overlays draw with. It is built once
// and passed by value; nothing mutates it after construction.
type Palette struct {
	AxisX color.RGBA // x distance, roll
	AxisY color.RGBA // y distance, pitch
	AxisZ color.RGBA // z distance, yaw

	Aligned   color.RGBA // center dot when every deviation is within tolerance
	Reference color.RGBA // stored reference corners
	Detected  color.RGBA // corners found in the live frame
	Matched   color.RGBA // reference corners once the pose is within tolerance
	Text      color.RGBA // titles and menu
	Principal color.RGBA // principal point marker
}

// DefaultPalette returns the standard overlay colors.
func DefaultPalette() Palette {
	return Palette{
		AxisX:     Blue,
		AxisY:     Green,
		AxisZ:     Red,
		Aligned:   Green,
		Reference: Red,
		Detected:  Blue,
		Matched:   Green,
		Text:      White,
		Principal: Red,
	}
}

// ParseRGB parses an "R,G,B" triple with components in 0-255.
func ParseRGB(s string) (color.RGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("expected R,G,B triple, got %q", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid color component %q: %w", p, err)
		}
		if v < 0 || v > 255 {
			return color.RGBA{}, fmt.Errorf("color component must be 0-255, got %d", v)
		}
		rgb[i] = uint8(v)
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}
