package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"pose-aligner/internal/config"
	"pose-aligner/internal/deviation"
	"pose-aligner/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePanel(t *testing.T) {
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "panel.png")
	m := deviation.Measurement{Distances: deviation.TripleOf(1, 2, 300), Angles: deviation.TripleOf(10, 20, 30)}
	dev := deviation.Deviation{Distance: deviation.TripleOf(1, 2, 3), Angle: deviation.TripleOf(2, -2, 0.1)}

	require.NoError(t, writePanel(path, m, dev, cfg, colorutil.DefaultPalette()))

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	img, err := png.Decode(fh)
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}
