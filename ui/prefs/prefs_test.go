package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p := LoadFile(path)
	assert.Equal(t, -1, p.Int(KeyCamera, -1))
	assert.Empty(t, p.String(KeyCalibration))

	p.SetInt(KeyCamera, 2)
	p.SetString(KeyCalibration, "data/cal.json")
	require.NoError(t, p.Save())

	q := LoadFile(path)
	assert.Equal(t, 2, q.Int(KeyCamera, -1))
	assert.Equal(t, "data/cal.json", q.String(KeyCalibration))
}

func TestWrongTypeFallsBack(t *testing.T) {
	p := LoadFile(filepath.Join(t.TempDir(), prefsFile))
	p.SetString(KeyCamera, "one")
	assert.Equal(t, 5, p.Int(KeyCamera, 5))
	p.SetInt(KeyReference, 3)
	assert.Empty(t, p.String(KeyReference))
}
