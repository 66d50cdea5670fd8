package testutil

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
}

func TestSurfaceFrame(t *testing.T) {
	photo := image.Rect(10, 10, 50, 30)
	img := SurfaceFrame(100, 80, photo)

	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())

	r, _, _, _ := img.At(20, 20).RGBA()
	assert.Less(t, r>>8, uint32(128), "photo pixel should be dark")

	r, _, _, _ = img.At(90, 70).RGBA()
	assert.Greater(t, r>>8, uint32(128), "surface pixel should be light")
}

func TestEncodePNG(t *testing.T) {
	data := EncodePNG(t, SurfaceFrame(16, 16, image.Rectangle{}))
	assert.NotEmpty(t, data)
	// PNG signature
	assert.Equal(t, byte(0x89), data[0])
}

func TestWriteFramePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	WriteFramePNG(t, path, 32, 32, image.Rect(4, 4, 28, 20))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
