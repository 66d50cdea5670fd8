// Package testutil provides shared helpers for tests that need
// synthetic capture frames or project-relative paths.
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// GetTestDataDir returns the path to the testdata directory.
func GetTestDataDir(t *testing.T) string {
	t.Helper()

	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")

	return filepath.Join(root, "testdata")
}

// SurfaceFrame renders a synthetic capture frame: a dark photo
// rectangle on a light capture surface. An empty photo rectangle
// yields a uniform frame.
func SurfaceFrame(w, h int, photo image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	surface := color.RGBA{R: 220, G: 220, B: 220, A: 255}
	photoColor := color.RGBA{R: 30, G: 30, B: 30, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if image.Pt(x, y).In(photo) {
				img.Set(x, y, photoColor)
			} else {
				img.Set(x, y, surface)
			}
		}
	}
	return img
}

// EncodePNG encodes an image to PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WriteFramePNG saves a synthetic capture frame to the given path.
func WriteFramePNG(t *testing.T, path string, w, h int, photo image.Rectangle) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, SurfaceFrame(w, h, photo)))
}
