// Package frame abstracts how the detection loop obtains still frames
// from a live video source. The controller only ever asks a Sampler for
// the current frame; where that frame comes from (a camera pipeline, a
// pushed websocket stream, a file sequence) is bound at construction.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrNoFrame is returned when a sampler has no frame to offer yet.
var ErrNoFrame = errors.New("no frame available")

// Sampler produces a still frame from a live source on demand.
type Sampler interface {
	// Sample returns the current frame. Implementations return
	// ErrNoFrame when the source has not produced one yet.
	Sample(ctx context.Context) (image.Image, error)
	// Close releases the underlying source.
	Close() error
}

// Func adapts a plain function into a Sampler.
type Func func(ctx context.Context) (image.Image, error)

// Sample calls the wrapped function.
func (f Func) Sample(ctx context.Context) (image.Image, error) { return f(ctx) }

// Close is a no-op.
func (f Func) Close() error { return nil }

// Still serves a single fixed frame on every tick. Useful for the
// analyze command and tests.
type Still struct {
	img image.Image
}

// NewStill creates a sampler around one decoded image.
func NewStill(img image.Image) *Still {
	return &Still{img: img}
}

// OpenStill loads an image file into a Still sampler.
func OpenStill(path string) (*Still, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	return NewStill(img), nil
}

// Sample returns the fixed frame.
func (s *Still) Sample(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.img == nil {
		return nil, ErrNoFrame
	}
	return s.img, nil
}

// Close is a no-op.
func (s *Still) Close() error { return nil }

// Push receives frames from an external producer (a websocket session,
// a native capture thread) and serves the most recent one to the
// detection loop. Old frames are overwritten, never queued.
type Push struct {
	mu  sync.RWMutex
	img image.Image
}

// NewPush creates an empty push sampler.
func NewPush() *Push {
	return &Push{}
}

// Offer replaces the current frame.
func (p *Push) Offer(img image.Image) {
	p.mu.Lock()
	p.img = img
	p.mu.Unlock()
}

// Sample returns the most recently offered frame.
func (p *Push) Sample(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.img == nil {
		return nil, ErrNoFrame
	}
	return p.img, nil
}

// Close drops the current frame.
func (p *Push) Close() error {
	p.mu.Lock()
	p.img = nil
	p.mu.Unlock()
	return nil
}

// Dir replays the image files of a directory in name order, one per
// Sample call, looping at the end. It stands in for a live camera in
// development and scenario tests.
type Dir struct {
	mu    sync.Mutex
	paths []string
	next  int
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// OpenDir scans a directory for image files.
func OpenDir(dir string) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	sort.Strings(paths)
	return &Dir{paths: paths}, nil
}

// Sample decodes and returns the next frame in the sequence.
func (d *Dir) Sample(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	path := d.paths[d.next]
	d.next = (d.next + 1) % len(d.paths)
	d.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

// Close is a no-op.
func (d *Dir) Close() error { return nil }
