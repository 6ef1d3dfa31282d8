// Package dumpsink provides a sink that writes presented frames to files.
package dumpsink

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Sink saves every presented frame as a numbered PNG file. Clearing the sink
// is recorded as a gap in the numbering.
type Sink struct {
	dir      string
	maxWidth int
	log      *slog.Logger

	mu    sync.Mutex
	n     int
	saved int
	err   error
}

var _ anim.Sink = (*Sink)(nil)

// New creates the directory if needed and returns a sink writing into it.
// Frames wider than maxWidth are scaled down; 0 keeps the original size.
func New(dir string, maxWidth int, log *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create dump directory")
	}

	return &Sink{
		dir:      dir,
		maxWidth: maxWidth,
		log:      log,
	}, nil
}

// Present saves img. Errors are logged, and the first one is kept for Err.
func (s *Sink) Present(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("frame-%04d.png", s.n))
	s.n++

	var out image.Image = img
	if s.maxWidth > 0 && img.Rect.Dx() > s.maxWidth {
		out = imaging.Resize(img, s.maxWidth, 0, imaging.Box)
	}

	if err := imaging.Save(out, path); err != nil {
		s.log.Warn("cannot save frame", "path", path, "err", err)
		if s.err == nil {
			s.err = errors.Wrap(err, "failed to save frame")
		}
		return
	}

	s.saved++
}

// Clear skips a frame number.
func (s *Sink) Clear() {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
}

// Saved returns the number of frames written.
func (s *Sink) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saved
}

// Err returns the first error encountered while saving.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Tee presents frames onto every sink in order.
type Tee []anim.Sink

var _ anim.Sink = Tee(nil)

// Present implements anim.Sink.
func (t Tee) Present(img *image.RGBA) {
	for _, s := range t {
		s.Present(img)
	}
}

// Clear implements anim.Sink.
func (t Tee) Clear() {
	for _, s := range t {
		s.Clear()
	}
}
