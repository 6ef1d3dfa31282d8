// Package anim plays back decoded animated image sequences onto a sink, pacing
// frames against the host's clock. Decoding is either streamed one frame ahead
// on a worker goroutine or buffered once and indexed by timestamp.
package anim

import (
	"image"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by the player. Use errors.Is to match them, since most are
// wrapped with the underlying cause.
var (
	// ErrSourceUnavailable is returned by Prepare if the codec failed to open
	// the source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptySequence is returned by Prepare if the source has no frames.
	ErrEmptySequence = errors.New("empty sequence")
	// ErrDecodeFailure is returned if the codec failed to decode a frame.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrInvalidState is returned if the player is disposed or not prepared.
	ErrInvalidState = errors.New("invalid player state")

	// ErrEndOfSequence is returned by a Handle if there are no more frames at
	// the requested index.
	ErrEndOfSequence = errors.New("end of sequence")
)

// Codec opens animated image sources.
type Codec interface {
	Open(path string) (Handle, error)
}

// Handle is an opened sequence. A handle is never used by more than one
// goroutine at a time.
type Handle interface {
	// Len returns the number of frames reported by the source. It is at least
	// 1 for any usable sequence.
	Len() int
	// Decode decodes the frame at index i. The returned image is owned by the
	// handle and is only valid until the next call to Decode. The delay is in
	// hundredths of a second. ErrEndOfSequence is returned if the source has
	// no frame at i.
	Decode(i int) (img *image.RGBA, delay int, err error)
	// Close releases the handle.
	Close() error
}

// Sink displays presented frames. Present must copy whatever it needs out of
// the image before returning.
type Sink interface {
	Present(img *image.RGBA)
	Clear()
}

// Source is an acquired source that the codec can open by path.
type Source interface {
	Path() string
	// Release frees whatever was staged to provide the path, such as a
	// downloaded temporary file.
	Release() error
}

// Frame is a decoded frame.
type Frame struct {
	Index int
	Image *image.RGBA
	// Delay is the decoded delay as reported by the source, before any
	// minimum is applied.
	Delay time.Duration
}

// DefaultMinDelay is the default minimum delay used for pacing.
const DefaultMinDelay = 20 * time.Millisecond

// DelayDuration converts delay in the unit of 100ths of a second to a
// duration.
func DelayDuration(delay int) time.Duration {
	return time.Second / 100 * time.Duration(delay)
}

// paceDelay returns the delay used for timing comparisons.
func paceDelay(d, min time.Duration) time.Duration {
	if min <= 0 {
		min = time.Millisecond
	}
	if d < min {
		return min
	}
	return d
}

// cloneRGBA returns an owned copy of img.
func cloneRGBA(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(dst.Pix, img.Pix)
	return dst
}
