// Package gifcodec implements an anim.Codec for GIF files. Frames are
// composited onto a full canvas the way a browser would, honoring each frame's
// disposal method.
package gifcodec

import (
	"bufio"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ErrClosed is returned when decoding from a closed handle.
var ErrClosed = errors.New("gif handle closed")

// Codec opens GIF files from the local filesystem.
type Codec struct{}

var _ anim.Codec = Codec{}

// Open implements anim.Codec.
func (Codec) Open(path string) (anim.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open")
	}
	defer f.Close()

	h, err := Decode(f)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Handle is an opened GIF. It implements anim.Handle.
type Handle struct {
	gif        *gif.GIF
	canvas     *image.RGBA
	background image.Image

	// composited is the index of the frame currently on the canvas, or -1.
	composited int
	// restore holds the canvas region under the composited frame if that
	// frame is disposed by restoring what was there before.
	restore *image.RGBA
}

var _ anim.Handle = (*Handle)(nil)

// Decode reads an entire GIF from r.
func Decode(r io.Reader) (*Handle, error) {
	g, err := gif.DecodeAll(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode GIF")
	}

	return newHandle(g), nil
}

func newHandle(g *gif.GIF) *Handle {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, frame := range g.Image {
			bounds = bounds.Union(frame.Bounds())
		}
	}

	h := &Handle{
		gif:        g,
		canvas:     image.NewRGBA(bounds),
		background: image.Transparent,
		composited: -1,
	}

	// A global background color only counts if the canvas is opaque;
	// otherwise, the background is see-through.
	if pal, ok := g.Config.ColorModel.(color.Palette); ok {
		if idx := int(g.BackgroundIndex); idx < len(pal) {
			if _, _, _, a := pal[idx].RGBA(); a == 0xffff && !hasTransparency(g) {
				h.background = &image.Uniform{C: pal[idx]}
			}
		}
	}

	return h
}

// hasTransparency returns true if any frame has a transparent palette entry.
func hasTransparency(g *gif.GIF) bool {
	for _, frame := range g.Image {
		for _, c := range frame.Palette {
			if _, _, _, a := c.RGBA(); a == 0 {
				return true
			}
		}
	}
	return false
}

// Len returns the number of frames.
func (h *Handle) Len() int {
	if h.gif == nil {
		return 0
	}
	return len(h.gif.Image)
}

// Size returns the canvas size in pixels.
func (h *Handle) Size() image.Point {
	return h.canvas.Rect.Size()
}

// Decode composites the frames up to i onto the canvas and returns it. Going
// backwards restarts from the first frame. The returned image is reused by
// the next call.
func (h *Handle) Decode(i int) (*image.RGBA, int, error) {
	if h.gif == nil {
		return nil, 0, ErrClosed
	}

	if i < 0 || i >= len(h.gif.Image) {
		return nil, 0, anim.ErrEndOfSequence
	}

	if i < h.composited {
		h.reset()
	}

	for f := h.composited + 1; f <= i; f++ {
		if f > 0 {
			h.dispose(f - 1)
		}
		h.composite(f)
	}

	var delay int
	if i < len(h.gif.Delay) {
		delay = h.gif.Delay[i]
	}

	return h.canvas, delay, nil
}

func (h *Handle) reset() {
	draw.Draw(h.canvas, h.canvas.Rect, h.background, image.Point{}, draw.Src)
	h.composited = -1
	h.restore = nil
}

func (h *Handle) disposal(f int) byte {
	if f < len(h.gif.Disposal) {
		return h.gif.Disposal[f]
	}
	return 0
}

func (h *Handle) composite(f int) {
	frame := h.gif.Image[f]
	r := frame.Bounds().Intersect(h.canvas.Rect)

	if h.composited < 0 {
		draw.Draw(h.canvas, h.canvas.Rect, h.background, image.Point{}, draw.Src)
	}

	h.restore = nil
	if h.disposal(f) == gif.DisposalPrevious {
		h.restore = image.NewRGBA(r)
		draw.Draw(h.restore, r, h.canvas, r.Min, draw.Src)
	}

	draw.Draw(h.canvas, r, frame, r.Min, draw.Over)
	h.composited = f
}

func (h *Handle) dispose(f int) {
	r := h.gif.Image[f].Bounds().Intersect(h.canvas.Rect)

	switch h.disposal(f) {
	case gif.DisposalBackground:
		draw.Draw(h.canvas, r, h.background, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if h.restore != nil {
			draw.Draw(h.canvas, r, h.restore, r.Min, draw.Src)
		}
	}
}

// Close releases the decoded frames. It is safe to call more than once.
func (h *Handle) Close() error {
	h.gif = nil
	h.restore = nil
	return nil
}
