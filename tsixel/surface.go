package tsixel

import (
	"image"
	"image/color"
	"sync"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// DefaultColors is the default palette size. SIXEL images are limited to 256
// registers, and the encoder keeps a few for itself.
const DefaultColors = 254

// ImageOpts represents the options of a SIXEL image.
type ImageOpts struct {
	// Scaler determines the scaler to use when scaling. The default is
	// ApproxBiLinear, which is rough but fast.
	Scaler draw.Scaler
	// KeepRatio, if true, will maintain the aspect ratio of the image when it's
	// scaled to fit the size. The image will be anchored on the top left.
	KeepRatio bool
	// Dither, if true, applies Floyd-Steinberg dithering when reducing the
	// image to its palette.
	Dither bool
	// Colors is the palette size, between 2 and DefaultColors.
	Colors int
}

// Validate returns an error if the options are out of range. Zero values are
// valid and replaced with defaults.
func (opts ImageOpts) Validate() error {
	if opts.Colors != 0 && (opts.Colors < 2 || opts.Colors > DefaultColors) {
		return errors.Errorf("colors %d out of range [2, %d]", opts.Colors, DefaultColors)
	}
	return nil
}

// Surface is a SIXEL image that animation frames are presented onto. It
// implements anim.Sink for the player and Imager for the Screen: presenting
// only copies the pixels, and the SIXEL data is rendered during the next draw.
type Surface struct {
	mu   sync.Mutex
	opts ImageOpts
	quan quantize.MedianCutQuantizer

	src     *image.RGBA // presented pixels, owned
	dirty   bool        // src changed since the last render
	cleared bool

	// requested region in cells
	bounds image.Rectangle

	// last render
	cells  image.Rectangle
	pixels image.Point
	scaled *image.RGBA
	sixel  []byte
	redraw bool
	err    error

	encode func(image.Image) ([]byte, error)
}

var (
	_ anim.Sink = (*Surface)(nil)
	_ Imager    = (*Surface)(nil)
)

// NewSurface creates an empty surface. It draws nothing until a frame is
// presented and its bounds are set.
func NewSurface(opts ImageOpts) *Surface {
	if opts.Scaler == nil {
		opts.Scaler = draw.ApproxBiLinear
	}
	if opts.Colors == 0 {
		opts.Colors = DefaultColors
	}

	return &Surface{
		opts: opts,
		quan: quantize.MedianCutQuantizer{Aggregation: quantize.Mean},

		encode: encoders.encode,
	}
}

// SetBounds sets the region of the screen in cells that the image may cover.
// The image is scaled to fit it. It does not redraw.
func (s *Surface) SetBounds(r image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bounds = r.Canon()
}

// Bounds returns the area that the image covered on the last draw, in cells.
func (s *Surface) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cells
}

// Err returns the error of the last render, or nil if it succeeded. A surface
// that failed to render draws nothing.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Present copies img to be drawn on the next update.
func (s *Surface) Present(img *image.RGBA) {
	if img == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil || s.src.Rect != img.Rect {
		s.src = image.NewRGBA(img.Rect)
	}

	// The strides may differ if img is a sub-image.
	if s.src.Stride == img.Stride {
		copy(s.src.Pix, img.Pix)
	} else {
		draw.Draw(s.src, s.src.Rect, img, img.Rect.Min, draw.Src)
	}

	s.dirty = true
	s.cleared = false
}

// Clear blanks the surface. The screen erases the image on its next draw.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleared = true
	s.dirty = false
	s.sixel = nil
}

// Update implements Imager.
func (s *Surface) Update(state DrawState) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleared || s.src == nil {
		s.cells = image.Rectangle{}
		return Frame{}
	}

	cells, pixels := s.layout(state)
	if pixels.X == 0 || pixels.Y == 0 {
		s.cells = image.Rectangle{}
		return Frame{}
	}

	if s.dirty || pixels != s.pixels || s.sixel == nil {
		if err := s.render(pixels); err != nil {
			// Don't leave the previous frame up as if it were current.
			s.err = err
			s.sixel = nil
			s.cells = image.Rectangle{}
			return Frame{}
		}

		s.err = nil
		s.dirty = false
		s.redraw = true
	}

	s.cells = cells

	frame := Frame{
		SIXEL:      s.sixel,
		Bounds:     cells,
		MustUpdate: s.redraw,
	}
	s.redraw = false

	return frame
}

// layout returns where the image goes in cells and its size in pixels.
func (s *Surface) layout(state DrawState) (image.Rectangle, image.Point) {
	// Keep off the screen border to prevent the terminal from scrolling.
	region := s.bounds.Intersect(image.Rectangle{
		Max: state.Cells.Sub(image.Pt(4, 2)),
	})
	if region.Empty() {
		return image.Rectangle{}, image.Point{}
	}

	size := state.RectInPixels(region, false).Size()
	if s.opts.KeepRatio {
		size = fitSize(s.src.Rect.Size(), size)
	}
	size = state.RoundPt(size)

	cells := image.Rectangle{
		Min: region.Min,
		Max: region.Min.Add(state.PtInCells(size)),
	}

	return cells, size
}

// render scales, quantizes and encodes the presented pixels.
func (s *Surface) render(size image.Point) error {
	rect := image.Rectangle{Max: size}

	if s.scaled == nil || s.scaled.Rect != rect {
		s.scaled = image.NewRGBA(rect)
	}

	if s.src.Rect.Size() == size {
		draw.Draw(s.scaled, rect, s.src, s.src.Rect.Min, draw.Src)
	} else {
		s.opts.Scaler.Scale(s.scaled, rect, s.src, s.src.Rect, draw.Src, nil)
	}

	palette := s.quan.Quantize(make(color.Palette, 0, s.opts.Colors), s.scaled)
	paletted := image.NewPaletted(rect, palette)

	if s.opts.Dither {
		draw.FloydSteinberg.Draw(paletted, rect, s.scaled, image.Point{})
	} else {
		draw.Draw(paletted, rect, s.scaled, image.Point{}, draw.Src)
	}

	b, err := s.encode(paletted)
	if err != nil {
		return errors.Wrap(err, "failed to encode SIXEL")
	}

	s.sixel = b
	s.pixels = size

	return nil
}
