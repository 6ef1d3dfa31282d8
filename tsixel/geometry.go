package tsixel

import (
	"image"
	"time"

	"github.com/gdamore/tcell/v2"
)

// SIXELHeight is the height of a single SIXEL strip. Images are encoded in
// horizontal bands of this many pixels, so heights that aren't a multiple of
// it overflow into the next row of cells.
const SIXELHeight = 6 // px

// DrawState is the screen state passed to imagers on every draw.
type DrawState struct {
	// Delegate draws the screen again. It must not be called while the screen
	// is drawing, or it will deadlock.
	Delegate func()
	// Time is when the draw started.
	Time time.Time

	Sync   bool
	Cells  image.Point
	Pixels image.Point
}

func (st *DrawState) update(screen tcell.Screen, sync bool) {
	st.Time = time.Now()
	st.Sync = sync
	st.Cells = image.Pt(screen.Size())

	if pxsz, ok := screen.(tcell.PixelSizer); ok {
		st.Pixels = image.Pt(pxsz.PixelSize())
	}
}

// CellSize returns the size of a cell in pixels, or a zero point if the screen
// size is unknown.
func (st DrawState) CellSize() image.Point {
	if st.Cells.X == 0 || st.Cells.Y == 0 {
		return image.Point{}
	}

	return image.Point{
		X: st.Pixels.X / st.Cells.X,
		Y: st.Pixels.Y / st.Cells.Y,
	}
}

// PtInPixels converts a point in cells to pixels.
func (st DrawState) PtInPixels(pt image.Point) image.Point {
	cell := st.CellSize()
	return image.Pt(pt.X*cell.X, pt.Y*cell.Y)
}

// PtInCells converts a point in pixels to cells, rounding up.
func (st DrawState) PtInCells(pt image.Point) image.Point {
	cell := st.CellSize()
	if cell.X == 0 || cell.Y == 0 {
		return image.Point{}
	}

	return image.Pt(ceilDiv(pt.X, cell.X), ceilDiv(pt.Y, cell.Y))
}

// RoundPt shrinks a size in pixels so that its height is a multiple of
// SIXELHeight, keeping roughly the same aspect ratio.
func (st DrawState) RoundPt(pt image.Point) image.Point {
	if pt.X <= 0 || pt.Y <= 0 {
		return image.Point{}
	}

	excess := pt.Y % SIXELHeight
	if excess == 0 {
		return pt
	}

	pt.X -= ceilDiv(pt.X*excess, pt.Y)
	pt.Y -= excess

	if pt.X < 0 {
		pt.X = 0
	}

	return pt
}

// RectInPixels converts a rectangle in cells to pixels. If round is true, the
// size is rounded down with RoundPt.
func (st DrawState) RectInPixels(rect image.Rectangle, round bool) image.Rectangle {
	rect.Min = st.PtInPixels(rect.Min)
	rect.Max = st.PtInPixels(rect.Max)

	if round {
		rect.Max = rect.Min.Add(st.RoundPt(rect.Size()))
	}

	return rect
}

// fitSize returns the largest size with the aspect ratio of size that fits
// within max.
func fitSize(size, max image.Point) image.Point {
	if size.X <= 0 || size.Y <= 0 || max.X <= 0 || max.Y <= 0 {
		return image.Point{}
	}

	// Scale by whichever side runs out first.
	if size.X*max.Y > size.Y*max.X {
		return image.Pt(max.X, size.Y*max.X/size.X)
	}
	return image.Pt(size.X*max.Y/size.Y, max.Y)
}

// ceilDiv divides a by b, rounding up.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
