// Package tsixel draws SIXEL images on top of a tcell screen. Images are
// tracked by the Screen, which asks each of them for an updated frame before
// tcell draws its cells and writes the SIXEL data out afterwards.
package tsixel

import (
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
)

// Errors returned if the tcell screen does not have the capabilities for SIXEL.
var (
	ErrNoDrawInterceptor = errors.New("screen does not support draw interceptors")
	ErrNoPixelDimensions = errors.New("screen does not support pixel dimensions")
	ErrNoDirectDrawer    = errors.New("screen does not support direct drawer")

	// ErrNoExplicitSync is returned if a screen does not implement sync.Locker.
	// This is needed to explicitly sync our own internal state with the screen.
	ErrNoExplicitSync = errors.New("screen does not allow explicit syncing")
)

// Imager is anything that can be drawn as SIXEL onto a Screen.
type Imager interface {
	// Update is called before every draw with the current screen state. The
	// returned frame decides what is written and whether it must be written
	// again.
	Update(state DrawState) Frame
}

// Frame is the result of updating an Imager.
type Frame struct {
	// SIXEL is the raw SIXEL data. It must not be changed until the next
	// Update.
	SIXEL []byte
	// Bounds is the area the image covers on the screen in units of cells.
	Bounds image.Rectangle
	// MustUpdate forces the screen to write the SIXEL data again.
	MustUpdate bool
}

// Screen wraps around a tcell screen to manage and draw visible SIXEL images.
type Screen struct {
	l sync.Locker

	imagers map[Imager]*tracked
	state   DrawState
}

// tracked is an imager along with the frame it last returned, used to find
// out what changed.
type tracked struct {
	Imager
	frame Frame
}

// WrapInitScreen wraps around an initialized tcell screen. It returns an error
// if the screen cannot intercept draws or report its size in pixels. Whether
// the terminal itself understands SIXEL is not checked.
func WrapInitScreen(s tcell.Screen) (*Screen, error) {
	if _, ok := s.(tcell.DirectDrawer); !ok {
		return nil, ErrNoDirectDrawer
	}

	adder, ok := s.(tcell.DrawInterceptAdder)
	if !ok {
		return nil, ErrNoDrawInterceptor
	}

	locker, ok := s.(sync.Locker)
	if !ok {
		return nil, ErrNoExplicitSync
	}

	pxsz, ok := s.(tcell.PixelSizer)
	if !ok {
		return nil, ErrNoPixelDimensions
	}

	state := DrawState{
		Delegate: s.Show,
		Cells:    image.Pt(s.Size()),
		Pixels:   image.Pt(pxsz.PixelSize()),
	}

	// Some terminals report zero instead of failing.
	if state.Pixels.X == 0 || state.Pixels.Y == 0 {
		return nil, ErrNoPixelDimensions
	}

	screen := &Screen{
		l:       locker,
		state:   state,
		imagers: map[Imager]*tracked{},
	}

	adder.AddDrawIntercept(screen.beforeDraw)
	adder.AddDrawInterceptAfter(screen.afterDraw)

	return screen, nil
}

// beforeDraw updates every imager and works out which ones need their SIXEL
// written again. It returns true if the whole screen must be cleared, which
// is the case when an image moved, shrank or disappeared.
func (s *Screen) beforeDraw(screen tcell.Screen, sync bool) bool {
	s.state.update(screen, sync)

	viewer, hasCellBuffer := screen.(tcell.CellBufferViewer)
	clear := sync

	for _, img := range s.imagers {
		old := img.frame
		img.frame = img.Update(s.state)

		if sync {
			img.frame.MustUpdate = true
			continue
		}

		if !img.frame.Bounds.Eq(old.Bounds) {
			clear = true
		}

		// Cells drawn over the image erase it, so it has to be written again.
		if !img.frame.MustUpdate && hasCellBuffer && !img.frame.Bounds.Empty() {
			r := img.frame.Bounds
			viewer.ViewCellBuffer(func(cb *tcell.CellBuffer) {
				img.frame.MustUpdate = cb.DirtyRegion(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
			})
		}
	}

	if clear && !sync && hasCellBuffer {
		// Make tcell write every cell again so that stale SIXEL pixels are
		// overwritten.
		viewer.ViewCellBuffer(func(cb *tcell.CellBuffer) { cb.Invalidate() })

		for _, img := range s.imagers {
			img.frame.MustUpdate = true
		}
	}

	return clear
}

// afterDraw writes the SIXEL data of every image that needs it.
func (s *Screen) afterDraw(screen tcell.Screen, sync bool) bool {
	drawer, _ := screen.(tcell.DirectDrawer)

	for _, img := range s.imagers {
		if len(img.frame.SIXEL) == 0 || img.frame.Bounds.Empty() {
			continue
		}
		if img.frame.MustUpdate || sync {
			screen.ShowCursor(img.frame.Bounds.Min.X, img.frame.Bounds.Min.Y)
			drawer.DrawDirectly(img.frame.SIXEL)
		}
	}

	screen.HideCursor()
	drawer.DrawDirectly(nil)

	return false
}

// AddImage adds an image onto the screen. It does not redraw; call Show or
// Sync on the tcell screen afterwards.
func (s *Screen) AddImage(img Imager) {
	s.l.Lock()
	defer s.l.Unlock()

	s.imagers[img] = &tracked{
		Imager: img,
		frame:  img.Update(s.state),
	}
}

// RemoveImage removes an image from the screen. It does not redraw.
func (s *Screen) RemoveImage(img Imager) {
	s.l.Lock()
	defer s.l.Unlock()

	delete(s.imagers, img)
}
