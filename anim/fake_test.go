package anim

import (
	"image"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// fakeCodec opens fakeHandles. Each frame is a 4x4 image filled with the
// frame's index, so presented frames can be told apart by any pixel, except
// for the byte at genOffset which holds the decode generation.
type fakeCodec struct {
	delays  []int
	failAt  int // index that fails to decode; -1 for none
	endAt   int // index that returns ErrEndOfSequence; -1 for none
	openErr error

	// block, if not nil, makes frames at or past blockFrom wait on it.
	block     chan struct{}
	blockFrom int
	entered   chan int

	handles []*fakeHandle
}

func newFakeCodec(delays ...int) *fakeCodec {
	return &fakeCodec{
		delays: delays,
		failAt: -1,
		endAt:  -1,
	}
}

func (c *fakeCodec) Open(path string) (Handle, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}

	h := &fakeHandle{
		codec: c,
		buf:   image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
	c.handles = append(c.handles, h)
	return h, nil
}

// genOffset is where fakeHandle stamps the generation of a decoded buffer.
const genOffset = 1

type fakeHandle struct {
	codec   *fakeCodec
	buf     *image.RGBA
	decodes atomic.Int32
	closes  atomic.Int32
}

func (h *fakeHandle) Len() int { return len(h.codec.delays) }

func (h *fakeHandle) Decode(i int) (*image.RGBA, int, error) {
	gen := uint8(h.decodes.Add(1))

	if h.codec.entered != nil {
		select {
		case h.codec.entered <- i:
		default:
		}
	}

	if h.codec.block != nil && i >= h.codec.blockFrom {
		<-h.codec.block
	}

	switch {
	case i == h.codec.failAt:
		return nil, 0, errors.New("corrupt frame")
	case i == h.codec.endAt, i >= len(h.codec.delays):
		return nil, 0, ErrEndOfSequence
	}

	for j := range h.buf.Pix {
		if j == len(h.buf.Pix)/2 {
			// Let a reader that does not own the buffer see half a frame.
			runtime.Gosched()
		}
		h.buf.Pix[j] = uint8(i)
	}
	h.buf.Pix[genOffset] = gen

	return h.buf, h.codec.delays[i], nil
}

func (h *fakeHandle) Close() error {
	h.closes.Add(1)
	return nil
}

type fakeSource struct {
	path     string
	releases atomic.Int32
}

func (s *fakeSource) Path() string { return s.path }

func (s *fakeSource) Release() error {
	s.releases.Add(1)
	return nil
}

// fakeSink records the index of every presented frame. A frame counts as torn
// if its pixels are mixed, or if the decoder wrote to it while it was being
// presented.
type fakeSink struct {
	mu        sync.Mutex
	presented []int
	torn      int
	clears    int
}

func (s *fakeSink) Present(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, gen := img.Pix[0], img.Pix[genOffset]
	if !uniform(img, index) {
		s.torn++
	}

	runtime.Gosched()

	if img.Pix[0] != index || img.Pix[genOffset] != gen || !uniform(img, index) {
		s.torn++
	}

	s.presented = append(s.presented, int(index))
}

func uniform(img *image.RGBA, v uint8) bool {
	for i, p := range img.Pix {
		if i != genOffset && p != v {
			return false
		}
	}
	return true
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
}

func (s *fakeSink) tornFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.torn
}

func (s *fakeSink) frames() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int(nil), s.presented...)
}
