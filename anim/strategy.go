package anim

import (
	"image"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// cursor is the playback position.
type cursor struct {
	index   int
	elapsed time.Duration // time spent on the current frame, scaled by speed
	delay   time.Duration // decoded delay of the current frame
	pace    time.Duration // delay used for pacing; never below the minimum
}

func (cur *cursor) set(f Frame, min time.Duration) {
	cur.index = f.Index
	cur.delay = f.Delay
	cur.pace = paceDelay(f.Delay, min)
}

// strategy is how frames are obtained during playback.
type strategy interface {
	// first synchronously obtains frame 0. The image is only valid until the
	// next call into the strategy.
	first() (Frame, error)
	// begin starts background work once the first frame has been presented.
	begin()
	// advance consumes every frame advance that is due for cur. The present
	// callback is called at most once, with the frame that is current after
	// catching up. It returns true if the sequence wrapped around while loop
	// is false; the cursor is left on the last frame in that case.
	advance(cur *cursor, loop bool, present func(*image.RGBA)) (ended bool, err error)
	// halt stops background work. The strategy may begin again after first.
	halt()
	// release drops everything the strategy retains.
	release()
	// count returns the number of frames in the sequence.
	count() int
}

func newStrategy(mode Mode, h Handle, min time.Duration, log *slog.Logger) strategy {
	switch mode {
	case Buffered:
		return &buffer{
			handle:   h,
			minDelay: min,
			log:      log,
			index:    NewIndex(),
		}
	default:
		return &streamer{
			handle:   h,
			minDelay: min,
			log:      log,
		}
	}
}

// streamer decodes frames one ahead of presentation on a worker goroutine.
type streamer struct {
	handle   Handle
	minDelay time.Duration
	log      *slog.Logger

	coord *coordinator
}

func (s *streamer) first() (Frame, error) {
	img, delay, err := s.handle.Decode(0)
	if err != nil {
		return Frame{}, errors.Wrapf(ErrDecodeFailure, "frame 0: %v", err)
	}
	return Frame{Index: 0, Image: img, Delay: DelayDuration(delay)}, nil
}

func (s *streamer) begin() {
	if s.coord != nil || s.handle.Len() < 2 {
		return
	}

	s.coord = startCoordinator(s.handle, 1, s.log)
	// Decode the second frame while the first one is being shown.
	s.coord.signal()
}

func (s *streamer) advance(cur *cursor, loop bool, present func(*image.RGBA)) (bool, error) {
	if s.coord == nil {
		return false, nil
	}

	for cur.elapsed >= cur.pace {
		res := s.coord.await()
		if res.err != nil {
			return false, res.err
		}

		cur.elapsed -= cur.pace

		if res.index == 0 {
			if !loop {
				return true, nil
			}
			// Start the new loop exactly at this tick.
			cur.elapsed = 0
		}

		cur.set(Frame{Index: res.index, Delay: res.delay}, s.minDelay)

		// Only show the frame we end up on. Skipped frames are dropped,
		// except for the last one of a sequence that is about to end.
		if cur.elapsed < cur.pace || (!loop && res.index == s.handle.Len()-1) {
			present(res.img)
		}

		// The buffer is ours until here; hand it back for the next frame.
		s.coord.signal()
	}

	return false, nil
}

func (s *streamer) halt() {
	if s.coord != nil {
		s.coord.stop()
		s.coord = nil
	}
}

func (s *streamer) release() {}

func (s *streamer) count() int {
	return s.handle.Len()
}

// buffer keeps a copy of every decoded frame and looks frames up by time.
// Frames are decoded on demand, the first time playback reaches them.
type buffer struct {
	handle   Handle
	minDelay time.Duration
	log      *slog.Logger

	frames []Frame
	index  *Index
}

func (b *buffer) first() (Frame, error) {
	if len(b.frames) == 0 {
		if err := b.fill(); err != nil {
			return Frame{}, err
		}
	}
	return b.frames[0], nil
}

// fill decodes the next frame that is not buffered yet. It seals the index
// once the sequence is complete.
func (b *buffer) fill() error {
	if b.index.Sealed() {
		return nil
	}

	i := len(b.frames)

	img, delay, err := b.handle.Decode(i)
	if errors.Is(err, ErrEndOfSequence) && i > 0 {
		b.log.Warn("sequence ended early", "index", i, "reported", b.handle.Len())
		b.index.Seal()
		return nil
	}
	if err != nil {
		return errors.Wrapf(ErrDecodeFailure, "frame %d: %v", i, err)
	}

	f := Frame{
		Index: i,
		Image: cloneRGBA(img),
		Delay: DelayDuration(delay),
	}

	b.frames = append(b.frames, f)
	b.index.Append(paceDelay(f.Delay, b.minDelay))

	if len(b.frames) >= b.handle.Len() {
		b.index.Seal()
		b.log.Debug("sequence buffered", "frames", len(b.frames), "duration", b.index.Known())
	}

	return nil
}

// fillAll buffers the remaining frames.
func (b *buffer) fillAll() error {
	for !b.index.Sealed() {
		if err := b.fill(); err != nil {
			return err
		}
	}
	return nil
}

func (b *buffer) begin() {}

func (b *buffer) advance(cur *cursor, loop bool, present func(*image.RGBA)) (bool, error) {
	if cur.elapsed < cur.pace {
		return false, nil
	}

	t := b.index.Start(cur.index) + cur.elapsed

	for t >= b.index.Known() && !b.index.Sealed() {
		if err := b.fill(); err != nil {
			return false, err
		}
	}

	if t >= b.index.Known() {
		if !loop {
			if n := b.index.Len() - 1; cur.index != n {
				cur.set(b.frames[n], b.minDelay)
				present(b.frames[n].Image)
			}
			return true, nil
		}

		cur.set(b.frames[0], b.minDelay)
		cur.elapsed = 0
		present(b.frames[0].Image)
		return false, nil
	}

	last := cur.index

	i := b.index.Floor(t)
	cur.set(b.frames[i], b.minDelay)
	cur.elapsed = t - b.index.Start(i)

	if i != last {
		present(b.frames[i].Image)
	}

	return false, nil
}

// seek returns the frame shown at t, wrapping t into a single cycle. The
// whole sequence is buffered first, since its duration must be known.
func (b *buffer) seek(t time.Duration) (Frame, time.Duration, error) {
	if err := b.fillAll(); err != nil {
		return Frame{}, 0, err
	}

	i, err := b.index.Lookup(t)
	if err != nil {
		return Frame{}, 0, err
	}

	total, _ := b.index.Total()
	offset := time.Duration(0)
	if total > epsilon {
		if offset = t % total; offset < 0 {
			offset += total
		}
		offset -= b.index.Start(i)
	}

	return b.frames[i], offset, nil
}

func (b *buffer) halt() {}

func (b *buffer) release() {
	b.frames = nil
	b.index = NewIndex()
}

func (b *buffer) count() int {
	if b.index.Sealed() {
		return b.index.Len()
	}
	return b.handle.Len()
}
