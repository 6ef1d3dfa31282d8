package anim

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// errCoordinatorStopped is returned by await if the worker exited without
// leaving a result behind.
var errCoordinatorStopped = errors.New("decode coordinator stopped")

// decodeResult is sent from the worker through the complete channel once a
// frame has been decoded. The image belongs to the foreground until it sends
// the next request.
type decodeResult struct {
	index int
	img   *image.RGBA
	delay time.Duration
	err   error
}

// coordinator owns the decode worker of a streaming session. The foreground
// and the worker take turns: the foreground sends a request, the worker
// decodes exactly one frame into the handle's buffer and sends the result
// back, then waits for the next request.
type coordinator struct {
	handle Handle
	log    *slog.Logger

	// worker state; only touched by the worker goroutine after start.
	next  int
	count int

	request  chan struct{}
	complete chan decodeResult
	quit     chan struct{}
	done     chan struct{}

	pending  bool // foreground: a request is outstanding
	stopOnce sync.Once
}

// startCoordinator starts a worker that decodes from the given index onwards.
// The worker does not decode anything until the first request.
func startCoordinator(h Handle, next int, log *slog.Logger) *coordinator {
	c := &coordinator{
		handle: h,
		log:    log,
		next:   next,
		count:  h.Len(),

		// Single-slot so neither side blocks on a send; strict alternation
		// guarantees the slots are never both full.
		request:  make(chan struct{}, 1),
		complete: make(chan decodeResult, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.run()
	return c
}

func (c *coordinator) run() {
	defer close(c.done)

	c.log.Debug("decode worker started", "next", c.next, "count", c.count)
	defer c.log.Debug("decode worker exited")

	for {
		select {
		case <-c.quit:
			return
		case <-c.request:
		}

		res := c.decode()

		// Always hand the result over, errors included, so that the
		// foreground never waits on a worker that is gone.
		select {
		case c.complete <- res:
		case <-c.quit:
			return
		}

		if res.err != nil {
			return
		}
	}
}

// decode decodes the next frame and advances the worker's position.
func (c *coordinator) decode() decodeResult {
	index := c.next

	img, delay, err := c.handle.Decode(index)
	if errors.Is(err, ErrEndOfSequence) && index > 0 {
		// The source reported fewer frames than it has. Treat this as the
		// real end and wrap around.
		c.log.Warn("sequence ended early", "index", index, "reported", c.count)
		c.count = index
		index = 0
		img, delay, err = c.handle.Decode(index)
	}
	if err != nil {
		return decodeResult{
			index: index,
			err:   errors.Wrapf(ErrDecodeFailure, "frame %d: %v", index, err),
		}
	}

	if c.next = index + 1; c.next >= c.count {
		c.next = 0
	}

	return decodeResult{
		index: index,
		img:   img,
		delay: DelayDuration(delay),
	}
}

// signal asks the worker to decode the next frame. The caller gives up the
// previously received image.
func (c *coordinator) signal() {
	if c.pending {
		return
	}
	c.pending = true
	c.request <- struct{}{}
}

// await blocks until the requested frame has been decoded. It signals first
// if no request is outstanding.
func (c *coordinator) await() decodeResult {
	c.signal()

	select {
	case res := <-c.complete:
		c.pending = false
		return res
	case <-c.done:
		// The worker may have left a result right before exiting.
		select {
		case res := <-c.complete:
			c.pending = false
			return res
		default:
			return decodeResult{err: errCoordinatorStopped}
		}
	}
}

// stop stops the worker and waits for it to exit. A decode in progress is
// allowed to finish. Calling stop more than once does nothing.
func (c *coordinator) stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		<-c.done

		// Drop any result that was never picked up.
		select {
		case <-c.complete:
		default:
		}
		c.pending = false
	})
}
