package anim

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestCoordinatorSequence(t *testing.T) {
	codec := newFakeCodec(10, 15, 20)
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	defer c.stop()

	var got []int
	for i := 0; i < 5; i++ {
		res := c.await()
		if res.err != nil {
			t.Fatal("unexpected error:", res.err)
		}
		if int(res.img.Pix[0]) != res.index {
			t.Fatalf("frame %d holds pixels of frame %d", res.index, res.img.Pix[0])
		}
		got = append(got, res.index)
	}

	if diff := cmp.Diff([]int{1, 2, 0, 1, 2}, got); diff != "" {
		t.Fatalf("unexpected frame order (-want +got):\n%s", diff)
	}
}

func TestCoordinatorDelay(t *testing.T) {
	codec := newFakeCodec(10, 15)
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	defer c.stop()

	res := c.await()
	if res.delay != 150*time.Millisecond {
		t.Fatalf("unexpected delay %v", res.delay)
	}
}

func TestCoordinatorEarlyEnd(t *testing.T) {
	codec := newFakeCodec(10, 10, 10, 10)
	codec.endAt = 2
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	defer c.stop()

	var got []int
	for i := 0; i < 4; i++ {
		res := c.await()
		if res.err != nil {
			t.Fatal("unexpected error:", res.err)
		}
		got = append(got, res.index)
	}

	if diff := cmp.Diff([]int{1, 0, 1, 0}, got); diff != "" {
		t.Fatalf("unexpected frame order (-want +got):\n%s", diff)
	}
}

func TestCoordinatorError(t *testing.T) {
	codec := newFakeCodec(10, 10, 10)
	codec.failAt = 2
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	defer c.stop()

	if res := c.await(); res.err != nil || res.index != 1 {
		t.Fatalf("unexpected first result: %+v", res)
	}

	res := c.await()
	if !errors.Is(res.err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", res.err)
	}

	// The worker has exited; awaiting again must not block.
	if res := c.await(); !errors.Is(res.err, errCoordinatorStopped) {
		t.Fatalf("expected errCoordinatorStopped, got %v", res.err)
	}
}

func TestCoordinatorStopMidDecode(t *testing.T) {
	codec := newFakeCodec(10, 10, 10)
	codec.block = make(chan struct{})
	codec.blockFrom = 1
	codec.entered = make(chan int, 1)
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	c.signal()

	select {
	case <-codec.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never started decoding")
	}

	stopped := make(chan struct{})
	go func() {
		c.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a decode was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(codec.block)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the decode finished")
	}

	// Stopping again is a no-op.
	c.stop()

	select {
	case <-c.done:
	default:
		t.Fatal("worker still running after stop")
	}
}

func TestCoordinatorStopIdle(t *testing.T) {
	codec := newFakeCodec(10, 10)
	h, _ := codec.Open("")

	c := startCoordinator(h, 1, discardLogger())
	c.stop()
	c.stop()

	if n := h.(*fakeHandle).decodes.Load(); n != 0 {
		t.Fatalf("idle worker decoded %d frames", n)
	}
}
