package anim

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrIndexIncomplete is returned by Lookup if the index has not been sealed,
// meaning the total duration of the sequence is not yet known.
var ErrIndexIncomplete = errors.New("timestamp index incomplete")

// epsilon is the total duration under which a sequence is considered to have
// no duration at all.
const epsilon = time.Nanosecond

// Index maps presentation times to frame indices. It holds the cumulative
// start time of each frame, and remembers the last interval it returned so
// that temporally adjacent lookups skip the search.
//
// An Index is not safe for concurrent use.
type Index struct {
	// table[i] is the start time of frame i. The last entry is the end of the
	// last known frame, so len(table) is always one more than the number of
	// known frames.
	table  []time.Duration
	sealed bool

	// last returned interval
	low, high time.Duration
	frame     int
	hit       bool
}

// NewIndex creates an index from the given frame delays. The index is not
// sealed, so more frames can be appended.
func NewIndex(delays ...time.Duration) *Index {
	idx := &Index{
		table: make([]time.Duration, 1, len(delays)+1),
	}
	for _, d := range delays {
		idx.Append(d)
	}
	return idx
}

// Append adds a frame with the given delay. Negative delays count as zero.
// Appending to a sealed index panics.
func (idx *Index) Append(delay time.Duration) {
	if idx.sealed {
		panic("anim: append to sealed index")
	}
	if delay < 0 {
		delay = 0
	}
	idx.table = append(idx.table, idx.table[len(idx.table)-1]+delay)
}

// Seal marks the index as complete. No frames can be appended afterwards.
func (idx *Index) Seal() {
	idx.sealed = true
}

// Sealed returns true if the index is complete.
func (idx *Index) Sealed() bool {
	return idx.sealed
}

// Len returns the number of known frames.
func (idx *Index) Len() int {
	return len(idx.table) - 1
}

// Start returns the start time of frame i.
func (idx *Index) Start(i int) time.Duration {
	return idx.table[i]
}

// Known returns the end time of the last known frame.
func (idx *Index) Known() time.Duration {
	return idx.table[len(idx.table)-1]
}

// Total returns the duration of one full cycle. The second value is false if
// the index is not sealed yet.
func (idx *Index) Total() (time.Duration, bool) {
	return idx.Known(), idx.sealed
}

// Lookup returns the frame shown at time t. Times past the end of the
// sequence wrap around, so an infinitely looped playback can be driven from
// the table of a single cycle. The index must be sealed.
func (idx *Index) Lookup(t time.Duration) (int, error) {
	if !idx.sealed || idx.Len() == 0 {
		return 0, ErrIndexIncomplete
	}

	total := idx.Known()
	if total <= epsilon {
		return 0, nil
	}

	t %= total
	if t < 0 {
		t += total
	}

	return idx.Floor(t), nil
}

// Floor returns the frame i such that Start(i) <= t < Start(i+1), searching
// only the known frames. Times before zero return the first frame, and times
// past the known end return the last known frame. Floor returns 0 if no
// frames are known.
func (idx *Index) Floor(t time.Duration) int {
	n := idx.Len()
	if n == 0 {
		return 0
	}

	if idx.hit && idx.low <= t && t < idx.high {
		return idx.frame
	}

	// Smallest j such that the frame before it ends after t.
	j := sort.Search(n, func(j int) bool { return idx.table[j+1] > t })
	if j == n {
		// Past the known end. Don't cache this, since the interval is
		// open-ended while the index is still growing.
		return n - 1
	}

	idx.low = idx.table[j]
	idx.high = idx.table[j+1]
	idx.frame = j
	idx.hit = true

	if t < idx.low {
		// Negative time; clamped to the first frame.
		return 0
	}

	return j
}
