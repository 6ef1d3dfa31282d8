package anim

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// State is the playback state of a player.
type State int

const (
	// Stopped means no playback is running. The player may still hold a
	// prepared sequence, in which case Play restarts it from the first frame.
	Stopped State = iota
	// Preparing means the first frame is being decoded.
	Preparing
	// Playing means ticks advance the playback.
	Playing
	// Paused means ticks are ignored and the position is frozen.
	Paused
	// Static means the sequence has a single frame, which is shown without
	// any timing.
	Static
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Preparing:
		return "preparing"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// Mode selects how frames are decoded.
type Mode int

const (
	// Streaming decodes one frame ahead on a worker goroutine, reusing the
	// codec's buffer.
	Streaming Mode = iota
	// Buffered keeps a copy of every frame once decoded, and maps time to
	// frames using an Index.
	Buffered
)

func (m Mode) String() string {
	switch m {
	case Streaming:
		return "streaming"
	case Buffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// ParseMode parses the string form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "streaming", "stream", "":
		return Streaming, nil
	case "buffered", "buffer":
		return Buffered, nil
	default:
		return Streaming, errors.Errorf("unknown mode %q", s)
	}
}

// Options are the playback options given to Prepare.
type Options struct {
	// PlayOnReady, if true, starts playing once the first frame is shown.
	// Otherwise, the player is paused on the first frame.
	PlayOnReady bool
	// Loop, if true, restarts the sequence after the last frame. Otherwise,
	// playback stops on the last frame.
	Loop bool
	// Speed scales the passage of time. It must be positive; the default is
	// 1.
	Speed float64
	// Mode selects streaming or buffered decoding.
	Mode Mode
	// MinDelay is the shortest delay a frame is paced with. Shorter delays,
	// including zero, are raised to it. The default is DefaultMinDelay.
	MinDelay time.Duration
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		PlayOnReady: true,
		Speed:       1,
		Mode:        Streaming,
		MinDelay:    DefaultMinDelay,
	}
}

// ValidSpeed reports whether speed is usable as a playback speed: positive and
// finite.
func ValidSpeed(speed float64) bool {
	return speed > 0 && !math.IsInf(speed, 0)
}

// maxElapsed bounds the elapsed time of the cursor, so that adding frame start
// times to it never overflows.
const maxElapsed = time.Duration(math.MaxInt64 / 2)

// scaleElapsed adds delta scaled by speed to elapsed, saturating at
// maxElapsed.
func scaleElapsed(elapsed, delta time.Duration, speed float64) time.Duration {
	scaled := float64(delta) * speed
	if scaled >= float64(maxElapsed-elapsed) {
		return maxElapsed
	}
	return elapsed + time.Duration(scaled)
}

func (opts Options) normalize() Options {
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultMinDelay
	}
	return opts
}

// Player plays a sequence onto a sink. The host drives it by calling Tick
// once per update. All methods are safe to call from multiple goroutines,
// though Tick is normally only called from the host's update loop.
type Player struct {
	codec Codec
	sink  Sink
	log   *slog.Logger

	mu       sync.Mutex
	opts     Options
	state    State
	sess     *session
	cur      cursor
	lastTick time.Time
	err      error
	disposed bool
}

// NewPlayer creates a new player. If log is nil, nothing is logged.
func NewPlayer(codec Codec, sink Sink, log *slog.Logger) *Player {
	if log == nil {
		log = discardLogger()
	}

	return &Player{
		codec: codec,
		sink:  sink,
		log:   log,
		opts:  DefaultOptions(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Prepare opens the source and shows its first frame. Playback starts right
// away if opts.PlayOnReady is true. A sequence that was prepared before is
// released first. If Prepare fails, the player is left unprepared and the
// source is released; the caller may try again.
func (p *Player) Prepare(ctx context.Context, src Source, opts Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return ErrInvalidState
	}

	if opts.Speed != 0 && !ValidSpeed(opts.Speed) {
		if src != nil {
			releaseSource(src, p.log)
		}
		return errors.Errorf("invalid speed %v", opts.Speed)
	}

	if p.sess != nil {
		p.stop()
		p.sess.release()
		p.sess = nil
	}

	p.opts = opts.normalize()
	p.err = nil

	if src == nil {
		return errors.Wrap(ErrSourceUnavailable, "no source")
	}

	if err := ctx.Err(); err != nil {
		releaseSource(src, p.log)
		return err
	}

	p.state = Preparing
	log := p.log.With("source", src.Path(), "mode", p.opts.Mode)

	h, err := p.codec.Open(src.Path())
	if err != nil {
		p.state = Stopped
		releaseSource(src, log)
		return errors.Wrapf(ErrSourceUnavailable, "%s: %v", src.Path(), err)
	}

	sess := &session{
		src:    src,
		handle: h,
		strat:  newStrategy(p.opts.Mode, h, p.opts.MinDelay, log),
		log:    log,
	}

	if h.Len() < 1 {
		p.state = Stopped
		sess.release()
		return errors.Wrapf(ErrEmptySequence, "%s", src.Path())
	}

	if err := ctx.Err(); err != nil {
		p.state = Stopped
		sess.release()
		return err
	}

	p.sess = sess

	if err := p.prepare(p.opts.PlayOnReady); err != nil {
		p.state = Stopped
		p.sess = nil
		sess.release()
		return err
	}

	log.Info("prepared", "frames", h.Len(), "state", p.state)
	return nil
}

// prepare decodes and presents the first frame, then moves to the playing or
// paused state. A single frame sequence becomes static.
func (p *Player) prepare(play bool) error {
	p.state = Preparing

	f, err := p.sess.strat.first()
	if err != nil {
		return err
	}

	p.sink.Present(f.Image)

	p.cur = cursor{}
	p.cur.set(f, p.opts.MinDelay)
	p.lastTick = time.Time{}

	if p.sess.strat.count() == 1 {
		p.state = Static
		return nil
	}

	p.sess.strat.begin()

	if play {
		p.state = Playing
	} else {
		p.state = Paused
	}

	return nil
}

// Play starts or resumes playback. A stopped player restarts from the first
// frame. Playing a static sequence does nothing.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || p.sess == nil {
		return ErrInvalidState
	}

	switch p.state {
	case Paused:
		p.state = Playing
		// Don't count the time spent paused.
		p.lastTick = time.Time{}

	case Stopped:
		p.err = nil
		if err := p.prepare(true); err != nil {
			p.fail(err)
			return err
		}
	}

	return nil
}

// Pause freezes playback on the current frame.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || p.sess == nil {
		return ErrInvalidState
	}

	if p.state == Playing {
		p.state = Paused
	}

	return nil
}

// Tick advances playback to the given time. The first tick after playback
// starts or resumes only records the time. Tick returns an error if decoding
// failed, in which case the player is stopped.
func (p *Player) Tick(now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || p.sess == nil || p.state != Playing {
		return nil
	}

	if p.lastTick.IsZero() {
		p.lastTick = now
		return nil
	}

	delta := now.Sub(p.lastTick)
	if delta <= 0 {
		return nil
	}
	p.lastTick = now

	p.cur.elapsed = scaleElapsed(p.cur.elapsed, delta, p.opts.Speed)

	ended, err := p.sess.strat.advance(&p.cur, p.opts.Loop, p.sink.Present)
	if err != nil {
		p.fail(err)
		return err
	}

	if ended {
		p.sess.strat.halt()
		p.state = Stopped
		p.sess.log.Debug("playback finished", "frame", p.cur.index)
	}

	return nil
}

// fail stops playback after an error.
func (p *Player) fail(err error) {
	p.sess.strat.halt()
	p.state = Stopped
	p.err = err
	p.sess.log.Error("playback failed", "err", err)
}

// Seek moves playback to the frame shown at time t into the sequence. Times
// past the end wrap around. The elapsed time within that frame is kept, so
// playback continues from exactly t. Seek requires buffered mode.
func (p *Player) Seek(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || p.sess == nil {
		return ErrInvalidState
	}

	b, ok := p.sess.strat.(*buffer)
	if !ok {
		return errors.Wrap(ErrInvalidState, "seek requires buffered mode")
	}

	f, offset, err := b.seek(t)
	if err != nil {
		p.fail(err)
		return err
	}

	if f.Index != p.cur.index {
		p.sink.Present(f.Image)
	}

	p.cur.set(f, p.opts.MinDelay)
	p.cur.elapsed = offset

	return nil
}

// SetSpeed sets the playback speed. The speed must be positive and finite.
func (p *Player) SetSpeed(speed float64) error {
	if !ValidSpeed(speed) {
		return errors.Errorf("invalid speed %v", speed)
	}

	p.mu.Lock()
	p.opts.Speed = speed
	p.mu.Unlock()

	return nil
}

// SetLoop sets whether playback loops.
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	p.opts.Loop = loop
	p.mu.Unlock()
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// FrameIndex returns the index of the current frame, or -1 if nothing is
// prepared.
func (p *Player) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil {
		return -1
	}
	return p.cur.index
}

// FrameCount returns the number of frames, or 0 if nothing is prepared.
func (p *Player) FrameCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil {
		return 0
	}
	return p.sess.strat.count()
}

// FrameDelay returns the decoded delay of the current frame. It may be below
// the minimum delay used for pacing.
func (p *Player) FrameDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cur.delay
}

// IsPaused returns true if playback is paused.
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state == Paused
}

// IsLooping returns true if playback loops.
func (p *Player) IsLooping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.opts.Loop
}

// Speed returns the playback speed.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.opts.Speed
}

// Err returns the error that stopped playback, if any. It is cleared by
// Prepare and Play.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}
