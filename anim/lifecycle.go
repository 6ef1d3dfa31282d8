package anim

import (
	"log/slog"
	"sync"
	"time"
)

// session is everything acquired by a successful Prepare.
type session struct {
	src    Source
	handle Handle
	strat  strategy
	log    *slog.Logger

	once sync.Once
}

// release tears the session down in order: the worker is stopped before the
// handle it decodes from is closed, and the handle is closed before the
// source backing it is released. It only runs once.
func (s *session) release() {
	s.once.Do(func() {
		s.strat.halt()
		s.strat.release()

		if err := s.handle.Close(); err != nil {
			s.log.Warn("cannot close handle", "err", err)
		}

		releaseSource(s.src, s.log)
		s.log.Debug("session released")
	})
}

func releaseSource(src Source, log *slog.Logger) {
	if err := src.Release(); err != nil {
		log.Warn("cannot release source", "path", src.Path(), "err", err)
	}
}

// Stop stops playback and clears the sink. The sequence stays prepared, so
// Play starts it again from the first frame. Stopping twice does nothing.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return ErrInvalidState
	}

	p.stop()
	return nil
}

func (p *Player) stop() {
	if p.sess != nil {
		p.sess.strat.halt()
	}

	if p.state != Stopped || p.sess != nil {
		p.sink.Clear()
	}

	p.state = Stopped
	p.cur = cursor{}
	p.lastTick = time.Time{}
}

// Dispose stops playback and releases the sequence along with its source.
// The player cannot be used afterwards; every method that changes state
// returns ErrInvalidState. Disposing twice does nothing.
func (p *Player) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return
	}

	p.stop()

	if p.sess != nil {
		p.sess.release()
		p.sess = nil
	}

	p.disposed = true
	p.log.Debug("player disposed")
}
