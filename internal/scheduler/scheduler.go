// Package scheduler drives the compositor once per display refresh.
package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/renderer"
)

// PaintFunc paints one frame; scene.Render satisfies it.
type PaintFunc func(c renderer.Canvas, elapsed, width, height float64)

// Target is the surface the scheduler paints into.
type Target interface {
	Context() renderer.Canvas
	Size() (w, h int)
}

// Scheduler owns the render loop state that would otherwise be globals:
// the loop start reference and the pending frame handle. Every method
// must run on the loop.
type Scheduler struct {
	q      loop.Queue
	target Target
	paint  PaintFunc
	logger zerolog.Logger

	running   bool
	started   bool
	loopStart time.Duration
	elapsed   float64
	frames    uint64
	pending   loop.Timer

	// OnFrame, if set, runs after every paint with the elapsed seconds.
	OnFrame func(elapsed float64)
}

func New(q loop.Queue, target Target, paint PaintFunc) *Scheduler {
	return &Scheduler{
		q:      q,
		target: target,
		paint:  paint,
		logger: log.WithComponent("scheduler"),
	}
}

// Start begins painting on the next refresh. Elapsed time restarts at zero.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.started = false
	s.elapsed = 0
	s.pending = s.q.RequestFrame(s.cycle)
	s.logger.Debug().Msg("render loop started")
}

// Stop cancels the pending repaint. No frame is painted after Stop returns.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.logger.Debug().Uint64("frames", s.frames).Msg("render loop stopped")
}

// Running reports whether a repaint is scheduled.
func (s *Scheduler) Running() bool {
	return s.running
}

// Elapsed is the elapsed time of the last painted frame in seconds.
func (s *Scheduler) Elapsed() float64 {
	return s.elapsed
}

// Frames counts frames painted since construction.
func (s *Scheduler) Frames() uint64 {
	return s.frames
}

func (s *Scheduler) cycle(now time.Duration) {
	if !s.running {
		return
	}
	if !s.started {
		s.started = true
		s.loopStart = now
	}
	s.elapsed = (now - s.loopStart).Seconds()

	w, h := s.target.Size()
	if w > 0 && h > 0 {
		s.paint(s.target.Context(), s.elapsed, float64(w), float64(h))
		s.frames++
		if s.OnFrame != nil {
			s.OnFrame(s.elapsed)
		}
	}
	s.pending = s.q.RequestFrame(s.cycle)
}
