// Package surface is the render target: a pixel buffer with logical
// dimensions, its drawing context, and live frame streams tapped from it.
package surface

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/renderer"
)

// ErrNotReady is returned when a stream is requested from a surface that is
// closed or has no area.
var ErrNotReady = errors.New("surface not ready")

// Source is what a capture needs from the render target.
type Source interface {
	Size() (w, h int)
	CaptureStream(fps int) (*Stream, error)
}

// Surface is mutated only by the render path on the loop. Streams read it
// from the loop too, so no pixel is ever read mid-paint.
type Surface struct {
	q loop.Queue

	mu     sync.RWMutex
	img    *image.RGBA
	canvas *renderer.Raster
	closed bool
}

func New(q loop.Queue, w, h int) *Surface {
	s := &Surface{q: q}
	s.Resize(w, h)
	return s
}

// Resize reallocates the backing store; the next paint fills it.
func (s *Surface) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	s.mu.Lock()
	s.img = img
	s.canvas = renderer.NewRaster(img)
	s.mu.Unlock()
}

func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Context is the drawing context for the current backing store.
func (s *Surface) Context() renderer.Canvas {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

// Snapshot copies the current pixels. Call it on the loop so it never
// observes a half painted frame.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && !s.img.Rect.Empty()
}

// Close marks the surface destroyed; open streams stop producing frames.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// CaptureStream opens a live tap that samples the surface fps times per
// second on the loop.
func (s *Surface) CaptureStream(fps int) (*Stream, error) {
	if fps <= 0 || !s.ready() {
		return nil, ErrNotReady
	}
	st := &Stream{
		src:      s,
		q:        s.q,
		interval: time.Second / time.Duration(fps),
		frames:   make(chan *image.RGBA, streamBuffer),
	}
	st.schedule()
	return st, nil
}

// copyInto copies pixels into a pooled frame. Called on the loop.
func (s *Surface) copyInto() (*image.RGBA, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.img.Rect.Empty() {
		return nil, false
	}
	b := s.img.Bounds()
	frame := GetFrame(b.Dx(), b.Dy())
	copy(frame.Pix, s.img.Pix)
	return frame, true
}
