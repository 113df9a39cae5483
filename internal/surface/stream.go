package surface

import (
	"image"
	"time"

	"github.com/ivlev/nightwalk/internal/loop"
)

// streamBuffer bounds how far the encoder may lag before frames drop.
const streamBuffer = 32

// Stream is a live frame stream. Frames are delivered on a channel so the
// consumer can live on another goroutine; the consumer returns every frame
// with PutFrame.
type Stream struct {
	src      *Surface
	q        loop.Queue
	interval time.Duration
	frames   chan *image.RGBA
	timer    loop.Timer

	closed  bool
	sent    int
	dropped int
}

// Frames yields sampled frames until the stream is closed.
func (st *Stream) Frames() <-chan *image.RGBA {
	return st.frames
}

func (st *Stream) schedule() {
	st.timer = st.q.AfterFunc(st.interval, st.sample)
}

func (st *Stream) sample() {
	if st.closed {
		return
	}
	if frame, ok := st.src.copyInto(); ok {
		select {
		case st.frames <- frame:
			st.sent++
		default:
			st.dropped++
			PutFrame(frame)
		}
	}
	st.schedule()
}

// Stats reports delivered and dropped frame counts. Loop only.
func (st *Stream) Stats() (sent, dropped int) {
	return st.sent, st.dropped
}

// Close stops sampling and closes the frame channel. Must run on the loop;
// calling it twice is a no-op.
func (st *Stream) Close() {
	if st.closed {
		return
	}
	st.closed = true
	if st.timer != nil {
		st.timer.Stop()
	}
	close(st.frames)
}

// Closed reports whether Close has run.
func (st *Stream) Closed() bool {
	return st.closed
}
