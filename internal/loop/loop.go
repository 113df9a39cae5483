// Package loop provides the single-threaded event queue that every render
// cycle, stream tap, chunk delivery and deadline timer runs on.
package loop

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Do once the loop has been closed.
var ErrClosed = errors.New("loop closed")

// Queue is the scheduling surface shared by the real and the manual loop.
// Callbacks never run concurrently with each other.
type Queue interface {
	// Post enqueues fn; callbacks run in FIFO order.
	Post(fn func())
	// AfterFunc runs fn on the queue once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// RequestFrame runs fn on the next display refresh with the loop's
	// monotonic time.
	RequestFrame(fn func(now time.Duration)) Timer
	// Now is the monotonic time since the queue was created.
	Now() time.Duration
}

// Executor is a Queue that outside goroutines can synchronously call into.
type Executor interface {
	Queue
	Do(fn func()) error
}

// Timer is a pending callback. Stop reports whether it prevented the call;
// a stopped callback is guaranteed not to run, even if already dequeued.
type Timer interface {
	Stop() bool
}

const (
	pending int32 = iota
	fired
	stopped
)

type handle struct {
	state atomic.Int32
	stop  func()
}

func (h *handle) Stop() bool {
	if !h.state.CompareAndSwap(pending, stopped) {
		return false
	}
	if h.stop != nil {
		h.stop()
	}
	return true
}

func (h *handle) claim() bool {
	return h.state.CompareAndSwap(pending, fired)
}

type frameRequest struct {
	h  *handle
	fn func(now time.Duration)
}

// Loop runs callbacks on one goroutine and ticks frame requests at a fixed
// refresh interval.
type Loop struct {
	interval time.Duration
	epoch    time.Time

	mu     sync.Mutex
	tasks  []func()
	frames []frameRequest
	wake   chan struct{}

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// New starts a loop whose frame requests fire every interval.
func New(interval time.Duration) *Loop {
	l := &Loop{
		interval: interval,
		epoch:    time.Now(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) Now() time.Duration {
	return time.Since(l.epoch)
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	h := &handle{}
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if h.claim() {
				fn()
			}
		})
	})
	h.stop = func() { t.Stop() }
	return h
}

func (l *Loop) RequestFrame(fn func(now time.Duration)) Timer {
	h := &handle{}
	l.mu.Lock()
	l.frames = append(l.frames, frameRequest{h: h, fn: fn})
	l.mu.Unlock()
	return h
}

// Do runs fn on the loop and waits for it. It must not be called from a
// callback already running on the loop.
func (l *Loop) Do(fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Close stops the loop goroutine. Pending callbacks are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
	<-l.exited
}

func (l *Loop) run() {
	defer close(l.exited)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
			l.drain()
		case <-ticker.C:
			l.tick()
			l.drain()
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case <-l.done:
			return
		default:
		}
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn()
	}
}

func (l *Loop) tick() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()

	now := l.Now()
	for _, f := range frames {
		if f.h.claim() {
			f.fn(now)
		}
	}
}
