package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Queue driven by virtual time. Nothing runs until the owner
// calls Flush or Advance, which makes capture and scheduler behavior
// reproducible in tests.
type Manual struct {
	interval time.Duration

	mu     sync.Mutex
	now    time.Duration
	seq    int
	tasks  []func()
	timers []*manualTimer
	frames []frameRequest

	// openTick is a frame boundary reached by a timer whose frames have
	// not run yet; -1 when there is none.
	openTick time.Duration
	lastTick time.Duration
}

type manualTimer struct {
	h   *handle
	due time.Duration
	seq int
	fn  func()
}

// NewManual creates a virtual loop with the given frame interval.
func NewManual(interval time.Duration) *Manual {
	return &Manual{interval: interval, openTick: -1, lastTick: -1}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	h := &handle{}
	m.mu.Lock()
	m.seq++
	m.timers = append(m.timers, &manualTimer{h: h, due: m.now + d, seq: m.seq, fn: fn})
	m.mu.Unlock()
	return h
}

func (m *Manual) RequestFrame(fn func(now time.Duration)) Timer {
	h := &handle{}
	m.mu.Lock()
	m.frames = append(m.frames, frameRequest{h: h, fn: fn})
	m.mu.Unlock()
	return h
}

// Do runs fn immediately; the manual loop has no goroutine of its own.
func (m *Manual) Do(fn func()) error {
	fn()
	m.Flush()
	return nil
}

// Flush runs posted callbacks until the task queue is empty.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		fn()
	}
}

// Armed counts timers that have neither fired nor been stopped.
func (m *Manual) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.h.state.Load() == pending {
			n++
		}
	}
	return n
}

// PendingFrames counts outstanding frame requests.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.frames {
		if f.h.state.Load() == pending {
			n++
		}
	}
	return n
}

// Advance moves virtual time forward by d, firing timers in due order and
// frame requests on every interval boundary crossed.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next, kind := m.nextEventLocked(target)
		if kind == eventNone {
			m.now = target
			m.mu.Unlock()
			m.Flush()
			return
		}
		m.now = next
		switch kind {
		case eventTimer:
			t := m.popTimerLocked(next)
			if m.interval > 0 && next%m.interval == 0 && next > m.lastTick {
				m.openTick = next
			}
			m.mu.Unlock()
			if t.h.claim() {
				t.fn()
			}
		case eventFrame:
			frames := m.frames
			m.frames = nil
			m.openTick = -1
			m.lastTick = m.now
			now := m.now
			m.mu.Unlock()
			for _, f := range frames {
				if f.h.claim() {
					f.fn(now)
				}
			}
		}
		m.Flush()
	}
}

type eventKind int

const (
	eventNone eventKind = iota
	eventTimer
	eventFrame
)

func (m *Manual) nextEventLocked(target time.Duration) (time.Duration, eventKind) {
	best, kind := target+1, eventNone

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due == m.timers[j].due {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due < m.timers[j].due
	})
	for _, t := range m.timers {
		if t.h.state.Load() != pending {
			continue
		}
		if t.due <= target {
			best, kind = t.due, eventTimer
		}
		break
	}

	if m.interval > 0 && m.hasPendingFrameLocked() {
		tick := (m.now/m.interval + 1) * m.interval
		if m.openTick == m.now {
			tick = m.now
		}
		if tick <= target && tick < best {
			best, kind = tick, eventFrame
		}
	}
	return best, kind
}

func (m *Manual) hasPendingFrameLocked() bool {
	for _, f := range m.frames {
		if f.h.state.Load() == pending {
			return true
		}
	}
	return false
}

func (m *Manual) popTimerLocked(due time.Duration) *manualTimer {
	for i, t := range m.timers {
		if t.h.state.Load() == pending && t.due == due {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return t
		}
	}
	return &manualTimer{h: &handle{}, fn: func() {}}
}
