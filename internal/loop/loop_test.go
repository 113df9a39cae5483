package loop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoopRunsPostsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(5 * time.Millisecond)
	defer l.Close()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopStoppedTimerNeverRuns(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(5 * time.Millisecond)
	defer l.Close()

	var ran atomic.Bool
	var tm Timer
	require.NoError(t, l.Do(func() {
		tm = l.AfterFunc(20*time.Millisecond, func() { ran.Store(true) })
	}))
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop reports nothing to prevent")

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Do(func() {}))
	assert.False(t, ran.Load())
}

func TestLoopRequestFrame(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(2 * time.Millisecond)
	defer l.Close()

	got := make(chan time.Duration, 1)
	l.RequestFrame(func(now time.Duration) { got <- now })

	select {
	case now := <-got:
		assert.Greater(t, now, time.Duration(0))
	case <-time.After(time.Second):
		t.Fatal("frame request never fired")
	}
}

func TestLoopDoAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(time.Millisecond)
	l.Close()
	l.Close()
	assert.ErrorIs(t, l.Do(func() {}), ErrClosed)
}

func TestManualAdvanceOrdersTimersAndFrames(t *testing.T) {
	m := NewManual(10 * time.Millisecond)

	var events []string
	m.AfterFunc(25*time.Millisecond, func() { events = append(events, "timer@25") })
	var frame func(now time.Duration)
	frame = func(now time.Duration) {
		events = append(events, "frame@"+now.String())
		if now < 30*time.Millisecond {
			m.RequestFrame(frame)
		}
	}
	m.RequestFrame(frame)

	m.Advance(40 * time.Millisecond)
	assert.Equal(t, []string{
		"frame@10ms",
		"frame@20ms",
		"timer@25",
		"frame@30ms",
	}, events)
	assert.Equal(t, 40*time.Millisecond, m.Now())
	assert.Equal(t, 0, m.Armed())
	assert.Equal(t, 0, m.PendingFrames())
}

func TestManualStoppedTimer(t *testing.T) {
	m := NewManual(time.Millisecond)
	ran := false
	tm := m.AfterFunc(time.Second, func() { ran = true })
	assert.Equal(t, 1, m.Armed())
	assert.True(t, tm.Stop())
	assert.Equal(t, 0, m.Armed())

	m.Advance(2 * time.Second)
	assert.False(t, ran)
}

func TestManualPostedDuringAdvanceRunsBeforeNextEvent(t *testing.T) {
	m := NewManual(0)
	var events []string
	m.AfterFunc(time.Second, func() {
		events = append(events, "timer")
		m.Post(func() { events = append(events, "post") })
	})
	m.AfterFunc(2*time.Second, func() { events = append(events, "late") })

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"timer", "post", "late"}, events)
}

func TestManualFrameOnTimerBoundaryStillRuns(t *testing.T) {
	m := NewManual(10 * time.Millisecond)

	var events []string
	m.AfterFunc(20*time.Millisecond, func() {
		events = append(events, "timer@20")
		m.RequestFrame(func(now time.Duration) { events = append(events, "late@"+now.String()) })
	})
	var frame func(now time.Duration)
	frame = func(now time.Duration) {
		events = append(events, "frame@"+now.String())
		if now < 20*time.Millisecond {
			m.RequestFrame(frame)
		}
	}
	m.RequestFrame(frame)

	m.Advance(30 * time.Millisecond)
	assert.Equal(t, []string{
		"frame@10ms",
		"timer@20",
		"frame@20ms",
		"late@20ms",
	}, events)
}
