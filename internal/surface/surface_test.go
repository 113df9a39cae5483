package surface

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/renderer"
)

func TestCaptureStreamSamplesAtFrameRate(t *testing.T) {
	q := loop.NewManual(time.Second / 60)
	s := New(q, 8, 4)

	st, err := s.CaptureStream(10)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Armed())

	q.Advance(300 * time.Millisecond)
	sent, dropped := st.Stats()
	assert.Equal(t, 3, sent)
	assert.Zero(t, dropped)
	assert.Len(t, st.Frames(), 3)
}

func TestStreamCopiesPixelsWithoutSharing(t *testing.T) {
	q := loop.NewManual(0)
	s := New(q, 4, 4)
	s.Context().FillPolygon([]renderer.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}, color.NRGBA{G: 255, A: 255})

	st, err := s.CaptureStream(60)
	require.NoError(t, err)
	q.Advance(time.Second / 60)

	frame := <-st.Frames()
	assert.Equal(t, uint8(255), frame.RGBAAt(1, 1).G)

	// later paints do not leak into an already delivered frame
	s.Context().FillPolygon([]renderer.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}, color.NRGBA{R: 255, A: 255})
	assert.Equal(t, uint8(0), frame.RGBAAt(1, 1).R)
	PutFrame(frame)
}

func TestStreamDropsWhenConsumerLags(t *testing.T) {
	q := loop.NewManual(0)
	s := New(q, 2, 2)
	st, err := s.CaptureStream(100)
	require.NoError(t, err)

	q.Advance(time.Duration(streamBuffer+5) * 10 * time.Millisecond)
	sent, dropped := st.Stats()
	assert.Equal(t, streamBuffer, sent)
	assert.Equal(t, 5, dropped)
}

func TestStreamCloseStopsSampling(t *testing.T) {
	q := loop.NewManual(0)
	s := New(q, 2, 2)
	st, err := s.CaptureStream(60)
	require.NoError(t, err)

	st.Close()
	st.Close()
	assert.True(t, st.Closed())
	assert.Zero(t, q.Armed())

	q.Advance(time.Second)
	_, ok := <-st.Frames()
	assert.False(t, ok)
}

func TestCaptureStreamNotReady(t *testing.T) {
	q := loop.NewManual(0)

	_, err := New(q, 0, 10).CaptureStream(60)
	assert.ErrorIs(t, err, ErrNotReady)

	s := New(q, 10, 10)
	_, err = s.CaptureStream(0)
	assert.ErrorIs(t, err, ErrNotReady)

	s.Close()
	_, err = s.CaptureStream(60)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestResizeAndSnapshot(t *testing.T) {
	s := New(loop.NewManual(0), 4, 2)
	w, h := s.Size()
	assert.Equal(t, [2]int{4, 2}, [2]int{w, h})

	s.Resize(6, 8)
	w, h = s.Size()
	assert.Equal(t, [2]int{6, 8}, [2]int{w, h})
	assert.Equal(t, 6*8*4, len(s.Snapshot().Pix))
}

func TestFramePoolKeysBySize(t *testing.T) {
	a := GetFrame(3, 3)
	PutFrame(a)
	b := GetFrame(5, 5)
	assert.Equal(t, image.Rect(0, 0, 5, 5), b.Rect)
	PutFrame(nil)

	// a sub-image shares its parent's Pix and must never come back out
	big := GetFrame(4, 4)
	PutFrame(big.SubImage(image.Rect(1, 1, 4, 4)).(*image.RGBA))
	for i := 0; i < 8; i++ {
		f := GetFrame(3, 3)
		assert.Equal(t, image.Point{}, f.Rect.Min)
		assert.Len(t, f.Pix, 3*3*4)
	}
}
