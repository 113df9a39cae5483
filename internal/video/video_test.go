package video

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var prefs = []string{"video/webm;codecs=vp9", "video/webm;codecs=vp8", "video/webm"}

func TestPickFormatFollowsPreferenceOrder(t *testing.T) {
	tests := []struct {
		name     string
		encoders map[string]bool
		want     string
		ok       bool
	}{
		{"vp9 and vp8", map[string]bool{"libvpx-vp9": true, "libvpx": true}, "video/webm;codecs=vp9", true},
		{"vp8 only", map[string]bool{"libvpx": true}, "video/webm;codecs=vp8", true},
		{"nothing", map[string]bool{"libx264": true}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFFmpegFactory("ffmpeg")
			f.Encoders = tt.encoders
			got, ok := PickFormat(f, prefs)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlainWebmFallsBackToEitherVPX(t *testing.T) {
	f := NewFFmpegFactory("")
	f.Encoders = map[string]bool{"libvpx-vp9": true}
	assert.True(t, f.IsFormatSupported("video/webm"))
	assert.True(t, f.IsFormatSupported("video/webm; codecs=VP9"))
	assert.False(t, f.IsFormatSupported("video/webm;codecs=vp8"))
	assert.Equal(t, "ffmpeg", f.Path)
}

func TestExtensionAndContainer(t *testing.T) {
	assert.Equal(t, "webm", Extension("video/webm;codecs=vp9"))
	assert.Equal(t, "webm", Extension("video/webm"))
	assert.Equal(t, "mp4", Extension("video/mp4"))
	assert.Equal(t, "bin", Extension("application/x-unknown"))
	assert.Equal(t, "video/webm", ContainerType("video/webm;codecs=vp8"))
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("libvpx-vp9", Options{Width: 960, Height: 540, FPS: 60, BitRate: 6_000_000})

	assert.Equal(t, []string{"-video_size", "960x540"}, find(args, "-video_size"))
	assert.Equal(t, []string{"-framerate", "60"}, find(args, "-framerate"))
	assert.Equal(t, []string{"-c:v", "libvpx-vp9"}, find(args, "-c:v"))
	assert.Equal(t, []string{"-b:v", "6000k"}, find(args, "-b:v"))
	assert.Equal(t, []string{"-pixel_format", "rgba"}, find(args, "-pixel_format"))
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Equal(t, []string{"-f", "webm"}, args[len(args)-3:len(args)-1])
}

func TestNewRejectsUnsupported(t *testing.T) {
	f := NewFFmpegFactory("ffmpeg")
	f.Encoders = map[string]bool{}
	_, err := f.New(&chanSource{}, Options{MimeType: "video/webm", Width: 2, Height: 2, FPS: 60})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f.Encoders = map[string]bool{"libvpx": true}
	_, err = f.New(&chanSource{}, Options{MimeType: "video/webm", Width: 0, Height: 2, FPS: 60})
	assert.Error(t, err)
}

type chanSource struct {
	ch chan *image.RGBA
}

func (c *chanSource) Frames() <-chan *image.RGBA { return c.ch }

// fakeFFmpeg writes a script that stands in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestRecorderDeliversChunksThenFinalizes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := NewFFmpegFactory(fakeFFmpeg(t, "cat > /dev/null\nprintf 'encoded-webm-bytes'"))
	f.Encoders = map[string]bool{"libvpx": true}

	src := &chanSource{ch: make(chan *image.RGBA, 4)}
	for i := 0; i < 3; i++ {
		src.ch <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	}

	var mu sync.Mutex
	var out bytes.Buffer
	done := make(chan error, 1)
	rec, err := f.New(src, Options{
		MimeType: "video/webm;codecs=vp8",
		Width:    2, Height: 2, FPS: 60, BitRate: 6_000_000,
		OnChunk: func(b []byte) {
			mu.Lock()
			out.Write(b)
			mu.Unlock()
		},
		OnFinalized: func(err error) { done <- err },
	})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	assert.Error(t, rec.Start(), "second start is rejected")

	time.Sleep(20 * time.Millisecond)
	rec.Stop()
	rec.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never finalized")
	}
	mu.Lock()
	assert.Equal(t, "encoded-webm-bytes", out.String())
	mu.Unlock()
}

func TestStopWritesQueuedFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := NewFFmpegFactory(fakeFFmpeg(t, "wc -c"))
	f.Encoders = map[string]bool{"libvpx": true}

	const queued = 32
	src := &chanSource{ch: make(chan *image.RGBA, queued)}
	for i := 0; i < queued; i++ {
		src.ch <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	}

	var mu sync.Mutex
	var out bytes.Buffer
	done := make(chan error, 1)
	rec, err := f.New(src, Options{
		MimeType: "video/webm", Width: 2, Height: 2, FPS: 60,
		OnChunk: func(b []byte) {
			mu.Lock()
			out.Write(b)
			mu.Unlock()
		},
		OnFinalized: func(err error) { done <- err },
	})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	rec.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never finalized")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, strconv.Itoa(queued*2*2*4), strings.TrimSpace(out.String()))
}

func TestStopFinishesOnClosedStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := NewFFmpegFactory(fakeFFmpeg(t, "wc -c"))
	f.Encoders = map[string]bool{"libvpx": true}

	src := &chanSource{ch: make(chan *image.RGBA, 8)}
	for i := 0; i < 5; i++ {
		src.ch <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	}
	close(src.ch)

	var out bytes.Buffer
	var mu sync.Mutex
	done := make(chan error, 1)
	rec, err := f.New(src, Options{
		MimeType: "video/webm", Width: 2, Height: 2, FPS: 60,
		OnChunk: func(b []byte) {
			mu.Lock()
			out.Write(b)
			mu.Unlock()
		},
		OnFinalized: func(err error) { done <- err },
	})
	require.NoError(t, err)
	rec.Stop()
	require.NoError(t, rec.Start())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never finalized")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "80", strings.TrimSpace(out.String()))
}

func TestRecorderReportsEncoderFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := NewFFmpegFactory(fakeFFmpeg(t, "cat > /dev/null\necho 'no such encoder' >&2\nexit 1"))
	f.Encoders = map[string]bool{"libvpx": true}

	done := make(chan error, 1)
	rec, err := f.New(&chanSource{ch: make(chan *image.RGBA)}, Options{
		MimeType: "video/webm", Width: 2, Height: 2, FPS: 60,
		OnFinalized: func(err error) { done <- err },
	})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	rec.Stop()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such encoder")
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never finalized")
	}
}

func TestAbortSkipsFinalize(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := NewFFmpegFactory(fakeFFmpeg(t, "exec cat > /dev/null"))
	f.Encoders = map[string]bool{"libvpx": true}

	called := make(chan struct{}, 1)
	rec, err := f.New(&chanSource{ch: make(chan *image.RGBA)}, Options{
		MimeType: "video/webm", Width: 2, Height: 2, FPS: 60,
		OnFinalized: func(error) { called <- struct{}{} },
	})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	rec.Abort()

	select {
	case <-called:
		t.Fatal("aborted recorder must not finalize")
	case <-time.After(200 * time.Millisecond):
	}
}

func find(args []string, flag string) []string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i : i+2]
		}
	}
	return nil
}
