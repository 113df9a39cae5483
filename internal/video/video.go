// Package video turns a live stream of raw RGBA frames into encoded WebM
// chunks. The encoder is an external ffmpeg process.
package video

import (
	"errors"
	"image"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported video format")

// FrameSource is a live frame stream, e.g. *surface.Stream.
type FrameSource interface {
	Frames() <-chan *image.RGBA
}

// Options configures one recording.
type Options struct {
	MimeType string
	Width    int
	Height   int
	FPS      int
	BitRate  int

	// OnChunk receives encoded bytes in output order.
	OnChunk func(chunk []byte)
	// OnFinalized runs once after the last chunk, unless the recorder was
	// aborted. err is nil on a clean finish.
	OnFinalized func(err error)
}

// Recorder records one stream. Start once; Stop asks it to finalize.
type Recorder interface {
	Start() error
	Stop()
	// Abort tears the recorder down without a finalize callback.
	Abort()
}

// Factory creates recorders and answers which encodings are available.
type Factory interface {
	IsFormatSupported(mimeType string) bool
	New(src FrameSource, opts Options) (Recorder, error)
}

// codecs maps a mime type to ffmpeg encoders, best first.
var codecs = map[string][]string{
	"video/webm;codecs=vp9": {"libvpx-vp9"},
	"video/webm;codecs=vp8": {"libvpx"},
	"video/webm":            {"libvpx", "libvpx-vp9"},
}

func normalizeMime(mimeType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mimeType)), " ", "")
}

// Extension returns the file extension of the container for mimeType.
func Extension(mimeType string) string {
	base, _, _ := strings.Cut(normalizeMime(mimeType), ";")
	switch base {
	case "video/webm":
		return "webm"
	case "video/mp4":
		return "mp4"
	}
	return "bin"
}

// ContainerType strips codec parameters: "video/webm;codecs=vp9" -> "video/webm".
func ContainerType(mimeType string) string {
	base, _, _ := strings.Cut(normalizeMime(mimeType), ";")
	return base
}

// PickFormat returns the first supported entry of prefs.
func PickFormat(f Factory, prefs []string) (string, bool) {
	for _, m := range prefs {
		if f.IsFormatSupported(m) {
			return m, true
		}
	}
	return "", false
}
