package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D libopus              libopus Opus (codec opus)
`

func TestParseEncoders(t *testing.T) {
	enc := ParseEncoders([]byte(encodersOutput))
	assert.True(t, enc["libvpx"])
	assert.True(t, enc["libvpx-vp9"])
	assert.True(t, enc["libx264"])
	assert.False(t, enc["libopus"], "audio encoders are ignored")
	assert.False(t, enc["="], "legend lines are ignored")
}

func TestFFprobePath(t *testing.T) {
	assert.Equal(t, "ffprobe", FFprobePath("ffmpeg"))
	assert.Equal(t, "/opt/bin/ffprobe", FFprobePath("/opt/bin/ffmpeg"))
	assert.Equal(t, "ffprobe", FFprobePath("/usr/bin/avconv"))
}

func TestRenderWorkers(t *testing.T) {
	h := Host{LogicalCPUs: 8, FreeMemory: 400}
	assert.Equal(t, 8, h.RenderWorkers(10, 0))
	assert.Equal(t, 4, h.RenderWorkers(10, 4))
	assert.Equal(t, 8, h.RenderWorkers(10, 64))
	assert.Equal(t, 2, h.RenderWorkers(50, 8))
	assert.Equal(t, 1, h.RenderWorkers(1000, 8))
	assert.Equal(t, 8, Host{LogicalCPUs: 8}.RenderWorkers(1000, 0))
}

func TestHostInfo(t *testing.T) {
	h := HostInfo()
	assert.GreaterOrEqual(t, h.LogicalCPUs, 1)
}
