package capture

import (
	"errors"
	"time"

	"github.com/ivlev/nightwalk/internal/artifact"
)

// State is the capture session's position in its lifecycle.
type State int

const (
	Idle State = iota
	Recording
	Processing
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	}
	return "invalid"
}

// transitions lists every legal edge. Recording/Processing -> Idle are the
// reset and failure paths.
var transitions = map[State][]State{
	Idle:       {Recording},
	Recording:  {Processing, Idle},
	Processing: {Ready, Idle},
	Ready:      {Idle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrUnsupportedCapability means no acceptable encoding is available.
	// It is the only capture error meant for the user.
	ErrUnsupportedCapability = errors.New("video recording is not supported: no WebM encoder (vp9, vp8) is available")
	// ErrStreamUnavailable means the surface could not be tapped.
	ErrStreamUnavailable = errors.New("capture stream unavailable")
	// ErrNoArtifact means there is no live artifact for the given handle.
	ErrNoArtifact = errors.New("no artifact available")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("capture session closed")
)

// Status is a snapshot for consumers.
type Status struct {
	State     State           `json:"-"`
	StateName string          `json:"state"`
	MimeType  string          `json:"mime_type,omitempty"`
	Handle    artifact.Handle `json:"handle,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Bytes     int             `json:"bytes"`
	Chunks    int             `json:"chunks"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
	LastError string          `json:"last_error,omitempty"`
}

// recording is the data that only exists while Recording or Processing.
type recording struct {
	gen       uint64
	mime      string
	stream    streamCloser
	recorder  recorderControl
	chunks    [][]byte
	bytes     int
	startedAt time.Duration

	// finalizing is the one-shot guard: the first trigger sets it.
	finalizing bool
	// streamClosed keeps the dropped-frame count from being added twice.
	streamClosed bool
}

// ready is the data that only exists while Ready.
type ready struct {
	handle   artifact.Handle
	mime     string
	size     int
	chunks   int
	filename string
}
