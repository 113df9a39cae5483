// Package capture records a bounded window of the live surface into a
// downloadable artifact. A Session is a state machine over Idle, Recording,
// Processing and Ready; every method must run on the event loop.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/nightwalk/internal/artifact"
	"github.com/ivlev/nightwalk/internal/config"
	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/metrics"
	"github.com/ivlev/nightwalk/internal/surface"
	"github.com/ivlev/nightwalk/internal/video"
)

type streamCloser interface {
	Close()
	Stats() (sent, dropped int)
}

type recorderControl interface {
	Stop()
	Abort()
}

// Params are the fixed capture parameters.
type Params struct {
	FPS             int
	Duration        time.Duration
	BitRate         int
	MimePreferences []string
}

// DefaultParams mirrors the config package constants.
func DefaultParams() Params {
	return Params{
		FPS:             config.CaptureFPS,
		Duration:        config.CaptureDuration,
		BitRate:         config.VideoBitRate,
		MimePreferences: config.MimePreferences,
	}
}

type Option func(*Session)

// WithParams overrides the capture parameters (tests use shorter windows).
func WithParams(p Params) Option {
	return func(s *Session) { s.params = p }
}

// WithNotifier receives user-visible conditions (ErrUnsupportedCapability).
func WithNotifier(fn func(error)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithListener observes every state change.
func WithListener(fn func(Status)) Option {
	return func(s *Session) { s.listeners = append(s.listeners, fn) }
}

type Session struct {
	q         loop.Queue
	src       surface.Source
	recorders video.Factory
	store     artifact.Store
	params    Params
	notify    func(error)
	listeners []func(Status)
	logger    zerolog.Logger

	state State
	gen   uint64
	rec   *recording
	done  *ready

	// deadline and settle are the only timers the session arms; they are
	// session fields so there can never be two of either.
	deadline loop.Timer
	settle   loop.Timer

	lastErr error
	closed  bool
}

func NewSession(q loop.Queue, src surface.Source, recorders video.Factory, store artifact.Store, opts ...Option) *Session {
	s := &Session{
		q:         q,
		src:       src,
		recorders: recorders,
		store:     store,
		params:    DefaultParams(),
		logger:    log.WithComponent("capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Start begins a recording. It is a no-op while Recording or Processing.
// From Ready the previous artifact is revoked first.
func (s *Session) Start() error {
	if s.closed {
		return ErrClosed
	}
	switch s.state {
	case Recording, Processing:
		s.logger.Debug().Stringer("state", s.state).Msg("start ignored")
		return nil
	case Ready:
		s.releaseArtifact()
		s.transition(Idle)
	}

	mime, ok := video.PickFormat(s.recorders, s.params.MimePreferences)
	if !ok {
		metrics.CaptureStartFailures.WithLabelValues("unsupported").Inc()
		s.logger.Warn().Strs("tried", s.params.MimePreferences).Msg("no supported encoding")
		if s.notify != nil {
			s.notify(ErrUnsupportedCapability)
		}
		return ErrUnsupportedCapability
	}

	stream, err := s.src.CaptureStream(s.params.FPS)
	if err != nil {
		metrics.CaptureStartFailures.WithLabelValues("stream").Inc()
		return fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}

	s.gen++
	gen := s.gen
	w, h := s.src.Size()
	recorder, err := s.recorders.New(stream, video.Options{
		MimeType: mime,
		Width:    w,
		Height:   h,
		FPS:      s.params.FPS,
		BitRate:  s.params.BitRate,
		OnChunk: func(chunk []byte) {
			s.q.Post(func() { s.onChunk(gen, chunk) })
		},
		OnFinalized: func(err error) {
			s.q.Post(func() { s.onFinalized(gen, err) })
		},
	})
	if err != nil {
		stream.Close()
		metrics.CaptureStartFailures.WithLabelValues("recorder").Inc()
		return fmt.Errorf("create recorder: %w", err)
	}
	if err := recorder.Start(); err != nil {
		recorder.Abort()
		stream.Close()
		metrics.CaptureStartFailures.WithLabelValues("recorder").Inc()
		return fmt.Errorf("start recorder: %w", err)
	}

	s.rec = &recording{
		gen:       gen,
		mime:      mime,
		stream:    stream,
		recorder:  recorder,
		startedAt: s.q.Now(),
	}
	s.lastErr = nil
	s.armDeadline(gen)
	s.transition(Recording)
	s.logger.Info().Str("mime", mime).Int("width", w).Int("height", h).
		Dur("duration", s.params.Duration).Msg("recording started")
	return nil
}

// Stop asks for an early finish. Only meaningful while Recording.
func (s *Session) Stop() {
	if s.state != Recording || s.rec == nil {
		s.logger.Debug().Stringer("state", s.state).Msg("stop ignored")
		return
	}
	s.finalize(s.rec.gen, "stop")
}

// armDeadline cancels any armed deadline before arming the next one.
func (s *Session) armDeadline(gen uint64) {
	s.disarm()
	s.deadline = s.q.AfterFunc(s.params.Duration, func() {
		s.deadline = nil
		s.onDeadline(gen)
	})
}

func (s *Session) disarm() {
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
}

// onDeadline lets the frame in flight complete: the recording stops on the
// first frame at or after the deadline, so it is never shorter than the
// configured window.
func (s *Session) onDeadline(gen uint64) {
	if s.state != Recording || s.rec == nil || s.rec.gen != gen {
		return
	}
	s.settle = s.q.RequestFrame(func(time.Duration) {
		s.settle = nil
		s.finalize(gen, "deadline")
	})
}

// finalize is the single entry for both racing triggers. The first caller
// wins; later calls are no-ops, so the recorder is finalized exactly once.
func (s *Session) finalize(gen uint64, trigger string) {
	rec := s.rec
	if s.state != Recording || rec == nil || rec.gen != gen || rec.finalizing {
		return
	}
	rec.finalizing = true
	s.disarm()
	// no more samples; the recorder writes what is queued and then finishes
	s.closeStream(rec)
	s.transition(Processing)
	s.logger.Info().Str("trigger", trigger).Int("chunks", len(rec.chunks)).
		Dur("recorded", s.q.Now()-rec.startedAt).Msg("finalizing recording")
	rec.recorder.Stop()
}

func (s *Session) onChunk(gen uint64, chunk []byte) {
	rec := s.rec
	if rec == nil || rec.gen != gen || len(chunk) == 0 {
		return
	}
	rec.chunks = append(rec.chunks, chunk)
	rec.bytes += len(chunk)
	metrics.CaptureBytes.Add(float64(len(chunk)))
}

func (s *Session) onFinalized(gen uint64, err error) {
	rec := s.rec
	if rec == nil || rec.gen != gen {
		return
	}
	if s.state == Recording {
		// the recorder ended on its own (e.g. ffmpeg exited)
		rec.finalizing = true
		s.disarm()
		s.transition(Processing)
	}
	s.closeStream(rec)
	s.rec = nil

	if err != nil {
		s.lastErr = err
		s.logger.Error().Err(err).Msg("recording failed")
		s.transition(Idle)
		return
	}

	// arrival order is recording order is playback order
	data := bytes.Join(rec.chunks, nil)
	h := s.store.Create(data, rec.mime)
	s.done = &ready{
		handle:   h,
		mime:     rec.mime,
		size:     len(data),
		chunks:   len(rec.chunks),
		filename: config.OutputFilename(video.Extension(rec.mime)),
	}
	s.transition(Ready)
	s.logger.Info().Str("handle", string(h)).Int("bytes", len(data)).Int("chunks", len(rec.chunks)).Msg("artifact ready")
}

// Current returns the live artifact handle while Ready.
func (s *Session) Current() (artifact.Handle, bool) {
	if s.state != Ready || s.done == nil {
		return "", false
	}
	return s.done.handle, true
}

// Consume hands the artifact over for download, revokes its handle and
// returns the session to Idle.
func (s *Session) Consume(h artifact.Handle) (artifact.Artifact, error) {
	if s.state != Ready || s.done == nil || s.done.handle != h {
		if _, err := s.store.Open(h); errors.Is(err, artifact.ErrRevoked) {
			return artifact.Artifact{}, fmt.Errorf("%w: %w", ErrNoArtifact, err)
		}
		return artifact.Artifact{}, ErrNoArtifact
	}
	a, err := s.store.Open(h)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: %w", ErrNoArtifact, err)
	}
	s.releaseArtifact()
	s.transition(Idle)
	return a, nil
}

// Reset returns to Idle from Ready or Recording, dropping whatever is held.
// Processing has to run to completion.
func (s *Session) Reset() {
	switch s.state {
	case Recording:
		s.abortRecording()
		s.transition(Idle)
	case Ready:
		s.releaseArtifact()
		s.transition(Idle)
	}
}

// Close is the teardown guard: it cancels timers, stops the recorder,
// closes the stream, revokes the artifact and refuses further starts.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	switch s.state {
	case Recording, Processing:
		s.abortRecording()
		s.transition(Idle)
	case Ready:
		s.releaseArtifact()
		s.transition(Idle)
	}
	s.disarm()
	s.logger.Debug().Msg("capture session closed")
}

func (s *Session) abortRecording() {
	s.disarm()
	if rec := s.rec; rec != nil {
		rec.recorder.Abort()
		s.closeStream(rec)
		s.rec = nil
	}
}

func (s *Session) closeStream(rec *recording) {
	if rec.streamClosed {
		return
	}
	rec.streamClosed = true
	rec.stream.Close()
	_, dropped := rec.stream.Stats()
	if dropped > 0 {
		metrics.StreamFramesDropped.Add(float64(dropped))
		s.logger.Warn().Int("dropped", dropped).Msg("recorder lagged behind the stream")
	}
}

// releaseArtifact revokes the live handle exactly once.
func (s *Session) releaseArtifact() {
	if s.done == nil {
		return
	}
	h := s.done.handle
	s.done = nil
	if err := s.store.Revoke(h); err != nil {
		metrics.ArtifactRevokeErrors.Inc()
		if !errors.Is(err, artifact.ErrRevoked) {
			s.logger.Warn().Err(err).Str("handle", string(h)).Msg("revoke failed")
		}
	}
}

func (s *Session) transition(to State) {
	from := s.state
	if from == to {
		return
	}
	if !canTransition(from, to) {
		s.logger.Error().Stringer("from", from).Stringer("to", to).Msg("illegal capture transition")
		return
	}
	s.state = to
	metrics.CaptureTransitions.WithLabelValues(from.String(), to.String()).Inc()
	s.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("transition")

	st := s.Status()
	for _, fn := range s.listeners {
		fn(st)
	}
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	st := Status{State: s.state, StateName: s.state.String()}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if rec := s.rec; rec != nil {
		st.MimeType = rec.mime
		st.Bytes = rec.bytes
		st.Chunks = len(rec.chunks)
		st.Elapsed = s.q.Now() - rec.startedAt
	}
	if d := s.done; d != nil {
		st.MimeType = d.mime
		st.Handle = d.handle
		st.Filename = d.filename
		st.Bytes = d.size
		st.Chunks = d.chunks
	}
	return st
}
