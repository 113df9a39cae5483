// Package server exposes the capture controls over HTTP. Handlers are thin:
// every call into the animation goes through the loop executor.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/nightwalk/internal/artifact"
	"github.com/ivlev/nightwalk/internal/capture"
	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/surface"
	"github.com/ivlev/nightwalk/internal/video"
)

const (
	qrSize          = 256
	startLimitCount = 10
	startLimitSpan  = time.Minute
	maxThumbWidth   = 4096
)

// Clock reports the animation's elapsed seconds; *scheduler.Scheduler.
type Clock interface {
	Elapsed() float64
}

// Deps is what the handlers need. Session, Surface and Clock are only
// touched inside Exec.Do.
type Deps struct {
	Exec    loop.Executor
	Session *capture.Session
	Surface *surface.Surface
	Clock   Clock
	// Notice returns the last user-visible message; optional.
	Notice func() string
}

type Server struct {
	deps   Deps
	frames singleflight.Group
	logger zerolog.Logger
}

func New(deps Deps) *Server {
	return &Server{deps: deps, logger: log.WithComponent("http")}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(observe(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/frame.png", s.handleFrame)

	r.Route("/api/capture", func(r chi.Router) {
		r.With(startLimit(startLimitCount, startLimitSpan)).Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/download", s.handleDownload)
		r.Get("/qr", s.handleQR)
	})
	return r
}

type statusResponse struct {
	capture.Status
	Notice string `json:"notice,omitempty"`
}

// status must run on the loop.
func (s *Server) status() statusResponse {
	resp := statusResponse{Status: s.deps.Session.Status()}
	if s.deps.Notice != nil {
		resp.Notice = s.deps.Notice()
	}
	return resp
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var (
		startErr error
		resp     statusResponse
	)
	if !s.do(w, func() {
		startErr = s.deps.Session.Start()
		resp = s.status()
	}) {
		return
	}
	switch {
	case startErr == nil:
		writeJSON(w, http.StatusAccepted, resp)
	case errors.Is(startErr, capture.ErrUnsupportedCapability):
		writeError(w, http.StatusUnprocessableEntity, startErr.Error())
	case errors.Is(startErr, capture.ErrStreamUnavailable), errors.Is(startErr, capture.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, startErr.Error())
	default:
		s.logger.Error().Err(startErr).Msg("capture start failed")
		writeError(w, http.StatusInternalServerError, "capture could not start")
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if !s.do(w, func() {
		s.deps.Session.Stop()
		resp = s.status()
	}) {
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if !s.do(w, func() { resp = s.status() }) {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload consumes the artifact: the handle is revoked and the
// session is back to Idle once the response is written.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	h := artifact.Handle(r.URL.Query().Get("handle"))
	var (
		a        artifact.Artifact
		filename string
		err      error
	)
	if !s.do(w, func() {
		if h == "" {
			h, _ = s.deps.Session.Current()
		}
		filename = s.deps.Session.Status().Filename
		a, err = s.deps.Session.Consume(h)
	}) {
		return
	}
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, artifact.ErrRevoked) {
			status = http.StatusGone
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", video.ContainerType(a.MimeType))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", a.Size()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		s.logger.Warn().Err(err).Str("handle", string(h)).Msg("download interrupted")
		return
	}
	s.logger.Info().Str("handle", string(h)).Int("bytes", a.Size()).Msg("artifact downloaded")
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	var (
		h  artifact.Handle
		ok bool
	)
	if !s.do(w, func() { h, ok = s.deps.Session.Current() }) {
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, capture.ErrNoArtifact.Error())
		return
	}
	link := downloadURL(r, h)
	img, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("qr encode failed")
		writeError(w, http.StatusInternalServerError, "qr encode failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

// downloadURL is the absolute link a phone can open.
func downloadURL(r *http.Request, h artifact.Handle) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     "/api/capture/download",
		RawQuery: url.Values{"handle": {string(h)}}.Encode(),
	}
	return u.String()
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hud := q.Get("hud") != "0"
	width := 0
	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxThumbWidth {
			writeError(w, http.StatusBadRequest, "width must be between 1 and "+strconv.Itoa(maxThumbWidth))
			return
		}
		width = n
	}

	// concurrent viewers share one snapshot and encode
	v, err, _ := s.frames.Do(fmt.Sprintf("%t/%d", hud, width), func() (any, error) {
		return s.encodeFrame(hud, width)
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(v.([]byte))
}

func (s *Server) encodeFrame(hud bool, width int) ([]byte, error) {
	var (
		img     *image.RGBA
		st      capture.Status
		elapsed float64
	)
	if err := s.deps.Exec.Do(func() {
		img = s.deps.Surface.Snapshot()
		st = s.deps.Session.Status()
		elapsed = s.deps.Clock.Elapsed()
	}); err != nil {
		return nil, err
	}
	if img.Rect.Empty() {
		return nil, surface.ErrNotReady
	}
	if width > 0 && width != img.Rect.Dx() {
		img = scaleTo(img, width)
	}
	if hud {
		drawHUD(img, elapsed, st)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleTo resizes src to width, keeping the aspect ratio.
func scaleTo(src *image.RGBA, width int) *image.RGBA {
	height := src.Rect.Dy() * width / src.Rect.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// do runs fn on the loop; it writes 503 and returns false when the loop is
// gone.
func (s *Server) do(w http.ResponseWriter, fn func()) bool {
	if err := s.deps.Exec.Do(fn); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
