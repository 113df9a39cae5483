// Package engine собирает живую анимацию (цикл, поверхность, планировщик,
// сессия записи) и офлайн-экспорт.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/nightwalk/internal/artifact"
	"github.com/ivlev/nightwalk/internal/capture"
	"github.com/ivlev/nightwalk/internal/config"
	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/loop"
	"github.com/ivlev/nightwalk/internal/metrics"
	"github.com/ivlev/nightwalk/internal/scene"
	"github.com/ivlev/nightwalk/internal/scheduler"
	"github.com/ivlev/nightwalk/internal/surface"
	"github.com/ivlev/nightwalk/internal/video"
)

const shutdownTimeout = 5 * time.Second

// App - одна запущенная анимация с управлением записью.
type App struct {
	cfg    config.Config
	loop   *loop.Loop
	surf   *surface.Surface
	sched  *scheduler.Scheduler
	sess   *capture.Session
	store  *artifact.MemoryStore
	logger zerolog.Logger

	// notice - последнее сообщение для пользователя. Только из цикла.
	notice string

	closeOnce sync.Once
}

// NewApp собирает граф и запускает отрисовку.
func NewApp(cfg config.Config, recorders video.Factory) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := loop.New(cfg.FrameInterval())
	a := &App{
		cfg:    cfg,
		loop:   l,
		surf:   surface.New(l, cfg.Width, cfg.Height),
		store:  newArtifactStore(),
		logger: log.WithComponent("engine"),
	}
	a.sched = scheduler.New(l, a.surf, scene.Render)
	a.sched.OnFrame = func(float64) { metrics.FramesPainted.Inc() }
	a.sess = capture.NewSession(l, a.surf, recorders, a.store,
		capture.WithNotifier(a.onNotice),
		capture.WithListener(a.onCapture),
	)

	if err := l.Do(a.sched.Start); err != nil {
		l.Close()
		return nil, fmt.Errorf("start render loop: %w", err)
	}
	a.logger.Info().
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("refresh", cfg.RefreshRate).
		Msg("animation started")
	return a, nil
}

// newArtifactStore держит метрику живых артефактов в согласии с хэндлами.
func newArtifactStore() *artifact.MemoryStore {
	st := artifact.NewMemoryStore()
	st.OnCreate = func(_ artifact.Handle, size int) {
		metrics.ArtifactsLive.Inc()
		metrics.ArtifactSize.Observe(float64(size))
	}
	st.OnRevoke = func(artifact.Handle, int) {
		metrics.ArtifactsLive.Dec()
	}
	return st
}

func (a *App) onNotice(err error) {
	a.notice = err.Error()
	a.logger.Warn().Msg(a.notice)
}

func (a *App) onCapture(st capture.Status) {
	if st.State == capture.Recording {
		a.notice = ""
	}
}

// Executor выполняет функции в цикле анимации.
func (a *App) Executor() loop.Executor { return a.loop }

func (a *App) Session() *capture.Session { return a.sess }

func (a *App) Surface() *surface.Surface { return a.surf }

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Notice возвращает последнее сообщение для пользователя. Только из цикла.
func (a *App) Notice() string { return a.notice }

// Serve обслуживает handler по адресу из конфига до отмены ctx, затем
// гасит сервер и останавливает анимацию.
func (a *App) Serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.Listen).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		<-errCh
	case err = <-errCh:
	}
	a.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close останавливает отрисовку, закрывает сессию записи и цикл.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if err := a.loop.Do(func() {
			a.sched.Stop()
			a.sess.Close()
			a.surf.Close()
		}); err != nil {
			a.logger.Warn().Err(err).Msg("teardown skipped")
		}
		a.loop.Close()
		a.logger.Info().Uint64("frames", a.sched.Frames()).Msg("animation stopped")
	})
}
