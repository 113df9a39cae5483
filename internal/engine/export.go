package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/nightwalk/internal/capture"
	"github.com/ivlev/nightwalk/internal/config"
	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/metrics"
	"github.com/ivlev/nightwalk/internal/renderer"
	"github.com/ivlev/nightwalk/internal/scene"
	"github.com/ivlev/nightwalk/internal/surface"
	"github.com/ivlev/nightwalk/internal/system"
	"github.com/ivlev/nightwalk/internal/video"
)

var errRecorderExited = errors.New("recorder exited before the last frame")

// ExportReport - итог одного офлайн-экспорта.
type ExportReport struct {
	Output   string
	MimeType string
	Frames   int
	Bytes    int64
	Workers  int
	Elapsed  time.Duration
	// Probed - длительность по ffprobe; ноль, если ffprobe не найден.
	Probed float64
}

// frameFeed превращает канал в video.FrameSource.
type frameFeed chan *image.RGBA

func (f frameFeed) Frames() <-chan *image.RGBA { return f }

type renderJob struct {
	index int
	out   chan *image.RGBA
}

// Export рендерит окно записи офлайн (кадр i в момент t = i/fps) и кодирует
// его в output. Кадры рисуются параллельно, но в рекордер уходят по порядку.
func Export(ctx context.Context, cfg config.Config, recorders video.Factory, output string) (*ExportReport, error) {
	logger := log.WithComponent("export")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	mime, ok := video.PickFormat(recorders, config.MimePreferences)
	if !ok {
		return nil, capture.ErrUnsupportedCapability
	}
	if output == "" {
		output = config.OutputFilename(video.Extension(mime))
	}

	fps := config.CaptureFPS
	total := int(config.CaptureDuration.Seconds() * float64(fps))
	frameBytes := cfg.Width * cfg.Height * 4
	workers := system.HostInfo().RenderWorkers(frameBytes, cfg.Workers)
	if workers > total {
		workers = total
	}

	f, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	fail := func(err error) (*ExportReport, error) {
		os.Remove(output)
		return nil, err
	}

	var (
		mu       sync.Mutex
		written  int64
		writeErr error
		recErr   error
	)
	finished := make(chan struct{})
	feed := make(frameFeed, workers)

	rec, err := recorders.New(feed, video.Options{
		MimeType: mime,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      fps,
		BitRate:  config.VideoBitRate,
		OnChunk: func(chunk []byte) {
			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				return
			}
			n, err := f.Write(chunk)
			written += int64(n)
			writeErr = err
		},
		OnFinalized: func(err error) {
			recErr = err
			close(finished)
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create recorder: %w", err))
	}
	if err := rec.Start(); err != nil {
		return fail(fmt.Errorf("start recorder: %w", err))
	}

	logger.Info().
		Str("output", output).
		Str("mime", mime).
		Int("frames", total).
		Int("workers", workers).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("export started")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan renderJob)
	// slots хранит результаты в порядке постановки и ограничивает число кадров в работе
	slots := make(chan chan *image.RGBA, workers*2)

	g.Go(func() error {
		defer close(jobs)
		defer close(slots)
		for i := 0; i < total; i++ {
			out := make(chan *image.RGBA, 1)
			select {
			case slots <- out:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- renderJob{index: i, out: out}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for job := range jobs {
				job.out <- renderFrame(cfg.Width, cfg.Height, float64(job.index)/float64(fps))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(feed)
		n := 0
		for out := range slots {
			var frame *image.RGBA
			select {
			case frame = <-out:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case feed <- frame:
			case <-finished:
				surface.PutFrame(frame)
				return errRecorderExited
			case <-gctx.Done():
				surface.PutFrame(frame)
				return gctx.Err()
			}
			n++
			if n%fps == 0 {
				logger.Debug().Int("frame", n).Int("total", total).Msg("encoded")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, errRecorderExited) {
			<-finished
			if recErr != nil {
				return fail(recErr)
			}
		}
		rec.Abort()
		return fail(fmt.Errorf("render frames: %w", err))
	}

	select {
	case <-finished:
	case <-ctx.Done():
		rec.Abort()
		return fail(ctx.Err())
	}
	if recErr != nil {
		return fail(recErr)
	}
	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		return fail(fmt.Errorf("write output: %w", writeErr))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync output: %w", err))
	}

	report := &ExportReport{
		Output:   output,
		MimeType: mime,
		Frames:   total,
		Bytes:    written,
		Workers:  workers,
		Elapsed:  time.Since(startTime),
	}
	if d, err := system.ProbeDuration(system.FFprobePath(cfg.FFmpegPath), output); err == nil {
		report.Probed = d
	} else {
		logger.Debug().Err(err).Msg("duration probe skipped")
	}
	metrics.ExportDuration.Observe(report.Elapsed.Seconds())

	logger.Info().
		Str("output", output).
		Int64("bytes", written).
		Dur("elapsed", report.Elapsed).
		Float64("effective_fps", float64(total)/report.Elapsed.Seconds()).
		Float64("probed_seconds", report.Probed).
		Msg("export finished")
	return report, nil
}

// renderFrame рисует сцену в момент t в кадр из пула.
func renderFrame(w, h int, t float64) *image.RGBA {
	img := surface.GetFrame(w, h)
	clear(img.Pix)
	scene.Render(renderer.NewRaster(img), t, float64(w), float64(h))
	return img
}
