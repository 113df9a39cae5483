package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/surface"
	"github.com/ivlev/nightwalk/internal/system"
)

// chunkSize - размер чтения из stdout ffmpeg, то есть максимальный чанк.
const chunkSize = 64 << 10

var errAlreadyStarted = errors.New("recorder already started")

// FFmpegFactory пишет видео через бинарник ffmpeg.
type FFmpegFactory struct {
	Path string
	// Encoders подменяет детект; nil - один раз спросить ffmpeg.
	Encoders map[string]bool

	detect func() map[string]bool
	logger zerolog.Logger
}

func NewFFmpegFactory(path string) *FFmpegFactory {
	if path == "" {
		path = "ffmpeg"
	}
	f := &FFmpegFactory{Path: path, logger: log.WithComponent("recorder")}
	f.detect = sync.OnceValue(func() map[string]bool {
		enc, err := system.DetectEncoders(f.Path)
		if err != nil {
			f.logger.Warn().Err(err).Str("ffmpeg", f.Path).Msg("encoder detection failed")
			return map[string]bool{}
		}
		return enc
	})
	return f
}

func (f *FFmpegFactory) encoders() map[string]bool {
	if f.Encoders != nil {
		return f.Encoders
	}
	return f.detect()
}

// encoderFor выбирает энкодер ffmpeg для mimeType.
func (f *FFmpegFactory) encoderFor(mimeType string) (string, bool) {
	available := f.encoders()
	for _, enc := range codecs[normalizeMime(mimeType)] {
		if available[enc] {
			return enc, true
		}
	}
	return "", false
}

func (f *FFmpegFactory) IsFormatSupported(mimeType string) bool {
	_, ok := f.encoderFor(mimeType)
	return ok
}

func (f *FFmpegFactory) New(src FrameSource, opts Options) (Recorder, error) {
	enc, ok := f.encoderFor(opts.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.MimeType)
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid recording geometry %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ffmpegRecorder{
		path:   f.Path,
		args:   buildArgs(enc, opts),
		src:    src,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
		logger: f.logger.With().Str("encoder", enc).Logger(),
	}, nil
}

// buildArgs: сырой RGBA из stdin, WebM в stdout.
func buildArgs(encoder string, opts Options) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-c:v", encoder,
		"-pix_fmt", "yuv420p",
	}
	if opts.BitRate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.BitRate/1000))
	}
	// realtime-настройки, чтобы libvpx успевал за 60 fps
	switch encoder {
	case "libvpx-vp9":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	case "libvpx":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8")
	}
	args = append(args, "-f", "webm", "pipe:1")
	return args
}

type ffmpegRecorder struct {
	path string
	args []string
	src  FrameSource
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	aborted  atomic.Bool

	frames  int
	skipped int
	logger  zerolog.Logger
}

func (r *ffmpegRecorder) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	cmd := exec.CommandContext(r.ctx, r.path, r.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		r.cancel()
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.cancel()
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		r.cancel()
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	r.logger.Debug().Strs("args", r.args).Msg("ffmpeg started")

	go r.run(cmd, stdin, stdout, stderr)
	return nil
}

func (r *ffmpegRecorder) run(cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, stderr *bytes.Buffer) {
	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		return r.pump(stdin)
	})
	g.Go(func() error {
		return r.drain(stdout)
	})
	ioErr := g.Wait()
	waitErr := cmd.Wait()
	r.cancel()

	if r.aborted.Load() {
		r.logger.Debug().Msg("ffmpeg aborted")
		return
	}

	err := ioErr
	if waitErr != nil {
		err = fmt.Errorf("ffmpeg wait error: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	r.logger.Debug().Int("frames", r.frames).Int("skipped", r.skipped).Err(err).Msg("ffmpeg finished")
	if r.opts.OnFinalized != nil {
		r.opts.OnFinalized(err)
	}
}

// pump пишет кадры, пока поток не закрыт или не было Abort. После Stop
// дописывает все уже стоящие в очереди кадры, ничего снятого до Stop не теряется.
func (r *ffmpegRecorder) pump(w io.Writer) error {
	frames := r.src.Frames()
	stop := r.stop
	for {
		if stop == nil {
			// остановка: забираем очередь, новых кадров не ждем
			select {
			case <-r.ctx.Done():
				return nil
			case frame, ok := <-frames:
				if !ok {
					return nil
				}
				if err := r.write(w, frame); err != nil {
					return err
				}
				continue
			default:
				return nil
			}
		}
		select {
		case <-stop:
			stop = nil
		case <-r.ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := r.write(w, frame); err != nil {
				return err
			}
		}
	}
}

func (r *ffmpegRecorder) write(w io.Writer, frame *image.RGBA) error {
	defer surface.PutFrame(frame)
	if frame.Rect.Dx() != r.opts.Width || frame.Rect.Dy() != r.opts.Height {
		// у rawvideo фиксированный размер кадра; кадры после ресайза пропускаем
		r.skipped++
		return nil
	}
	if _, err := w.Write(frame.Pix); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	r.frames++
	return nil
}

func (r *ffmpegRecorder) drain(rd io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 && r.opts.OnChunk != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.opts.OnChunk(chunk)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if r.aborted.Load() {
				return nil
			}
			return fmt.Errorf("read encoded error: %w", err)
		}
	}
}

// Stop закрывает вход ffmpeg, когда очередь дописана; ffmpeg сбрасывает
// буферы, после чего приходит OnFinalized.
func (r *ffmpegRecorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *ffmpegRecorder) Abort() {
	r.aborted.Store(true)
	r.Stop()
	r.cancel()
}
