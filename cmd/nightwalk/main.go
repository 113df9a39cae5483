package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivlev/nightwalk/internal/config"
	"github.com/ivlev/nightwalk/internal/engine"
	"github.com/ivlev/nightwalk/internal/log"
	"github.com/ivlev/nightwalk/internal/server"
	"github.com/ivlev/nightwalk/internal/system"
	"github.com/ivlev/nightwalk/internal/video"
)

// version задается через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	mode := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "export") {
		mode, args = args[0], args[1:]
	}

	cfg, writeTo, err := parseFlags(mode, args)
	if err != nil {
		return err
	}
	cfg.BuildVersion = version

	log.Configure(log.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	logger := log.WithComponent("main")

	if writeTo != "" {
		if err := config.Write(cfg, writeTo); err != nil {
			return err
		}
		logger.Info().Str("path", writeTo).Msg("config written")
		return nil
	}

	host := system.HostInfo()
	logger.Info().
		Str("version", cfg.BuildVersion).
		Str("mode", mode).
		Int("cpus", host.LogicalCPUs).
		Uint64("mem_free_mb", host.FreeMemory>>20).
		Msg("nightwalk starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorders := video.NewFFmpegFactory(cfg.FFmpegPath)

	switch mode {
	case "export":
		report, err := engine.Export(ctx, cfg, recorders, cfg.OutputVideo)
		if err != nil {
			return err
		}
		fmt.Printf("[+++] Готово: %s (%d кадров, %.1f КБ, %.2fs)\n",
			report.Output, report.Frames, float64(report.Bytes)/1024, report.Elapsed.Seconds())
		return nil
	default:
		app, err := engine.NewApp(cfg, recorders)
		if err != nil {
			return err
		}
		srv := server.New(server.Deps{
			Exec:    app.Executor(),
			Session: app.Session(),
			Surface: app.Surface(),
			Clock:   app.Scheduler(),
			Notice:  app.Notice,
		})
		return app.Serve(ctx, srv.Handler())
	}
}

// parseFlags накладывает явно заданные флаги поверх конфиг-файла
// (или значений по умолчанию).
func parseFlags(mode string, args []string) (config.Config, string, error) {
	def := config.Default()
	fs := flag.NewFlagSet("nightwalk "+mode, flag.ContinueOnError)

	configPath := fs.String("config", "", "Путь к YAML-конфигу")
	writeConfig := fs.String("write-config", "", "Записать итоговый конфиг в файл и выйти")
	listen := fs.String("listen", def.Listen, "Адрес HTTP-сервера")
	width := fs.Int("width", def.Width, "Ширина")
	height := fs.Int("height", def.Height, "Высота")
	preset := fs.String("preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	refresh := fs.Int("refresh", def.RefreshRate, "Частота отрисовки (Гц)")
	ffmpeg := fs.String("ffmpeg", def.FFmpegPath, "Путь к ffmpeg")
	workers := fs.Int("workers", def.Workers, "Потоки рендера для export")
	output := fs.String("o", "", "Путь к видео для export (по умолчанию nightwalk.webm)")
	logLevel := fs.String("log-level", def.LogLevel, "Уровень логов: debug, info, warn, error")
	logConsole := fs.Bool("log-console", false, "Человекочитаемые логи вместо JSON")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, "", err
	}

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, "", fmt.Errorf("ошибка чтения конфига: %w", err)
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "refresh":
			cfg.RefreshRate = *refresh
		case "ffmpeg":
			cfg.FFmpegPath = *ffmpeg
		case "workers":
			cfg.Workers = *workers
		case "o":
			cfg.OutputVideo = *output
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-console":
			cfg.LogConsole = *logConsole
		}
	})

	switch *preset {
	case "":
	case "16:9":
		cfg.Width, cfg.Height = 1280, 720
	case "9:16":
		cfg.Width, cfg.Height = 720, 1280
	case "4:5":
		cfg.Width, cfg.Height = 1080, 1350
	default:
		return config.Config{}, "", fmt.Errorf("неизвестный пресет %q", *preset)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	if fs.NArg() > 0 {
		return config.Config{}, "", errors.New("лишние аргументы: " + fmt.Sprint(fs.Args()))
	}
	return cfg, *writeConfig, nil
}
