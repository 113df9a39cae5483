// Package system опрашивает хост: какие энкодеры есть в ffmpeg, какова
// длительность готового файла, сколько у машины CPU и памяти.
package system

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DetectEncoders возвращает видеоэнкодеры, о которых сообщает ffmpeg.
func DetectEncoders(ffmpegPath string) (map[string]bool, error) {
	out, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	return ParseEncoders(out), nil
}

// ParseEncoders достает имена видеоэнкодеров из вывода `ffmpeg -encoders`.
// Строки выглядят так: " V....D libvpx-vp9  libvpx VP9".
func ParseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// ProbeDuration возвращает длительность файла в секундах через ffprobe.
func ProbeDuration(ffprobePath, path string) (float64, error) {
	cmd := exec.Command(ffprobePath, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// FFprobePath угадывает путь к ffprobe по пути к ffmpeg.
func FFprobePath(ffmpegPath string) string {
	if i := strings.LastIndex(ffmpegPath, "ffmpeg"); i >= 0 {
		return ffmpegPath[:i] + "ffprobe" + ffmpegPath[i+len("ffmpeg"):]
	}
	return "ffprobe"
}

// Host - снимок ресурсов машины.
type Host struct {
	LogicalCPUs int
	TotalMemory uint64
	FreeMemory  uint64
}

// HostInfo спрашивает gopsutil о машине; число CPU при ошибке берется
// из рантайма Go.
func HostInfo() Host {
	h := Host{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		h.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.TotalMemory = vm.Total
		h.FreeMemory = vm.Available
	}
	return h
}

// RenderWorkers подбирает размер пула рендера: по воркеру на CPU, но кадров
// в работе не больше, чем помещается в четверть свободной памяти.
func (h Host) RenderWorkers(frameBytes int, requested int) int {
	n := requested
	if n <= 0 || n > h.LogicalCPUs {
		n = h.LogicalCPUs
	}
	if h.FreeMemory > 0 && frameBytes > 0 {
		budget := int(h.FreeMemory / 4 / uint64(frameBytes))
		if budget < n {
			n = budget
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
