package system

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ivlev/screenreel/internal/logging"
)

func InitResourceLimits() {
	log := logging.WithComponent("system")

	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("could not read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("could not raise open file limit")
	} else {
		log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
	}
}

// FindLatest returns the most recently modified file in dir whose extension
// is one of exts.
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

// FindLatestProject returns the newest project document in dir.
func FindLatestProject(dir string) (string, error) {
	return FindLatest(dir, ".yaml", ".yml", ".json")
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// VideoInfo is what ffprobe reports about a recording's video stream.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64 // seconds
}

// ProbeVideo reads the first video stream's geometry, rate and duration.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate:format=duration",
		"-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseProbe(out)
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (VideoInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream")
	}
	s := p.Streams[0]
	info := VideoInfo{Width: s.Width, Height: s.Height}
	info.FPS = parseRate(s.AvgFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRate(s.RFrameRate)
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseRate reads "30000/1001" or "30" style rates. Unparseable is 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// AvailableMemory returns the memory the OS reports as available, in bytes.
func AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// DecodeAhead caps a requested pipeline depth so that the frames in flight
// (each frameBytes large, three per slot across decode, compose and encode)
// use at most a quarter of available memory. It never returns less than 1.
func DecodeAhead(requested int, frameBytes int) int {
	if requested < 1 {
		requested = 1
	}
	avail, err := AvailableMemory()
	if err != nil || frameBytes <= 0 {
		return requested
	}
	return capDepth(requested, frameBytes, avail)
}

func capDepth(requested, frameBytes int, avail uint64) int {
	perSlot := uint64(frameBytes) * 3
	allowed := int(avail / 4 / perSlot)
	return max(1, min(requested, allowed))
}

// Encoder describes an ffmpeg video encoder and the container it targets.
type Encoder struct {
	Name      string
	Extension string
}

// EncoderFor picks an encoder for an export format. For h264 formats the
// preferred name is used when given, else the best available one.
func EncoderFor(format, preferred string) (Encoder, error) {
	switch format {
	case "mp4", "mov", "":
		ext := ".mp4"
		if format == "mov" {
			ext = ".mov"
		}
		name := preferred
		if name == "" || name == "auto" {
			name, _ = GetBestH264Encoder()
		}
		return Encoder{Name: name, Extension: ext}, nil
	case "webm":
		return Encoder{Name: "libvpx-vp9", Extension: ".webm"}, nil
	case "png":
		return Encoder{Name: "png", Extension: ""}, nil
	}
	return Encoder{}, fmt.Errorf("unsupported export format %q", format)
}

func GetBestH264Encoder() (string, string) {
	// Priority: VideoToolbox on macOS, then NVENC, then software libx264.
	encoders := []struct {
		name string
		args string
	}{
		{"h264_videotoolbox", ""},
		{"h264_nvenc", ""},
	}

	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264", ""
	}
	for _, enc := range encoders {
		if strings.Contains(string(out), enc.name) {
			return enc.name, enc.args
		}
	}

	return "libx264", ""
}
