// Package video writes composed frames to an output file. Output is built
// under a temporary name and only appears at the requested path once
// Finalize succeeds; Abort leaves nothing behind.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ivlev/screenreel/internal/apperr"
)

// Settings describe the output stream.
type Settings struct {
	Width   int
	Height  int
	FPS     int
	Format  string // mp4, mov, webm or png
	Quality int    // encoder-specific: crf for x264/vp9, cq for nvenc, bitrate/100k for videotoolbox
	Encoder string // ffmpeg encoder name
}

// Sink accepts frames in order.
type Sink interface {
	WriteFrame(ctx context.Context, img *image.RGBA) error
	// Finalize flushes the encoder and moves the output into place,
	// returning its path.
	Finalize(ctx context.Context) (string, error)
	// Abort stops encoding and removes partial output. It is safe to call
	// after Finalize and more than once.
	Abort() error
}

// VideoEncoder opens sinks.
type VideoEncoder interface {
	Open(ctx context.Context, outputPath string, s Settings) (Sink, error)
}

// ForFormat returns the encoder that handles a format.
func ForFormat(format string) VideoEncoder {
	if format == "png" {
		return &PNGSequenceEncoder{}
	}
	return &FFmpegEncoder{}
}

func partialPath(outputPath string) string {
	dir, name := filepath.Split(outputPath)
	ext := filepath.Ext(name)
	return filepath.Join(dir, "."+name[:len(name)-len(ext)]+".partial"+ext)
}

type FFmpegEncoder struct{}

type ffmpegSink struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   bytes.Buffer
	cancel   context.CancelFunc
	tmpPath  string
	outPath  string
	settings Settings
	done     bool
}

func (e *FFmpegEncoder) Open(ctx context.Context, outputPath string, s Settings) (Sink, error) {
	if s.Width <= 0 || s.Height <= 0 || s.FPS <= 0 {
		return nil, apperr.New(apperr.KindSettings, "open encoder", fmt.Errorf("invalid output %dx%d@%d", s.Width, s.Height, s.FPS))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, apperr.New(apperr.KindEncode, "open encoder", err)
	}

	sink := &ffmpegSink{tmpPath: partialPath(outputPath), outPath: outputPath, settings: s}
	// the process outlives ctx's caller frames, so it gets its own cancel
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sink.cancel = cancel
	sink.cmd = exec.CommandContext(procCtx, "ffmpeg", e.buildFFmpegArgs(s, sink.tmpPath)...)
	sink.cmd.Stderr = &sink.stderr

	stdin, err := sink.cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, apperr.New(apperr.KindEncode, "open encoder", fmt.Errorf("stdin pipe error: %w", err))
	}
	sink.stdin = stdin

	if err := sink.cmd.Start(); err != nil {
		cancel()
		return nil, apperr.New(apperr.KindEncode, "open encoder", fmt.Errorf("ffmpeg start error: %w", err))
	}
	return sink, nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(s Settings, outPath string) []string {
	args := []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", fmt.Sprintf("%d", s.FPS),
		"-i", "-",
		"-an",
		"-c:v", s.Encoder,
	}

	// Quality depends on the encoder
	switch s.Encoder {
	case "h264_videotoolbox":
		bitrate := s.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate), "-pix_fmt", "yuv420p")
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", s.Quality), "-pix_fmt", "yuv420p")
	case "libvpx-vp9":
		args = append(args, "-crf", fmt.Sprintf("%d", s.Quality), "-b:v", "0", "-row-mt", "1", "-pix_fmt", "yuv420p")
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", s.Quality), "-preset", "medium", "-pix_fmt", "yuv420p")
	}

	if s.Format == "mp4" || s.Format == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outPath)
	return args
}

func (s *ffmpegSink) WriteFrame(ctx context.Context, img *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img.Rect.Dx() != s.settings.Width || img.Rect.Dy() != s.settings.Height {
		return apperr.New(apperr.KindEncode, "write frame",
			fmt.Errorf("frame is %dx%d, encoder expects %dx%d", img.Rect.Dx(), img.Rect.Dy(), s.settings.Width, s.settings.Height))
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return apperr.New(apperr.KindEncode, "write frame", fmt.Errorf("write raw error: %w: %s", err, s.stderr.String()))
	}
	return nil
}

func (s *ffmpegSink) Finalize(ctx context.Context) (string, error) {
	if s.done {
		return "", apperr.New(apperr.KindEncode, "finalize", fmt.Errorf("sink already closed"))
	}
	s.done = true
	defer s.cancel()

	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		os.Remove(s.tmpPath)
		return "", apperr.New(apperr.KindEncode, "finalize", fmt.Errorf("ffmpeg wait error: %w, output: %s", err, s.stderr.String()))
	}
	if err := ctx.Err(); err != nil {
		os.Remove(s.tmpPath)
		return "", err
	}
	if err := os.Rename(s.tmpPath, s.outPath); err != nil {
		os.Remove(s.tmpPath)
		return "", apperr.New(apperr.KindEncode, "finalize", err)
	}
	return s.outPath, nil
}

func (s *ffmpegSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cancel()
	s.stdin.Close()
	_ = s.cmd.Wait()
	if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
