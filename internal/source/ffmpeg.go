package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// maxForwardSkip is how many frames a running decoder may read past before
// a seek is cheaper than reading forward.
const maxForwardSkip = 90

// FFmpegSource decodes a video file with an ffmpeg process streaming raw
// RGBA frames. Sequential requests reuse the running process; a backward or
// distant request restarts it at the new position.
type FFmpegSource struct {
	path   string
	fps    float64
	width  int
	height int
	cache  *lru.Cache[int, *image.RGBA]

	mu     sync.Mutex
	stream *frameStream
	last   int // index of the final frame once the end has been reached, else -1
}

type frameStream struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	cancel context.CancelFunc
	next   int
}

// NewFFmpegSource decodes path at fps, scaled to width×height.
func NewFFmpegSource(path string, fps float64, width, height, cacheFrames int) (*FFmpegSource, error) {
	if width <= 0 || height <= 0 {
		return nil, apperr.New(apperr.KindDecode, "open ffmpeg source",
			fmt.Errorf("unknown frame size %dx%d for %s", width, height, path))
	}
	cache, err := lru.New[int, *image.RGBA](max(cacheFrames, 1))
	if err != nil {
		return nil, err
	}
	return &FFmpegSource{path: path, fps: fps, width: width, height: height, cache: cache, last: -1}, nil
}

func (s *FFmpegSource) FrameAt(ctx context.Context, t timebase.SourceMs) (image.Image, error) {
	idx := max(frameIndex(t, s.fps), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last >= 0 && idx > s.last {
		idx = s.last
	}
	if img, ok := s.cache.Get(idx); ok {
		return img, nil
	}

	if s.stream == nil || idx < s.stream.next || idx > s.stream.next+maxForwardSkip {
		if err := s.restart(idx); err != nil {
			return nil, apperr.New(apperr.KindDecode, "seek", err)
		}
	}

	for s.stream.next <= idx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := s.readFrame()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// past the end: hold the final frame, as the event tracks do
			if s.stream.next > 0 {
				s.last = s.stream.next - 1
				if img, ok := s.cache.Get(s.last); ok {
					s.stopStream()
					return img, nil
				}
			}
			s.stopStream()
			return nil, apperr.New(apperr.KindDecode, "read frame", fmt.Errorf("frame %d beyond end of %s", idx, s.path))
		}
		if err != nil {
			s.stopStream()
			return nil, apperr.New(apperr.KindDecode, "read frame", err)
		}
		s.cache.Add(s.stream.next, img)
		s.stream.next++
		if s.stream.next > idx {
			return img, nil
		}
	}
	return nil, apperr.New(apperr.KindDecode, "read frame", fmt.Errorf("frame %d not produced", idx))
}

func (s *FFmpegSource) restart(idx int) error {
	s.stopStream()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg", s.args(idx)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	s.stream = &frameStream{cmd: cmd, out: out, cancel: cancel, next: idx}
	return nil
}

func (s *FFmpegSource) args(idx int) []string {
	return []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%.6f", float64(idx)/s.fps),
		"-i", s.path,
		"-an",
		"-vf", fmt.Sprintf("fps=%g,scale=%d:%d", s.fps, s.width, s.height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func (s *FFmpegSource) readFrame() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	if _, err := io.ReadFull(s.stream.out, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *FFmpegSource) stopStream() {
	if s.stream == nil {
		return
	}
	s.stream.cancel()
	s.stream.out.Close()
	_ = s.stream.cmd.Wait()
	s.stream = nil
}

func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopStream()
	s.cache.Purge()
	return nil
}
