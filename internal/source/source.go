// Package source decodes recording frames and background images.
package source

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

// FrameSource returns the decoded frame shown at a source time. Returned
// images must not be modified by the caller.
type FrameSource interface {
	FrameAt(ctx context.Context, t timebase.SourceMs) (image.Image, error)
	Close() error
}

// Options controls how recordings are decoded.
type Options struct {
	// MaxHeight caps decoded frame height; larger captures are scaled down
	// keeping aspect. Zero decodes at capture size.
	MaxHeight   int
	CacheFrames int
	BaseDir     string // resolves relative video sources
}

// DefaultOptions decodes at up to 1080p with a small frame cache.
func DefaultOptions() Options {
	return Options{MaxHeight: 1080, CacheFrames: 16}
}

// Open picks a decoder for the recording: a directory of images is read as
// an image sequence, anything else goes through ffmpeg.
func Open(rec project.Recording, opts Options) (FrameSource, error) {
	path := rec.VideoSource
	if !filepath.IsAbs(path) && opts.BaseDir != "" {
		path = filepath.Join(opts.BaseDir, path)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, apperr.New(apperr.KindDecode, "open source", err)
	}
	fps := rec.FPS
	if fps <= 0 {
		fps = 30
	}
	if fi.IsDir() {
		return NewImageSource(path, fps, opts.CacheFrames)
	}

	w, h := decodeSize(rec.CaptureWidth, rec.CaptureHeight, opts.MaxHeight)
	return NewFFmpegSource(path, fps, w, h, opts.CacheFrames)
}

// Opener binds opts to Open for use with NewLibrary.
func Opener(opts Options) func(project.Recording) (FrameSource, error) {
	return func(rec project.Recording) (FrameSource, error) {
		return Open(rec, opts)
	}
}

func decodeSize(w, h, maxHeight int) (int, int) {
	if maxHeight <= 0 || h <= maxHeight || w <= 0 || h <= 0 {
		return w, h
	}
	nw := w * maxHeight / h
	nw -= nw % 2
	return nw, maxHeight
}

// frameIndex maps a source time onto a recording's frame grid, rounding half
// away from zero like timebase.FrameIndex. Recording rates may be fractional.
func frameIndex(t timebase.SourceMs, fps float64) int {
	return int(math.Round(float64(t) * fps / 1000))
}

// Library opens each recording's source once and shares it between the
// preview and export drivers.
type Library struct {
	open    func(project.Recording) (FrameSource, error)
	mu      sync.Mutex
	sources map[string]FrameSource
}

// NewLibrary uses open to create sources on first use.
func NewLibrary(open func(project.Recording) (FrameSource, error)) *Library {
	return &Library{open: open, sources: make(map[string]FrameSource)}
}

// Source returns the frame source of rec, opening it if needed.
func (l *Library) Source(rec project.Recording) (FrameSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sources[rec.ID]; ok {
		return s, nil
	}
	s, err := l.open(rec)
	if err != nil {
		return nil, err
	}
	l.sources[rec.ID] = s
	return s, nil
}

// Put registers an already opened source for a recording id.
func (l *Library) Put(id string, s FrameSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[id] = s
}

// Close closes every opened source.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for id, s := range l.sources {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("close source %s: %w", id, err)
		}
		delete(l.sources, id)
	}
	return first
}

// MemorySource serves frames held in memory at a fixed rate. Queries
// outside the frames clamp to the first or last one.
type MemorySource struct {
	FPS    float64
	Frames []image.Image
}

func (m *MemorySource) FrameAt(ctx context.Context, t timebase.SourceMs) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Frames) == 0 {
		return nil, apperr.New(apperr.KindDecode, "memory frame", fmt.Errorf("no frames"))
	}
	idx := min(max(frameIndex(t, m.FPS), 0), len(m.Frames)-1)
	return m.Frames[idx], nil
}

func (m *MemorySource) Close() error { return nil }
