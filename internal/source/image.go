package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// ImageSource reads a recording stored as one image file per frame. Frames
// are ordered by file name.
type ImageSource struct {
	paths []string
	fps   float64
	cache *lru.Cache[int, image.Image]
}

func NewImageSource(path string, fps float64, cacheFrames int) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImage(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, apperr.New(apperr.KindDecode, "open image source", fmt.Errorf("no frames in %s", path))
	}

	cache, err := lru.New[int, image.Image](max(cacheFrames, 1))
	if err != nil {
		return nil, err
	}
	return &ImageSource{paths: paths, fps: fps, cache: cache}, nil
}

// FrameCount returns the number of frames in the sequence.
func (s *ImageSource) FrameCount() int {
	return len(s.paths)
}

func (s *ImageSource) FrameAt(ctx context.Context, t timebase.SourceMs) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := min(max(frameIndex(t, s.fps), 0), len(s.paths)-1)
	if img, ok := s.cache.Get(idx); ok {
		return img, nil
	}

	img, err := decodeFile(s.paths[idx])
	if err != nil {
		return nil, apperr.New(apperr.KindDecode, "decode frame", err)
	}
	s.cache.Add(idx, img)
	return img, nil
}

func (s *ImageSource) Close() error {
	s.cache.Purge()
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}
