package video

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ivlev/screenreel/internal/apperr"
)

// PNGSequenceEncoder writes one numbered PNG per frame into a directory.
type PNGSequenceEncoder struct {
	Compression png.CompressionLevel
}

type pngSink struct {
	enc    png.Encoder
	tmpDir string
	outDir string
	width  int
	height int
	next   int
	done   bool
}

func (e *PNGSequenceEncoder) Open(ctx context.Context, outputPath string, s Settings) (Sink, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, apperr.New(apperr.KindSettings, "open png sequence", fmt.Errorf("invalid output %dx%d", s.Width, s.Height))
	}
	if _, err := os.Stat(outputPath); err == nil {
		return nil, apperr.New(apperr.KindEncode, "open png sequence", fmt.Errorf("%s already exists", outputPath))
	}
	tmp := partialPath(outputPath)
	if err := os.RemoveAll(tmp); err != nil {
		return nil, apperr.New(apperr.KindEncode, "open png sequence", err)
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, apperr.New(apperr.KindEncode, "open png sequence", err)
	}
	return &pngSink{
		enc:    png.Encoder{CompressionLevel: e.Compression},
		tmpDir: tmp,
		outDir: outputPath,
		width:  s.Width,
		height: s.Height,
	}, nil
}

// FramePath is the file name of frame i inside a sequence directory.
func FramePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i))
}

func (s *pngSink) WriteFrame(ctx context.Context, img *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img.Rect.Dx() != s.width || img.Rect.Dy() != s.height {
		return apperr.New(apperr.KindEncode, "write frame",
			fmt.Errorf("frame is %dx%d, encoder expects %dx%d", img.Rect.Dx(), img.Rect.Dy(), s.width, s.height))
	}

	f, err := os.Create(FramePath(s.tmpDir, s.next))
	if err != nil {
		return apperr.AtFrame(apperr.KindEncode, "write frame", s.next, err)
	}
	w := bufio.NewWriter(f)
	if err := s.enc.Encode(w, img); err != nil {
		f.Close()
		return apperr.AtFrame(apperr.KindEncode, "write frame", s.next, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return apperr.AtFrame(apperr.KindEncode, "write frame", s.next, err)
	}
	if err := f.Close(); err != nil {
		return apperr.AtFrame(apperr.KindEncode, "write frame", s.next, err)
	}
	s.next++
	return nil
}

func (s *pngSink) Finalize(ctx context.Context) (string, error) {
	if s.done {
		return "", apperr.New(apperr.KindEncode, "finalize", fmt.Errorf("sink already closed"))
	}
	s.done = true
	if err := ctx.Err(); err != nil {
		os.RemoveAll(s.tmpDir)
		return "", err
	}
	if err := os.Rename(s.tmpDir, s.outDir); err != nil {
		os.RemoveAll(s.tmpDir)
		return "", apperr.New(apperr.KindEncode, "finalize", err)
	}
	return s.outDir, nil
}

func (s *pngSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return os.RemoveAll(s.tmpDir)
}
