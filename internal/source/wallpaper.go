package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/screenreel/internal/project"
)

// DocumentDPI is the resolution at which document wallpapers are rasterized.
const DocumentDPI = 150

// LoadImage decodes a background image. Documents (PDF, SVG, EPUB, XPS) are
// rasterized from their first page; everything else goes through the
// registered image decoders.
func LoadImage(path string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".svg", ".epub", ".xps", ".cbz":
		return renderDocument(path, DocumentDPI)
	}
	return decodeFile(path)
}

func renderDocument(path string, dpi int) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%s has no pages", filepath.Base(path))
	}
	return doc.ImageDPI(0, float64(dpi))
}

// LoadAssets decodes every image a background refers to, keyed by the
// reference as written. Relative references resolve against baseDir.
func LoadAssets(backgrounds []project.Background, baseDir string) (map[string]image.Image, error) {
	assets := make(map[string]image.Image)
	load := func(ref string) error {
		if ref == "" {
			return nil
		}
		if _, ok := assets[ref]; ok {
			return nil
		}
		path := ref
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		img, err := LoadImage(path)
		if err != nil {
			return fmt.Errorf("load background %s: %w", ref, err)
		}
		assets[ref] = img
		return nil
	}

	for _, bg := range backgrounds {
		if err := load(bg.Image); err != nil {
			return nil, err
		}
		for _, l := range bg.Layers {
			if err := load(l.Image); err != nil {
				return nil, err
			}
		}
	}
	return assets, nil
}
