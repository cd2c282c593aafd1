package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canvas(w, h int, boxes ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	for _, b := range boxes {
		draw.Draw(img, b, image.NewUniform(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), image.Point{}, draw.Src)
	}
	return img
}

func near(t *testing.T, want, got image.Rectangle, slack int) {
	t.Helper()
	assert.InDelta(t, want.Min.X, got.Min.X, float64(slack), "min x of %v", got)
	assert.InDelta(t, want.Min.Y, got.Min.Y, float64(slack), "min y of %v", got)
	assert.InDelta(t, want.Max.X, got.Max.X, float64(slack), "max x of %v", got)
	assert.InDelta(t, want.Max.Y, got.Max.Y, float64(slack), "max y of %v", got)
}

func TestContrastDetectorFindsBlock(t *testing.T) {
	box := image.Rect(50, 50, 150, 150)
	blocks, err := NewContrastDetector().Detect(canvas(200, 200, box))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	near(t, box, blocks[0].Rect, 6)
	assert.Greater(t, blocks[0].Confidence, 0.0)
	assert.LessOrEqual(t, blocks[0].Confidence, 1.0)
}

func TestContrastDetectorScalesBack(t *testing.T) {
	a := image.Rect(200, 200, 500, 400)
	b := image.Rect(1200, 600, 1500, 800)
	blocks, err := NewContrastDetector().Detect(canvas(1920, 1080, a, b))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	got, ok := BlockAt(blocks, image.Pt(350, 300))
	require.True(t, ok)
	near(t, a, got.Rect, 24)

	got, ok = BlockAt(blocks, image.Pt(1350, 700))
	require.True(t, ok)
	near(t, b, got.Rect, 24)

	_, ok = BlockAt(blocks, image.Pt(900, 900))
	assert.False(t, ok)
}

func TestContrastDetectorSkipsNoiseAndPanes(t *testing.T) {
	d := NewContrastDetector()

	blocks, err := d.Detect(canvas(400, 400))
	require.NoError(t, err)
	assert.Empty(t, blocks, "flat frame")

	blocks, err = d.Detect(canvas(400, 400, image.Rect(200, 200, 201, 201)))
	require.NoError(t, err)
	assert.Empty(t, blocks, "single pixel")

	blocks, err = d.Detect(canvas(400, 400, image.Rect(4, 4, 396, 396)))
	require.NoError(t, err)
	assert.Empty(t, blocks, "whole pane")
}

func TestBlockAtPrefersSmallest(t *testing.T) {
	blocks := []Block{
		{Rect: image.Rect(0, 0, 100, 100)},
		{Rect: image.Rect(40, 40, 60, 60)},
	}
	got, ok := BlockAt(blocks, image.Pt(50, 50))
	require.True(t, ok)
	assert.Equal(t, image.Rect(40, 40, 60, 60), got.Rect)
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantNil bool
		wantErr bool
	}{
		{"contrast", false, false},
		{"", false, false},
		{"none", true, false},
		{"ocr", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			d, err := NewDetector(tt.variant)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, d == nil)
		})
	}
}
