package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestProject(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.yaml")
	newer := filepath.Join(dir, "newer.json")
	ignored := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, newer, ignored} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0644))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))
	require.NoError(t, os.Chtimes(ignored, now.Add(time.Hour), now.Add(time.Hour)))

	got, err := FindLatestProject(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatest(dir, ".mov")
	assert.Error(t, err)
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
	  "streams": [{"width": 2880, "height": 1800, "avg_frame_rate": "60000/1001", "r_frame_rate": "60/1"}],
	  "format": {"duration": "12.480000"}
	}`)
	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 2880, info.Width)
	assert.Equal(t, 1800, info.Height)
	assert.InDelta(t, 59.94, info.FPS, 0.01)
	assert.InDelta(t, 12.48, info.Duration, 1e-9)

	info, err = parseProbe([]byte(`{"streams": [{"width": 1, "height": 1, "avg_frame_rate": "0/0", "r_frame_rate": "25"}], "format": {}}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, info.FPS)

	_, err = parseProbe([]byte(`{"streams": []}`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30":         30,
		"30000/1001": 29.97002997002997,
		"0/0":        0,
		"abc":        0,
		"":           0,
	}
	for in, want := range tests {
		assert.InDelta(t, want, parseRate(in), 1e-9, in)
	}
}

func TestCapDepth(t *testing.T) {
	frame := 1920 * 1080 * 4
	assert.Equal(t, 4, capDepth(4, frame, 16<<30))
	assert.Equal(t, 1, capDepth(4, frame, 1<<20))
	assert.Equal(t, 2, capDepth(8, frame, uint64(frame)*3*4*2))
	assert.GreaterOrEqual(t, DecodeAhead(0, frame), 1)
}

func TestEncoderFor(t *testing.T) {
	enc, err := EncoderFor("mov", "libx264")
	require.NoError(t, err)
	assert.Equal(t, Encoder{Name: "libx264", Extension: ".mov"}, enc)

	enc, err = EncoderFor("webm", "")
	require.NoError(t, err)
	assert.Equal(t, "libvpx-vp9", enc.Name)

	enc, err = EncoderFor("png", "")
	require.NoError(t, err)
	assert.Equal(t, "png", enc.Name)

	_, err = EncoderFor("gif", "")
	assert.Error(t, err)
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	img := p.Get(16, 9)
	assert.Equal(t, 16, img.Rect.Dx())
	assert.Equal(t, 9, img.Rect.Dy())
	p.Put(img)

	// sub-images and unknown sizes are dropped silently
	p.Put(img.SubImage(img.Rect.Inset(1)).(*image.RGBA))
	p.Put(nil)

	other := p.Get(4, 4)
	assert.Equal(t, 4, other.Rect.Dx())
}
