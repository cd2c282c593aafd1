package compositor

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/camera"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// halves is red on the left half and blue on the right half.
func halves(w, h int) *image.RGBA {
	img := solid(w, h, color.RGBA{B: 0xff, A: 0xff})
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	return img
}

func baseInput() Input {
	return Input{
		Background: project.DefaultBackground(),
		Camera:     camera.Identity(),
		CursorLook: project.DefaultCursorStyle(),
		Style:      DefaultStyle(),
		Cursor:     CursorState{ClickAgeMs: -1},
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	in := baseInput()
	in.Source = halves(64, 36)
	in.Background = project.Background{Kind: project.BackgroundGradient, GradientFrom: "#ff0000", GradientTo: "#0000ff", GradientAngle: 30, Padding: 0.1, Blur: 1}
	in.Camera = camera.Transform{Scale: 2, TranslateX: 0.3, TranslateY: -0.1}
	in.Cursor = CursorState{Position: events.Point{X: 0.4, Y: 0.5, OK: true}, Pressed: true, ClickAgeMs: 100}
	in.CursorLook.ShowKeystrokes = true
	in.Keys = []string{"cmd", "s"}
	in.Stamp = &Stamp{Frame: 7, TimelineMs: 233.333}

	a, _ := Compose(320, 180, in)
	b, _ := Compose(320, 180, in)
	assert.True(t, bytes.Equal(a.Pix, b.Pix))

	// composing into a dirty buffer gives the same bytes
	dirty := solid(320, 180, color.RGBA{R: 0x42, G: 0x42, B: 0x42, A: 0xff})
	ComposeInto(dirty, in)
	assert.True(t, bytes.Equal(a.Pix, dirty.Pix))
}

func TestIdentityCameraCopiesSource(t *testing.T) {
	in := baseInput()
	in.Source = halves(160, 90)
	in.CursorLook.Hidden = true

	out, res := Compose(160, 90, in)
	assert.False(t, res.Degraded)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, out.RGBAAt(20, 45))
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, out.RGBAAt(140, 45))
}

func TestZoomShowsTargetHalf(t *testing.T) {
	in := baseInput()
	in.Source = halves(160, 90)
	in.CursorLook.Hidden = true
	// center on the right half at 2x: the whole view is blue
	in.Camera = camera.Transform{Scale: 2, TranslateX: (0.5 - 0.75) * 2, TranslateY: 0}

	out, _ := Compose(160, 90, in)
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, out.RGBAAt(5, 45))
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, out.RGBAAt(155, 45))
}

func TestMissingSourceIsDegraded(t *testing.T) {
	in := baseInput()
	in.Cursor.Position = events.Point{X: 0.5, Y: 0.5, OK: true}
	in.Style.CursorSize = 400 // about 37px on a 100px canvas

	out, res := Compose(100, 100, in)
	assert.True(t, res.Degraded)
	// background is still there
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}, out.RGBAAt(5, 95))
	// and so is the cursor body, below-right of its tip
	assert.Equal(t, color.RGBA{A: 0xff}, out.RGBAAt(53, 64))
}

func TestPaddingKeepsBackgroundVisible(t *testing.T) {
	in := baseInput()
	in.Source = solid(160, 90, color.RGBA{G: 0xff, A: 0xff})
	in.Background.Color = "#ffffff"
	in.Background.Padding = 0.1
	in.CursorLook.Hidden = true

	out, _ := Compose(160, 90, in)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, out.RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, out.RGBAAt(80, 45))
}

func TestVideoRectKeepsAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	r := VideoRect(image.Rect(0, 0, 1920, 1080), 0, src)
	assert.Equal(t, 1080, r.Dy())
	assert.Equal(t, 1440, r.Dx())
	assert.Equal(t, 240, r.Min.X)

	assert.Equal(t, image.Rect(96, 54, 1824, 1026), VideoRect(image.Rect(0, 0, 1920, 1080), 0.05, nil))
}

func TestCursorHiddenOrOffscreen(t *testing.T) {
	in := baseInput()
	in.Source = solid(100, 100, color.RGBA{G: 0x80, A: 0xff})
	clean, _ := Compose(100, 100, in)

	in.Cursor.Position = events.Point{X: 0.5, Y: 0.5, OK: true}
	in.CursorLook.Hidden = true
	hidden, _ := Compose(100, 100, in)
	assert.True(t, bytes.Equal(clean.Pix, hidden.Pix))

	// zoomed into the top-left quarter, a bottom-right cursor is off view
	in.CursorLook.Hidden = false
	in.Cursor.Position = events.Point{X: 0.9, Y: 0.9, OK: true}
	in.Camera = camera.Transform{Scale: 2, TranslateX: 0.5, TranslateY: 0.5}
	zoomedClean := in
	zoomedClean.Cursor.Position.OK = false
	a, _ := Compose(100, 100, in)
	b, _ := Compose(100, 100, zoomedClean)
	assert.True(t, bytes.Equal(a.Pix, b.Pix))
}

func TestParseColor(t *testing.T) {
	def := color.RGBA{R: 1, G: 2, B: 3, A: 4}
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff8000", color.RGBA{R: 0xff, G: 0x80, A: 0xff}},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{"  #000000ff ", color.RGBA{A: 0xff}},
		{"#00000000", color.RGBA{}},
		{"nope", def},
		{"", def},
		{"#zzzzzz", def},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseColor(tt.in, def), tt.in)
	}
}

func TestGradientEndpoints(t *testing.T) {
	in := baseInput()
	in.Background = project.Background{Kind: project.BackgroundGradient, GradientFrom: "#000000", GradientTo: "#ffffff", Padding: 0.45}
	out, _ := Compose(200, 10, in)

	left, right := out.RGBAAt(0, 0), out.RGBAAt(199, 0)
	assert.Less(t, left.R, uint8(5))
	assert.Greater(t, right.R, uint8(250))
}

func TestImageBackgroundFallsBackToColor(t *testing.T) {
	in := baseInput()
	in.Background = project.Background{Kind: project.BackgroundWallpaper, Image: "missing.png", Color: "#00ff00", Padding: 0.4}
	out, _ := Compose(50, 50, in)
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, out.RGBAAt(1, 1))

	in.Assets = Assets{"missing.png": solid(10, 10, color.RGBA{R: 0xff, A: 0xff})}
	out, _ = Compose(50, 50, in)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, out.RGBAAt(1, 1))
}

func TestParallaxShiftsWithPointer(t *testing.T) {
	layer := halves(100, 100)
	in := baseInput()
	in.Background = project.Background{
		Kind:    project.BackgroundParallax,
		Layers:  []project.ParallaxLayer{{Image: "l", Depth: 0.4}},
		Padding: 0.45,
	}
	in.Assets = Assets{"l": layer}

	in.Pointer = events.Point{X: 0, Y: 0.5, OK: true}
	a, _ := Compose(100, 100, in)
	in.Pointer = events.Point{X: 1, Y: 0.5, OK: true}
	b, _ := Compose(100, 100, in)
	assert.False(t, bytes.Equal(a.Pix, b.Pix))
}

func TestBoxBlurSmoothsEdge(t *testing.T) {
	img := halves(20, 4)
	boxBlur(img, img.Bounds(), 2)

	edge := img.RGBAAt(10, 1)
	assert.Greater(t, edge.R, uint8(0))
	assert.Greater(t, edge.B, uint8(0))
	// far from the edge nothing changes
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.RGBAAt(0, 0))

	flat := solid(8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 0xff})
	before := append([]uint8(nil), flat.Pix...)
	boxBlur(flat, flat.Bounds(), 3)
	require.Equal(t, before, flat.Pix)
}
