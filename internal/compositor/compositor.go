// Package compositor draws one output frame from already-evaluated inputs.
//
// Stacking order, back to front: background, video (camera transform and
// optional blur applied), cursor and click ripple, keystroke labels, debug
// stamp. ComposeInto overwrites every pixel of the destination and reads
// nothing but its arguments.
package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/screenreel/internal/camera"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
)

// Assets resolves background image references to decoded images.
type Assets map[string]image.Image

// CursorState is the interpolated cursor at the frame instant.
type CursorState struct {
	Position events.Point // normalized capture coordinates
	Pressed  bool         // a click lies within the frame's tolerance window
	// ClickAgeMs is the time since the most recent click, or negative when
	// no click is recent enough to draw a ripple.
	ClickAgeMs float64
}

// Stamp identifies a frame in debug output.
type Stamp struct {
	Frame      int
	TimelineMs float64
}

// Style carries the overlay tunables that come from configuration.
type Style struct {
	CursorSize    float64 // cursor height in output pixels at 1080p, before the style multiplier
	ClickRippleMs float64
}

// DefaultStyle returns the stock overlay tuning.
func DefaultStyle() Style {
	return Style{CursorSize: 28, ClickRippleMs: 400}
}

// Input is everything one frame depends on.
type Input struct {
	Background project.Background
	Assets     Assets
	Camera     camera.Transform
	Source     image.Image // nil when the source frame could not be decoded
	Pointer    events.Point
	Cursor     CursorState
	CursorLook project.CursorStyle
	Keys       []string
	Style      Style
	Stamp      *Stamp
}

// Result describes how a frame was composed.
type Result struct {
	Degraded bool // the video layer is missing
}

// Compose allocates a w×h canvas and composes into it.
func Compose(w, h int, in Input) (*image.RGBA, Result) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	return dst, ComposeInto(dst, in)
}

// ComposeInto draws the frame into dst.
func ComposeInto(dst *image.RGBA, in Input) Result {
	var res Result

	drawBackground(dst, in.Background, in.Assets, in.Pointer)

	view := VideoRect(dst.Bounds(), in.Background.Padding, in.Source)
	if in.Source == nil {
		res.Degraded = true
	} else {
		drawVideo(dst, view, in.Source, in.Camera)
		if in.Background.Blur > 0 {
			boxBlur(dst, view, int(in.Background.Blur+0.5))
		}
	}

	if !in.CursorLook.Hidden && in.Cursor.Position.OK {
		x, y := in.Camera.Apply(in.Cursor.Position.X, in.Cursor.Position.Y)
		if x >= 0 && x <= 1 && y >= 0 && y <= 1 {
			px := float64(view.Min.X) + x*float64(view.Dx())
			py := float64(view.Min.Y) + y*float64(view.Dy())
			size := cursorSize(in.Style, in.CursorLook, dst.Bounds(), in.Camera)

			clip := dst.SubImage(view).(*image.RGBA)
			tint := parseColor(in.CursorLook.Color, color.RGBA{A: 0xff})
			if in.CursorLook.ClickRipple && in.Cursor.ClickAgeMs >= 0 && in.Cursor.ClickAgeMs < in.Style.ClickRippleMs {
				drawRipple(clip, px, py, size, in.Cursor.ClickAgeMs/in.Style.ClickRippleMs, tint)
			}
			if in.Cursor.Pressed {
				size *= 0.85
			}
			drawCursor(clip, px, py, size, tint)
		}
	}

	if in.CursorLook.ShowKeystrokes && len(in.Keys) > 0 {
		drawKeys(dst, in.Keys)
	}

	if in.Stamp != nil {
		drawStamp(dst, *in.Stamp)
	}
	return res
}

// VideoRect is where the video sits on the canvas: the canvas inset by
// padding on every side, shrunk to the source's aspect ratio and centered.
// A nil source fills the padded area.
func VideoRect(canvas image.Rectangle, padding float64, src image.Image) image.Rectangle {
	padding = clamp(padding, 0, 0.45)
	inX := int(float64(canvas.Dx())*padding + 0.5)
	inY := int(float64(canvas.Dy())*padding + 0.5)
	area := image.Rect(canvas.Min.X+inX, canvas.Min.Y+inY, canvas.Max.X-inX, canvas.Max.Y-inY)
	if src == nil || area.Empty() {
		return area
	}

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw <= 0 || sh <= 0 {
		return area
	}
	w, h := area.Dx(), area.Dy()
	if w*sh > h*sw {
		w = h * sw / sh
	} else {
		h = w * sh / sw
	}
	x := area.Min.X + (area.Dx()-w)/2
	y := area.Min.Y + (area.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// drawVideo maps the source through the camera transform into view. Parts
// of view the transformed source does not cover stay untouched.
func drawVideo(dst *image.RGBA, view image.Rectangle, src image.Image, t camera.Transform) {
	if view.Empty() {
		return
	}
	sb := src.Bounds()
	vw, vh := float64(view.Dx()), float64(view.Dy())
	sx := vw * t.Scale / float64(sb.Dx())
	sy := vh * t.Scale / float64(sb.Dy())
	ox := float64(view.Min.X) + vw*(0.5-0.5*t.Scale+t.TranslateX) - sx*float64(sb.Min.X)
	oy := float64(view.Min.Y) + vh*(0.5-0.5*t.Scale+t.TranslateY) - sy*float64(sb.Min.Y)

	s2d := f64.Aff3{
		sx, 0, ox,
		0, sy, oy,
	}
	clip := dst.SubImage(view).(*image.RGBA)
	draw.ApproxBiLinear.Transform(clip, s2d, src, sb, draw.Src, nil)
}

func cursorSize(st Style, look project.CursorStyle, canvas image.Rectangle, t camera.Transform) float64 {
	mult := look.Size
	if mult <= 0 {
		mult = 1
	}
	base := st.CursorSize
	if base <= 0 {
		base = DefaultStyle().CursorSize
	}
	return base * mult * float64(canvas.Dy()) / 1080 * t.Scale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
