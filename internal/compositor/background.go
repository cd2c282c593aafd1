package compositor

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
)

var fallbackBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}

func drawBackground(dst *image.RGBA, bg project.Background, assets Assets, pointer events.Point) {
	switch bg.Kind {
	case project.BackgroundGradient:
		drawGradient(dst, parseColor(bg.GradientFrom, fallbackBackground), parseColor(bg.GradientTo, fallbackBackground), bg.GradientAngle)
	case project.BackgroundImage, project.BackgroundWallpaper:
		if img := assets[bg.Image]; img != nil {
			drawCover(dst, dst.Bounds(), img)
			return
		}
		fill(dst, parseColor(bg.Color, fallbackBackground))
	case project.BackgroundParallax:
		fill(dst, parseColor(bg.Color, fallbackBackground))
		drawParallax(dst, bg.Layers, assets, pointer)
	default:
		fill(dst, parseColor(bg.Color, fallbackBackground))
	}
}

func fill(dst *image.RGBA, c color.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawGradient fills dst with a linear gradient. Angle 0 runs left to right,
// 90 top to bottom.
func drawGradient(dst *image.RGBA, from, to color.RGBA, angle float64) {
	b := dst.Bounds()
	rad := angle * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	w, h := float64(b.Dx()), float64(b.Dy())

	// project the four corners to find the gradient's extent
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		p := c[0]*dx + c[1]*dy
		lo, hi = math.Min(lo, p), math.Max(hi, p)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			t := ((float64(x)+0.5)*dx + (float64(y)+0.5)*dy - lo) / span
			c := mix(from, to, t)
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	}
}

// drawCover scales img to cover r, cropping the overflow evenly.
func drawCover(dst *image.RGBA, r image.Rectangle, img image.Image) {
	draw.ApproxBiLinear.Scale(dst, r, img, coverCrop(img.Bounds(), r.Dx(), r.Dy()), draw.Src, nil)
}

// coverCrop is the centered part of src with the aspect ratio of w×h.
func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 || sw <= 0 || sh <= 0 {
		return src
	}
	cw, ch := sw, sh
	if sw*h > sh*w {
		cw = sh * w / h
	} else {
		ch = sw * h / w
	}
	x := src.Min.X + (sw-cw)/2
	y := src.Min.Y + (sh-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}

// drawParallax draws layers back to front. Each layer is oversized by its
// depth and shifted against the pointer, so deeper layers move further.
func drawParallax(dst *image.RGBA, layers []project.ParallaxLayer, assets Assets, pointer events.Point) {
	b := dst.Bounds()
	offX, offY := 0.0, 0.0
	if pointer.OK {
		offX, offY = clamp(pointer.X, 0, 1)-0.5, clamp(pointer.Y, 0, 1)-0.5
	}
	for _, l := range layers {
		img := assets[l.Image]
		if img == nil {
			continue
		}
		depth := clamp(l.Depth, 0, 0.5)
		w := float64(b.Dx()) * (1 + depth)
		h := float64(b.Dy()) * (1 + depth)
		x := float64(b.Min.X) - (w-float64(b.Dx()))/2 - offX*depth*float64(b.Dx())
		y := float64(b.Min.Y) - (h-float64(b.Dy()))/2 - offY*depth*float64(b.Dy())
		r := image.Rect(int(math.Round(x)), int(math.Round(y)), int(math.Round(x+w)), int(math.Round(y+h)))
		draw.ApproxBiLinear.Scale(dst, r, img, coverCrop(img.Bounds(), r.Dx(), r.Dy()), draw.Over, nil)
	}
}

// parseColor reads #rgb, #rrggbb or #rrggbbaa. Anything else yields def.
func parseColor(s string, def color.RGBA) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return def
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return def
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func mix(a, b color.RGBA, t float64) color.RGBA {
	t = clamp(t, 0, 1)
	ch := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t)) }
	return color.RGBA{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B), A: ch(a.A, b.A)}
}
