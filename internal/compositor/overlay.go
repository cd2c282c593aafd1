package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// arrow is the cursor outline for a height of 1, tip at the origin.
var arrow = [][2]float64{
	{0, 0}, {0, 0.78}, {0.2, 0.6}, {0.33, 0.9}, {0.45, 0.85}, {0.32, 0.56}, {0.56, 0.56},
}

func drawCursor(dst *image.RGBA, x, y, size float64, c color.RGBA) {
	outline := make([][2]float64, len(arrow))
	body := make([][2]float64, len(arrow))
	for i, p := range arrow {
		outline[i] = [2]float64{x + (p[0]-0.04)*size*1.12, y + (p[1]-0.04)*size*1.12}
		body[i] = [2]float64{x + p[0]*size, y + p[1]*size}
	}
	fillPolygons(dst, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, outline)
	fillPolygons(dst, c, body)
}

// drawRipple draws an expanding, fading ring. progress runs from 0 at the
// click to 1 when the ripple disappears.
func drawRipple(dst *image.RGBA, x, y, size, progress float64, c color.RGBA) {
	outer := size * (0.3 + 1.1*progress)
	inner := outer - math.Max(1, size*0.14*(1-progress))
	if inner < 0 {
		inner = 0
	}
	alpha := 0.55 * (1 - progress)
	ring := color.RGBA{
		R: uint8(float64(c.R) * alpha),
		G: uint8(float64(c.G) * alpha),
		B: uint8(float64(c.B) * alpha),
		A: uint8(float64(c.A) * alpha),
	}
	fillPolygons(dst, ring, circle(x, y, outer, false), circle(x, y, inner, true))
}

func circle(cx, cy, r float64, reverse bool) [][2]float64 {
	const segments = 48
	pts := make([][2]float64, segments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / segments
		if reverse {
			a = -a
		}
		pts[i] = [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return pts
}

// fillPolygons rasterizes closed paths with the non-zero rule over dst.
func fillPolygons(dst *image.RGBA, c color.Color, polys ...[][2]float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range polys {
		for _, p := range poly {
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
	}
	if math.IsInf(minX, 0) || math.IsNaN(minX+minY+maxX+maxY) {
		return
	}
	r := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY))).
		Intersect(dst.Bounds())
	if r.Empty() {
		return
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	for _, poly := range polys {
		if len(poly) < 3 {
			continue
		}
		z.MoveTo(float32(poly[0][0]-ox), float32(poly[0][1]-oy))
		for _, p := range poly[1:] {
			z.LineTo(float32(p[0]-ox), float32(p[1]-oy))
		}
		z.ClosePath()
	}
	z.Draw(dst, r, image.NewUniform(c), image.Point{})
}

// drawKeys renders the held keys as one label near the bottom of the frame.
// The label is drawn at the font's native size and scaled up with the canvas.
func drawKeys(dst *image.RGBA, keys []string) {
	label := strings.Join(keys, " + ")
	face := basicfont.Face7x13
	const pad = 4

	d := &font.Drawer{Face: face}
	w := d.MeasureString(label).Ceil() + 2*pad
	h := face.Height + 2*pad
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{A: 0xc0}), image.Point{}, draw.Src)

	d.Dst = small
	d.Src = image.White
	d.Dot = fixed.P(pad, pad+face.Ascent)
	d.DrawString(label)

	b := dst.Bounds()
	k := max(1, b.Dy()/270)
	tw, th := w*k, h*k
	x := b.Min.X + (b.Dx()-tw)/2
	y := b.Max.Y - b.Dy()/12 - th
	draw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+tw, y+th), small, small.Bounds(), draw.Over, nil)
}

// drawStamp puts a QR code carrying the frame index and timeline time in
// the top-left corner, so exported and previewed frames can be matched.
func drawStamp(dst *image.RGBA, s Stamp) {
	q, err := qrcode.New(fmt.Sprintf("frame=%d t=%.3f", s.Frame, s.TimelineMs), qrcode.Low)
	if err != nil {
		return
	}
	size := max(64, dst.Bounds().Dy()/8)
	img := q.Image(size)
	r := img.Bounds().Sub(img.Bounds().Min).Add(dst.Bounds().Min)
	draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
}
