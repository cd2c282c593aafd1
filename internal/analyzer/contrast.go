package analyzer

import (
	"image"

	"golang.org/x/image/draw"
)

// ContrastDetector finds UI regions as connected areas of strong edges:
// Sobel gradient, dilation to join glyphs into blocks, then connected
// components. Frames are analyzed at a reduced width.
type ContrastDetector struct {
	AnalysisWidth int     // frames wider than this are scaled down first
	EdgeThreshold int     // gradient magnitude threshold
	DilateRadius  int     // in analysis pixels
	MinAreaFrac   float64 // blocks smaller than this share of the frame are noise
	MaxAreaFrac   float64 // blocks larger than this are whole panes, not targets
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		AnalysisWidth: 480,
		EdgeThreshold: 30,
		DilateRadius:  4,
		MinAreaFrac:   0.001,
		MaxAreaFrac:   0.6,
	}
}

// Detect returns blocks in the coordinates of img.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	scale := 1.0
	w, h := b.Dx(), b.Dy()
	if d.AnalysisWidth > 0 && w > d.AnalysisWidth {
		scale = float64(d.AnalysisWidth) / float64(w)
		w, h = d.AnalysisWidth, max(1, int(float64(h)*scale))
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)

	edges := sobel(gray, d.EdgeThreshold)
	mask := dilate(edges, w, h, d.DilateRadius)

	total := float64(w * h)
	var blocks []Block
	for _, c := range components(mask, w, h) {
		frac := float64(area(c)) / total
		if frac < d.MinAreaFrac || (d.MaxAreaFrac > 0 && frac > d.MaxAreaFrac) {
			continue
		}
		blocks = append(blocks, Block{
			Rect:       unscale(c, scale, b),
			Confidence: density(edges, w, c),
		})
	}
	return blocks, nil
}

// sobel marks pixels whose gradient magnitude exceeds threshold. Border
// pixels are never marked.
func sobel(g *image.Gray, threshold int) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := make([]bool, w*h)
	limit := threshold * threshold
	at := func(x, y int) int { return int(g.Pix[y*g.Stride+x]) }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			out[y*w+x] = gx*gx+gy*gy > limit
		}
	}
	return out
}

// dilate grows the mask by r in both directions, rows first then columns.
func dilate(mask []bool, w, h, r int) []bool {
	if r <= 0 {
		return mask
	}
	rows := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		last := -r - 1
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				last = x
			}
			if x-last <= r {
				rows[y*w+x] = true
			}
		}
		last = w + r + 1
		for x := w - 1; x >= 0; x-- {
			if mask[y*w+x] {
				last = x
			}
			if last-x <= r {
				rows[y*w+x] = true
			}
		}
	}

	out := make([]bool, len(mask))
	for x := 0; x < w; x++ {
		last := -r - 1
		for y := 0; y < h; y++ {
			if rows[y*w+x] {
				last = y
			}
			if y-last <= r {
				out[y*w+x] = true
			}
		}
		last = h + r + 1
		for y := h - 1; y >= 0; y-- {
			if rows[y*w+x] {
				last = y
			}
			if last-y <= r {
				out[y*w+x] = true
			}
		}
	}
	return out
}

// components returns the bounding boxes of 4-connected regions of mask.
func components(mask []bool, w, h int) []image.Rectangle {
	visited := make([]bool, len(mask))
	var rects []image.Rectangle
	var stack []int
	for start, on := range mask {
		if !on || visited[start] {
			continue
		}
		r := image.Rect(start%w, start/w, start%w+1, start/w+1)
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			r = r.Union(image.Rect(x, y, x+1, y+1))
			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if mask[j] && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
		rects = append(rects, r)
	}
	return rects
}

func density(edges []bool, w int, r image.Rectangle) float64 {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if edges[y*w+x] {
				n++
			}
		}
	}
	return float64(n) / float64(area(r))
}

// unscale maps an analysis-space rectangle back onto the source bounds.
func unscale(r image.Rectangle, scale float64, b image.Rectangle) image.Rectangle {
	out := image.Rect(
		int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale+0.5), int(float64(r.Max.Y)/scale+0.5),
	).Add(b.Min)
	return out.Intersect(b)
}
