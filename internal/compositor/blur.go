package compositor

import "image"

// boxBlur blurs r in place with two passes (horizontal then vertical) of a
// box filter of the given radius. Edges are extended.
func boxBlur(img *image.RGBA, r image.Rectangle, radius int) {
	r = r.Intersect(img.Bounds())
	if radius <= 0 || r.Empty() {
		return
	}
	w, h := r.Dx(), r.Dy()
	buf := make([]uint8, w*h*4)

	// horizontal: img -> buf
	line := make([]uint8, w*4)
	for y := 0; y < h; y++ {
		off := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(line, img.Pix[off:off+w*4])
		blurLine(buf[y*w*4:(y+1)*w*4], line, w, 4, radius)
	}

	// vertical: buf -> img, one column at a time
	col := make([]uint8, h*4)
	out := make([]uint8, h*4)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			copy(col[y*4:y*4+4], buf[(y*w+x)*4:(y*w+x)*4+4])
		}
		blurLine(out, col, h, 4, radius)
		for y := 0; y < h; y++ {
			off := img.PixOffset(r.Min.X+x, r.Min.Y+y)
			copy(img.Pix[off:off+4], out[y*4:y*4+4])
		}
	}
}

// blurLine writes the running box average of n pixels of src into dst.
func blurLine(dst, src []uint8, n, channels, radius int) {
	window := 2*radius + 1
	at := func(i, c int) int {
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		return int(src[i*channels+c])
	}
	for c := 0; c < channels; c++ {
		sum := 0
		for i := -radius; i <= radius; i++ {
			sum += at(i, c)
		}
		for i := 0; i < n; i++ {
			dst[i*channels+c] = uint8((sum + window/2) / window)
			sum += at(i+radius+1, c) - at(i-radius, c)
		}
	}
}
