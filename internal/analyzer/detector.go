// Package analyzer finds regions of interest in decoded frames.
package analyzer

import "image"

// Block is a detected region in the coordinates of the analyzed image.
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // share of edge pixels inside Rect, 0-1
}

// Detector is the interface for image analysis strategies
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// BlockAt returns the smallest block containing pt.
func BlockAt(blocks []Block, pt image.Point) (Block, bool) {
	var (
		best  Block
		found bool
	)
	for _, b := range blocks {
		if !pt.In(b.Rect) {
			continue
		}
		if !found || area(b.Rect) < area(best.Rect) {
			best, found = b, true
		}
	}
	return best, found
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }
