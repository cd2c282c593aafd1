package events

import (
	"github.com/ivlev/screenreel/internal/timebase"
)

type Kind string

const (
	KindPointer  Kind = "pointer"
	KindClick    Kind = "click"
	KindKeypress Kind = "keypress"
	KindCaret    Kind = "caret"
)

// Sample is one record of a recording's event stream. Coordinates are in
// capture points; multiply by ScaleFactor for capture pixels.
type Sample struct {
	SourceTimestampMs *float64 `json:"sourceTimestampMs,omitempty"`
	TimestampMs       float64  `json:"timestampMs"`
	X                 float64  `json:"x"`
	Y                 float64  `json:"y"`
	CaptureWidth      int      `json:"captureWidth,omitempty"`
	CaptureHeight     int      `json:"captureHeight,omitempty"`
	ScaleFactor       float64  `json:"scaleFactor,omitempty"`
	Kind              Kind     `json:"kind"`

	// kind-specific
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
	Button    string   `json:"button,omitempty"`
}

// Time returns the sample's source-time instant. sourceTimestampMs wins
// when present; timestampMs is the fallback for older captures.
func (s Sample) Time() timebase.SourceMs {
	if s.SourceTimestampMs != nil {
		return timebase.SourceMs(*s.SourceTimestampMs)
	}
	return timebase.SourceMs(s.TimestampMs)
}

// Point is a sample position normalized against its capture dimensions,
// so (0,0) is the top-left and (1,1) the bottom-right of the capture.
type Point struct {
	X, Y float64
	OK   bool // false means no signal
}

// NoSignal is returned whenever a signal has no usable data at the query.
var NoSignal = Point{}

// Normalize converts the sample's point coordinates into a Point, using the
// sample's own capture metadata and falling back to the given defaults.
func (s Sample) Normalize(captureW, captureH int, scale float64) Point {
	w, h, f := captureW, captureH, scale
	if s.CaptureWidth > 0 && s.CaptureHeight > 0 {
		w, h = s.CaptureWidth, s.CaptureHeight
	}
	if s.ScaleFactor > 0 {
		f = s.ScaleFactor
	}
	if f <= 0 {
		f = 1
	}
	if w <= 0 || h <= 0 {
		return NoSignal
	}
	return Point{X: s.X * f / float64(w), Y: s.Y * f / float64(h), OK: true}
}
