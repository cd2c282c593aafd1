package project

import (
	"github.com/google/uuid"
)

// Recording is an immutable captured asset. Event sample timestamps in its
// stream are in source time.
type Recording struct {
	ID            string  `yaml:"id" json:"id"`
	VideoSource   string  `yaml:"video_source" json:"videoSource"`
	CaptureWidth  int     `yaml:"capture_width" json:"captureWidth"`
	CaptureHeight int     `yaml:"capture_height" json:"captureHeight"`
	FPS           float64 `yaml:"fps" json:"fps"`
	ScaleFactor   float64 `yaml:"scale_factor,omitempty" json:"scaleFactor,omitempty"` // capture pixels per event point
	EventStream   string  `yaml:"event_stream,omitempty" json:"eventStream,omitempty"`
}

// Scale returns the recording's scale factor, defaulting to 1.
func (r Recording) Scale() float64 {
	if r.ScaleFactor <= 0 {
		return 1
	}
	return r.ScaleFactor
}

// Rect is a rectangle in normalized capture coordinates ([0,1] on both axes).
type Rect struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	W float64 `yaml:"w" json:"w"`
	H float64 `yaml:"h" json:"h"`
}

// Center returns the rectangle's center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

type BackgroundKind string

const (
	BackgroundSolid     BackgroundKind = "solid"
	BackgroundGradient  BackgroundKind = "gradient"
	BackgroundImage     BackgroundKind = "image"
	BackgroundWallpaper BackgroundKind = "wallpaper"
	BackgroundParallax  BackgroundKind = "parallax"
)

// ParallaxLayer is one image in a multi-layer background. Depth is the
// fraction of the canvas the layer shifts as the pointer crosses the screen.
type ParallaxLayer struct {
	Image string  `yaml:"image" json:"image"`
	Depth float64 `yaml:"depth" json:"depth"`
}

// Background describes what sits behind the video and how the video is framed.
type Background struct {
	Kind          BackgroundKind  `yaml:"kind" json:"kind"`
	Color         string          `yaml:"color,omitempty" json:"color,omitempty"`
	GradientFrom  string          `yaml:"gradient_from,omitempty" json:"gradientFrom,omitempty"`
	GradientTo    string          `yaml:"gradient_to,omitempty" json:"gradientTo,omitempty"`
	GradientAngle float64         `yaml:"gradient_angle,omitempty" json:"gradientAngle,omitempty"` // degrees
	Image         string          `yaml:"image,omitempty" json:"image,omitempty"`
	Layers        []ParallaxLayer `yaml:"layers,omitempty" json:"layers,omitempty"`
	Padding       float64         `yaml:"padding,omitempty" json:"padding,omitempty"` // fraction of the canvas per side
	Blur          float64         `yaml:"blur,omitempty" json:"blur,omitempty"`       // video blur radius in output pixels
}

// DefaultBackground is a dark solid fill with no padding.
func DefaultBackground() Background {
	return Background{Kind: BackgroundSolid, Color: "#101014"}
}

// CursorStyle controls the cursor and keystroke overlay.
type CursorStyle struct {
	Hidden         bool    `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Size           float64 `yaml:"size,omitempty" json:"size,omitempty"` // multiplier on the configured cursor size
	Color          string  `yaml:"color,omitempty" json:"color,omitempty"`
	ClickRipple    bool    `yaml:"click_ripple,omitempty" json:"clickRipple,omitempty"`
	ShowKeystrokes bool    `yaml:"show_keystrokes,omitempty" json:"showKeystrokes,omitempty"`
}

// DefaultCursorStyle shows a black cursor with click ripples.
func DefaultCursorStyle() CursorStyle {
	return CursorStyle{Size: 1, Color: "#000000", ClickRipple: true}
}

// NewID returns a fresh identifier for recordings and clips.
func NewID() string {
	return uuid.NewString()
}
