// Package camera turns zoom effects and pointer movement into a per-frame
// viewport transform.
//
// Evaluate is a pure function of its arguments. It keeps no state between
// frames, so the preview loop and the export loop get the same transform
// for the same instant no matter which frames they visited before.
package camera

import (
	"math"

	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Config holds the tunable constants of camera motion.
type Config struct {
	RampMs            float64 `yaml:"ramp_ms"`             // ease in/out at zoom block edges
	FollowSmoothingMs float64 `yaml:"follow_smoothing_ms"` // exponential decay time constant of pointer follow
	FollowLeadMs      float64 `yaml:"follow_lead_ms"`      // how far ahead pointer velocity is projected
	SmartPan          bool    `yaml:"smart_pan"`
	SmartPanScale     float64 `yaml:"smart_pan_scale"`    // zoom level while smart panning outside blocks
	FollowScale       float64 `yaml:"follow_scale"`       // zoom level of follow blocks without explicit scale
	MaxScale          float64 `yaml:"max_scale"`
}

// DefaultConfig returns the stock camera tuning.
func DefaultConfig() Config {
	return Config{
		RampMs:            150,
		FollowSmoothingMs: 250,
		FollowLeadMs:      80,
		SmartPan:          false,
		SmartPanScale:     1.25,
		FollowScale:       2.0,
		MaxScale:          4.0,
	}
}

// Transform maps normalized source coordinates into normalized view
// coordinates: v = (p - 0.5) * Scale + 0.5 + Translate.
type Transform struct {
	Scale      float64
	TranslateX float64
	TranslateY float64
}

// Identity leaves the frame untouched.
func Identity() Transform { return Transform{Scale: 1} }

// IsIdentity reports whether t is the identity transform.
func (t Transform) IsIdentity() bool {
	return t.Scale == 1 && t.TranslateX == 0 && t.TranslateY == 0
}

// Apply maps a normalized source point into the view.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return (x-0.5)*t.Scale + 0.5 + t.TranslateX, (y-0.5)*t.Scale + 0.5 + t.TranslateY
}

// Center returns the source point shown at the middle of the view.
func (t Transform) Center() (float64, float64) {
	if t.Scale == 0 {
		return 0.5, 0.5
	}
	return 0.5 - t.TranslateX/t.Scale, 0.5 - t.TranslateY/t.Scale
}

// PointerPath yields a normalized pointer (or caret) position at a clip
// time. Implementations must be pure.
type PointerPath interface {
	PointAt(t timebase.ClipMs) events.Point
}

// Signals are the continuous inputs the camera may follow.
type Signals struct {
	Pointer PointerPath
	Caret   PointerPath
}

func (s Signals) path(mode project.FollowMode) PointerPath {
	switch mode {
	case project.FollowCaret:
		return s.Caret
	case project.FollowPointer:
		return s.Pointer
	}
	return nil
}

// view is a camera position: the source point at the view center plus zoom.
type view struct {
	cx, cy, scale float64
}

var rest = view{cx: 0.5, cy: 0.5, scale: 1}

func (v view) clamped(maxScale float64) view {
	if maxScale < 1 {
		maxScale = 1
	}
	v.scale = clamp(v.scale, 1, maxScale)
	half := 0.5 / v.scale
	v.cx = clamp(v.cx, half, 1-half)
	v.cy = clamp(v.cy, half, 1-half)
	return v
}

func (v view) transform() Transform {
	t := Transform{Scale: v.scale, TranslateX: (0.5 - v.cx) * v.scale, TranslateY: (0.5 - v.cy) * v.scale}
	if !finite(t.Scale) || !finite(t.TranslateX) || !finite(t.TranslateY) {
		return Identity()
	}
	if t.Scale == 1 {
		t.TranslateX, t.TranslateY = 0, 0
	}
	return t
}

func lerpView(a, b view, w float64) view {
	return view{cx: lerp(a.cx, b.cx, w), cy: lerp(a.cy, b.cy, w), scale: lerp(a.scale, b.scale, w)}
}

// Evaluate returns the camera transform at clip time t.
//
// Inside a zoom block the camera blends from the resting view to the block's
// target, with ramps of cfg.RampMs at both edges (shortened to half the block
// when the block is too short for two full ramps). Outside blocks the camera
// rests on the smart-pan view when enabled, otherwise on the identity.
func Evaluate(cfg Config, zoom *project.ZoomEffect, t timebase.ClipMs, sig Signals) Transform {
	base := rest
	if cfg.SmartPan {
		if cx, cy, ok := follow(cfg, sig.Pointer, t); ok {
			base = view{cx: cx, cy: cy, scale: cfg.SmartPanScale}.clamped(cfg.MaxScale)
		}
	}

	if zoom != nil && project.Active(*zoom, t) {
		if b, ok := zoom.BlockAt(t); ok {
			target := blockView(cfg, b, t, sig)
			w := rampWeight(cfg.RampMs, b, t)
			return lerpView(base, target, w).clamped(cfg.MaxScale).transform()
		}
	}
	return base.transform()
}

// blockView computes where block b wants the camera at t.
func blockView(cfg Config, b project.ZoomBlock, t timebase.ClipMs, sig Signals) view {
	progress := clamp(float64(t-b.StartMs)/float64(b.EndMs-b.StartMs), 0, 1)
	eased := easeInOutCubic(progress)

	v := rest
	if b.Target != nil {
		v.cx, v.cy = b.Target.Center()
		v.scale = fitScale(*b.Target)
		if b.PanTo != nil {
			px, py := b.PanTo.Center()
			v.cx, v.cy = lerp(v.cx, px, eased), lerp(v.cy, py, eased)
			v.scale = lerp(v.scale, fitScale(*b.PanTo), eased)
		}
	}

	if path := sig.path(b.Follow); path != nil {
		if cx, cy, ok := follow(cfg, path, t); ok {
			v.cx, v.cy = cx, cy
		}
		if b.Target == nil {
			v.scale = cfg.FollowScale
		}
	}

	if b.Scale > 0 {
		v.scale = b.Scale
	}
	return v.clamped(cfg.MaxScale)
}

// fitScale is the zoom at which r fills the view along its larger side.
func fitScale(r project.Rect) float64 {
	if r.W <= 0 || r.H <= 0 {
		return 1
	}
	return math.Min(1/r.W, 1/r.H)
}

// rampWeight is 0 at the block edges and 1 once both ramps are passed.
func rampWeight(rampMs float64, b project.ZoomBlock, t timebase.ClipMs) float64 {
	length := float64(b.EndMs - b.StartMs)
	r := math.Min(rampMs, length/2)
	if r <= 0 {
		return 1
	}
	in := clamp(float64(t-b.StartMs)/r, 0, 1)
	out := clamp(float64(b.EndMs-t)/r, 0, 1)
	return easeInOutCubic(math.Min(in, out))
}

// follow returns the smoothed, lead-adjusted pointer position at t.
//
// Smoothing is an exponentially weighted average of the path over the
// preceding three time constants, sampled at fixed offsets from t, which
// approximates exponential decay toward the pointer without carrying state
// from frame to frame.
func follow(cfg Config, path PointerPath, t timebase.ClipMs) (float64, float64, bool) {
	if path == nil {
		return 0, 0, false
	}
	now := path.PointAt(t)
	if !now.OK {
		return 0, 0, false
	}

	x, y := now.X, now.Y
	if tau := cfg.FollowSmoothingMs; tau > 0 {
		const taps = 12
		step := 3 * tau / taps
		var sx, sy, sw float64
		for k := 0; k <= taps; k++ {
			p := path.PointAt(t - timebase.ClipMs(float64(k)*step))
			if !p.OK {
				continue
			}
			w := math.Exp(-float64(k) * step / tau)
			sx += p.X * w
			sy += p.Y * w
			sw += w
		}
		if sw > 0 {
			x, y = sx/sw, sy/sw
		}
	}

	if lead := cfg.FollowLeadMs; lead > 0 {
		if before := path.PointAt(t - timebase.ClipMs(lead)); before.OK {
			x += now.X - before.X
			y += now.Y - before.Y
		}
	}
	return clamp(x, 0, 1), clamp(y, 0, 1), true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
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

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
