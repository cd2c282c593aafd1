package project

import (
	"fmt"
	"sort"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Effect is a time-ranged visual effect attached to a clip. Its range is in
// clip-relative time. The set of effect kinds is closed: Zoom, Background
// and Cursor. Code that must handle every kind implements Visitor, so adding
// a kind breaks the build everywhere it is not handled.
type Effect interface {
	Span() (start, end timebase.ClipMs)
	Accept(v Visitor)
	retime(f func(timebase.ClipMs) timebase.ClipMs) Effect
	crop(lo, hi timebase.ClipMs) (Effect, bool)
}

type Visitor interface {
	VisitZoom(ZoomEffect)
	VisitBackground(BackgroundEffect)
	VisitCursor(CursorEffect)
}

// Active reports whether t falls inside e's range (end exclusive).
func Active(e Effect, t timebase.ClipMs) bool {
	s, end := e.Span()
	return t >= s && t < end
}

type FollowMode string

const (
	FollowNone    FollowMode = ""
	FollowPointer FollowMode = "pointer"
	FollowCaret   FollowMode = "caret"
)

// ZoomBlock is an authored camera target over [StartMs, EndMs).
// Target is required unless Follow is set. PanTo, when present, moves the
// camera from Target to PanTo over the block's eased progress.
type ZoomBlock struct {
	StartMs timebase.ClipMs `yaml:"start_ms" json:"startMs"`
	EndMs   timebase.ClipMs `yaml:"end_ms" json:"endMs"`
	Target  *Rect           `yaml:"target,omitempty" json:"target,omitempty"`
	PanTo   *Rect           `yaml:"pan_to,omitempty" json:"panTo,omitempty"`
	Scale   float64         `yaml:"scale,omitempty" json:"scale,omitempty"` // 0 derives scale from Target
	Follow  FollowMode      `yaml:"follow,omitempty" json:"follow,omitempty"`
}

// Validate rejects blocks that cannot be evaluated.
func (b ZoomBlock) Validate() error {
	if b.EndMs <= b.StartMs {
		return fmt.Errorf("%w: [%v, %v]", apperr.ErrEmptyZoomBlock, b.StartMs, b.EndMs)
	}
	if b.Target == nil && b.Follow == FollowNone {
		return fmt.Errorf("zoom block [%v, %v] has neither target nor follow mode", b.StartMs, b.EndMs)
	}
	if b.Target != nil && (b.Target.W <= 0 || b.Target.H <= 0) {
		return fmt.Errorf("zoom block [%v, %v] has an empty target", b.StartMs, b.EndMs)
	}
	if b.Scale != 0 && b.Scale < 1 {
		return fmt.Errorf("zoom block [%v, %v] scale %.2f < 1", b.StartMs, b.EndMs, b.Scale)
	}
	return nil
}

func (b ZoomBlock) overlaps(o ZoomBlock) bool {
	return b.StartMs < o.EndMs && o.StartMs < b.EndMs
}

type ZoomEffect struct {
	StartMs timebase.ClipMs `yaml:"start_ms" json:"startMs"`
	EndMs   timebase.ClipMs `yaml:"end_ms" json:"endMs"`
	Blocks  []ZoomBlock     `yaml:"blocks" json:"blocks"`
}

func (z ZoomEffect) Span() (timebase.ClipMs, timebase.ClipMs) { return z.StartMs, z.EndMs }
func (z ZoomEffect) Accept(v Visitor)                          { v.VisitZoom(z) }

func (z ZoomEffect) retime(f func(timebase.ClipMs) timebase.ClipMs) Effect {
	out := ZoomEffect{StartMs: f(z.StartMs), EndMs: f(z.EndMs), Blocks: make([]ZoomBlock, len(z.Blocks))}
	for i, b := range z.Blocks {
		b.StartMs, b.EndMs = f(b.StartMs), f(b.EndMs)
		out.Blocks[i] = b
	}
	return out
}

func (z ZoomEffect) crop(lo, hi timebase.ClipMs) (Effect, bool) {
	s, e := clampSpan(z.StartMs, z.EndMs, lo, hi)
	if e <= s {
		return nil, false
	}
	out := ZoomEffect{StartMs: s, EndMs: e}
	for _, b := range z.Blocks {
		b.StartMs, b.EndMs = clampSpan(b.StartMs, b.EndMs, lo, hi)
		if b.EndMs > b.StartMs {
			out.Blocks = append(out.Blocks, b)
		}
	}
	return out, true
}

// BlockAt returns the block covering t, if any.
func (z ZoomEffect) BlockAt(t timebase.ClipMs) (ZoomBlock, bool) {
	i := sort.Search(len(z.Blocks), func(i int) bool { return z.Blocks[i].EndMs > t })
	if i < len(z.Blocks) && z.Blocks[i].StartMs <= t {
		return z.Blocks[i], true
	}
	return ZoomBlock{}, false
}

type InsertPolicy int

const (
	// RejectOverlap fails with apperr.ErrZoomOverlap.
	RejectOverlap InsertPolicy = iota
	// AppendAfterLast moves the block to start gap after the last block,
	// keeping its length.
	AppendAfterLast
)

// Insert adds b to the effect, keeping blocks sorted and non-overlapping.
// It returns the block as actually placed.
func (z *ZoomEffect) Insert(b ZoomBlock, policy InsertPolicy, gap timebase.ClipMs) (ZoomBlock, error) {
	if err := b.Validate(); err != nil {
		return ZoomBlock{}, err
	}

	for _, existing := range z.Blocks {
		if !b.overlaps(existing) {
			continue
		}
		if policy == RejectOverlap {
			return ZoomBlock{}, fmt.Errorf("%w: [%v, %v] vs [%v, %v]",
				apperr.ErrZoomOverlap, b.StartMs, b.EndMs, existing.StartMs, existing.EndMs)
		}
		length := b.EndMs - b.StartMs
		last := z.Blocks[len(z.Blocks)-1]
		b.StartMs = last.EndMs + gap
		b.EndMs = b.StartMs + length
		break
	}

	z.Blocks = append(z.Blocks, b)
	sort.Slice(z.Blocks, func(i, j int) bool { return z.Blocks[i].StartMs < z.Blocks[j].StartMs })
	if b.EndMs > z.EndMs {
		z.EndMs = b.EndMs
	}
	if b.StartMs < z.StartMs {
		z.StartMs = b.StartMs
	}
	return b, nil
}

// Validate checks every block and that no two blocks overlap.
func (z ZoomEffect) Validate() error {
	for i, b := range z.Blocks {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && z.Blocks[i-1].EndMs > b.StartMs {
			return fmt.Errorf("%w: block %d starts at %v before previous ends at %v",
				apperr.ErrZoomOverlap, i, b.StartMs, z.Blocks[i-1].EndMs)
		}
	}
	return nil
}

type BackgroundEffect struct {
	StartMs    timebase.ClipMs `yaml:"start_ms" json:"startMs"`
	EndMs      timebase.ClipMs `yaml:"end_ms" json:"endMs"`
	Background Background      `yaml:"background" json:"background"`
}

func (b BackgroundEffect) Span() (timebase.ClipMs, timebase.ClipMs) { return b.StartMs, b.EndMs }
func (b BackgroundEffect) Accept(v Visitor)                          { v.VisitBackground(b) }

func (b BackgroundEffect) retime(f func(timebase.ClipMs) timebase.ClipMs) Effect {
	b.StartMs, b.EndMs = f(b.StartMs), f(b.EndMs)
	return b
}

func (b BackgroundEffect) crop(lo, hi timebase.ClipMs) (Effect, bool) {
	b.StartMs, b.EndMs = clampSpan(b.StartMs, b.EndMs, lo, hi)
	return b, b.EndMs > b.StartMs
}

type CursorEffect struct {
	StartMs timebase.ClipMs `yaml:"start_ms" json:"startMs"`
	EndMs   timebase.ClipMs `yaml:"end_ms" json:"endMs"`
	Style   CursorStyle     `yaml:"style" json:"style"`
}

func (c CursorEffect) Span() (timebase.ClipMs, timebase.ClipMs) { return c.StartMs, c.EndMs }
func (c CursorEffect) Accept(v Visitor)                          { v.VisitCursor(c) }

func (c CursorEffect) retime(f func(timebase.ClipMs) timebase.ClipMs) Effect {
	c.StartMs, c.EndMs = f(c.StartMs), f(c.EndMs)
	return c
}

func (c CursorEffect) crop(lo, hi timebase.ClipMs) (Effect, bool) {
	c.StartMs, c.EndMs = clampSpan(c.StartMs, c.EndMs, lo, hi)
	return c, c.EndMs > c.StartMs
}

func clampSpan(s, e, lo, hi timebase.ClipMs) (timebase.ClipMs, timebase.ClipMs) {
	return max(s, lo), min(e, hi)
}

// Resolved is the effect state of one clip at one instant.
type Resolved struct {
	Zoom       *ZoomEffect
	Background Background
	Cursor     CursorStyle
}

type resolver struct {
	t   timebase.ClipMs
	out Resolved
}

func (r *resolver) VisitZoom(z ZoomEffect) {
	if Active(z, r.t) {
		r.out.Zoom = &z
	}
}

func (r *resolver) VisitBackground(b BackgroundEffect) {
	if Active(b, r.t) {
		r.out.Background = b.Background
	}
}

func (r *resolver) VisitCursor(c CursorEffect) {
	if Active(c, r.t) {
		r.out.Cursor = c.Style
	}
}
