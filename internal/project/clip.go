package project

import (
	"fmt"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Clip places part of a recording on the timeline. Its duration is derived
// from the source range and playback rate and cannot be set directly.
type Clip struct {
	ID              string              `yaml:"id" json:"id"`
	RecordingID     string              `yaml:"recording_id" json:"recordingId"`
	TimelineStartMs timebase.TimelineMs `yaml:"timeline_start_ms" json:"timelineStartMs"`
	SourceInMs      timebase.SourceMs   `yaml:"source_in_ms" json:"sourceInMs"`
	SourceOutMs     timebase.SourceMs   `yaml:"source_out_ms" json:"sourceOutMs"`
	PlaybackRate    float64             `yaml:"playback_rate" json:"playbackRate"`
	TrackIndex      int                 `yaml:"track" json:"trackIndex"`
	Effects         Effects             `yaml:"effects,omitempty" json:"effects,omitempty"`
}

// NewClip builds a validated clip. A zero rate means 1.
func NewClip(recordingID string, start timebase.TimelineMs, in, out timebase.SourceMs, rate float64, track int) (Clip, error) {
	if rate == 0 {
		rate = 1
	}
	c := Clip{
		ID:              NewID(),
		RecordingID:     recordingID,
		TimelineStartMs: start,
		SourceInMs:      in,
		SourceOutMs:     out,
		PlaybackRate:    rate,
		TrackIndex:      track,
	}
	return c, c.Validate()
}

func (c Clip) Mapping() timebase.Mapping {
	return timebase.Mapping{
		TimelineStart: c.TimelineStartMs,
		SourceIn:      c.SourceInMs,
		SourceOut:     c.SourceOutMs,
		Rate:          c.PlaybackRate,
	}
}

// DurationMs is (SourceOutMs - SourceInMs) / PlaybackRate.
func (c Clip) DurationMs() timebase.ClipMs { return c.Mapping().Duration() }

func (c Clip) TimelineEndMs() timebase.TimelineMs { return c.Mapping().TimelineEnd() }

// Covers reports whether t falls inside the clip on the timeline.
func (c Clip) Covers(t timebase.TimelineMs) bool {
	return t >= c.TimelineStartMs && t < c.TimelineEndMs()
}

func (c Clip) Validate() error {
	if c.RecordingID == "" {
		return fmt.Errorf("%w %s: no recording", apperr.ErrInvalidClip, c.ID)
	}
	if c.SourceOutMs <= c.SourceInMs {
		return fmt.Errorf("%w %s: source out %v <= in %v", apperr.ErrInvalidClip, c.ID, c.SourceOutMs, c.SourceInMs)
	}
	if c.SourceInMs < 0 {
		return fmt.Errorf("%w %s: negative source in %v", apperr.ErrInvalidClip, c.ID, c.SourceInMs)
	}
	if c.PlaybackRate <= 0 {
		return fmt.Errorf("%w %s: playback rate %v <= 0", apperr.ErrInvalidClip, c.ID, c.PlaybackRate)
	}
	if c.TimelineStartMs < 0 {
		return fmt.Errorf("%w %s: negative timeline start %v", apperr.ErrInvalidClip, c.ID, c.TimelineStartMs)
	}
	for _, e := range c.Effects {
		if z, ok := e.(ZoomEffect); ok {
			if err := z.Validate(); err != nil {
				return fmt.Errorf("clip %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

// SetPlaybackRate changes the rate. The duration follows, and effect ranges
// are rescaled so they stay over the same source content.
func (c *Clip) SetPlaybackRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w %s: playback rate %v <= 0", apperr.ErrInvalidClip, c.ID, rate)
	}
	factor := c.PlaybackRate / rate
	c.PlaybackRate = rate
	c.Effects = c.Effects.retime(func(t timebase.ClipMs) timebase.ClipMs { return t * timebase.ClipMs(factor) })
	return nil
}

// Trim changes the source range. Effects keep their position relative to
// the source content; effects falling outside the new range are dropped.
func (c *Clip) Trim(in, out timebase.SourceMs) error {
	if out <= in || in < 0 {
		return fmt.Errorf("%w %s: trim [%v, %v]", apperr.ErrInvalidClip, c.ID, in, out)
	}
	shift := timebase.ClipMs(float64(c.SourceInMs-in) / c.PlaybackRate)
	c.SourceInMs, c.SourceOutMs = in, out
	c.Effects = c.Effects.retime(func(t timebase.ClipMs) timebase.ClipMs { return t + shift }).crop(0, c.DurationMs())
	return nil
}

// MoveTo places the clip at a new timeline position.
func (c *Clip) MoveTo(start timebase.TimelineMs) error {
	if start < 0 {
		return fmt.Errorf("%w %s: negative timeline start %v", apperr.ErrInvalidClip, c.ID, start)
	}
	c.TimelineStartMs = start
	return nil
}

// Split cuts the clip at clip-relative time at. Both halves share the
// recording and rate; effects are partitioned between them.
func (c Clip) Split(at timebase.ClipMs) (Clip, Clip, error) {
	if at <= 0 || at >= c.DurationMs() {
		return Clip{}, Clip{}, fmt.Errorf("%w %s: split point %v outside (0, %v)", apperr.ErrInvalidClip, c.ID, at, c.DurationMs())
	}
	cut := timebase.ToSourceTime(c.Mapping(), at)

	left := c
	left.ID = NewID()
	left.SourceOutMs = cut
	left.Effects = c.Effects.crop(0, at)

	right := c
	right.ID = NewID()
	right.SourceInMs = cut
	right.TimelineStartMs = timebase.ToTimeline(c.Mapping(), at)
	right.Effects = c.Effects.crop(at, c.DurationMs()).retime(func(t timebase.ClipMs) timebase.ClipMs { return t - at })

	return left, right, nil
}

// ResolveEffects returns the effect state at clip-relative time t, starting
// from the given project defaults. Later effects win over earlier ones.
func (c Clip) ResolveEffects(t timebase.ClipMs, bg Background, cursor CursorStyle) Resolved {
	r := &resolver{t: t, out: Resolved{Background: bg, Cursor: cursor}}
	for _, e := range c.Effects {
		e.Accept(r)
	}
	return r.out
}

// Effects is a clip's effect list.
type Effects []Effect

func (es Effects) retime(f func(timebase.ClipMs) timebase.ClipMs) Effects {
	if len(es) == 0 {
		return es
	}
	out := make(Effects, len(es))
	for i, e := range es {
		out[i] = e.retime(f)
	}
	return out
}

func (es Effects) crop(lo, hi timebase.ClipMs) Effects {
	var out Effects
	for _, e := range es {
		if cropped, ok := e.crop(lo, hi); ok {
			out = append(out, cropped)
		}
	}
	return out
}

// InsertZoomBlock adds b to the clip's zoom effect, creating one that spans
// the whole clip when there is none. It returns the block as placed.
func (c *Clip) InsertZoomBlock(b ZoomBlock, policy InsertPolicy, gap timebase.ClipMs) (ZoomBlock, error) {
	idx := -1
	var z ZoomEffect
	for i, e := range c.Effects {
		if existing, ok := e.(ZoomEffect); ok {
			idx, z = i, existing
			break
		}
	}
	if idx < 0 {
		z = ZoomEffect{StartMs: 0, EndMs: c.DurationMs()}
	}
	z.Blocks = append([]ZoomBlock(nil), z.Blocks...)

	placed, err := z.Insert(b, policy, gap)
	if err != nil {
		return ZoomBlock{}, err
	}
	if idx < 0 {
		c.Effects = append(c.Effects, z)
	} else {
		c.Effects[idx] = z
	}
	return placed, nil
}
