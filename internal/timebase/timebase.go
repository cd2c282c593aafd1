// Package timebase defines the three time spaces used across the pipeline
// and the only sanctioned conversions between them.
//
// All values are milliseconds, but each space has its own named type, so
// mixing them without going through one of the functions below does not
// compile:
//
//	SourceMs   - offset into a recording's raw capture (event timestamps)
//	TimelineMs - position within the edited sequence
//	ClipMs     - offset into one clip's speed-adjusted playback
package timebase

import "math"

type SourceMs float64

type TimelineMs float64

type ClipMs float64

// Mapping is the part of a clip needed to move between time spaces.
type Mapping struct {
	TimelineStart TimelineMs
	SourceIn      SourceMs
	SourceOut     SourceMs
	Rate          float64 // playback rate, > 0
}

// Duration returns the clip's effective (speed-adjusted) length.
func (m Mapping) Duration() ClipMs {
	if m.Rate <= 0 {
		return 0
	}
	return ClipMs(float64(m.SourceOut-m.SourceIn) / m.Rate)
}

// TimelineEnd returns the first timeline instant after the clip.
func (m Mapping) TimelineEnd() TimelineMs {
	return m.TimelineStart + TimelineMs(m.Duration())
}

// ToClipRelative converts a timeline position into the clip's playback time.
// The result is not clamped; use Clamp when the caller needs a valid offset.
func ToClipRelative(m Mapping, t TimelineMs) ClipMs {
	return ClipMs(t - m.TimelineStart)
}

// ToTimeline is the inverse of ToClipRelative.
func ToTimeline(m Mapping, t ClipMs) TimelineMs {
	return m.TimelineStart + TimelineMs(t)
}

// ToSourceTime maps clip playback time into the recording's capture time.
func ToSourceTime(m Mapping, t ClipMs) SourceMs {
	return m.SourceIn + SourceMs(float64(t)*m.Rate)
}

// ToClipFromSource maps a capture instant back into clip playback time.
// Source instants outside the clip produce offsets outside [0, Duration].
func ToClipFromSource(m Mapping, t SourceMs) ClipMs {
	if m.Rate <= 0 {
		return 0
	}
	return ClipMs(float64(t-m.SourceIn) / m.Rate)
}

// Clamp restricts a clip offset to [0, Duration].
func (m Mapping) Clamp(t ClipMs) ClipMs {
	if t < 0 {
		return 0
	}
	if d := m.Duration(); t > d {
		return d
	}
	return t
}

// FrameIndex converts a millisecond value of any time space into a frame
// number at fps. Rounding is half away from zero (math.Round). The layout
// builder, the camera evaluator and the export loop all go through this
// function so preview and export never disagree about a frame boundary.
func FrameIndex[T ~float64](ms T, fps int) int {
	if fps <= 0 {
		return 0
	}
	return int(math.Round(float64(ms) * float64(fps) / 1000))
}

// FrameTime returns the timeline instant at which frame starts.
func FrameTime(frame, fps int) TimelineMs {
	if fps <= 0 {
		return 0
	}
	return TimelineMs(float64(frame) * 1000 / float64(fps))
}

// FrameDuration returns the length of one frame in milliseconds.
func FrameDuration(fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return 1000 / float64(fps)
}
