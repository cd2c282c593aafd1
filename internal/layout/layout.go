// Package layout maps timeline clips onto output frame ranges.
package layout

import (
	"fmt"
	"sort"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Entry is the frame range [StartFrame, StartFrame+DurationFrames) of one clip.
type Entry struct {
	ClipID         string
	Track          int
	StartFrame     int
	DurationFrames int
}

// EndFrame returns the first frame after the entry.
func (e Entry) EndFrame() int { return e.StartFrame + e.DurationFrames }

// Contains reports whether frame falls inside the entry.
func (e Entry) Contains(frame int) bool {
	return frame >= e.StartFrame && frame < e.EndFrame()
}

// Layout is derived from clips and fps and is never edited by hand.
type Layout struct {
	FPS         int
	Entries     []Entry // ordered by track, then start frame
	TotalFrames int
}

// Build computes one entry per clip. Both ends of a clip are converted
// with timebase.FrameIndex and the duration is their difference, so two
// clips that touch on the timeline also touch in frames.
func Build(clips []project.Clip, fps int) (*Layout, error) {
	if fps <= 0 {
		return nil, apperr.New(apperr.KindSettings, "build layout", fmt.Errorf("fps must be positive, got %d", fps))
	}

	l := &Layout{FPS: fps, Entries: make([]Entry, 0, len(clips))}
	for _, c := range clips {
		start := timebase.FrameIndex(c.TimelineStartMs, fps)
		end := timebase.FrameIndex(c.TimelineEndMs(), fps)
		l.Entries = append(l.Entries, Entry{
			ClipID:         c.ID,
			Track:          c.TrackIndex,
			StartFrame:     start,
			DurationFrames: end - start,
		})
		l.TotalFrames = max(l.TotalFrames, end)
	}

	sort.SliceStable(l.Entries, func(i, j int) bool {
		a, b := l.Entries[i], l.Entries[j]
		if a.Track != b.Track {
			return a.Track < b.Track
		}
		return a.StartFrame < b.StartFrame
	})

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// BuildProject builds the layout of every track of p.
func BuildProject(p *project.Project, fps int) (*Layout, error) {
	return Build(p.Clips, fps)
}

// Validate checks that entries on one track never overlap and that no entry
// has a negative length. Violations are time mapping errors.
func (l *Layout) Validate() error {
	for i, e := range l.Entries {
		if e.DurationFrames < 0 || e.StartFrame < 0 {
			return apperr.New(apperr.KindTimeMapping, "validate layout",
				fmt.Errorf("clip %s has frame range [%d, %d)", e.ClipID, e.StartFrame, e.EndFrame()))
		}
		if i == 0 {
			continue
		}
		prev := l.Entries[i-1]
		if prev.Track == e.Track && prev.EndFrame() > e.StartFrame {
			return apperr.New(apperr.KindTimeMapping, "validate layout",
				fmt.Errorf("clips %s and %s overlap at frames [%d, %d) on track %d",
					prev.ClipID, e.ClipID, e.StartFrame, prev.EndFrame(), e.Track))
		}
	}
	return nil
}

// Resolve returns the entry shown at frame: the one on the highest track
// that covers it. ok is false for gap frames, which render background only.
func (l *Layout) Resolve(frame int) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range l.Entries {
		if !e.Contains(frame) {
			continue
		}
		if !found || e.Track > best.Track {
			best, found = e, true
		}
	}
	return best, found
}

// Track returns the entries of one track in frame order.
func (l *Layout) Track(track int) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Track == track {
			out = append(out, e)
		}
	}
	return out
}

// Gaps returns the uncovered frame ranges of a track within [0, TotalFrames).
func (l *Layout) Gaps(track int) [][2]int {
	var gaps [][2]int
	at := 0
	for _, e := range l.Track(track) {
		if e.DurationFrames == 0 {
			continue
		}
		if e.StartFrame > at {
			gaps = append(gaps, [2]int{at, e.StartFrame})
		}
		at = max(at, e.EndFrame())
	}
	if at < l.TotalFrames {
		gaps = append(gaps, [2]int{at, l.TotalFrames})
	}
	return gaps
}
