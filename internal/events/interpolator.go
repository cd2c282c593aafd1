package events

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Track is one signal's samples in non-decreasing source time. A track
// built from bad data keeps its error and answers every query with no
// signal instead of failing.
type Track struct {
	kind    Kind
	samples []Sample
	times   []timebase.SourceMs
	err     error
}

// NewTrack validates ordering and coordinates. The samples slice is not
// copied and must not be modified afterwards.
func NewTrack(kind Kind, samples []Sample) *Track {
	t := &Track{kind: kind, samples: samples, times: make([]timebase.SourceMs, len(samples))}
	for i, s := range samples {
		t.times[i] = s.Time()
		switch {
		case math.IsNaN(s.X) || math.IsNaN(s.Y) || math.IsInf(s.X, 0) || math.IsInf(s.Y, 0):
			t.err = apperr.New(apperr.KindEventData, string(kind),
				fmt.Errorf("sample %d has non-finite coordinates", i))
		case math.IsNaN(float64(t.times[i])):
			t.err = apperr.New(apperr.KindEventData, string(kind),
				fmt.Errorf("sample %d has no timestamp", i))
		case i > 0 && t.times[i] < t.times[i-1]:
			t.err = apperr.New(apperr.KindEventData, string(kind),
				fmt.Errorf("sample %d at %vms is earlier than sample %d at %vms", i, t.times[i], i-1, t.times[i-1]))
		}
		if t.err != nil {
			break
		}
	}
	return t
}

func (t *Track) Kind() Kind { return t.kind }

// Err reports why the track is unusable, or nil.
func (t *Track) Err() error {
	if t == nil {
		return nil
	}
	return t.err
}

// Len returns the number of samples.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.samples)
}

func (t *Track) usable() bool {
	return t != nil && t.err == nil && len(t.samples) > 0
}

// Position is an interpolated continuous signal value in capture points,
// together with the capture metadata of the sample it came from.
type Position struct {
	X, Y          float64
	CaptureWidth  int
	CaptureHeight int
	ScaleFactor   float64
	OK            bool
}

// Normalize maps the position into [0,1] capture coordinates.
func (p Position) Normalize(captureW, captureH int, scale float64) Point {
	if !p.OK {
		return NoSignal
	}
	return Sample{X: p.X, Y: p.Y, CaptureWidth: p.CaptureWidth, CaptureHeight: p.CaptureHeight, ScaleFactor: p.ScaleFactor}.
		Normalize(captureW, captureH, scale)
}

func positionOf(s Sample) Position {
	return Position{X: s.X, Y: s.Y, CaptureWidth: s.CaptureWidth, CaptureHeight: s.CaptureHeight, ScaleFactor: s.ScaleFactor, OK: true}
}

// Interpolate returns the signal at source time q. Queries before the first
// or after the last sample clamp to that sample. Between samples the
// position is linear in time. A query landing on several samples with the
// same timestamp returns the earliest of them.
func (t *Track) Interpolate(q timebase.SourceMs) Position {
	if !t.usable() {
		return Position{}
	}
	n := len(t.samples)
	if q <= t.times[0] {
		return positionOf(t.samples[0])
	}
	if q >= t.times[n-1] {
		return positionOf(t.samples[n-1])
	}

	// first index with time >= q; a run of equal timestamps answers with
	// its first sample
	i := sort.Search(n, func(i int) bool { return t.times[i] >= q })
	if t.times[i] == q {
		return positionOf(t.samples[i])
	}
	prev, next := t.samples[i-1], t.samples[i]
	span := t.times[i] - t.times[i-1]

	fraction := float64(q-t.times[i-1]) / float64(span)
	p := positionOf(prev)
	p.X = lerp(prev.X, next.X, fraction)
	p.Y = lerp(prev.Y, next.Y, fraction)
	return p
}

// Nearest finds the sample closest to q within tolerance milliseconds. It
// is the lookup for discrete signals (clicks, keys), which are never
// interpolated.
func (t *Track) Nearest(q timebase.SourceMs, tolerance float64) (Sample, bool) {
	if !t.usable() {
		return Sample{}, false
	}
	n := len(t.samples)
	i := sort.Search(n, func(i int) bool { return t.times[i] >= q })

	best, bestDist := -1, math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= n {
			continue
		}
		if d := math.Abs(float64(t.times[j] - q)); d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 || bestDist > tolerance {
		return Sample{}, false
	}
	return t.samples[best], true
}

// Between returns the samples with from <= time <= to.
func (t *Track) Between(from, to timebase.SourceMs) []Sample {
	if !t.usable() || to < from {
		return nil
	}
	lo := sort.Search(len(t.times), func(i int) bool { return t.times[i] >= from })
	hi := sort.Search(len(t.times), func(i int) bool { return t.times[i] > to })
	return t.samples[lo:hi]
}

// Velocity estimates the signal's velocity in points per millisecond over
// the window ending at q, from the interpolated endpoints.
func (t *Track) Velocity(q timebase.SourceMs, window float64) (float64, float64) {
	if !t.usable() || window <= 0 {
		return 0, 0
	}
	a := t.Interpolate(q - timebase.SourceMs(window))
	b := t.Interpolate(q)
	return (b.X - a.X) / window, (b.Y - a.Y) / window
}

// Samples exposes the underlying samples read-only.
func (t *Track) Samples() []Sample {
	if t == nil {
		return nil
	}
	return t.samples
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
