package director

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Options tune automatic edits. Zoom timings are clip-relative
// milliseconds; typing timings are source milliseconds.
type Options struct {
	ZoomLeadMs   float64 `yaml:"zoom_lead_ms"`   // camera arrives this long before the first click
	ZoomHoldMs   float64 `yaml:"zoom_hold_ms"`   // and stays this long after the last one
	ClickMergeMs float64 `yaml:"click_merge_ms"` // clicks closer than this share a block
	MinZoomMs    float64 `yaml:"min_zoom_ms"`
	GapMs        float64 `yaml:"gap_ms"` // minimum space between suggested blocks
	MinZoom      float64 `yaml:"min_zoom"`
	MaxZoom      float64 `yaml:"max_zoom"`
	Padding      float64 `yaml:"padding"`  // share of the view the click area may fill
	Detector     string  `yaml:"detector"` // region detector for target framing: contrast or none

	TypingGapMs   float64 `yaml:"typing_gap_ms"` // longest pause inside a burst
	TypingMinKeys int     `yaml:"typing_min_keys"`
	TypingMinMs   float64 `yaml:"typing_min_ms"`
	TypingTailMs  float64 `yaml:"typing_tail_ms"`
	TypingRate    float64 `yaml:"typing_rate"` // multiplier applied to the clip rate
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		ZoomLeadMs:   600,
		ZoomHoldMs:   1500,
		ClickMergeMs: 2000,
		MinZoomMs:    500,
		GapMs:        250,
		MinZoom:      1.5,
		MaxZoom:      3.0,
		Padding:      0.9,
		Detector:     "contrast",

		TypingGapMs:   400,
		TypingMinKeys: 6,
		TypingMinMs:   1000,
		TypingTailMs:  200,
		TypingRate:    3.0,
	}
}

// SuggestZoomBlocks groups a clip's clicks into zoom blocks framing the
// clicked area. Blocks are clip-relative, sorted and never overlap.
func SuggestZoomBlocks(clip project.Clip, rec project.Recording, clicks []events.Sample, opts Options) []project.ZoomBlock {
	m := clip.Mapping()
	duration := float64(clip.DurationMs())

	type click struct {
		at   float64
		x, y float64
	}
	var in []click
	for _, s := range clicks {
		src := s.Time()
		if src < clip.SourceInMs || src >= clip.SourceOutMs {
			continue
		}
		p := s.Normalize(rec.CaptureWidth, rec.CaptureHeight, rec.Scale())
		if !p.OK {
			continue
		}
		in = append(in, click{at: float64(timebase.ToClipFromSource(m, src)), x: clamp01(p.X), y: clamp01(p.Y)})
	}
	sort.Slice(in, func(i, j int) bool { return in[i].at < in[j].at })

	var blocks []project.ZoomBlock
	prevEnd := math.Inf(-1)
	for i := 0; i < len(in); {
		j := i + 1
		for j < len(in) && in[j].at-in[j-1].at <= opts.ClickMergeMs {
			j++
		}
		group := in[i:j]
		i = j

		minX, minY, maxX, maxY := group[0].x, group[0].y, group[0].x, group[0].y
		for _, c := range group[1:] {
			minX, maxX = math.Min(minX, c.x), math.Max(maxX, c.x)
			minY, maxY = math.Min(minY, c.y), math.Max(maxY, c.y)
		}
		target, ok := frame(minX, minY, maxX, maxY, opts)
		if !ok {
			continue
		}

		start := math.Max(group[0].at-opts.ZoomLeadMs, 0)
		start = math.Max(start, prevEnd+opts.GapMs)
		end := math.Min(group[len(group)-1].at+opts.ZoomHoldMs, duration)
		if end-start < opts.MinZoomMs {
			continue
		}
		blocks = append(blocks, project.ZoomBlock{
			StartMs: timebase.ClipMs(start),
			EndMs:   timebase.ClipMs(end),
			Target:  &target,
		})
		prevEnd = end
	}
	return blocks
}

// frame returns a square target around the click area whose zoom level
// stays within [MinZoom, MaxZoom]. It reports false when the area is too
// large to be worth zooming into.
func frame(minX, minY, maxX, maxY float64, opts Options) (project.Rect, bool) {
	padding := opts.Padding
	if padding <= 0 || padding > 1 {
		padding = 1
	}
	size := math.Max(maxX-minX, maxY-minY) / padding
	if opts.MaxZoom > 0 {
		size = math.Max(size, 1/opts.MaxZoom)
	}
	if size >= 1 || (opts.MinZoom > 0 && 1/size < opts.MinZoom) {
		return project.Rect{}, false
	}

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	x := math.Min(math.Max(cx-size/2, 0), 1-size)
	y := math.Min(math.Max(cy-size/2, 0), 1-size)
	return project.Rect{X: x, Y: y, W: size, H: size}, true
}

// Speedup is a source range replayed at Rate.
type Speedup struct {
	InMs  timebase.SourceMs `yaml:"in_ms"`
	OutMs timebase.SourceMs `yaml:"out_ms"`
	Rate  float64           `yaml:"rate"`
}

// TypingBursts finds dense runs of keypresses inside the clip's source
// range. Each burst is returned with the clip rate times TypingRate.
func TypingBursts(clip project.Clip, keys []events.Sample, opts Options) []Speedup {
	var times []timebase.SourceMs
	for _, s := range keys {
		if t := s.Time(); t >= clip.SourceInMs && t < clip.SourceOutMs {
			times = append(times, t)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	rate := clip.PlaybackRate * opts.TypingRate
	var out []Speedup
	for i := 0; i < len(times); {
		j := i + 1
		for j < len(times) && float64(times[j]-times[j-1]) <= opts.TypingGapMs {
			j++
		}
		first, last := times[i], times[j-1]
		n := j - i
		i = j
		if n < opts.TypingMinKeys || float64(last-first) < opts.TypingMinMs {
			continue
		}
		end := min(last+timebase.SourceMs(opts.TypingTailMs), clip.SourceOutMs)
		if len(out) > 0 && first <= out[len(out)-1].OutMs {
			out[len(out)-1].OutMs = end
			continue
		}
		out = append(out, Speedup{InMs: first, OutMs: end, Rate: rate})
	}
	return out
}

// SplitTypingSpeedup cuts the clip around its typing bursts and speeds the
// bursts up. The result is meant for project.ReplaceClip; a clip without
// bursts comes back unchanged as the only element.
func SplitTypingSpeedup(clip project.Clip, keys []events.Sample, opts Options) ([]project.Clip, error) {
	return ApplySpeedups(clip, TypingBursts(clip, keys, opts))
}

// ApplySpeedups splits clip at each speedup's edges and gives the inner
// pieces the speedup's rate. Speedups must be sorted and disjoint.
func ApplySpeedups(clip project.Clip, speedups []Speedup) ([]project.Clip, error) {
	if len(speedups) == 0 {
		return []project.Clip{clip}, nil
	}

	var pieces []project.Clip
	rest := clip
	cut := func(at timebase.SourceMs) (project.Clip, bool, error) {
		rel := timebase.ToClipFromSource(rest.Mapping(), at)
		if rel <= 0 || rel >= rest.DurationMs() {
			return project.Clip{}, false, nil
		}
		left, right, err := rest.Split(rel)
		if err != nil {
			return project.Clip{}, false, err
		}
		rest = right
		return left, true, nil
	}

	prevOut := clip.SourceInMs
	for _, s := range speedups {
		if s.InMs < prevOut || s.OutMs <= s.InMs || s.Rate <= 0 {
			return nil, fmt.Errorf("speedup [%v, %v] at rate %.2f is out of order or empty", s.InMs, s.OutMs, s.Rate)
		}
		prevOut = s.OutMs

		if before, ok, err := cut(s.InMs); err != nil {
			return nil, err
		} else if ok {
			pieces = append(pieces, before)
		}

		burst, ok, err := cut(s.OutMs)
		if err != nil {
			return nil, err
		}
		if !ok {
			burst = rest
		}
		if err := burst.SetPlaybackRate(s.Rate); err != nil {
			return nil, err
		}
		if ok {
			pieces = append(pieces, burst)
			continue
		}
		rest = burst
		return append(pieces, rest), nil
	}
	return append(pieces, rest), nil
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
