package director

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

var rec = project.Recording{ID: "rec", CaptureWidth: 1000, CaptureHeight: 1000, FPS: 30}

func clipOf(rate float64) project.Clip {
	return project.Clip{ID: "c", RecordingID: rec.ID, SourceInMs: 0, SourceOutMs: 10000, PlaybackRate: rate}
}

func click(ms, x, y float64) events.Sample {
	return events.Sample{TimestampMs: ms, X: x, Y: y, Kind: events.KindClick}
}

func keys(from, step float64, n int) []events.Sample {
	out := make([]events.Sample, n)
	for i := range out {
		out[i] = events.Sample{TimestampMs: from + step*float64(i), Key: "a", Kind: events.KindKeypress}
	}
	return out
}

func TestSuggestZoomBlocks(t *testing.T) {
	opts := DefaultOptions()
	blocks := SuggestZoomBlocks(clipOf(1), rec, []events.Sample{
		click(1500, 550, 520),
		click(1000, 500, 500),
		click(6000, 100, 100),
		click(12000, 500, 500), // outside the clip
	}, opts)

	require.Len(t, blocks, 2)
	assert.InDelta(t, 400, float64(blocks[0].StartMs), 1e-9)
	assert.InDelta(t, 3000, float64(blocks[0].EndMs), 1e-9)
	require.NotNil(t, blocks[0].Target)
	assert.InDelta(t, 1.0/3, blocks[0].Target.W, 1e-9)
	assert.InDelta(t, 1.0/3, blocks[0].Target.H, 1e-9)
	cx, cy := blocks[0].Target.Center()
	assert.InDelta(t, 0.525, cx, 1e-9)
	assert.InDelta(t, 0.51, cy, 1e-9)

	assert.InDelta(t, 5400, float64(blocks[1].StartMs), 1e-9)
	assert.InDelta(t, 7500, float64(blocks[1].EndMs), 1e-9)
	assert.Equal(t, 0.0, blocks[1].Target.X)
	assert.Equal(t, 0.0, blocks[1].Target.Y)

	for _, b := range blocks {
		assert.NoError(t, b.Validate())
	}
}

func TestSuggestZoomBlocksEdgeCases(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name   string
		clip   project.Clip
		clicks []events.Sample
		want   [][2]float64
	}{
		{"no clicks", clipOf(1), nil, nil},
		{"clip time follows rate", clipOf(2), []events.Sample{click(4000, 500, 500)}, [][2]float64{{1400, 3500}}},
		{"area too wide", clipOf(1), []events.Sample{click(1000, 50, 50), click(1500, 950, 950)}, nil},
		{"end clamps to clip", clipOf(1), []events.Sample{click(9500, 500, 500)}, [][2]float64{{8900, 10000}}},
		{"neighbours keep a gap", clipOf(1), []events.Sample{click(1000, 500, 500), click(3100, 500, 500)},
			[][2]float64{{400, 2500}, {2750, 4600}}},
		{"clicks merge into one area", clipOf(1), []events.Sample{click(1000, 500, 500), click(2500, 100, 900)},
			[][2]float64{{400, 4000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := SuggestZoomBlocks(tt.clip, rec, tt.clicks, opts)
			require.Len(t, blocks, len(tt.want))
			for i, w := range tt.want {
				assert.InDelta(t, w[0], float64(blocks[i].StartMs), 1e-9)
				assert.InDelta(t, w[1], float64(blocks[i].EndMs), 1e-9)
				if i > 0 {
					assert.GreaterOrEqual(t, float64(blocks[i].StartMs), float64(blocks[i-1].EndMs)+opts.GapMs)
				}
			}
		})
	}
}

func TestSuggestZoomBlocksDropsSqueezedBlock(t *testing.T) {
	opts := DefaultOptions()
	opts.ClickMergeMs = 100
	blocks := SuggestZoomBlocks(clipOf(1), rec, []events.Sample{click(1000, 500, 500), click(1200, 100, 100)}, opts)
	require.Len(t, blocks, 1)
	assert.InDelta(t, 2500, float64(blocks[0].EndMs), 1e-9)
}

func TestTypingBursts(t *testing.T) {
	opts := DefaultOptions()
	samples := append(keys(2000, 200, 10), keys(6000, 1000, 2)...)
	bursts := TypingBursts(clipOf(1), samples, opts)
	require.Len(t, bursts, 1)
	assert.Equal(t, Speedup{InMs: 2000, OutMs: 4000, Rate: 3}, bursts[0])

	assert.Empty(t, TypingBursts(clipOf(1), keys(2000, 100, 5), opts), "too few keys")
	assert.Empty(t, TypingBursts(clipOf(1), keys(2000, 100, 8), opts), "too short")
	assert.Equal(t, 6.0, TypingBursts(clipOf(2), keys(2000, 200, 10), opts)[0].Rate)
}

func TestSplitTypingSpeedup(t *testing.T) {
	opts := DefaultOptions()
	clip := clipOf(1)
	clip.Effects = project.Effects{project.ZoomEffect{
		StartMs: 0,
		EndMs:   10000,
		Blocks:  []project.ZoomBlock{{StartMs: 4500, EndMs: 5000, Target: &project.Rect{X: 0, Y: 0, W: 0.5, H: 0.5}}},
	}}

	pieces, err := SplitTypingSpeedup(clip, keys(2000, 200, 10), opts)
	require.NoError(t, err)
	require.Len(t, pieces, 3)

	type want struct {
		in, out timebase.SourceMs
		rate    float64
	}
	for i, w := range []want{{0, 2000, 1}, {2000, 4000, 3}, {4000, 10000, 1}} {
		assert.Equal(t, w.in, pieces[i].SourceInMs, "piece %d", i)
		assert.Equal(t, w.out, pieces[i].SourceOutMs, "piece %d", i)
		assert.Equal(t, w.rate, pieces[i].PlaybackRate, "piece %d", i)
	}
	assert.InDelta(t, 666.667, float64(pieces[1].DurationMs()), 1e-3)

	z, ok := pieces[2].Effects[0].(project.ZoomEffect)
	require.True(t, ok)
	require.Len(t, z.Blocks, 1)
	assert.Equal(t, timebase.ClipMs(500), z.Blocks[0].StartMs)
	assert.Equal(t, timebase.ClipMs(1000), z.Blocks[0].EndMs)
}

func TestSplitTypingSpeedupAtClipEdges(t *testing.T) {
	opts := DefaultOptions()

	pieces, err := SplitTypingSpeedup(clipOf(1), keys(0, 200, 10), opts)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Equal(t, 3.0, pieces[0].PlaybackRate)
	assert.Equal(t, timebase.SourceMs(2000), pieces[0].SourceOutMs)
	assert.Equal(t, 1.0, pieces[1].PlaybackRate)

	pieces, err = SplitTypingSpeedup(clipOf(1), keys(8500, 100, 15), opts)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Equal(t, timebase.SourceMs(8500), pieces[1].SourceInMs)
	assert.Equal(t, timebase.SourceMs(10000), pieces[1].SourceOutMs)
	assert.Equal(t, 3.0, pieces[1].PlaybackRate)

	pieces, err = SplitTypingSpeedup(clipOf(1), nil, opts)
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "c", pieces[0].ID)
}

func TestApplySpeedupsRejectsBadRanges(t *testing.T) {
	_, err := ApplySpeedups(clipOf(1), []Speedup{{InMs: 5000, OutMs: 6000, Rate: 2}, {InMs: 1000, OutMs: 2000, Rate: 2}})
	assert.Error(t, err)
	_, err = ApplySpeedups(clipOf(1), []Speedup{{InMs: 1000, OutMs: 2000, Rate: 0}})
	assert.Error(t, err)
}

func TestSplitPiecesRippleIntoProject(t *testing.T) {
	p := project.New("demo")
	p.AddRecording(rec)
	first := clipOf(1)
	second := clipOf(1)
	second.ID, second.TimelineStartMs = "d", 10000
	require.NoError(t, p.AddClip(first))
	require.NoError(t, p.AddClip(second))

	pieces, err := SplitTypingSpeedup(first, keys(2000, 200, 10), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, p.ReplaceClip(first.ID, pieces))

	moved, ok := p.Clip("d")
	require.True(t, ok)
	assert.InDelta(t, 8666.667, float64(moved.TimelineStartMs), 1e-3)
	assert.NoError(t, p.Validate())
}
