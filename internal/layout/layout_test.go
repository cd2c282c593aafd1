package layout

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

func clip(id string, start timebase.TimelineMs, in, out timebase.SourceMs, rate float64, track int) project.Clip {
	return project.Clip{ID: id, RecordingID: "r", TimelineStartMs: start, SourceInMs: in, SourceOutMs: out, PlaybackRate: rate, TrackIndex: track}
}

func TestSingleClip(t *testing.T) {
	l, err := Build([]project.Clip{clip("a", 0, 0, 1000, 1, 0)}, 30)
	require.NoError(t, err)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, Entry{ClipID: "a", Track: 0, StartFrame: 0, DurationFrames: 30}, l.Entries[0])
	assert.Equal(t, 30, l.TotalFrames)
}

func TestGapFreeTiling(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for run := 0; run < 100; run++ {
		var clips []project.Clip
		at := timebase.TimelineMs(0)
		for i := 0; i < 1+rng.Intn(12); i++ {
			src := timebase.SourceMs(1 + rng.Float64()*2500)
			rate := 0.25 + rng.Float64()*3
			c := clip(project.NewID(), at, 0, src, rate, 0)
			clips = append(clips, c)
			at = c.TimelineEndMs()
		}

		l, err := Build(clips, 30)
		require.NoError(t, err)

		covered := make([]int, l.TotalFrames)
		for _, e := range l.Entries {
			for f := e.StartFrame; f < e.EndFrame(); f++ {
				covered[f]++
			}
		}
		for f, n := range covered {
			require.Equalf(t, 1, n, "run %d frame %d covered %d times", run, f, n)
		}
		assert.Equal(t, timebase.FrameIndex(at, 30), l.TotalFrames)
		assert.Empty(t, l.Gaps(0))
	}
}

func TestGapIsLegal(t *testing.T) {
	l, err := Build([]project.Clip{
		clip("a", 0, 0, 1000, 1, 0),
		clip("b", 2000, 0, 1000, 1, 0),
	}, 30)
	require.NoError(t, err)

	_, ok := l.Resolve(45)
	assert.False(t, ok)
	assert.Equal(t, [][2]int{{30, 60}}, l.Gaps(0))

	e, ok := l.Resolve(60)
	require.True(t, ok)
	assert.Equal(t, "b", e.ClipID)
}

func TestResolvePrefersHigherTrack(t *testing.T) {
	l, err := Build([]project.Clip{
		clip("base", 0, 0, 3000, 1, 0),
		clip("overlay", 1000, 0, 1000, 1, 1),
	}, 30)
	require.NoError(t, err)

	e, _ := l.Resolve(10)
	assert.Equal(t, "base", e.ClipID)
	e, _ = l.Resolve(40)
	assert.Equal(t, "overlay", e.ClipID)
	e, _ = l.Resolve(60)
	assert.Equal(t, "base", e.ClipID)
}

func TestOverlapIsTimeMappingError(t *testing.T) {
	_, err := Build([]project.Clip{
		clip("a", 0, 0, 1000, 1, 0),
		clip("b", 900, 0, 1000, 1, 0),
	}, 30)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTimeMapping))
}

func TestSpeedChangedClip(t *testing.T) {
	// 1200ms of source at 1.2x is 1000ms on the timeline
	l, err := Build([]project.Clip{
		clip("fast", 0, 0, 1200, 1.2, 0),
		clip("next", 1000, 1200, 2200, 1, 0),
	}, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, l.Entries[0].DurationFrames)
	assert.Equal(t, 60, l.Entries[1].StartFrame)
	assert.Equal(t, 120, l.TotalFrames)
}

func TestInvalidFPS(t *testing.T) {
	_, err := Build(nil, 0)
	assert.True(t, apperr.Is(err, apperr.KindSettings))
}
