package preview

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/render"
	"github.com/ivlev/screenreel/internal/render/rendertest"
)

func newPlayer(t *testing.T) (*Player, *render.Renderer) {
	t.Helper()
	opts := render.DefaultOptions()
	opts.Width, opts.Height, opts.FPS = rendertest.Width, rendertest.Height, rendertest.FPS
	r, err := render.New(rendertest.Project(), rendertest.Library(rendertest.Source(90)), opts)
	require.NoError(t, err)
	return NewPlayer(r), r
}

func TestPlayShowsIncreasingFramesToTheEnd(t *testing.T) {
	p, r := newPlayer(t)
	p.SetSpeed(40)

	var frames []int
	dropped, err := p.Play(context.Background(), 0, func(s Shown) error {
		frames = append(frames, s.Frame)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	assert.Equal(t, 0, frames[0])
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i], frames[i-1])
	}
	assert.Less(t, frames[len(frames)-1], r.TotalFrames())
	assert.GreaterOrEqual(t, dropped, 0)
	assert.LessOrEqual(t, len(frames)+dropped, r.TotalFrames())
}

func TestPlayedFrameMatchesRenderFrame(t *testing.T) {
	p, r := newPlayer(t)
	p.SetSpeed(40)

	var shown []Shown
	_, err := p.Play(context.Background(), 1000, func(s Shown) error {
		shown = append(shown, s)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, shown)
	assert.Equal(t, 30, shown[0].Frame)

	for _, s := range shown[:min(3, len(shown))] {
		want, _, err := r.RenderFrame(context.Background(), s.TimelineMs)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want.Pix, s.Image.Pix), "frame %d", s.Frame)
	}
}

func TestPlayStopsOnCancelAndDisplayError(t *testing.T) {
	p, _ := newPlayer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Play(ctx, 0, func(Shown) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stop := errors.New("window closed")
	n := 0
	_, err = p.Play(context.Background(), 0, func(Shown) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestSeekAndSetSpeed(t *testing.T) {
	p, _ := newPlayer(t)
	p.SetSpeed(-1)
	assert.Equal(t, 1.0, p.Speed())

	s, err := p.Seek(context.Background(), 1505)
	require.NoError(t, err)
	assert.Equal(t, 45, s.Frame)
	assert.InDelta(t, 1500, float64(s.TimelineMs), 1e-9)
	assert.False(t, s.Result.Degraded)

	s, err = p.Seek(context.Background(), 1990)
	require.NoError(t, err)
	assert.Equal(t, 59, s.Frame)
}

func TestSetSpeedWhilePlaying(t *testing.T) {
	p, _ := newPlayer(t)
	p.SetSpeed(40)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			p.SetSpeed(float64(40 + i))
		}
	}()
	_, err := p.Play(context.Background(), 0, func(Shown) error { return nil })
	<-done
	require.NoError(t, err)
	assert.Equal(t, 89.0, p.Speed())
}
