// Package preview plays a project in real time. Each tick renders the frame
// under the playhead through the same Renderer the exporter uses; frames
// the host cannot keep up with are skipped, never approximated.
package preview

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/screenreel/internal/compositor"
	"github.com/ivlev/screenreel/internal/logging"
	"github.com/ivlev/screenreel/internal/render"
	"github.com/ivlev/screenreel/internal/timebase"
)

// Shown is one displayed frame.
type Shown struct {
	Frame      int
	TimelineMs timebase.TimelineMs
	Image      *image.RGBA
	Result     compositor.Result
}

// Display receives frames in playback order. Returning an error stops
// playback.
type Display func(Shown) error

type Player struct {
	renderer *render.Renderer
	log      zerolog.Logger

	mu    sync.Mutex
	speed float64
}

// NewPlayer plays r at real time.
func NewPlayer(r *render.Renderer) *Player {
	return &Player{renderer: r, speed: 1, log: logging.WithComponent("preview")}
}

// SetSpeed changes the playback speed multiplier. Non-positive values are
// ignored. It may be called while playing; the change applies from the next
// Play.
func (p *Player) SetSpeed(speed float64) {
	if speed > 0 {
		p.mu.Lock()
		p.speed = speed
		p.mu.Unlock()
	}
}

// Speed returns the current playback speed multiplier.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Seek renders the frame at t without playing.
func (p *Player) Seek(ctx context.Context, t timebase.TimelineMs) (Shown, error) {
	img, res, err := p.renderer.RenderFrame(ctx, t)
	if err != nil {
		return Shown{}, err
	}
	frame := p.renderer.FrameAt(t)
	return Shown{Frame: frame, TimelineMs: timebase.FrameTime(frame, p.renderer.Options().FPS), Image: img, Result: res}, nil
}

// Play advances the playhead from `from` with the wall clock and shows every
// frame it lands on until the end of the project, ctx is done or show fails.
// It reports how many frames were dropped.
func (p *Player) Play(ctx context.Context, from timebase.TimelineMs, show Display) (int, error) {
	fps := p.renderer.Options().FPS
	total := p.renderer.TotalFrames()
	speed := p.Speed()
	interval := time.Duration(float64(time.Second) / float64(fps) / speed)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	last := p.renderer.FrameAt(from) - 1
	dropped := 0

	step := func(now time.Time) (bool, error) {
		elapsed := float64(now.Sub(start)) / float64(time.Millisecond) * speed
		t := from + timebase.TimelineMs(elapsed)
		frame := p.renderer.FrameAt(t)
		if frame >= total {
			return true, nil
		}
		if frame <= last {
			return false, nil
		}
		if skipped := frame - last - 1; skipped > 0 {
			dropped += skipped
		}
		last = frame

		shown, err := p.Seek(ctx, t)
		if err != nil {
			return true, err
		}
		if shown.Result.Degraded {
			p.log.Debug().Int("frame", frame).Msg("degraded preview frame")
		}
		return false, show(shown)
	}

	if done, err := step(start); done || err != nil {
		return dropped, err
	}
	for {
		select {
		case <-ctx.Done():
			return dropped, ctx.Err()
		case now := <-ticker.C:
			if done, err := step(now); done || err != nil {
				return dropped, err
			}
		}
	}
}
