// Package render evaluates one output frame of a project. Preview and
// export both go through Renderer, so the frame shown while editing is the
// frame written to the file.
package render

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/camera"
	"github.com/ivlev/screenreel/internal/compositor"
	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/layout"
	"github.com/ivlev/screenreel/internal/logging"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/source"
	"github.com/ivlev/screenreel/internal/timebase"
)

const maxKeyLabels = 6

// Options fix the output canvas and the overlay tuning.
type Options struct {
	Width  int
	Height int
	FPS    int
	Camera camera.Config
	Style  compositor.Style

	KeyHoldMs            float64 // how long a keypress stays on screen, in output time
	ClickToleranceFrames float64 // a click within this many frames shows a pressed cursor
	Debug                bool    // stamp frames with a QR code of index and time
	BaseDir              string  // resolves relative event stream and image paths
}

// DefaultOptions renders 1080p60 with stock tuning.
func DefaultOptions() Options {
	return Options{
		Width:                1920,
		Height:               1080,
		FPS:                  60,
		Camera:               camera.DefaultConfig(),
		Style:                compositor.DefaultStyle(),
		KeyHoldMs:            800,
		ClickToleranceFrames: 1,
	}
}

// OptionsFromConfig takes canvas, camera and overlay settings from cfg.
func OptionsFromConfig(cfg *config.Config, baseDir string) Options {
	return Options{
		Width:  cfg.Export.Width,
		Height: cfg.Export.Height,
		FPS:    cfg.Export.FPS,
		Camera: cfg.Camera.Config,
		Style: compositor.Style{
			CursorSize:    cfg.Cursor.Size,
			ClickRippleMs: cfg.Cursor.ClickRippleMs,
		},
		KeyHoldMs:            cfg.Cursor.KeyHoldMs,
		ClickToleranceFrames: cfg.Cursor.ClickToleranceFrames,
		Debug:                cfg.Debug,
		BaseDir:              baseDir,
	}
}

// SourceOptions decodes recordings no taller than the export unless
// cfg caps decode height explicitly.
func SourceOptions(cfg *config.Config, baseDir string) source.Options {
	maxH := cfg.Export.MaxDecodeHeight
	if maxH <= 0 {
		maxH = cfg.Export.Height
	}
	return source.Options{MaxHeight: maxH, CacheFrames: source.DefaultOptions().CacheFrames, BaseDir: baseDir}
}

// Frame is the evaluated state of one output frame, minus the decoded
// source image.
type Frame struct {
	Index      int
	TimelineMs timebase.TimelineMs

	// Active is false for gap frames, which show the background only.
	Active    bool
	Entry     layout.Entry
	Clip      project.Clip
	Recording project.Recording
	ClipMs    timebase.ClipMs
	SourceMs  timebase.SourceMs

	Input compositor.Input
}

// Renderer holds everything derived from a project once: its frame layout,
// event tracks and background images. One Renderer may be used from several
// goroutines; SetStream is the only mutation and is guarded.
type Renderer struct {
	project *project.Project
	layout  *layout.Layout
	opts    Options
	sources *source.Library
	assets  compositor.Assets
	log     zerolog.Logger

	mu      sync.RWMutex
	streams map[string]*events.Stream
}

// New validates the project, builds its layout and loads event streams and
// background images. A missing or malformed event stream is logged and
// treated as empty.
func New(p *project.Project, lib *source.Library, opts Options) (*Renderer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l, err := layout.BuildProject(p, opts.FPS)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		project: p,
		layout:  l,
		opts:    opts,
		sources: lib,
		streams: make(map[string]*events.Stream, len(p.Recordings)),
		log:     logging.WithComponent("render"),
	}

	for _, rec := range p.Recordings {
		r.streams[rec.ID] = r.loadStream(rec)
	}

	assets, err := source.LoadAssets(backgrounds(p), opts.BaseDir)
	if err != nil {
		return nil, err
	}
	r.assets = assets
	return r, nil
}

func (r *Renderer) loadStream(rec project.Recording) *events.Stream {
	if rec.EventStream == "" {
		return events.NewStream(nil)
	}
	path := rec.EventStream
	if !filepath.IsAbs(path) && r.opts.BaseDir != "" {
		path = filepath.Join(r.opts.BaseDir, path)
	}
	s, err := events.Load(path)
	if err != nil {
		r.log.Warn().Err(err).Str("recording", rec.ID).Msg("event stream unreadable, cursor and follow disabled")
		return events.NewStream(nil)
	}
	for _, e := range s.Errs() {
		r.log.Warn().Err(e).Str("recording", rec.ID).Msg("event track unusable")
	}
	if s.Unknown > 0 {
		r.log.Debug().Int("records", s.Unknown).Str("recording", rec.ID).Msg("skipped events of unknown kind")
	}
	return s
}

// SetStream replaces the event stream of a recording.
func (r *Renderer) SetStream(recordingID string, s *events.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[recordingID] = s
}

func (r *Renderer) stream(recordingID string) *events.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[recordingID]
}

func backgrounds(p *project.Project) []project.Background {
	out := []project.Background{p.Background}
	for _, c := range p.Clips {
		for _, e := range c.Effects {
			if b, ok := e.(project.BackgroundEffect); ok {
				out = append(out, b.Background)
			}
		}
	}
	return out
}

func (r *Renderer) Layout() *layout.Layout { return r.layout }

func (r *Renderer) Options() Options { return r.opts }

// TotalFrames is the number of frames of the whole project.
func (r *Renderer) TotalFrames() int { return r.layout.TotalFrames }

// FrameAt converts a timeline instant into the frame that shows it. Any
// instant before the project's end maps to a frame inside the layout.
func (r *Renderer) FrameAt(t timebase.TimelineMs) int {
	frame := timebase.FrameIndex(t, r.opts.FPS)
	if t >= 0 && t < r.project.Duration() && frame >= r.layout.TotalFrames {
		return r.layout.TotalFrames - 1
	}
	return frame
}

// Plan evaluates everything frame depends on except the source image. The
// frame is evaluated at its own start instant, so callers that reach the
// same frame from different timeline positions get the same result.
//
// Frames outside the layout and layout entries that no longer resolve to a
// clip and recording are time mapping errors.
func (r *Renderer) Plan(frame int) (Frame, error) {
	if frame < 0 || frame >= r.layout.TotalFrames {
		return Frame{}, apperr.AtFrame(apperr.KindTimeMapping, "plan frame", frame,
			fmt.Errorf("frame outside [0, %d)", r.layout.TotalFrames))
	}
	t := timebase.FrameTime(frame, r.opts.FPS)
	f := Frame{
		Index:      frame,
		TimelineMs: t,
		Input: compositor.Input{
			Background: r.project.Background,
			Assets:     r.assets,
			Camera:     camera.Identity(),
			CursorLook: project.CursorStyle{Hidden: true},
			Style:      r.opts.Style,
		},
	}
	if r.opts.Debug {
		f.Input.Stamp = &compositor.Stamp{Frame: frame, TimelineMs: float64(t)}
	}

	entry, ok := r.layout.Resolve(frame)
	if !ok {
		return f, nil
	}
	clip, ok := r.project.Clip(entry.ClipID)
	if !ok {
		return Frame{}, apperr.AtFrame(apperr.KindTimeMapping, "plan frame", frame,
			fmt.Errorf("%w: layout refers to missing clip %s", apperr.ErrInvalidClip, entry.ClipID))
	}
	rec, ok := r.project.Recording(clip.RecordingID)
	if !ok {
		return Frame{}, apperr.AtFrame(apperr.KindTimeMapping, "plan frame", frame,
			fmt.Errorf("%w: clip %s refers to missing recording %s", apperr.ErrInvalidClip, clip.ID, clip.RecordingID))
	}

	m := clip.Mapping()
	clipMs := m.Clamp(timebase.ToClipRelative(m, t))
	srcMs := timebase.ToSourceTime(m, clipMs)

	f.Active = true
	f.Entry = entry
	f.Clip = clip
	f.Recording = rec
	f.ClipMs = clipMs
	f.SourceMs = srcMs

	resolved := clip.ResolveEffects(clipMs, r.project.Background, r.project.Cursor)
	stream := r.stream(rec.ID)
	if stream == nil {
		stream = events.NewStream(nil)
	}
	pointer := trackPath{track: stream.Pointer, mapping: m, rec: rec}
	signals := camera.Signals{
		Pointer: pointer,
		Caret:   trackPath{track: stream.Caret, mapping: m, rec: rec},
	}

	f.Input.Background = resolved.Background
	f.Input.CursorLook = resolved.Cursor
	f.Input.Camera = camera.Evaluate(r.opts.Camera, resolved.Zoom, clipMs, signals)
	f.Input.Pointer = pointer.PointAt(clipMs)
	f.Input.Cursor = r.cursorState(stream, f.Input.Pointer, srcMs, clip.PlaybackRate)
	if resolved.Cursor.ShowKeystrokes {
		f.Input.Keys = r.keyLabels(stream.Keys, srcMs, clip.PlaybackRate)
	}
	return f, nil
}

// cursorState looks up clicks around src. Windows are given in output time
// and widened by the playback rate to cover the same span of source time.
func (r *Renderer) cursorState(s *events.Stream, pos events.Point, src timebase.SourceMs, rate float64) compositor.CursorState {
	cs := compositor.CursorState{Position: pos, ClickAgeMs: -1}
	tol := r.opts.ClickToleranceFrames * timebase.FrameDuration(r.opts.FPS) * rate
	if _, ok := s.Clicks.Nearest(src, tol); ok {
		cs.Pressed = true
	}
	window := timebase.SourceMs(r.opts.Style.ClickRippleMs * rate)
	if recent := s.Clicks.Between(src-window, src); len(recent) > 0 {
		last := recent[len(recent)-1]
		cs.ClickAgeMs = float64(src-last.Time()) / rate
	}
	return cs
}

func (r *Renderer) keyLabels(keys *events.Track, src timebase.SourceMs, rate float64) []string {
	held := keys.Between(src-timebase.SourceMs(r.opts.KeyHoldMs*rate), src)
	if len(held) > maxKeyLabels {
		held = held[len(held)-maxKeyLabels:]
	}
	labels := make([]string, 0, len(held))
	for _, k := range held {
		if label := keyLabel(k); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func keyLabel(s events.Sample) string {
	if s.Key == "" {
		return ""
	}
	if len(s.Modifiers) == 0 {
		return s.Key
	}
	return strings.Join(append(append([]string(nil), s.Modifiers...), s.Key), "+")
}

// SourceFrame decodes the recording frame f shows. Gap frames have none.
func (r *Renderer) SourceFrame(ctx context.Context, f Frame) (image.Image, error) {
	if !f.Active {
		return nil, nil
	}
	src, err := r.sources.Source(f.Recording)
	if err != nil {
		return nil, err
	}
	return src.FrameAt(ctx, f.SourceMs)
}

// Compose draws f with the decoded source image into dst. A nil src on an
// active frame yields a degraded frame; gap frames are never degraded.
func (r *Renderer) Compose(dst *image.RGBA, f Frame, src image.Image) compositor.Result {
	in := f.Input
	in.Source = src
	res := compositor.ComposeInto(dst, in)
	if !f.Active {
		res.Degraded = false
	}
	return res
}

// RenderFrame is the preview entry point: it renders the frame that shows
// timeline instant t. A decode failure degrades the frame instead of
// failing it. Instants past the last frame are time mapping errors.
func (r *Renderer) RenderFrame(ctx context.Context, t timebase.TimelineMs) (*image.RGBA, compositor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, compositor.Result{}, err
	}
	f, err := r.Plan(r.FrameAt(t))
	if err != nil {
		return nil, compositor.Result{}, err
	}
	src, err := r.SourceFrame(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil, compositor.Result{}, ctx.Err()
		}
		r.log.Debug().Err(err).Int("frame", f.Index).Msg("source frame unavailable")
		src = nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))
	return dst, r.Compose(dst, f, src), nil
}

// trackPath exposes an event track in clip time and normalized capture
// coordinates.
type trackPath struct {
	track   *events.Track
	mapping timebase.Mapping
	rec     project.Recording
}

func (p trackPath) PointAt(t timebase.ClipMs) events.Point {
	pos := p.track.Interpolate(timebase.ToSourceTime(p.mapping, t))
	return pos.Normalize(p.rec.CaptureWidth, p.rec.CaptureHeight, p.rec.Scale())
}
