// Package engine exports a project to a video file.
//
// A job runs three stages connected by bounded channels: decode (one
// goroutine, frames in order), compose (a small worker pool) and encode
// (one goroutine that restores frame order and feeds the encoder). The
// channel depth bounds memory no matter how long the project is.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/logging"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/render"
	"github.com/ivlev/screenreel/internal/source"
	"github.com/ivlev/screenreel/internal/stats"
	"github.com/ivlev/screenreel/internal/system"
	"github.com/ivlev/screenreel/internal/video"
)

// Engine starts export jobs and allows one running job per project.
type Engine struct {
	cfg     *config.Config
	baseDir string
	open    func(project.Recording) (source.FrameSource, error)
	encoder video.VideoEncoder
	history *stats.Store
	log     zerolog.Logger

	mu      sync.Mutex
	running map[string]*Job
}

type Option func(*Engine)

// WithSourceOpener replaces how recordings are opened for decoding.
func WithSourceOpener(open func(project.Recording) (source.FrameSource, error)) Option {
	return func(e *Engine) { e.open = open }
}

// WithEncoder forces an encoder instead of the one matching the format.
func WithEncoder(enc video.VideoEncoder) Option {
	return func(e *Engine) { e.encoder = enc }
}

// WithHistory records every finished job in store.
func WithHistory(store *stats.Store) Option {
	return func(e *Engine) { e.history = store }
}

// WithBaseDir resolves relative recording, event and image paths.
func WithBaseDir(dir string) Option {
	return func(e *Engine) { e.baseDir = dir }
}

func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		log:     logging.WithComponent("engine"),
		running: make(map[string]*Job),
	}
	for _, o := range opts {
		o(e)
	}
	if e.open == nil {
		e.open = source.Opener(render.SourceOptions(cfg, e.baseDir))
	}
	return e
}

// OutputPath is where an export of p lands when no path is given.
func (e *Engine) OutputPath(p *project.Project) (string, error) {
	enc, err := system.EncoderFor(e.cfg.Export.Format, e.cfg.Export.Encoder)
	if err != nil {
		return "", apperr.New(apperr.KindSettings, "output path", err)
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return filepath.Join(e.cfg.Export.OutputDir, name+enc.Extension), nil
}

// Start launches an export of a snapshot of p. It fails immediately with
// apperr.ErrExportInProgress when p is already being exported; every other
// failure is reported through the job.
func (e *Engine) Start(ctx context.Context, p *project.Project, output string, cb Callbacks) (*Job, error) {
	e.mu.Lock()
	if _, busy := e.running[p.ID]; busy {
		e.mu.Unlock()
		return nil, fmt.Errorf("project %s: %w", p.ID, apperr.ErrExportInProgress)
	}
	job := newJob(uuid.NewString(), p.ID)
	e.running[p.ID] = job
	e.mu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel

	snapshot := p.Clone()
	go func() {
		defer cancel()
		e.run(jobCtx, job, snapshot, output, cb)
	}()
	return job, nil
}

// Export runs a job to completion.
func (e *Engine) Export(ctx context.Context, p *project.Project, output string, cb Callbacks) (string, error) {
	job, err := e.Start(ctx, p, output, cb)
	if err != nil {
		return "", err
	}
	return job.Wait()
}

func (e *Engine) release(job *Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[job.ProjectID] == job {
		delete(e.running, job.ProjectID)
	}
}

// report carries the timings and counters of one run.
type report struct {
	run      stats.Run
	frames   atomic.Int64
	degraded atomic.Int64
	held     atomic.Int64
	encode   atomic.Int64 // nanoseconds spent in WriteFrame
}

func (e *Engine) run(ctx context.Context, job *Job, p *project.Project, output string, cb Callbacks) {
	log := e.log.With().Str("job", job.ID).Str("project", p.ID).Logger()
	rep := &report{run: stats.Run{
		ID:        job.ID,
		ProjectID: p.ID,
		Format:    e.cfg.Export.Format,
		Width:     e.cfg.Export.Width,
		Height:    e.cfg.Export.Height,
		FPS:       e.cfg.Export.FPS,
		StartedAt: time.Now(),
		Build:     e.cfg.BuildVersion,
	}}

	job.setState(StateInitializing)
	log.Info().Str("state", StateInitializing.String()).Msg("export state")

	lib := source.NewLibrary(e.open)
	defer lib.Close()

	r, sink, out, err := e.initialize(ctx, p, lib, output)
	rep.run.Output = out
	if err != nil {
		e.end(ctx, job, rep, StateFailed, "", err, cb, log)
		return
	}
	rep.run.Total = r.TotalFrames()

	job.setState(StateRunning)
	log.Info().Str("state", StateRunning.String()).Int("frames", r.TotalFrames()).Str("output", out).Msg("export state")

	renderStart := time.Now()
	err = e.pipeline(ctx, job, r, sink, rep, cb, log)
	rep.run.Render = time.Since(renderStart)
	if err != nil {
		sink.Abort()
		state := StateFailed
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			state, err = StateCancelled, nil
		}
		e.end(ctx, job, rep, state, "", err, cb, log)
		return
	}

	e.progress(job, cb, Progress{Frame: r.TotalFrames(), Total: r.TotalFrames(), Stage: StageEncoding})
	finalizeStart := time.Now()
	path, err := sink.Finalize(ctx)
	rep.run.Finalize = time.Since(finalizeStart)
	if err != nil {
		sink.Abort()
		state := StateFailed
		if ctx.Err() != nil {
			state, err = StateCancelled, nil
		}
		e.end(ctx, job, rep, state, "", err, cb, log)
		return
	}

	e.progress(job, cb, Progress{Frame: r.TotalFrames(), Total: r.TotalFrames(), Stage: StageFinalizing})
	e.end(ctx, job, rep, StateCompleted, path, nil, cb, log)
}

// initialize validates settings, builds the frame layout and opens the
// encoder, in that order, so a bad project never creates output files.
func (e *Engine) initialize(ctx context.Context, p *project.Project, lib *source.Library, output string) (*render.Renderer, video.Sink, string, error) {
	if err := e.cfg.Export.Validate(); err != nil {
		return nil, nil, output, err
	}
	enc, err := system.EncoderFor(e.cfg.Export.Format, e.cfg.Export.Encoder)
	if err != nil {
		return nil, nil, output, apperr.New(apperr.KindSettings, "select encoder", err)
	}
	if output == "" {
		if output, err = e.OutputPath(p); err != nil {
			return nil, nil, output, err
		}
	}

	r, err := render.New(p, lib, render.OptionsFromConfig(e.cfg, e.baseDir))
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.New(apperr.KindTimeMapping, "build layout", err)
		}
		return nil, nil, output, err
	}
	if r.TotalFrames() == 0 {
		return nil, nil, output, apperr.New(apperr.KindSettings, "build layout", fmt.Errorf("project has no frames"))
	}

	encoder := e.encoder
	if encoder == nil {
		encoder = video.ForFormat(e.cfg.Export.Format)
	}
	sink, err := encoder.Open(ctx, output, video.Settings{
		Width:   e.cfg.Export.Width,
		Height:  e.cfg.Export.Height,
		FPS:     e.cfg.Export.FPS,
		Format:  e.cfg.Export.Format,
		Quality: e.cfg.Export.Quality,
		Encoder: enc.Name,
	})
	if err != nil {
		return nil, nil, output, err
	}
	return r, sink, output, nil
}

type decodedFrame struct {
	plan render.Frame
	src  image.Image
}

type composedFrame struct {
	index int
	img   *image.RGBA
}

func (e *Engine) pipeline(ctx context.Context, job *Job, r *render.Renderer, sink video.Sink, rep *report, cb Callbacks, log zerolog.Logger) error {
	total := r.TotalFrames()
	w, h := e.cfg.Export.Width, e.cfg.Export.Height
	depth := system.DecodeAhead(e.cfg.Export.DecodeAhead, w*h*4)
	workers := max(1, e.cfg.Export.Workers)

	e.progress(job, cb, Progress{Frame: 0, Total: total, Stage: StageRendering})

	g, gctx := errgroup.WithContext(ctx)
	decoded := make(chan decodedFrame, depth)
	composed := make(chan composedFrame, depth)

	g.Go(func() error {
		defer close(decoded)
		return e.decode(gctx, r, total, decoded, rep, log)
	})

	var composers sync.WaitGroup
	for i := 0; i < workers; i++ {
		composers.Add(1)
		g.Go(func() error {
			defer composers.Done()
			return e.compose(gctx, r, w, h, decoded, composed, rep, log)
		})
	}
	go func() {
		composers.Wait()
		close(composed)
	}()

	g.Go(func() error {
		return e.encode(gctx, job, sink, total, composed, rep, cb)
	})

	err := g.Wait()
	for c := range composed {
		system.PutImage(c.img)
	}
	return err
}

// decode plans every frame in order and fetches its source image. A failed
// fetch is retried once; after that the last good source image is held and
// the gap is logged.
func (e *Engine) decode(ctx context.Context, r *render.Renderer, total int, out chan<- decodedFrame, rep *report, log zerolog.Logger) error {
	var held image.Image
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		plan, err := r.Plan(i)
		if err != nil {
			return err
		}

		src, err := r.SourceFrame(ctx, plan)
		if err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Int("frame", i).Msg("decode failed, retrying")
			src, err = r.SourceFrame(ctx, plan)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rep.held.Add(1)
			log.Warn().Err(err).Int("frame", i).Float64("source_ms", float64(plan.SourceMs)).
				Bool("holding", held != nil).Msg("decode gap")
			src = held
		}
		if plan.Active && src != nil {
			held = src
		}

		select {
		case out <- decodedFrame{plan: plan, src: src}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) compose(ctx context.Context, r *render.Renderer, w, h int, in <-chan decodedFrame, out chan<- composedFrame, rep *report, log zerolog.Logger) error {
	for d := range in {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := system.GetImage(w, h)
		if res := r.Compose(dst, d.plan, d.src); res.Degraded {
			rep.degraded.Add(1)
			log.Warn().Int("frame", d.plan.Index).Msg("degraded frame, video layer missing")
		}
		select {
		case out <- composedFrame{index: d.plan.Index, img: dst}:
		case <-ctx.Done():
			system.PutImage(dst)
			return ctx.Err()
		}
	}
	return nil
}

// encode writes frames to the sink in index order. Workers may finish out
// of order; early frames wait in pending, which holds at most the frames in
// flight.
func (e *Engine) encode(ctx context.Context, job *Job, sink video.Sink, total int, in <-chan composedFrame, rep *report, cb Callbacks) error {
	pending := make(map[int]*image.RGBA)
	next := 0
	for next < total {
		var c composedFrame
		var ok bool
		select {
		case c, ok = <-in:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			// upstream stopped early; its error is what g.Wait reports
			return ctx.Err()
		}
		pending[c.index] = c.img

		for img, ready := pending[next]; ready; img, ready = pending[next] {
			delete(pending, next)
			if err := ctx.Err(); err != nil {
				system.PutImage(img)
				return err
			}
			start := time.Now()
			err := sink.WriteFrame(ctx, img)
			rep.encode.Add(int64(time.Since(start)))
			system.PutImage(img)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if apperr.KindOf(err) == "" {
					err = apperr.AtFrame(apperr.KindEncode, "write frame", next, err)
				}
				return err
			}
			next++
			rep.frames.Store(int64(next))
			e.progress(job, cb, Progress{Frame: next, Total: total, Stage: StageRendering})
		}
	}
	return nil
}

func (e *Engine) progress(job *Job, cb Callbacks, p Progress) {
	job.setProgress(p)
	if cb.OnProgress != nil {
		cb.OnProgress(p)
	}
}

func (e *Engine) end(ctx context.Context, job *Job, rep *report, state State, output string, err error, cb Callbacks, log zerolog.Logger) {
	rep.run.Status = state.String()
	rep.run.Frames = int(rep.frames.Load())
	rep.run.Degraded = int(rep.degraded.Load())
	rep.run.Held = int(rep.held.Load())
	rep.run.Encode = time.Duration(rep.encode.Load())
	rep.run.Elapsed = time.Since(rep.run.StartedAt)
	if err != nil {
		rep.run.Error = err.Error()
	}

	if e.history != nil {
		if herr := e.history.Record(context.WithoutCancel(ctx), rep.run); herr != nil {
			log.Warn().Err(herr).Msg("failed to record export history")
		}
	}

	switch state {
	case StateCompleted:
		log.Info().Str("state", state.String()).Str("output", output).
			Int("frames", rep.run.Frames).Int("degraded", rep.run.Degraded).Int("held", rep.run.Held).
			Dur("elapsed", rep.run.Elapsed).Msg("export state")
	case StateCancelled:
		log.Info().Str("state", state.String()).Int("frames", rep.run.Frames).Msg("export state")
	default:
		log.Error().Err(err).Str("state", state.String()).Str("kind", string(apperr.KindOf(err))).Msg("export state")
	}

	e.release(job)
	job.finish(state, output, err)

	switch state {
	case StateCompleted:
		if cb.OnComplete != nil {
			cb.OnComplete(output)
		}
	case StateFailed:
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}
}

// LastRun returns the history entry of a finished job, if history is kept.
func (e *Engine) LastRun(ctx context.Context, job *Job) (stats.Run, bool) {
	if e.history == nil {
		return stats.Run{}, false
	}
	runs, err := e.history.Recent(ctx, job.ProjectID, 10)
	if err != nil {
		return stats.Run{}, false
	}
	for _, r := range runs {
		if r.ID == job.ID {
			return r, true
		}
	}
	return stats.Run{}, false
}
