package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/events"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/render"
	"github.com/ivlev/screenreel/internal/source"
	"github.com/ivlev/screenreel/internal/system"
)

// projectsDir is searched for the newest project document when none is given.
const projectsDir = "projects"

// workspace is a loaded project and the directory its relative paths
// resolve against.
type workspace struct {
	project *project.Project
	path    string
	baseDir string
}

func openWorkspace(ctx context.Context, args []string) (*workspace, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		latest, err := system.FindLatestProject(projectsDir)
		if err != nil {
			return nil, fmt.Errorf("no project given and none found in %s/: %w", projectsDir, err)
		}
		path = latest
		log.Info().Str("project", path).Msg("using latest project")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	p, err := project.Load(abs)
	if err != nil {
		return nil, err
	}
	ws := &workspace{project: p, path: abs, baseDir: filepath.Dir(abs)}
	ws.probeRecordings(ctx)
	return ws, nil
}

// probeRecordings fills capture size and frame rate from the video file
// for recordings whose document leaves them out.
func (ws *workspace) probeRecordings(ctx context.Context) {
	for i := range ws.project.Recordings {
		rec := &ws.project.Recordings[i]
		if rec.CaptureWidth > 0 && rec.CaptureHeight > 0 && rec.FPS > 0 {
			continue
		}
		path := ws.resolve(rec.VideoSource)
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			continue
		}
		info, err := system.ProbeVideo(ctx, path)
		if err != nil {
			log.Warn().Err(err).Str("recording", rec.ID).Msg("could not probe recording")
			continue
		}
		fillRecording(rec, info)
		log.Debug().Str("recording", rec.ID).Int("width", rec.CaptureWidth).Int("height", rec.CaptureHeight).
			Float64("fps", rec.FPS).Msg("probed recording")
	}
	ws.project.Reindex()
}

func fillRecording(rec *project.Recording, info system.VideoInfo) {
	if rec.CaptureWidth <= 0 || rec.CaptureHeight <= 0 {
		rec.CaptureWidth, rec.CaptureHeight = info.Width, info.Height
	}
	if rec.FPS <= 0 {
		rec.FPS = info.FPS
	}
}

func (ws *workspace) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ws.baseDir, path)
}

// streams loads every recording's event stream. Recordings without a
// readable stream are left out.
func (ws *workspace) streams() map[string]*events.Stream {
	out := make(map[string]*events.Stream)
	for _, rec := range ws.project.Recordings {
		if rec.EventStream == "" {
			continue
		}
		s, err := events.Load(ws.resolve(rec.EventStream))
		if err != nil {
			log.Warn().Err(err).Str("recording", rec.ID).Msg("event stream unreadable")
			continue
		}
		out[rec.ID] = s
	}
	return out
}

// renderer builds a renderer over freshly opened sources. The returned
// library must be closed by the caller.
func (ws *workspace) renderer(cfg *config.Config) (*render.Renderer, *source.Library, error) {
	lib := source.NewLibrary(source.Opener(render.SourceOptions(cfg, ws.baseDir)))
	r, err := render.New(ws.project, lib, render.OptionsFromConfig(cfg, ws.baseDir))
	if err != nil {
		lib.Close()
		return nil, nil, err
	}
	return r, lib, nil
}
