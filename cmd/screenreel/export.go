package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/engine"
	"github.com/ivlev/screenreel/internal/stats"
)

var exportFlags struct {
	output  string
	width   int
	height  int
	fps     int
	format  string
	quality int
	workers int
	plain   bool
}

var exportCmd = &cobra.Command{
	Use:   "export [project file]",
	Short: "Render a project to a video file or image sequence",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		applyExportFlags(cmd, cfg)
		if err := cfg.Export.Validate(); err != nil {
			return err
		}

		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}

		history := openHistory(cfg)
		if history != nil {
			defer history.Close()
		}
		eng := engine.New(cfg, engine.WithHistory(history), engine.WithBaseDir(ws.baseDir))

		output := exportFlags.output
		if output == "" {
			if output, err = eng.OutputPath(ws.project); err != nil {
				return err
			}
		}

		if exportFlags.plain {
			return exportPlain(cmd.Context(), eng, ws, output)
		}
		return exportTUI(cmd.Context(), eng, ws, output, cfg)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.output, "output", "o", "", "output path (default: <output_dir>/<project name>.<ext>)")
	f.IntVar(&exportFlags.width, "width", 0, "output width")
	f.IntVar(&exportFlags.height, "height", 0, "output height")
	f.IntVar(&exportFlags.fps, "fps", 0, "output frame rate")
	f.StringVar(&exportFlags.format, "format", "", "mp4, mov, webm or png")
	f.IntVar(&exportFlags.quality, "quality", 0, "encoder quality (crf or cq)")
	f.IntVar(&exportFlags.workers, "workers", 0, "parallel compositors")
	f.BoolVar(&exportFlags.plain, "plain", false, "log progress instead of drawing a progress bar")
}

// applyExportFlags overrides config values for flags given on the command line.
func applyExportFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("width") {
		cfg.Export.Width = exportFlags.width
	}
	if f.Changed("height") {
		cfg.Export.Height = exportFlags.height
	}
	if f.Changed("fps") {
		cfg.Export.FPS = exportFlags.fps
	}
	if f.Changed("format") {
		cfg.Export.Format = exportFlags.format
	}
	if f.Changed("quality") {
		cfg.Export.Quality = exportFlags.quality
	}
	if f.Changed("workers") {
		cfg.Export.Workers = exportFlags.workers
	}
}

// openHistory opens the export history database. History is optional, so
// failures are logged and nil is returned.
func openHistory(cfg *config.Config) *stats.Store {
	if !cfg.Stats.Enabled {
		return nil
	}
	store, err := stats.Open(cfg.Stats.DBPath)
	if err != nil {
		log.Warn().Err(err).Str("db", cfg.Stats.DBPath).Msg("export history disabled")
		return nil
	}
	return store
}

func exportTUI(ctx context.Context, eng *engine.Engine, ws *workspace, output string, cfg *config.Config) error {
	updates := make(chan tea.Msg, 16)
	job, err := eng.Start(ctx, ws.project, output, engine.Callbacks{
		OnProgress: func(p engine.Progress) {
			// the bar only needs the latest value
			select {
			case updates <- progressMsg(p):
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	go func() {
		out, err := job.Wait()
		updates <- exportDoneMsg{output: out, err: err}
	}()

	fmt.Println(title("screenreel export"))
	statuses := []string{
		fmt.Sprintf("Project %s", ws.project.Name),
		fmt.Sprintf("%dx%d @ %d fps, %s", cfg.Export.Width, cfg.Export.Height, cfg.Export.FPS, cfg.Export.Format),
	}
	final, err := tea.NewProgram(newExportModel(updates, job.Cancel, statuses)).Run()
	if err != nil {
		job.Cancel()
		<-job.Done()
		return err
	}

	if run, ok := eng.LastRun(ctx, job); ok {
		fmt.Print(MutedStyle.Render(run.Report()))
	}
	if m, ok := final.(exportModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

func exportPlain(ctx context.Context, eng *engine.Engine, ws *workspace, output string) error {
	lastDecile := -1
	job, err := eng.Start(ctx, ws.project, output, engine.Callbacks{
		OnProgress: func(p engine.Progress) {
			decile := int(p.Percent()) / 10
			if decile == lastDecile && p.Stage == engine.StageRendering {
				return
			}
			lastDecile = decile
			log.Info().Str("stage", string(p.Stage)).Int("frame", p.Frame).Int("total", p.Total).
				Msgf("%.0f%%", p.Percent())
		},
	})
	if err != nil {
		return err
	}

	path, err := job.Wait()
	if run, ok := eng.LastRun(ctx, job); ok {
		fmt.Print(run.Report())
	}
	if err != nil {
		return err
	}
	log.Info().Str("output", path).Msg("export complete")
	return nil
}
