package main

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/director"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/render"
	"github.com/ivlev/screenreel/internal/source"
	"github.com/ivlev/screenreel/internal/timebase"
)

var suggestFlags struct {
	dir      string
	apply    bool
	scenario string
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [project file]",
	Short: "Suggest zoom blocks from clicks and speed up typing",
	Long: "Writes a scenario file with zoom blocks around clicked areas and faster playback for typing bursts. " +
		"Review or edit it, then run again with --apply to change the project.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}
		dir := suggestFlags.dir
		if dir == "" {
			dir = filepath.Join(ws.baseDir, "scenarios")
		}

		if suggestFlags.apply {
			return applyScenario(ws, dir)
		}

		lib := source.NewLibrary(source.Opener(render.SourceOptions(cfg, ws.baseDir)))
		defer lib.Close()
		d := &director.Director{
			Options: cfg.Suggest,
			Frames: func(ctx context.Context, rec project.Recording, t timebase.SourceMs) (image.Image, error) {
				src, err := lib.Source(rec)
				if err != nil {
					return nil, err
				}
				return src.FrameAt(ctx, t)
			},
		}
		s, err := d.GenerateScenario(cmd.Context(), ws.project, ws.streams())
		if err != nil {
			return err
		}
		path := director.GenerateScenarioPath(dir, time.Now())
		if err := director.WriteScenario(s, path); err != nil {
			return err
		}

		blocks, speedups := 0, 0
		for _, c := range s.Clips {
			blocks += len(c.Zoom)
			speedups += len(c.Speedups)
		}
		fmt.Println(title("screenreel suggest"))
		fmt.Print(styleOutput([]string{
			fmt.Sprintf("%d zoom blocks, %d typing speed-ups over %d clips", blocks, speedups, len(s.Clips)),
			"Scenario written to " + path,
		}))
		return nil
	},
}

func init() {
	f := suggestCmd.Flags()
	f.StringVar(&suggestFlags.dir, "dir", "", "scenario directory (default: scenarios/ next to the project)")
	f.BoolVar(&suggestFlags.apply, "apply", false, "apply a scenario to the project and save it")
	f.StringVar(&suggestFlags.scenario, "scenario", "", "scenario to apply (default: newest in --dir)")
}

func applyScenario(ws *workspace, dir string) error {
	path := suggestFlags.scenario
	if path == "" {
		latest, err := director.FindLatestScenario(dir)
		if err != nil {
			return err
		}
		path = latest
	}
	s, err := director.ReadScenario(path)
	if err != nil {
		return err
	}

	skipped, err := director.Apply(ws.project, s)
	if err != nil {
		return err
	}
	if err := ws.project.Validate(); err != nil {
		return err
	}
	if err := project.Save(ws.project, ws.path); err != nil {
		return err
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("zoom blocks overlapping existing ones were skipped")
	}
	log.Info().Str("scenario", path).Str("project", ws.path).Msg("scenario applied")
	return nil
}
