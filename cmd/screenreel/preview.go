package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/preview"
	"github.com/ivlev/screenreel/internal/timebase"
)

var previewFlags struct {
	from  float64
	speed float64
	out   string
}

var previewCmd = &cobra.Command{
	Use:   "preview [project file]",
	Short: "Play a project in real time, keeping the current frame in a PNG",
	Long: "Plays the project at wall-clock speed through the export renderer and rewrites the output PNG " +
		"with every frame shown. Point an auto-reloading image viewer at it to watch.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}
		r, lib, err := ws.renderer(cfg)
		if err != nil {
			return err
		}
		defer lib.Close()

		player := preview.NewPlayer(r)
		player.SetSpeed(previewFlags.speed)

		shown := 0
		degraded := 0
		dropped, err := player.Play(cmd.Context(), timebase.TimelineMs(previewFlags.from), func(s preview.Shown) error {
			shown++
			if s.Result.Degraded {
				degraded++
			}
			return writePNG(previewFlags.out, s.Image)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Int("shown", shown).Int("dropped", dropped).Int("degraded", degraded).Msg("preview finished")
		return nil
	},
}

func init() {
	f := previewCmd.Flags()
	f.Float64Var(&previewFlags.from, "from", 0, "start position in milliseconds")
	f.Float64Var(&previewFlags.speed, "speed", 1, "playback speed multiplier")
	f.StringVarP(&previewFlags.out, "output", "o", "preview.png", "PNG rewritten with the current frame")
}
