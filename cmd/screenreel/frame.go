package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/timebase"
)

var frameFlags struct {
	at  float64
	out string
}

var frameCmd = &cobra.Command{
	Use:   "frame [project file]",
	Short: "Render the single frame shown at a timeline position to PNG",
	Args:  cobra.MaximumNArgs(1),
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

		t := timebase.TimelineMs(frameFlags.at)
		img, res, err := r.RenderFrame(cmd.Context(), t)
		if err != nil {
			return err
		}
		frame := r.FrameAt(t)
		out := frameFlags.out
		if out == "" {
			out = fmt.Sprintf("frame_%06d.png", frame)
		}
		if err := writePNG(out, img); err != nil {
			return err
		}

		ev := log.Info()
		if res.Degraded {
			ev = log.Warn()
		}
		ev.Int("frame", frame).Bool("degraded", res.Degraded).Str("output", out).Msg("frame rendered")
		return nil
	},
}

func init() {
	frameCmd.Flags().Float64Var(&frameFlags.at, "at", 0, "timeline position in milliseconds")
	frameCmd.Flags().StringVarP(&frameFlags.out, "output", "o", "", "output PNG (default: frame_<index>.png)")
}

// writePNG writes img next to path and renames it into place, so readers
// polling path never see a half-written file.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
