package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/layout"
	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/timebase"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [project file]",
	Short: "Print the frame ranges each clip occupies in the export",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}
		l, err := layout.BuildProject(ws.project, cfg.Export.FPS)
		if err != nil {
			return err
		}
		printLayout(cmd.OutOrStdout(), ws.project, l)
		return nil
	},
}

func printLayout(w io.Writer, p *project.Project, l *layout.Layout) {
	fmt.Fprintln(w, title(fmt.Sprintf("%s: %d frames @ %d fps (%.2fs)",
		p.Name, l.TotalFrames, l.FPS, float64(timebase.FrameTime(l.TotalFrames, l.FPS))/1000)))

	var lines []string
	for _, track := range p.Tracks() {
		lines = append(lines, fmt.Sprintf("track %d", track))
		for _, e := range l.Track(track) {
			c, _ := p.Clip(e.ClipID)
			lines = append(lines, fmt.Sprintf("  [%6d, %6d) %s  src %.0f-%.0fms x%.2f  %d effects",
				e.StartFrame, e.EndFrame(), e.ClipID, float64(c.SourceInMs), float64(c.SourceOutMs), c.PlaybackRate, len(c.Effects)))
		}
		for _, g := range l.Gaps(track) {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("  [%6d, %6d) gap", g[0], g[1])))
		}
	}
	fmt.Fprint(w, styleOutput(lines))
}
