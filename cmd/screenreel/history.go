package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/stats"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [project id]",
	Short: "List recent exports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		store, err := stats.Open(cfg.Stats.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		projectID := ""
		if len(args) > 0 {
			projectID = args[0]
		}
		runs, err := store.Recent(cmd.Context(), projectID, historyLimit)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func printHistory(w io.Writer, runs []stats.Run) {
	fmt.Fprintln(w, title("export history"))
	if len(runs) == 0 {
		fmt.Fprint(w, styleOutput([]string{"No exports recorded"}))
		return
	}
	lines := make([]string, 0, len(runs))
	for _, r := range runs {
		status := SuccessStyle.Render(r.Status)
		switch r.Status {
		case "failed":
			status = ErrorStyle.Render(r.Status)
		case "cancelled":
			status = WarnStyle.Render(r.Status)
		}
		line := fmt.Sprintf("%s %s %4dx%-4d %3dfps %5d/%-5d frames %6.1f fps  %s",
			MutedStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04")), status,
			r.Width, r.Height, r.FPS, r.Frames, r.Total, r.EffectiveFPS(), r.Output)
		if r.Error != "" {
			line += " " + ErrorStyle.Render(r.Error)
		}
		lines = append(lines, line)
	}
	fmt.Fprint(w, styleOutput(lines))
}
