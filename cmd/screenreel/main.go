package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/screenreel/internal/config"
	"github.com/ivlev/screenreel/internal/logging"
	"github.com/ivlev/screenreel/internal/system"
)

// BuildVersion is set at link time with -ldflags "-X main.BuildVersion=...".
var BuildVersion = "dev"

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "screenreel",
	Short:         "screenreel - screen recording compositor",
	Long:          "Turns screen recordings and their input events into polished videos with zoom, cursor and background effects.",
	SilenceUsage:  true,
	Version:       BuildVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)
		system.InitResourceLimits()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg.BuildVersion = BuildVersion

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./screenreel.yaml or ~/.screenreel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(historyCmd)
}
