package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"aria/internal/config"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

type rootFlags struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "aria",
		Short: "Realtime event client for the aria sales dashboard",
		Long: `aria keeps a dashboard-shaped view of the sales assistant backend:
it maintains a websocket connection (falling back to SSE), folds the event
stream into execution, approval, notification, feed, transcript, and briefing
state, and reconciles over REST when the stream goes quiet.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to aria-config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Debug output")

	rootCmd.AddCommand(newWatchCommand(flags))
	rootCmd.AddCommand(newDevServerCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.debug {
		cfg.Debug = true
	}
	return cfg, nil
}
