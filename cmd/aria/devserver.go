package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"aria/internal/config"
	"aria/internal/devserver"
	"aria/internal/logging"
)

func newDevServerCommand(flags *rootFlags) *cobra.Command {
	var (
		addr     string
		scenario string
		loop     bool
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve a scripted event stream for local dashboard work",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.DevServer.Addr = addr
			}
			if scenario != "" {
				cfg.DevServer.Scenario = scenario
			}
			if loop {
				cfg.DevServer.LoopScenario = true
			}
			return runDevServer(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (host:port)")
	cmd.Flags().StringVar(&scenario, "scenario", "", "YAML scenario file; omit for the built-in demo")
	cmd.Flags().BoolVar(&loop, "loop", false, "Replay the scenario forever")
	return cmd
}

func runDevServer(cmd *cobra.Command, cfg *config.Config) error {
	var script *devserver.Scenario
	if cfg.DevServer.Scenario != "" {
		loaded, err := devserver.LoadScenario(cfg.DevServer.Scenario)
		if err != nil {
			return err
		}
		script = loaded
	}

	server := devserver.New(devserver.Options{
		Addr:     cfg.DevServer.Addr,
		Scenario: script,
		Loop:     cfg.DevServer.LoopScenario,
		Debug:    cfg.Debug,
		Logger:   logging.NewComponentLogger("devserver"),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s devserver on http://%s  (ws: /ws, sse: /events)\n", green("●"), cfg.DevServer.Addr)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(ctx) })
	return group.Wait()
}
