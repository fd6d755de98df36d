package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aria/internal/client"
	"aria/internal/config"
	"aria/internal/logging"
	"aria/internal/realtime/events"
)

func newWatchCommand(flags *rootFlags) *cobra.Command {
	var sseOnly bool

	cmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Connect to a backend and print the event stream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.URL = args[0]
			}
			if cfg.URL == "" {
				return fmt.Errorf("no endpoint: pass a url or set `url` in aria-config.yaml")
			}
			return runWatch(cmd.Context(), cfg, sseOnly)
		},
	}

	cmd.Flags().BoolVar(&sseOnly, "sse", false, "Skip websocket and connect over SSE")
	return cmd
}

func runWatch(parent context.Context, cfg *config.Config, sseOnly bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		URL:              cfg.URL,
		FallbackURL:      cfg.FallbackURL,
		MaxRetries:       cfg.MaxRetries,
		BaseDelay:        cfg.BaseDelay,
		CapDelay:         cfg.CapDelay,
		FallbackAfter:    cfg.FallbackAfter,
		DisableWebSocket: sseOnly || cfg.DisableWebSocket,
		FeedLimit:        cfg.FeedLimit,
		PollInterval:     cfg.PollInterval,
		Logger:           logging.NewComponentLogger("watch"),
	})
	defer c.Close()

	printEventStream(c)

	if err := c.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("%s watching %s (ctrl-c to stop)\n", cyan("◉"), cfg.URL)

	<-ctx.Done()
	fmt.Printf("\n%s disconnected\n", gray("◌"))
	return nil
}

// printEventStream renders a one-line summary per event, colour-coded the way
// the dashboard header does it.
func printEventStream(c *client.Client) {
	bus := c.Bus()

	bus.On(events.TypeConnectionStateChanged, func(evt *events.Envelope) {
		var payload events.ConnectionStateChanged
		if evt.Decode(&payload) != nil {
			return
		}
		paint := yellow
		switch payload.State {
		case "connected":
			paint = green
		case "failed":
			paint = red
		}
		fmt.Printf("%s connection %s (%s)\n", paint("●"), payload.State, payload.Transport)
	})

	bus.On(events.TypeStepStarted, func(evt *events.Envelope) {
		var payload events.StepStarted
		if evt.Decode(&payload) != nil {
			return
		}
		fmt.Printf("%s [%s] step %s started: %s\n", blue("▸"), payload.GoalID, payload.StepID, payload.Title)
	})

	bus.On(events.TypeStepCompleted, func(evt *events.Envelope) {
		var payload events.StepCompleted
		if evt.Decode(&payload) != nil {
			return
		}
		if payload.Success {
			fmt.Printf("%s [%s] step %s completed\n", green("✔"), payload.GoalID, payload.StepID)
			return
		}
		fmt.Printf("%s [%s] step %s failed: %s\n", red("✘"), payload.GoalID, payload.StepID, payload.ErrorMessage)
	})

	bus.On(events.TypeStepRetrying, func(evt *events.Envelope) {
		var payload events.StepRetrying
		if evt.Decode(&payload) != nil {
			return
		}
		fmt.Printf("%s [%s] step %s retrying (attempt %d): %s\n",
			yellow("↻"), payload.GoalID, payload.StepID, payload.RetryCount, payload.Reason)
	})

	bus.On(events.TypeExecutionComplete, func(evt *events.Envelope) {
		var payload events.ExecutionComplete
		if evt.Decode(&payload) != nil {
			return
		}
		if payload.Success {
			fmt.Printf("%s [%s] execution complete\n", green("■"), payload.GoalID)
			return
		}
		fmt.Printf("%s [%s] execution failed\n", red("■"), payload.GoalID)
	})

	bus.On(events.TypeActionPending, func(evt *events.Envelope) {
		var payload events.ActionPending
		if evt.Decode(&payload) != nil {
			return
		}
		fmt.Printf("%s approval needed [%s risk %s]: %s (%d waiting)\n",
			yellow("⏸"), payload.Agent, payload.RiskLevel, payload.Title, c.Pending.Count())
	})

	bus.On(events.TypeSignalDetected, func(evt *events.Envelope) {
		var payload events.SignalDetected
		if evt.Decode(&payload) != nil {
			return
		}
		fmt.Printf("%s signal (%s/%s): %s\n", cyan("☆"), payload.SignalType, payload.Severity, payload.Title)
	})

	bus.On(events.TypeAriaMessage, func(evt *events.Envelope) {
		var payload events.AriaMessage
		if evt.Decode(&payload) != nil {
			return
		}
		if payload.Complete {
			fmt.Printf("%s aria: %s\n", blue("💬"), renderTranscriptTail(c, payload.MessageID))
		}
	})

	bus.On(events.TypeBriefingReady, func(evt *events.Envelope) {
		var payload events.BriefingReady
		if evt.Decode(&payload) != nil {
			return
		}
		fmt.Printf("%s briefing %s ready (%ds)\n", cyan("♪"), payload.BriefingID, payload.Duration)
	})
}

func renderTranscriptTail(c *client.Client, messageID string) string {
	for _, message := range c.Transcript.Messages() {
		if message.MessageID == messageID {
			return message.Content
		}
	}
	return ""
}
