package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tickbot/internal/app"
)

func newRunCmd() *cobra.Command {
	var (
		cfgPath string
		console bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop",
		Long: `Starts the control loop against the simulated robot. With --console,
operator commands are read from stdin (type "help").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, cfgPath, console)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./tickbot.yaml", "path to config (YAML or JSON)")
	cmd.Flags().BoolVar(&console, "console", false, "read operator commands from stdin")
	return cmd
}

func runApp(cmd *cobra.Command, cfgPath string, console bool) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	consoleDone := make(chan struct{})
	if console {
		go func() {
			defer close(consoleDone)
			_ = runConsole(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a)
		}()
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	case <-consoleDone:
		reason = app.StopAppStop
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}
