package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/mlab-cli/internal/application"
	"github.com/spf13/cobra"
)

func newKeepaliveCmd(app *app) *cobra.Command {
	var duration time.Duration
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Hold a dashboard session open and re-login periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval > 0 {
				app.settings.RefreshInterval = interval
			}

			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				if err := client.Connect(ctx); err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}

				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "session ready for account %s, refreshing every %s\n", client.AccountID(), app.settings.RefreshInterval); err != nil {
					return err
				}

				<-ctx.Done()
				return client.Close()
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Re-login interval (default: session.refresh_interval)")

	return cmd
}
