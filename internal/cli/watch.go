package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"inventory-sync-api/internal/syncclient"

	"github.com/spf13/cobra"
)

func watchCmd(cfgPath *string) *cobra.Command {
	var url string
	var userID int64

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to the hub and print inventory changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.Client.URL = url
			}
			if cmd.Flags().Changed("user-id") {
				cfg.Client.UserID = userID
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			client := syncclient.New(syncclient.Config{
				URL:         cfg.Client.URL,
				UserID:      cfg.Client.UserID,
				BaseDelay:   cfg.Client.BaseDelay,
				MaxAttempts: cfg.Client.MaxAttempts,
			},
				syncclient.WithLogger(&logger),
				syncclient.OnStatus(func(s syncclient.Status) {
					fmt.Fprintf(out, "status=%s\n", s)
				}),
				syncclient.OnEvent(func(e syncclient.Event) {
					for _, s := range e.Snapshot {
						fmt.Fprintf(out, "%s product=%d available=%d\n", e.Type, s.ProductID, s.AvailableQuantity)
					}
					for _, u := range e.Updates {
						fmt.Fprintf(out, "%s product=%d available=%d action=%s\n", e.Type, u.ProductID, u.AvailableQuantity, u.Action)
					}
				}),
			)

			err = client.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "hub websocket URL (default from client.url)")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "identity sent with subscribe (default from client.user_id)")
	return cmd
}
