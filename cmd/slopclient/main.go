package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"SlopConsensus/internal/app"
	"SlopConsensus/internal/config"
	"SlopConsensus/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	var collection string
	withClient := func(cmd *cobra.Command, fn func(*app.Client) error) error {
		c, err := app.NewClient(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(c)
	}

	root := &cobra.Command{
		Use:           "slopclient",
		Short:         "Client agent for community slop reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the background flush, sync and prune loops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(c *app.Client) error { return c.Run(cmd.Context()) })
		},
	})

	report := &cobra.Command{
		Use:   "report <url|item-id>",
		Short: "Report an item as slop and try to send it right away",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *app.Client) error {
				ref, err := c.Resolve(args[0], collection)
				if err != nil {
					return err
				}
				svc := c.Service()
				if err := svc.ReportItem(cmd.Context(), ref.ItemID, ref.CollectionID); err != nil {
					return err
				}
				if _, err := svc.Flush(cmd.Context()); err != nil {
					logger.Warn("send deferred", "err", err)
				}
				status, err := svc.CheckHasReported(cmd.Context(), ref.ItemID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"itemId": ref.ItemID, "status": status})
			})
		},
	}
	report.Flags().StringVar(&collection, "collection", "", "owning collection (channel) id")
	root.AddCommand(report)

	root.AddCommand(&cobra.Command{
		Use:   "undo <url|item-id>",
		Short: "Withdraw this installation's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *app.Client) error {
				ref, err := c.Resolve(args[0], "")
				if err != nil {
					return err
				}
				svc := c.Service()
				if err := svc.UndoReport(cmd.Context(), ref.ItemID); err != nil {
					return err
				}
				if _, err := svc.Flush(cmd.Context()); err != nil {
					logger.Warn("send deferred", "err", err)
				}
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check <url|item-id>",
		Short: "Tell whether an item is marked by community consensus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *app.Client) error {
				ref, err := c.Resolve(args[0], "")
				if err != nil {
					return err
				}
				marked := c.Service().CheckIsMarked(cmd.Context(), ref.ItemID)
				return printJSON(cmd, map[string]any{"itemId": ref.ItemID, "marked": marked})
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "reported <url|item-id>",
		Short: "Show the local status of this installation's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *app.Client) error {
				ref, err := c.Resolve(args[0], "")
				if err != nil {
					return err
				}
				status, err := c.Service().CheckHasReported(cmd.Context(), ref.ItemID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"itemId": ref.ItemID, "status": status})
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "profile",
		Short: "Show this installation's trust profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(c *app.Client) error {
				profile, err := c.Service().GetTrustProfile(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, profile)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Pull the latest snapshot or delta into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(c *app.Client) error {
				res, err := c.Service().Sync(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "slopclient:", err)
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
