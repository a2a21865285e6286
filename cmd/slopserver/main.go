package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

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

	withServer := func(cmd *cobra.Command, fn func(*app.Server) error) error {
		server, err := app.NewServer(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer server.Close()
		return fn(server)
	}

	root := &cobra.Command{
		Use:           "slopserver",
		Short:         "Trust-weighted consensus server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd, func(s *app.Server) error { return s.Run(cmd.Context()) })
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "job <community|evaluation|snapshot|delta>",
		Short: "Run one periodic job now and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(cmd, func(s *app.Server) error { return s.RunJob(cmd.Context(), args[0]) })
		},
	})

	var reason string
	flagCmd := &cobra.Command{
		Use:   "flag <reporter-id>",
		Short: "Flag a reporter for abuse, dropping its trust to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(cmd, func(s *app.Server) error { return s.FlagReporter(cmd.Context(), args[0], reason) })
		},
	}
	flagCmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the flag")
	root.AddCommand(flagCmd)

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
