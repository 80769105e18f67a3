package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/rtmctl/internal/watcher"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var adminAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and log every received event",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("admin") {
				cfg.AdminAddr = adminAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watcher.NewService(cfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&adminAddr, "admin", "", "admin listen address; empty disables")
	return cmd
}
