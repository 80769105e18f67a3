package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/rtmctl/internal/protocol/messages"
	"github.com/danmuck/rtmctl/internal/rtm"
)

func newSendCmd(flags *globalFlags) *cobra.Command {
	var (
		channel string
		text    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post one message and wait for the server acknowledgement",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel = strings.TrimSpace(channel)
			if channel == "" {
				return errors.New("--channel is required")
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			url := cfg.URL
			if cfg.SVNRev != "" {
				if url, err = rtm.ConnectURL(cfg.URL, cfg.SVNRev, time.Now()); err != nil {
					return err
				}
			}
			sock, err := rtm.Dial(ctx, url, rtm.WithConfig(cfg.Session))
			if err != nil {
				return err
			}
			defer sock.Close()

			reply, err := rtm.Call[messages.Reply](ctx, sock, messages.NewMessage(channel, text))
			if err != nil {
				return fmt.Errorf("send to %s: %w", channel, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent channel=%s ts=%s\n", channel, reply.TS)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel id to post to")
	cmd.Flags().StringVarP(&text, "text", "t", "", "message text")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall deadline for connect and reply")
	return cmd
}
