package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatrelay/internal/app"
	"github.com/vovakirdan/chatrelay/internal/store"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <roomKey>",
		Short: "Print the most recent messages of a room",
		Long: `Opens the configured message store directly and prints the most recent
messages of a room, oldest first. The server should not be running
against the same badger directory at the same time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if limit <= 0 || limit > cfg.HistoryLimit {
				limit = cfg.HistoryLimit
			}

			st, err := app.OpenStore(&cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StoreTimeout)
			defer cancel()

			messages, err := st.ListRecentMessages(ctx, args[0], limit)
			if err != nil {
				return err
			}
			printHistory(cmd, args[0], messages)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of messages to print (default and maximum is history_limit)")
	return cmd
}

func printHistory(cmd *cobra.Command, roomKey string, messages []*store.Message) {
	out := cmd.OutOrStdout()
	if len(messages) == 0 {
		fmt.Fprintf(out, "room %s has no messages\n", roomKey)
		return
	}
	for _, m := range messages {
		fmt.Fprintf(out, "%s [%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), m.ID, displayName(m.Sender.Nickname, m.Sender.ID), m.Text)
	}
}

func displayName(nickname, id string) string {
	switch {
	case nickname != "":
		return nickname
	case id != "":
		return id
	default:
		return "anonymous"
	}
}
