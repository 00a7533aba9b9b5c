package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/log"
)

type rootOptions struct {
	configPath string
	addr       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Room-based chat relay over websocket",
		Long: `chatrelay accepts websocket clients, groups them into rooms and relays
every message to the members of its room after persisting it.
Joining a room delivers its most recent messages first.

Run without a subcommand to start the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is ./config.yaml)")
	flags.StringVar(&opts.addr, "addr", "", "HTTP listen address, overrides config")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newHistoryCmd(opts),
		newChatCmd(),
	)
	return cmd
}

// loadConfig resolves configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, *zerolog.Logger, error) {
	bootstrap := log.NewWithWriter(cmd.ErrOrStderr(), "info")

	cfg, path, err := config.Load(bootstrap, opts.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(config.Config{Addr: opts.addr, LogLevel: opts.logLevel})

	logger := log.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}
