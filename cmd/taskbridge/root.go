package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/internal/config"
	"taskbridge/internal/notify"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg      config.Config
	notifier notify.Notifier
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "taskbridge",
		Short: "Team task board synced through a remote gateway",
		Long: `taskbridge keeps a team task board in a remote row store.

  serve     run the gateway over the local database and the daily sweep
  sweep     run the daily recurrence sweep once
  watch     keep a local copy in step with the gateway
  add       create a task (and today's occurrence of a recurring task)
  preview   list the days a recurring task occurs on

Configuration is read from the environment (TASKBRIDGE_*, DATABASE_URL,
TELEGRAM_TOKEN, TELEGRAM_CHAT_ID).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg.ApplyLogging()
			a.cfg = cfg
			a.notifier, err = buildNotifier(cfg)
			return err
		},
	}
	root.AddCommand(
		newServeCommand(a),
		newSweepCommand(a),
		newWatchCommand(a),
		newAddCommand(a),
		newPreviewCommand(a),
	)
	return root
}

func buildNotifier(cfg config.Config) (notify.Notifier, error) {
	sinks := notify.Multi{notify.Log{}}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}
	return sinks, nil
}
