/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/config"
	"github.com/result-system/apiserver/internal/mq"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect user lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log user events from the configured broker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg := config.LoadConfig()
		log := newLogger(cfg)
		defer func() { _ = log.Sync() }()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		events := mq.NewUserEvents(broker, cfg.MQ.Topic, log)
		log.Info("tailing user events", zap.String("backend", cfg.MQ.Backend), zap.String("topic", cfg.MQ.Topic))
		err = events.Consume(ctx, func(ctx context.Context, e mq.UserEvent) error {
			log.Info("user event",
				zap.String("type", e.Type),
				zap.String("user_id", e.UserID),
				zap.String("username", e.Username),
				zap.String("role", string(e.Role)),
				zap.Time("occurred_at", e.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
