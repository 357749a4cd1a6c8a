package main

import (
	"errors"

	"github.com/spf13/cobra"

	"counter-service/internal/config"
	"counter-service/internal/consumer"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Tail counter events from kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is not set")
			}
			reader := config.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
			return consumer.NewConsumer(reader, consumer.LogHandler).Run(cmd.Context())
		},
	}
}
