package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"counter-service/internal/config"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// rootOptions holds global flags and the configuration loaded from them.
type rootOptions struct {
	configFile string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "counter-service",
		Short:         "Sharded named counters backed by single-writer actors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "optional config file (yaml); environment variables take precedence")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newBucketCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("counter-service failed")
		stop()
		os.Exit(1)
	}
}
