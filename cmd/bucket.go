package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"counter-service/internal/sharding"
)

func newBucketCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bucket <name>...",
		Short: "Print the shard bucket each name hashes into",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router := sharding.NewShardRouter(opts.cfg.ShardCount)
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, router.Bucket(name))
			}
			return nil
		},
	}
}
