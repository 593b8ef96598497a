package cmd

import (
	"fmt"

	"RbxFM/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis mirror",
	Long:  `Connect to Redis, then print the mirrored playlist snapshot and the event channel name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		mirror := cache.NewPlaylistMirror(client, cfg.RedisKey)
		playlist, err := mirror.Snapshot(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Snapshot key %s holds %d songs\n", cfg.RedisKey, len(playlist))
		if len(playlist) > 0 {
			fmt.Fprintln(out, renderPlaylist(playlist))
		}
		fmt.Fprintf(out, "Change events are published on %s\n", mirror.EventsChannel())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
