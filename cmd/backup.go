package cmd

import (
	"fmt"
	"os"

	"RbxFM/logger"
	"RbxFM/storage"
	"RbxFM/store"

	"github.com/spf13/cobra"
)

func snapshotStore() (*storage.SnapshotStore, error) {
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewSnapshotStore(client, cfg.MinioBucket, cfg.MinioRegion), nil
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload the playlist file to MinIO",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := snapshotStore()
		if err != nil {
			return err
		}
		// Get normalizes and bootstraps the file before it is read raw.
		playlistStore := store.New(cfg.PlaylistFile)
		playlistStore.Get(cmd.Context())
		data, err := os.ReadFile(playlistStore.Path())
		if err != nil {
			return fmt.Errorf("read playlist: %w", err)
		}

		name, err := snapshots.Backup(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up to %s/%s\n", cfg.MinioBucket, name)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [object]",
	Short: "Restore the playlist file from a MinIO snapshot",
	Long:  `Restore the playlist from the named snapshot object, or from the latest backup when no name is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := snapshotStore()
		if err != nil {
			return err
		}

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		data, err := snapshots.Fetch(cmd.Context(), name)
		if err != nil {
			return err
		}

		playlist, err := store.DecodeDocument(data)
		if err != nil {
			return err
		}

		playlistStore := store.New(cfg.PlaylistFile)
		if err := playlistStore.Install(cmd.Context(), playlist); err != nil {
			return err
		}

		total := len(playlistStore.Get(cmd.Context()))
		logger.Info("playlist restored", logger.String("object", storage.ObjectName(name)), logger.Int("totalSongs", total))
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d songs from %s\n", total, storage.ObjectName(name))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
