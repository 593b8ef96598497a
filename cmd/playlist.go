package cmd

import (
	"encoding/json"
	"fmt"

	"RbxFM/store"

	"github.com/spf13/cobra"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Inspect or reset the playlist file",
}

var showJSON bool

var playlistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the normalized playlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		playlist := store.New(cfg.PlaylistFile).Get(cmd.Context())
		if !showJSON {
			fmt.Fprintln(cmd.OutOrStdout(), renderPlaylist(playlist))
			return nil
		}

		data, err := json.MarshalIndent(playlist, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var playlistResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the playlist with the default songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := store.New(cfg.PlaylistFile).Reset(cmd.Context())
		if !result.Saved {
			return fmt.Errorf("failed to write %s", cfg.PlaylistFile)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Playlist reset, %d songs\n", result.TotalSongs)
		return nil
	},
}

func init() {
	playlistShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the document as JSON")
	playlistCmd.AddCommand(playlistShowCmd, playlistResetCmd)
	rootCmd.AddCommand(playlistCmd)
}
