package cmd

import (
	"RbxFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the RbxFM HTTP server",
	Long:  `Start the HTTP server that serves the playlist API, the status page and the websocket feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
