package cmd

import (
	"strconv"

	"RbxFM/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderPlaylist draws the playlist as a rounded table, one row per position.
func renderPlaylist(playlist model.Playlist) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "Artist", "ID", "Duration", "Requested By"})

	for i, song := range playlist {
		tw.AppendRow(table.Row{
			strconv.Itoa(i),
			song.Name,
			song.Artist,
			strconv.FormatInt(song.ID, 10),
			strconv.FormatInt(song.Duration, 10) + "s",
			song.RequestedBy,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}
