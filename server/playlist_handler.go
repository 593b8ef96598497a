package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"RbxFM/logger"
	"RbxFM/model"
	"RbxFM/store"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const maxBodySize = 1 << 20

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PlaylistHandler translates HTTP requests into store calls.
type PlaylistHandler struct {
	store *store.PlaylistStore
	hub   *PlaylistHub
}

// NewPlaylistHandler creates the handler. hub may be nil, which disables
// the websocket feed.
func NewPlaylistHandler(s *store.PlaylistStore, hub *PlaylistHub) *PlaylistHandler {
	return &PlaylistHandler{store: s, hub: hub}
}

// requestBody is the body of POST /api/request.
type requestBody struct {
	SongID       model.Value `json:"songId"`
	SongName     model.Value `json:"songName"`
	Name         model.Value `json:"name"`
	Artist       model.Value `json:"artist"`
	RequestedBy  model.Value `json:"requestedBy"`
	PlayerUserID model.Value `json:"playerUserId"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// decodeBody reads a JSON object into v. Missing, malformed or non-object
// bodies leave v untouched so the required-field checks report them.
func decodeBody(r *http.Request, v interface{}) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Debug("ignoring malformed request body", logger.ErrorField(err))
	}
}

// songFields keeps only the base song fields clients may set directly.
func songFields(in model.SongInput) model.SongInput {
	return model.SongInput{
		Name:     in.Name,
		ID:       in.ID,
		Artist:   in.Artist,
		Duration: in.Duration,
		ImageID:  in.ImageID,
	}
}

// idLabel renders an id for the generated "Song <id>" name.
func idLabel(id model.Value) string {
	if text, ok := id.Text(); ok {
		return text
	}
	n, _ := id.Int()
	return strconv.FormatInt(n, 10)
}

// parseIndex reads the {index} path variable the way parseInt does: leading
// digits count, anything without them is rejected.
func parseIndex(r *http.Request) (int, bool) {
	n, ok := model.TextValue(mux.Vars(r)["index"]).Int()
	if !ok {
		return 0, false
	}
	return int(n), true
}

// GetPlaylistHandler returns the full playlist as a JSON array.
func (h *PlaylistHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get(r.Context()))
}

// AddSongHandler appends a song. Only id is required, and 0 or false count
// as missing; name defaults to "Song <id>".
func (h *PlaylistHandler) AddSongHandler(w http.ResponseWriter, r *http.Request) {
	var body model.SongInput
	decodeBody(r, &body)
	in := songFields(body)

	if !in.ID.Truthy() {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if _, ok := in.Name.Text(); !ok {
		in.Name = model.TextValue("Song " + idLabel(in.ID))
	}

	result, err := h.store.Add(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"message":    "Song added",
		"song":       result.Song,
		"totalSongs": result.TotalSongs,
	})
}

// RequestSongHandler queues a song requested by a player.
func (h *PlaylistHandler) RequestSongHandler(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	decodeBody(r, &body)

	if !body.SongID.Truthy() {
		writeError(w, http.StatusBadRequest, "songId is required")
		return
	}

	in := model.SongInput{
		ID:           body.SongID,
		Name:         body.SongName,
		Artist:       body.Artist,
		Duration:     model.IntValue(0),
		RequestedBy:  body.RequestedBy,
		PlayerUserID: body.PlayerUserID,
	}
	if _, ok := in.Name.Text(); !ok {
		in.Name = body.Name
	}
	if _, ok := in.RequestedBy.Text(); !ok {
		in.RequestedBy = model.TextValue("Unknown")
	}

	result, err := h.store.Add(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    fmt.Sprintf("Song requested by %s", result.Song.RequestedBy),
		"song":       result.Song,
		"position":   result.Position + 1,
		"totalSongs": result.TotalSongs,
	})
}

// UpdateSongHandler patches the song at {index}.
func (h *PlaylistHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}

	var body model.SongInput
	decodeBody(r, &body)

	result, err := h.store.Update(r.Context(), index, songFields(body))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Song updated",
		"song":    result.Song,
	})
}

// DeleteSongHandler removes the song at {index}.
func (h *PlaylistHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}

	result, err := h.store.Delete(r.Context(), index)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Song deleted",
		"deleted":    result.Deleted,
		"totalSongs": result.TotalSongs,
	})
}

// ResetPlaylistHandler restores the default playlist.
func (h *PlaylistHandler) ResetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	result := h.store.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Playlist reset to defaults",
		"totalSongs": result.TotalSongs,
	})
}

// HealthHandler reports liveness.
func (h *PlaylistHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FeedHandler upgrades to a websocket that streams playlist changes.
func (h *PlaylistHandler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "playlist feed is disabled")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	h.hub.Serve(conn, h.store.Get(r.Context()))
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidIndex), errors.Is(err, store.ErrMissingID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("playlist operation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
