package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"RbxFM/model"
	"RbxFM/store"
)

func drainBroadcast(h *PlaylistHub) [][]byte {
	var frames [][]byte
	for {
		select {
		case data := <-h.broadcast:
			frames = append(frames, data)
		default:
			return frames
		}
	}
}

func TestHubEmptyPlaylistKeepsKey(t *testing.T) {
	hub := NewPlaylistHub()
	s := store.New(filepath.Join(t.TempDir(), "playlist.json"), store.WithObserver(hub))
	ctx := context.Background()

	for range model.DefaultPlaylist() {
		if _, err := s.Delete(ctx, 0); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}

	frames := drainBroadcast(hub)
	if len(frames) != len(model.DefaultPlaylist()) {
		t.Fatalf("got %d frames, want %d", len(frames), len(model.DefaultPlaylist()))
	}
	last := string(frames[len(frames)-1])
	if !strings.Contains(last, `"playlist":[]`) {
		t.Errorf("last frame %s should carry an empty playlist", last)
	}
	if !strings.Contains(last, `"index":0`) || !strings.Contains(last, `"action":"delete"`) {
		t.Errorf("unexpected frame %s", last)
	}
}

func TestHubNilPlaylistEncodesEmpty(t *testing.T) {
	hub := NewPlaylistHub()
	hub.PlaylistChanged(context.Background(), store.Change{Action: store.ActionReload, Index: -1})

	frames := drainBroadcast(hub)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frames[0], &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := string(fields["playlist"]); got != "[]" {
		t.Errorf("playlist = %q, want []", got)
	}
	if _, ok := fields["index"]; ok {
		t.Errorf("reload frame should have no index: %s", frames[0])
	}
}
