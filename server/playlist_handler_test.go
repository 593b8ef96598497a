package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"RbxFM/model"
	"RbxFM/store"

	"github.com/gorilla/websocket"
)

type apiResponse struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error"`
	Message    string      `json:"message"`
	Song       *model.Song `json:"song"`
	Deleted    *model.Song `json:"deleted"`
	Position   int         `json:"position"`
	TotalSongs int         `json:"totalSongs"`
}

func newTestRouter(t *testing.T) (http.Handler, *store.PlaylistStore, *PlaylistHub) {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "data", "playlist.json"))
	hub := NewPlaylistHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	s.Observe(hub)
	return NewRouter(NewPlaylistHandler(s, hub)), s, hub
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestGetPlaylistReturnsDefaults(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/playlist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var playlist model.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &playlist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(playlist) != 4 || playlist[0].Name != "Summer Vibes" {
		t.Errorf("playlist = %+v", playlist)
	}
}

func TestAddSong(t *testing.T) {
	h, s, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/playlist", `{"name":"New Track","id":"123","artist":"Me","duration":90,"requestedBy":"ignored"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.TotalSongs != 5 {
		t.Errorf("unexpected response: %+v", resp)
	}
	want := model.Song{Name: "New Track", ID: 123, Artist: "Me", Duration: 90, ImageID: model.FallbackImageID}
	if resp.Song == nil || *resp.Song != want {
		t.Errorf("song = %+v, want %+v", resp.Song, want)
	}

	playlist := s.Get(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if playlist[len(playlist)-1] != want {
		t.Errorf("last song = %+v", playlist[len(playlist)-1])
	}
}

func TestAddSongGeneratesName(t *testing.T) {
	h, _, _ := newTestRouter(t)

	resp := decodeResponse(t, do(t, h, http.MethodPost, "/api/playlist", `{"id":111}`))
	if resp.Song == nil || resp.Song.Name != "Song 111" {
		t.Fatalf("song = %+v, want name Song 111", resp.Song)
	}
	if resp.Song.ImageID != model.FallbackImageID {
		t.Errorf("ImageID = %d, want fallback", resp.Song.ImageID)
	}
}

func TestAddSongValidation(t *testing.T) {
	h, _, _ := newTestRouter(t)

	for _, body := range []string{``, `{}`, `{"name":"x"}`, `{"id":""}`, `{"id":0}`, `{"id":false}`, `{"id":null}`, `[1,2]`, `not json`} {
		rec := do(t, h, http.MethodPost, "/api/playlist", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		if resp := decodeResponse(t, rec); resp.Success || resp.Error == "" {
			t.Errorf("body %q: unexpected response %+v", body, resp)
		}
	}
}

func TestRequestSong(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/request", `{"songId":"555","songName":"Requested","requestedBy":"Player1","playerUserId":98765,"duration":300,"imageId":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	want := model.Song{
		Name:         "Requested",
		ID:           555,
		Artist:       model.DefaultArtistName,
		Duration:     0,
		ImageID:      model.FallbackImageID,
		RequestedBy:  "Player1",
		PlayerUserID: "98765",
	}
	if resp.Song == nil || *resp.Song != want {
		t.Errorf("song = %+v, want %+v", resp.Song, want)
	}
	if resp.Position != 5 || resp.TotalSongs != 5 {
		t.Errorf("position=%d totalSongs=%d, want 5 and 5", resp.Position, resp.TotalSongs)
	}
}

func TestRequestSongDefaults(t *testing.T) {
	h, _, _ := newTestRouter(t)

	resp := decodeResponse(t, do(t, h, http.MethodPost, "/api/request", `{"songId":111}`))
	if resp.Song == nil {
		t.Fatal("missing song")
	}
	if resp.Song.Name != model.DefaultSongName || resp.Song.RequestedBy != "Unknown" || resp.Song.PlayerUserID != "" {
		t.Errorf("song = %+v", resp.Song)
	}
}

func TestRequestSongRequiresSongID(t *testing.T) {
	h, _, _ := newTestRouter(t)

	for _, body := range []string{`{"id":1,"requestedBy":"x"}`, `{"songId":0}`, `{"songId":false}`} {
		if rec := do(t, h, http.MethodPost, "/api/request", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestUpdateSong(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPut, "/api/playlist/2", `{"name":"Chill Remix","imageId":"42","requestedBy":"nobody"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	want := model.DefaultPlaylist()[2]
	want.Name = "Chill Remix"
	want.ImageID = 42
	if resp := decodeResponse(t, rec); resp.Song == nil || *resp.Song != want {
		t.Errorf("song = %+v, want %+v", resp.Song, want)
	}
}

func TestUpdateSongErrors(t *testing.T) {
	h, s, _ := newTestRouter(t)
	before := s.Get(httptest.NewRequest(http.MethodGet, "/", nil).Context())

	tests := []struct {
		path string
		want string
	}{
		{"/api/playlist/99", "invalid index"},
		{"/api/playlist/-1", "invalid index"},
		{"/api/playlist/abc", "index must be a number"},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPut, tt.path, `{"name":"X"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.path, rec.Code)
			continue
		}
		if resp := decodeResponse(t, rec); !strings.Contains(resp.Error, tt.want) {
			t.Errorf("%s: error = %q, want %q", tt.path, resp.Error, tt.want)
		}
	}

	after := s.Get(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if len(after) != len(before) || after[0] != before[0] {
		t.Error("playlist changed after failed updates")
	}
}

func TestDeleteSong(t *testing.T) {
	h, _, _ := newTestRouter(t)
	defaults := model.DefaultPlaylist()

	rec := do(t, h, http.MethodDelete, "/api/playlist/0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Deleted == nil || *resp.Deleted != defaults[0] || resp.TotalSongs != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// "1abc" parses like parseInt and hits index 1.
	rec = do(t, h, http.MethodDelete, "/api/playlist/1abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp := decodeResponse(t, rec); resp.Deleted == nil || *resp.Deleted != defaults[2] {
		t.Errorf("deleted = %+v, want %+v", resp.Deleted, defaults[2])
	}

	if rec := do(t, h, http.MethodDelete, "/api/playlist/5", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/playlist/x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResetPlaylist(t *testing.T) {
	h, _, _ := newTestRouter(t)
	do(t, h, http.MethodDelete, "/api/playlist/0", "")

	rec := do(t, h, http.MethodPost, "/api/playlist/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.TotalSongs != 4 {
		t.Errorf("totalSongs = %d, want 4", resp.TotalSongs)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodOptions, "/api/playlist/3", "")
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}

	rec = do(t, h, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request id")
	}
}

func TestHomePage(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Current playlist (4 songs)") || !strings.Contains(body, "Deep Bass") {
		t.Errorf("unexpected body: %s", body)
	}
}

func readFeed(t *testing.T, conn *websocket.Conn) FeedMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg FeedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read feed: %v", err)
	}
	return msg
}

func TestFeedStreamsChanges(t *testing.T) {
	h, _, hub := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/playlist"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sync := readFeed(t, conn)
	if sync.Type != MsgTypeSync || len(sync.Playlist) != 4 {
		t.Fatalf("first message = %+v", sync)
	}

	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/api/playlist", "application/json", bytes.NewBufferString(`{"id":7}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	msg := readFeed(t, conn)
	if msg.Type != MsgTypePlaylist || msg.Action != store.ActionAdd {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Index == nil || *msg.Index != 4 || len(msg.Playlist) != 5 {
		t.Errorf("unexpected change: index=%v len=%d", msg.Index, len(msg.Playlist))
	}

	if err := conn.WriteJSON(FeedMessage{Type: MsgTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if pong := readFeed(t, conn); pong.Type != MsgTypePong {
		t.Errorf("expected pong, got %+v", pong)
	}
}
