package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RbxFM/logger"
	"RbxFM/model"
	"RbxFM/store"

	"github.com/go-redis/redis/v8"
)

const mirrorTimeout = 2 * time.Second

// mirrorClient is the subset of *redis.Client the mirror needs.
type mirrorClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ChangeEvent is published on the events channel after every change.
type ChangeEvent struct {
	Action     store.Action `json:"action"`
	Index      int          `json:"index"`
	TotalSongs int          `json:"totalSongs"`
	Timestamp  int64        `json:"timestamp"`
}

// PlaylistMirror copies every persisted playlist to a Redis key and
// announces the change on "<key>:events". The JSON file stays the source
// of truth; the mirror is for readers that cannot reach the HTTP API.
type PlaylistMirror struct {
	client mirrorClient
	key    string
}

// NewPlaylistMirror creates a mirror writing to key.
func NewPlaylistMirror(client mirrorClient, key string) *PlaylistMirror {
	return &PlaylistMirror{client: client, key: key}
}

// EventsChannel returns the pub/sub channel change events are published on.
func (m *PlaylistMirror) EventsChannel() string {
	return m.key + ":events"
}

// PlaylistChanged implements store.Observer. Failures are logged only.
func (m *PlaylistMirror) PlaylistChanged(ctx context.Context, change store.Change) {
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	if err := m.Publish(ctx, change); err != nil {
		logger.Warn("failed to mirror playlist to redis",
			logger.String("key", m.key),
			logger.String("action", string(change.Action)),
			logger.ErrorField(err))
	}
}

// Publish stores the playlist snapshot and publishes the change event.
func (m *PlaylistMirror) Publish(ctx context.Context, change store.Change) error {
	snapshot, err := json.Marshal(change.Playlist)
	if err != nil {
		return fmt.Errorf("marshal playlist: %w", err)
	}
	if err := m.client.Set(ctx, m.key, snapshot, 0).Err(); err != nil {
		return fmt.Errorf("set playlist key: %w", err)
	}

	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	event, err := json.Marshal(ChangeEvent{
		Action:     change.Action,
		Index:      change.Index,
		TotalSongs: len(change.Playlist),
		Timestamp:  at.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := m.client.Publish(ctx, m.EventsChannel(), event).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Snapshot reads the mirrored playlist. A missing key yields an empty
// playlist and no error.
func (m *PlaylistMirror) Snapshot(ctx context.Context) (model.Playlist, error) {
	data, err := m.client.Get(ctx, m.key).Bytes()
	if err == redis.Nil {
		return model.Playlist{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist key: %w", err)
	}

	var playlist model.Playlist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("unmarshal mirrored playlist: %w", err)
	}
	return playlist, nil
}
