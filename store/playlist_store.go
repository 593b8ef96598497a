package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RbxFM/logger"
	"RbxFM/model"

	"github.com/gofrs/flock"
)

var (
	// ErrInvalidIndex is returned when a position is outside [0, len).
	ErrInvalidIndex = errors.New("invalid index")
	// ErrMissingID is returned when a song is added without an id.
	ErrMissingID = errors.New("song id is required")
)

// Action names the mutation that produced a Change.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionReset  Action = "reset"
	ActionReload Action = "reload" // file was edited outside the store
)

// Change describes a persisted playlist mutation.
type Change struct {
	Action   Action         `json:"action"`
	Index    int            `json:"index"` // -1 when no single position applies
	Playlist model.Playlist `json:"playlist"`
	At       time.Time      `json:"-"`
}

// Observer is notified after every mutation that reached disk.
type Observer interface {
	PlaylistChanged(ctx context.Context, change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change Change)

func (f ObserverFunc) PlaylistChanged(ctx context.Context, change Change) {
	f(ctx, change)
}

type AddResult struct {
	Song       model.Song
	Position   int
	TotalSongs int
	Saved      bool
}

type UpdateResult struct {
	Song  model.Song
	Saved bool
}

type DeleteResult struct {
	Deleted    model.Song
	TotalSongs int
	Saved      bool
}

type ResetResult struct {
	TotalSongs int
	Saved      bool
}

// PlaylistStore persists the playlist as a JSON document. It holds no copy
// of the playlist: every operation reloads the file, applies one change and
// rewrites it. Operations are serialized by a mutex inside the process and
// by an advisory file lock across processes.
type PlaylistStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex

	obsMu     sync.RWMutex
	observers []Observer

	// digest of the last document this store wrote, used to tell our own
	// writes apart from external edits
	lastWrite [sha256.Size]byte
}

// Option configures a PlaylistStore.
type Option func(*PlaylistStore)

// WithObserver registers an observer at construction time.
func WithObserver(o Observer) Option {
	return func(s *PlaylistStore) {
		s.observers = append(s.observers, o)
	}
}

// New creates a store backed by the JSON file at path. Nothing is read or
// written until the first operation.
func New(path string, opts ...Option) *PlaylistStore {
	s := &PlaylistStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the playlist document.
func (s *PlaylistStore) Path() string {
	return s.path
}

// Observe registers an observer.
func (s *PlaylistStore) Observe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Get returns the current normalized playlist. It never fails: unreadable
// or undecodable files yield the default playlist.
func (s *PlaylistStore) Get(ctx context.Context) model.Playlist {
	var playlist model.Playlist
	s.critical(func() {
		playlist = s.load()
	})
	return playlist
}

// Add appends a normalized song built from in.
func (s *PlaylistStore) Add(ctx context.Context, in model.SongInput) (AddResult, error) {
	if in.ID.Empty() {
		return AddResult{}, ErrMissingID
	}

	var result AddResult
	s.critical(func() {
		playlist := s.load()
		song := model.Normalize(in)
		playlist = append(playlist, song)

		result = AddResult{
			Song:       song,
			Position:   len(playlist) - 1,
			TotalSongs: len(playlist),
			Saved:      s.save(playlist),
		}
		if result.Saved {
			s.notify(ctx, Change{Action: ActionAdd, Index: result.Position, Playlist: playlist})
		}
	})

	logger.Info("song added",
		logger.String("name", result.Song.Name),
		logger.Int64("songId", result.Song.ID),
		logger.Int("position", result.Position),
		logger.Int("totalSongs", result.TotalSongs))
	return result, nil
}

// Update merges the fields present in patch onto the song at index.
func (s *PlaylistStore) Update(ctx context.Context, index int, patch model.SongInput) (UpdateResult, error) {
	var (
		result UpdateResult
		err    error
	)
	s.critical(func() {
		playlist := s.load()
		if index < 0 || index >= len(playlist) {
			err = fmt.Errorf("%w: %d (playlist has %d songs)", ErrInvalidIndex, index, len(playlist))
			return
		}

		song := model.Normalize(model.Merge(playlist[index].Input(), patch))
		playlist[index] = song

		result = UpdateResult{Song: song, Saved: s.save(playlist)}
		if result.Saved {
			s.notify(ctx, Change{Action: ActionUpdate, Index: index, Playlist: playlist})
		}
	})
	if err != nil {
		return UpdateResult{}, err
	}

	logger.Info("song updated", logger.Int("index", index), logger.String("name", result.Song.Name))
	return result, nil
}

// Delete removes the song at index. Later songs shift down by one.
func (s *PlaylistStore) Delete(ctx context.Context, index int) (DeleteResult, error) {
	var (
		result DeleteResult
		err    error
	)
	s.critical(func() {
		playlist := s.load()
		if index < 0 || index >= len(playlist) {
			err = fmt.Errorf("%w: %d (playlist has %d songs)", ErrInvalidIndex, index, len(playlist))
			return
		}

		deleted := playlist[index]
		playlist = append(playlist[:index], playlist[index+1:]...)

		result = DeleteResult{Deleted: deleted, TotalSongs: len(playlist), Saved: s.save(playlist)}
		if result.Saved {
			s.notify(ctx, Change{Action: ActionDelete, Index: index, Playlist: playlist})
		}
	})
	if err != nil {
		return DeleteResult{}, err
	}

	logger.Info("song deleted",
		logger.Int("index", index),
		logger.String("name", result.Deleted.Name),
		logger.Int("totalSongs", result.TotalSongs))
	return result, nil
}

// Reset replaces the playlist with the defaults.
func (s *PlaylistStore) Reset(ctx context.Context) ResetResult {
	var result ResetResult
	s.critical(func() {
		playlist := model.DefaultPlaylist()
		result = ResetResult{TotalSongs: len(playlist), Saved: s.save(playlist)}
		if result.Saved {
			s.notify(ctx, Change{Action: ActionReset, Index: -1, Playlist: playlist})
		}
	})

	logger.Info("playlist reset", logger.Int("totalSongs", result.TotalSongs), logger.Bool("saved", result.Saved))
	return result
}

// Reload re-reads the document after an external edit and notifies
// observers with the normalized result.
func (s *PlaylistStore) Reload(ctx context.Context) model.Playlist {
	var playlist model.Playlist
	s.critical(func() {
		playlist = s.load()
		s.notify(ctx, Change{Action: ActionReload, Index: -1, Playlist: playlist})
	})
	return playlist
}

// DecodeDocument validates and normalizes a playlist document. Used when
// installing snapshots from outside the store.
func DecodeDocument(data []byte) (model.Playlist, error) {
	return decode(data)
}

// Install atomically replaces the document with playlist.
func (s *PlaylistStore) Install(ctx context.Context, playlist model.Playlist) error {
	var err error
	s.critical(func() {
		if err = s.write(playlist); err != nil {
			return
		}
		s.notify(ctx, Change{Action: ActionReload, Index: -1, Playlist: playlist})
	})
	return err
}

// IsOwnWrite reports whether data is exactly the last document this store wrote.
func (s *PlaylistStore) IsOwnWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sha256.Sum256(data) == s.lastWrite
}

// critical runs fn with the in-process mutex and the advisory file lock held.
func (s *PlaylistStore) critical(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		logger.Error("failed to create playlist directory", logger.String("path", s.path), logger.ErrorField(err))
	} else if err := s.lock.Lock(); err != nil {
		logger.Warn("advisory playlist lock unavailable", logger.String("lock", s.lock.Path()), logger.ErrorField(err))
	} else {
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				logger.Warn("failed to release playlist lock", logger.ErrorField(err))
			}
		}()
	}

	fn()
}

func (s *PlaylistStore) ensureDir() error {
	return os.MkdirAll(filepath.Dir(s.path), 0o755)
}

// load reads and normalizes the document. A missing file is bootstrapped with
// the defaults; any other failure falls back to the defaults without touching
// the file.
func (s *PlaylistStore) load() model.Playlist {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			playlist := model.DefaultPlaylist()
			s.save(playlist)
			logger.Info("playlist file created with defaults", logger.String("path", s.path))
			return playlist
		}
		logger.Error("failed to read playlist", logger.String("path", s.path), logger.ErrorField(err))
		return model.DefaultPlaylist()
	}

	playlist, err := decode(data)
	if err != nil {
		logger.Error("failed to parse playlist, using defaults", logger.String("path", s.path), logger.ErrorField(err))
		return model.DefaultPlaylist()
	}

	// Write back the normalized form unless it is already what is on disk.
	if encoded, err := encode(playlist); err == nil && !bytes.Equal(encoded, data) {
		s.save(playlist)
	}
	return playlist
}

// save writes the document atomically via a temp file and reports success.
func (s *PlaylistStore) save(playlist model.Playlist) bool {
	if err := s.write(playlist); err != nil {
		logger.Error("failed to save playlist", logger.String("path", s.path), logger.ErrorField(err))
		return false
	}
	logger.Debug("playlist saved", logger.String("path", s.path), logger.Int("totalSongs", len(playlist)))
	return true
}

func (s *PlaylistStore) write(playlist model.Playlist) error {
	data, err := encode(playlist)
	if err != nil {
		return err
	}

	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("create playlist directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.lastWrite = sha256.Sum256(data)
	return nil
}

func (s *PlaylistStore) notify(ctx context.Context, change Change) {
	if change.At.IsZero() {
		change.At = time.Now()
	}

	s.obsMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.PlaylistChanged(ctx, change)
	}
}

// encode renders the canonical on-disk form.
func encode(playlist model.Playlist) ([]byte, error) {
	if playlist == nil {
		playlist = model.Playlist{}
	}
	data, err := json.MarshalIndent(playlist, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal playlist: %w", err)
	}
	return append(data, '\n'), nil
}

// decode parses a JSON array of song-like objects. Elements that are not
// objects normalize to an all-default song instead of failing the document.
func decode(data []byte) (model.Playlist, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("parse playlist file: %w", err)
	}
	if elements == nil {
		return nil, errors.New("parse playlist file: document is not an array")
	}

	inputs := make([]model.SongInput, len(elements))
	for i, raw := range elements {
		if err := json.Unmarshal(raw, &inputs[i]); err != nil {
			inputs[i] = model.SongInput{}
		}
	}
	return model.NormalizeAll(inputs), nil
}
