package server

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RbxFM/logger"
	"RbxFM/store"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// FileWatcher reloads the playlist when its document is edited by hand or
// by another tool, so feed clients and the Redis mirror see the change.
type FileWatcher struct {
	store    *store.PlaylistStore
	watcher  *fsnotify.Watcher
	target   string
	debounce time.Duration

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFileWatcher watches the directory holding the store's document. The
// directory is watched rather than the file because the store replaces the
// file by renaming over it.
func NewFileWatcher(s *store.PlaylistStore) (*FileWatcher, error) {
	dir := filepath.Dir(s.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	return &FileWatcher{
		store:    s,
		watcher:  w,
		target:   filepath.Clean(s.Path()),
		debounce: watchDebounce,
		quit:     make(chan struct{}),
	}, nil
}

// Start begins processing events in the background.
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go fw.loop()
}

// Stop ends the event loop and closes the underlying watcher.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.quit)
		fw.watcher.Close()
	})
	fw.wg.Wait()
}

func (fw *FileWatcher) loop() {
	defer fw.wg.Done()

	debounce := time.NewTimer(0)
	<-debounce.C

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(fw.debounce)

		case <-debounce.C:
			fw.check()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("playlist watcher error", logger.ErrorField(err))

		case <-fw.quit:
			debounce.Stop()
			return
		}
	}
}

// check reloads unless the file holds exactly what the store last wrote.
func (fw *FileWatcher) check() {
	data, err := os.ReadFile(fw.target)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to read playlist after change", logger.String("path", fw.target), logger.ErrorField(err))
		return
	}
	if err == nil && fw.store.IsOwnWrite(data) {
		return
	}

	playlist := fw.store.Reload(context.Background())
	logger.Info("playlist reloaded after external edit",
		logger.String("path", fw.target),
		logger.Int("totalSongs", len(playlist)))
}
