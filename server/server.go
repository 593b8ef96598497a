package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RbxFM/cache"
	"RbxFM/config"
	"RbxFM/logger"
	"RbxFM/store"

	"github.com/gorilla/mux"
)

// NewRouter wires the playlist routes and middleware.
func NewRouter(h *PlaylistHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware, corsMiddleware)

	router.HandleFunc("/", h.HomeHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/playlist", h.FeedHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/playlist", h.GetPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlist", h.AddSongHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlist/reset", h.ResetPlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlist/{index}", h.UpdateSongHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlist/{index}", h.DeleteSongHandler).Methods(http.MethodDelete)
	api.HandleFunc("/request", h.RequestSongHandler).Methods(http.MethodPost)

	// Preflight requests need a matching route for the CORS middleware to run.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return router
}

// Start wires the store, the optional Redis mirror, the websocket hub and
// the file watcher, then serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) {
	playlistStore := store.New(cfg.PlaylistFile)

	hub := NewPlaylistHub()
	go hub.Run()
	defer hub.Stop()
	playlistStore.Observe(hub)

	if cfg.RedisEnabled {
		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			// the mirror is optional, keep serving from the file
			logger.Warn("redis mirror disabled", logger.ErrorField(err))
		} else {
			defer client.Close()
			playlistStore.Observe(cache.NewPlaylistMirror(client, cfg.RedisKey))
			logger.Info("redis mirror enabled", logger.String("key", cfg.RedisKey))
		}
	}

	watcher, err := NewFileWatcher(playlistStore)
	if err != nil {
		logger.Warn("playlist file watcher disabled", logger.ErrorField(err))
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	handler := NewPlaylistHandler(playlistStore, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		playlist := playlistStore.Get(context.Background())
		logger.Info("server starting",
			logger.String("addr", "http://localhost:"+cfg.Port),
			logger.String("playlistFile", playlistStore.Path()),
			logger.Int("totalSongs", len(playlist)))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
		logger.Info("shutting down server")
	case err := <-serveErr:
		logger.Error("server failed", logger.ErrorField(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}
