package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_DIR", "PLAYLIST_FILE", "REDIS_ENABLED", "MINIO_BUCKET"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.PlaylistFile != filepath.Join("data", "playlist.json") {
		t.Errorf("PlaylistFile = %q", cfg.PlaylistFile)
	}
	if cfg.RedisEnabled {
		t.Error("redis mirror should be disabled by default")
	}
	if cfg.MinioBucket != "rbxfm" {
		t.Errorf("MinioBucket = %q, want rbxfm", cfg.MinioBucket)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DATA_DIR", "/srv/rbxfm")
	t.Setenv("PLAYLIST_FILE", "")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_MAX_SIZE", "not-a-number")

	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
	if cfg.PlaylistFile != filepath.Join("/srv/rbxfm", "playlist.json") {
		t.Errorf("PlaylistFile = %q", cfg.PlaylistFile)
	}
	if !cfg.RedisEnabled || cfg.RedisDB != 3 {
		t.Errorf("redis settings not applied: enabled=%v db=%d", cfg.RedisEnabled, cfg.RedisDB)
	}
	if cfg.LogMaxSize != 50 {
		t.Errorf("LogMaxSize = %d, want fallback 50", cfg.LogMaxSize)
	}
}
