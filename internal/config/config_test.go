// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points AILA_HOME at a fresh directory and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AILA_HOME", dir)
	for _, k := range []string{"AILA_BASE_URL", "AILA_LOG_LEVEL", "AILA_LOG_FORMAT", "AILA_HISTORY_WINDOW"} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Server.BaseURL = "http://example.test"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// TestConfig_ConcurrentMixedOperations tests a mix of all global operations
// happening concurrently.
func TestConfig_ConcurrentMixedOperations(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		switch i % 3 {
		case 0:
			go func() {
				defer wg.Done()
				if Global() == nil {
					t.Error("Global() returned nil")
				}
			}()
		case 1:
			go func() {
				defer wg.Done()
				c := Default()
				c.Chat.HistoryWindow = 5
				SetGlobal(c)
			}()
		case 2:
			go func() {
				defer wg.Done()
				_ = ReloadGlobal()
			}()
		}
	}
	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, DefaultHistoryWindow, cfg.Chat.HistoryWindow)

	custom := Default()
	custom.Server.BaseURL = "https://aila.example"
	SetGlobal(custom)
	assert.Equal(t, "https://aila.example", Global().Server.BaseURL)
}

func TestConfig_Default(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, 10, cfg.Chat.HistoryWindow)
	assert.Equal(t, 64*1024, cfg.Chat.StreamMaxFrameBytes)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "transcripts"), cfg.Storage.TranscriptsDir)
	assert.Equal(t, filepath.Join(dir, "cookies.json"), cfg.Storage.CookieFile)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout())
}

func TestConfig_Validate(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"defaults", func(*Config) {}, "", false},
		{"https url", func(c *Config) { c.Server.BaseURL = "https://aila.example/api" }, "", false},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://host" }, "server.base_url", true},
		{"missing host", func(c *Config) { c.Server.BaseURL = "http://" }, "server.base_url", true},
		{"negative timeout", func(c *Config) { c.Server.RequestTimeoutSecs = -1 }, "server.request_timeout_secs", true},
		{"negative rps", func(c *Config) { c.Server.RequestsPerSecond = -2 }, "server.requests_per_second", true},
		{"window zero", func(c *Config) { c.Chat.HistoryWindow = 0 }, "chat.history_window", true},
		{"window too big", func(c *Config) { c.Chat.HistoryWindow = 101 }, "chat.history_window", true},
		{"frame too small", func(c *Config) { c.Chat.StreamMaxFrameBytes = 10 }, "chat.stream_max_frame_bytes", true},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level", true},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format", true},
		{"color", func(c *Config) { c.UI.Color = "sometimes" }, "ui.color", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_LoadTOMLOverDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
base_url = "https://aila.example/"

[chat]
history_window = 4
`), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://aila.example", cfg.Server.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 4, cfg.Chat.HistoryWindow)
	assert.Equal(t, DefaultStreamMaxFrameBytes, cfg.Chat.StreamMaxFrameBytes, "absent keys keep defaults")
	assert.True(t, cfg.UI.Markdown)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if info.Mode().Perm()&0077 != 0 && runtime.GOOS != "windows" {
		t.Errorf("insecure permissions not fixed: %o", info.Mode().Perm())
	}
}

func TestConfig_LoadJSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"log": {"level": "debug", "format": "json"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	active, err := ActivePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), active)
}

func TestConfig_LoadRejectsUnknownKeys(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[chat]\nhistroy_window = 3\n"), 0600))

	cfg, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.histroy_window")
	require.NotNil(t, cfg, "defaults are returned alongside the error")
	assert.Equal(t, DefaultHistoryWindow, cfg.Chat.HistoryWindow)
}

func TestConfig_LoadInvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"shout\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AILA_BASE_URL", "https://env.example")
	t.Setenv("AILA_LOG_LEVEL", "DEBUG")
	t.Setenv("AILA_LOG_FORMAT", "JSON")
	t.Setenv("AILA_HISTORY_WINDOW", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.Server.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Chat.HistoryWindow)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Server.BaseURL = "https://saved.example"
	cfg.UI.WordWrap = 72

	path := filepath.Join(dir, "nested", "config.toml")
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# aila configuration file")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, 72, loaded.UI.WordWrap)

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	loaded, err = LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example", loaded.Server.BaseURL)
}

func TestConfig_GetSet(t *testing.T) {
	isolate(t)
	cfg := Default()

	val, err := cfg.Get("chat.history_window")
	require.NoError(t, err)
	assert.Equal(t, 10, val)

	require.NoError(t, cfg.Set("chat.history_window", "6"))
	assert.Equal(t, 6, cfg.Chat.HistoryWindow)

	require.NoError(t, cfg.Set("server.base_url", "https://x.example"))
	assert.Equal(t, "https://x.example", cfg.Server.BaseURL)

	require.NoError(t, cfg.Set("ui.markdown", "off"))
	assert.False(t, cfg.UI.Markdown)

	require.NoError(t, cfg.Set("server.requests_per_second", 2.5))
	assert.Equal(t, 2.5, cfg.Server.RequestsPerSecond)

	_, err = cfg.Get("invalid.key")
	assert.Error(t, err)
	_, err = cfg.Get("chat")
	assert.Error(t, err, "sections are not values")
	assert.Error(t, cfg.Set("ui.markdown", "maybe"))
	assert.Error(t, cfg.Set("chat.history_window", "many"))

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_Clone(t *testing.T) {
	isolate(t)
	original := Default()
	clone := original.Clone()
	clone.Server.BaseURL = "https://clone.example"

	assert.Equal(t, DefaultBaseURL, original.Server.BaseURL)
	assert.Equal(t, "https://clone.example", clone.Server.BaseURL)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchWithDebounce(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.Log.Level = "debug"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case reloaded := <-got:
		assert.Equal(t, "debug", reloaded.Log.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_NilFunc(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "config.toml", nil))
}
