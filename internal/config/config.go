// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/aila/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete aila configuration.
type Config struct {
	// Service connection
	Server ServerConfig `toml:"server" json:"server"`

	// Chat turn behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`

	// Local files
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Terminal output
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig holds settings for reaching the service.
type ServerConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`

	// RequestTimeoutSecs bounds non-streaming calls. Streams are unbounded.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`

	// RequestsPerSecond throttles outgoing calls; 0 disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// ChatConfig holds settings for chat turns.
type ChatConfig struct {
	// HistoryWindow is how many prior messages go with each turn.
	HistoryWindow int `toml:"history_window" json:"history_window"`

	// StreamMaxFrameBytes caps a single buffered reply frame.
	StreamMaxFrameBytes int `toml:"stream_max_frame_bytes" json:"stream_max_frame_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`

	// File receives log output instead of stderr when set.
	File string `toml:"file" json:"file"`
}

// StorageConfig holds paths of local state.
type StorageConfig struct {
	TranscriptsDir string `toml:"transcripts_dir" json:"transcripts_dir"`
	MaxTranscripts int    `toml:"max_transcripts" json:"max_transcripts"`

	// CookieFile persists the session between runs.
	CookieFile string `toml:"cookie_file" json:"cookie_file"`
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	// Markdown renders replies with glamour when output is a terminal.
	Markdown bool `toml:"markdown" json:"markdown"`

	// WordWrap is the render width; 0 means terminal width.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`

	// Color is "auto", "always" or "never".
	Color string `toml:"color" json:"color"`
}

// RequestTimeout returns the non-streaming timeout as a duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultBaseURL             = "http://localhost:8080"
	DefaultRequestTimeoutSecs  = 30
	DefaultBurst               = 5
	DefaultHistoryWindow       = 10
	DefaultStreamMaxFrameBytes = 64 * 1024
	DefaultMaxTranscripts      = 500
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".aila"
	}
	return &Config{
		Server: ServerConfig{
			BaseURL:            DefaultBaseURL,
			RequestTimeoutSecs: DefaultRequestTimeoutSecs,
			RequestsPerSecond:  0,
			Burst:              DefaultBurst,
		},
		Chat: ChatConfig{
			HistoryWindow:       DefaultHistoryWindow,
			StreamMaxFrameBytes: DefaultStreamMaxFrameBytes,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Storage: StorageConfig{
			TranscriptsDir: filepath.Join(dir, "transcripts"),
			MaxTranscripts: DefaultMaxTranscripts,
			CookieFile:     filepath.Join(dir, "cookies.json"),
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 0,
			Color:    "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the aila configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("AILA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aila"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the config file Load would read, or the TOML path
// when none exists yet.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv reads .env from the working directory into the environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load()
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error
	if err := LoadDotEnv(); err != nil {
		loadErr = fmt.Errorf("failed to load .env: %w", err)
	}

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			loadErr = err
			break
		}
		return cfg, loadErr
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Values absent from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in zero values that have no meaning of their own.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = defaults.Server.Burst
	}
	if c.Chat.HistoryWindow == 0 {
		c.Chat.HistoryWindow = defaults.Chat.HistoryWindow
	}
	if c.Chat.StreamMaxFrameBytes == 0 {
		c.Chat.StreamMaxFrameBytes = defaults.Chat.StreamMaxFrameBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Storage.TranscriptsDir == "" {
		c.Storage.TranscriptsDir = defaults.Storage.TranscriptsDir
	}
	if c.Storage.CookieFile == "" {
		c.Storage.CookieFile = defaults.Storage.CookieFile
	}
	if c.UI.Color == "" {
		c.UI.Color = defaults.UI.Color
	}
}

// ApplyEnvOverrides applies AILA_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	// AILA_BASE_URL
	if u := os.Getenv("AILA_BASE_URL"); u != "" {
		c.Server.BaseURL = u
	}

	// AILA_LOG_LEVEL
	if level := os.Getenv("AILA_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}

	// AILA_LOG_FORMAT
	if format := os.Getenv("AILA_LOG_FORMAT"); format != "" {
		c.Log.Format = strings.ToLower(format)
	}

	// AILA_HISTORY_WINDOW
	if window := os.Getenv("AILA_HISTORY_WINDOW"); window != "" {
		if n, err := strconv.Atoi(window); err == nil {
			c.Chat.HistoryWindow = n
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Config files are written 0600 (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# aila configuration file\n")
	buf.WriteString("# Generated by aila - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
	validColors     = []string{"auto", "always", "never"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil {
		add("server.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("server.base_url", "missing host")
	}
	if c.Server.RequestTimeoutSecs < 0 || c.Server.RequestTimeoutSecs > 600 {
		add("server.request_timeout_secs", "must be between 0 and 600, got %d", c.Server.RequestTimeoutSecs)
	}
	if c.Server.RequestsPerSecond < 0 {
		add("server.requests_per_second", "must not be negative")
	}
	if c.Server.Burst < 0 {
		add("server.burst", "must not be negative")
	}

	if c.Chat.HistoryWindow < 1 || c.Chat.HistoryWindow > 100 {
		add("chat.history_window", "must be between 1 and 100, got %d", c.Chat.HistoryWindow)
	}
	if c.Chat.StreamMaxFrameBytes < 1024 || c.Chat.StreamMaxFrameBytes > 16*1024*1024 {
		add("chat.stream_max_frame_bytes", "must be between 1KB and 16MB, got %d", c.Chat.StreamMaxFrameBytes)
	}

	if !oneOf(strings.ToLower(c.Log.Level), validLogLevels) {
		add("log.level", "must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if !oneOf(strings.ToLower(c.Log.Format), validLogFormats) {
		add("log.format", "must be one of %s", strings.Join(validLogFormats, ", "))
	}

	if c.Storage.MaxTranscripts < 0 {
		add("storage.max_transcripts", "must not be negative")
	}

	if c.UI.WordWrap < 0 || c.UI.WordWrap > 1000 {
		add("ui.word_wrap", "must be between 0 and 1000, got %d", c.UI.WordWrap)
	}
	if !oneOf(c.UI.Color, validColors) {
		add("ui.color", "must be one of %s", strings.Join(validColors, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
