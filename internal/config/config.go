/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type LibraryConfig struct {
	Root    string   `yaml:"root"`
	Exclude []string `yaml:"exclude"`
	// LeafFolders treats folders that directly hold images as one book.
	LeafFolders bool `yaml:"leaf_folders"`
}

type GridConfig struct {
	// Zero sizes fall back to viewport-derived defaults.
	ItemWidth      float64 `yaml:"item_width"`
	ItemHeight     float64 `yaml:"item_height"`
	PreserveOffset bool    `yaml:"preserve_offset"`
}

type ReaderConfig struct {
	ViewMode  string `yaml:"view_mode"` // "single" | "double"
	Direction string `yaml:"direction"` // "ltr" | "rtl"
}

type ThumbsConfig struct {
	Width         int   `yaml:"width"`
	Workers       int   `yaml:"workers"`
	CacheMaxBytes int64 `yaml:"cache_max_bytes"`
}

type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type MetadataConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Library       LibraryConfig  `yaml:"library"`
	Grid          GridConfig     `yaml:"grid"`
	Reader        ReaderConfig   `yaml:"reader"`
	Thumbs        ThumbsConfig   `yaml:"thumbs"`
	Remote        RemoteConfig   `yaml:"remote"`
	Metadata      MetadataConfig `yaml:"metadata"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Grid:          GridConfig{},
		Reader:        ReaderConfig{ViewMode: "single", Direction: "ltr"},
		Thumbs:        ThumbsConfig{Width: 320, Workers: 4, CacheMaxBytes: 256 << 20},
		Metadata:      MetadataConfig{BaseURL: "https://www.dlsite.com", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir       = "MSH_CONFIG_DIR"
	EnvDataDir         = "MSH_DATA_DIR"
	EnvLibraryRoot     = "MSH_LIBRARY_ROOT"
	EnvLeafFolders     = "MSH_LEAF_FOLDERS"
	EnvItemWidth       = "MSH_GRID_ITEM_WIDTH"
	EnvItemHeight      = "MSH_GRID_ITEM_HEIGHT"
	EnvPreserveOffset  = "MSH_GRID_PRESERVE_OFFSET"
	EnvReaderDirection = "MSH_READER_DIRECTION"
	EnvThumbWidth      = "MSH_THUMBS_WIDTH"
	EnvThumbWorkers    = "MSH_THUMBS_WORKERS"
	EnvRemoteEnabled   = "MSH_REMOTE_ENABLED"
	EnvRemoteDSN       = "MSH_REMOTE_DSN"
	EnvMetadataURL     = "MSH_METADATA_URL"
	EnvMetadataTimeout = "MSH_METADATA_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "MSH_LOG_LEVEL"
	EnvLogFormat = "MSH_LOG_FORMAT"
	EnvLogSource = "MSH_LOG_SOURCE"
	EnvLogFile   = "MSH_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "MangaShelf"
	keyringRemote  = "remote_password"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SetTokenStore swaps the secret store and returns a function restoring the previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyringGet(service, key) }
func (k *osKeyring) Set(service, key, value string) error    { return keyringSet(service, key, value) }
func (k *osKeyring) Delete(service, key string) error        { return keyringDelete(service, key) }

func userBase() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MangaShelf")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MangaShelf")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "mangashelf")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "mangashelf")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvConfigDir)); d != "" {
		return filepath.Join(d, "config.yaml"), nil
	}
	base, err := userBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the directory holding the library database and crash reports.
func DataDir() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvDataDir)); d != "" {
		return d, nil
	}
	base, err := userBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "data"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the remote password from keyring (not kept inside the struct; returned separately).
// A malformed file is reported but defaults plus env overrides are still returned.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var fileErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			fileErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	secret, _ := tokenStore.Get(keyringService, keyringRemote)
	return cfg, secret, fileErr
}

// Save writes the user config YAML and persists the remote password into OS keyring (if non-empty).
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringRemote, secret); err != nil {
			return fmt.Errorf("store remote password: %w", err)
		}
	}
	return nil
}

// ForgetSecret removes the stored remote password.
func ForgetSecret() error { return tokenStore.Delete(keyringService, keyringRemote) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// library
	if strings.TrimSpace(src.Library.Root) != "" {
		dst.Library.Root = strings.TrimSpace(src.Library.Root)
	}
	if len(src.Library.Exclude) > 0 {
		dst.Library.Exclude = append([]string(nil), src.Library.Exclude...)
	}
	dst.Library.LeafFolders = src.Library.LeafFolders
	// grid
	if src.Grid.ItemWidth > 0 {
		dst.Grid.ItemWidth = src.Grid.ItemWidth
	}
	if src.Grid.ItemHeight > 0 {
		dst.Grid.ItemHeight = src.Grid.ItemHeight
	}
	dst.Grid.PreserveOffset = src.Grid.PreserveOffset
	// reader
	if v := strings.ToLower(strings.TrimSpace(src.Reader.ViewMode)); v == "single" || v == "double" {
		dst.Reader.ViewMode = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Reader.Direction)); v == "ltr" || v == "rtl" {
		dst.Reader.Direction = v
	}
	// thumbs
	if src.Thumbs.Width > 0 {
		dst.Thumbs.Width = src.Thumbs.Width
	}
	if src.Thumbs.Workers > 0 {
		dst.Thumbs.Workers = src.Thumbs.Workers
	}
	if src.Thumbs.CacheMaxBytes > 0 {
		dst.Thumbs.CacheMaxBytes = src.Thumbs.CacheMaxBytes
	}
	// remote
	dst.Remote.Enabled = src.Remote.Enabled
	if strings.TrimSpace(src.Remote.DSN) != "" {
		dst.Remote.DSN = strings.TrimSpace(src.Remote.DSN)
	}
	// metadata
	if strings.TrimSpace(src.Metadata.BaseURL) != "" {
		dst.Metadata.BaseURL = strings.TrimRight(strings.TrimSpace(src.Metadata.BaseURL), "/")
	}
	if src.Metadata.TimeoutMs != 0 {
		dst.Metadata.TimeoutMs = src.Metadata.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvLibraryRoot)); v != "" {
		cfg.Library.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLeafFolders)); v != "" {
		cfg.Library.LeafFolders = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvItemWidth)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Grid.ItemWidth = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvItemHeight)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Grid.ItemHeight = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPreserveOffset)); v != "" {
		cfg.Grid.PreserveOffset = parseBool(v)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvReaderDirection))); v == "ltr" || v == "rtl" {
		cfg.Reader.Direction = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvThumbWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Thumbs.Width = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvThumbWorkers)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Thumbs.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRemoteEnabled)); v != "" {
		cfg.Remote.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvRemoteDSN)); v != "" {
		cfg.Remote.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetadataURL)); v != "" {
		cfg.Metadata.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetadataTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metadata.TimeoutMs = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"library.root":         EnvLibraryRoot,
	"library.leaf_folders": EnvLeafFolders,
	"grid.item_width":      EnvItemWidth,
	"grid.item_height":     EnvItemHeight,
	"grid.preserve_offset": EnvPreserveOffset,
	"reader.direction":     EnvReaderDirection,
	"thumbs.width":         EnvThumbWidth,
	"thumbs.workers":       EnvThumbWorkers,
	"remote.enabled":       EnvRemoteEnabled,
	"remote.dsn":           EnvRemoteDSN,
	"metadata.base_url":    EnvMetadataURL,
	"metadata.timeout_ms":  EnvMetadataTimeout,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the scraper request timeout, falling back to the default for non-positive values.
func (m MetadataConfig) Timeout() time.Duration {
	if m.TimeoutMs <= 0 {
		return time.Duration(Defaults().Metadata.TimeoutMs) * time.Millisecond
	}
	return time.Duration(m.TimeoutMs) * time.Millisecond
}
