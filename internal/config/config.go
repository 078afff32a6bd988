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
// Secrets (the inference token and the gallery token) never live in this file.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	EnableServer   bool `yaml:"enable_server"`
}

// GenerationConfig tunes the inference client.
type GenerationConfig struct {
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	Style           string `yaml:"style"`
	BackoffMs       int    `yaml:"backoff_ms"`
	RatePerMinute   int    `yaml:"rate_per_minute"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	BatchLimit      int    `yaml:"batch_limit"`
}

// ExportConfig holds rendering defaults for raster exports.
type ExportConfig struct {
	Captions bool `yaml:"captions"`
	// CaptionFont is a TTF/OTF file; empty uses the built-in bitmap face.
	CaptionFont string `yaml:"caption_font"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Generation    GenerationConfig `yaml:"generation"`
	Backend       BackendConfig    `yaml:"backend"`
	Export        ExportConfig     `yaml:"export"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, EnableServer: false},
		Generation: GenerationConfig{
			BaseURL:         "https://api-inference.huggingface.co/models",
			Model:           "STABLE_DIFFUSION",
			Style:           "COMIC_BOOK",
			BackoffMs:       2000,
			RatePerMinute:   30,
			CacheTTLMinutes: 30,
			BatchLimit:      2,
		},
		Backend: BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "CL_BACKEND_URL"
	EnvBackendTimeoutMs = "CL_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "CL_TLS_INSECURE"
	EnvTelemetryOptIn   = "CL_TELEMETRY_OPT_IN"
	EnvEnableServer     = "CL_ENABLE_SERVER"
	// generation
	EnvInferenceURL = "CL_INFERENCE_URL"
	EnvModel        = "CL_MODEL"
	EnvStyle        = "CL_STYLE"
	EnvBackoffMs    = "CL_BACKOFF_MS"
	EnvRatePerMin   = "CL_RATE_PER_MINUTE"
	// export
	EnvCaptions    = "CL_CAPTIONS"
	EnvCaptionFont = "CL_CAPTION_FONT"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CL_LOG_LEVEL"
	EnvLogFormat = "CL_LOG_FORMAT"
	EnvLogSource = "CL_LOG_SOURCE"
	EnvLogFile   = "CL_LOG_FILE"
)

const appDirName = "comiclayers"

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ComicLayers")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ComicLayers")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, appDirName)
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", appDirName)
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the gallery token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringBackendToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the gallery token into OS keyring (if non-empty).
func Save(cfg AppConfig, backendToken string) error {
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
	if backendToken != "" {
		if err := tokenStore.Set(keyringService, keyringBackendToken, backendToken); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer
	// generation
	if s := strings.TrimSpace(src.Generation.BaseURL); s != "" {
		dst.Generation.BaseURL = s
	}
	if s := strings.TrimSpace(src.Generation.Model); s != "" {
		dst.Generation.Model = strings.ToUpper(s)
	}
	if s := strings.TrimSpace(src.Generation.Style); s != "" {
		dst.Generation.Style = strings.ToUpper(s)
	}
	if src.Generation.BackoffMs > 0 {
		dst.Generation.BackoffMs = src.Generation.BackoffMs
	}
	if src.Generation.RatePerMinute != 0 {
		dst.Generation.RatePerMinute = src.Generation.RatePerMinute
	}
	if src.Generation.CacheTTLMinutes != 0 {
		dst.Generation.CacheTTLMinutes = src.Generation.CacheTTLMinutes
	}
	if src.Generation.BatchLimit > 0 {
		dst.Generation.BatchLimit = src.Generation.BatchLimit
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	dst.Export.Captions = src.Export.Captions
	if s := strings.TrimSpace(src.Export.CaptionFont); s != "" {
		dst.Export.CaptionFont = s
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

func envBool(name string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes", true
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if n, ok := envInt(EnvBackendTimeoutMs); ok {
		cfg.Backend.TimeoutMs = n
	}
	if b, ok := envBool(EnvBackendTLSInsec); ok {
		cfg.Backend.TLSInsecure = b
	}
	if b, ok := envBool(EnvCaptions); ok {
		cfg.Export.Captions = b
	}
	if v := strings.TrimSpace(os.Getenv(EnvCaptionFont)); v != "" {
		cfg.Export.CaptionFont = v
	}
	if b, ok := envBool(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = b
	}
	if b, ok := envBool(EnvEnableServer); ok {
		cfg.General.EnableServer = b
	}
	// generation overrides
	if v := strings.TrimSpace(os.Getenv(EnvInferenceURL)); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Generation.Model = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStyle)); v != "" {
		cfg.Generation.Style = strings.ToUpper(v)
	}
	if n, ok := envInt(EnvBackoffMs); ok && n > 0 {
		cfg.Generation.BackoffMs = n
	}
	if n, ok := envInt(EnvRatePerMin); ok {
		cfg.Generation.RatePerMinute = n
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if b, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = b
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.enable_server":    EnvEnableServer,
	"generation.base_url":      EnvInferenceURL,
	"generation.model":         EnvModel,
	"generation.style":         EnvStyle,
	"generation.backoff_ms":    EnvBackoffMs,
	"generation.rate_per_min":  EnvRatePerMin,
	"export.captions":          EnvCaptions,
	"export.caption_font":      EnvCaptionFont,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// EffectiveTimeout returns the gallery client timeout.
func (b BackendConfig) EffectiveTimeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Backoff returns the configured retry delay.
func (g GenerationConfig) Backoff() time.Duration {
	if g.BackoffMs <= 0 {
		return time.Duration(Defaults().Generation.BackoffMs) * time.Millisecond
	}
	return time.Duration(g.BackoffMs) * time.Millisecond
}

// CacheTTL returns the in-memory asset cache lifetime; a negative setting disables the cache.
func (g GenerationConfig) CacheTTL() time.Duration {
	if g.CacheTTLMinutes < 0 {
		return -1
	}
	if g.CacheTTLMinutes == 0 {
		return time.Duration(Defaults().Generation.CacheTTLMinutes) * time.Minute
	}
	return time.Duration(g.CacheTTLMinutes) * time.Minute
}
