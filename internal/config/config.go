// Package config loads emdx's TOML configuration file, discovering it the
// way the teacher discovers its YAML config: an explicit directory override
// first, then the XDG config home, with environment variables able to
// override individual fields after the file loads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds every option recognised in $EMDX_CONFIG_DIR/config.toml
// (spec.md §6), each with the documented default.
type Config struct {
	MaxConcurrency           int     `toml:"max_concurrency"`
	StaleThresholdSeconds    int     `toml:"stale_threshold_seconds"`
	HeartbeatIntervalSeconds int     `toml:"heartbeat_interval_seconds"`
	AutoLinkOnSave           bool    `toml:"auto_link_on_save"`
	SemanticLinkThreshold    float64 `toml:"semantic_link_threshold"`
	EmbeddingDim             int     `toml:"embedding_dim"`
	RRFK                     int     `toml:"rrf_k"`
	LLMCommand               string  `toml:"llm_command"`
	DefaultDocType           string  `toml:"default_doc_type"`
}

// Defaults returns the documented defaults before any file or env override
// is applied.
func Defaults() Config {
	return Config{
		MaxConcurrency:           5,
		StaleThresholdSeconds:    1800,
		HeartbeatIntervalSeconds: 30,
		AutoLinkOnSave:           true,
		SemanticLinkThreshold:    0.78,
		EmbeddingDim:             384,
		RRFK:                     60,
		LLMCommand:               "claude --print",
		DefaultDocType:           "user",
	}
}

// ConfigDir resolves $EMDX_CONFIG_DIR, falling back to
// $XDG_CONFIG_HOME/emdx (or the platform equivalent via os.UserConfigDir).
func ConfigDir() (string, error) {
	if dir := os.Getenv("EMDX_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "emdx"), nil
}

// LogDir resolves $EMDX_LOG_DIR, falling back to <config dir>/logs.
func LogDir() (string, error) {
	if dir := os.Getenv("EMDX_LOG_DIR"); dir != "" {
		return dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// DatabasePath resolves the single knowledge.db file location.
func DatabasePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "knowledge.db"), nil
}

// Load reads config.toml from ConfigDir(), applying defaults for anything
// absent and env var overrides for anything present in the environment.
// A missing file is not an error -- defaults and env vars still apply, the
// same graceful-degradation the teacher's Initialize() follows when no
// config.yaml is found anywhere in its search path.
func Load() (Config, error) {
	cfg := Defaults()

	dir, err := ConfigDir()
	if err != nil {
		return cfg, err
	}
	path := filepath.Join(dir, "config.toml")
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets EMDX_-prefixed environment variables override
// individual fields after the file loads, mirroring the teacher's
// env-beats-file precedence without pulling in a binding library for nine
// scalar fields.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("EMDX_MAX_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	if v, ok := os.LookupEnv("EMDX_STALE_THRESHOLD_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StaleThresholdSeconds = n
		}
	}
	if v, ok := os.LookupEnv("EMDX_HEARTBEAT_INTERVAL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HeartbeatIntervalSeconds = n
		}
	}
	if v, ok := os.LookupEnv("EMDX_AUTO_LINK_ON_SAVE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoLinkOnSave = b
		}
	}
	if v, ok := os.LookupEnv("EMDX_SEMANTIC_LINK_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SemanticLinkThreshold = f
		}
	}
	if v, ok := os.LookupEnv("EMDX_EMBEDDING_DIM"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDim = n
		}
	}
	if v, ok := os.LookupEnv("EMDX_RRF_K"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RRFK = n
		}
	}
	if v, ok := os.LookupEnv("EMDX_LLM_COMMAND"); ok && v != "" {
		cfg.LLMCommand = v
	}
	if v, ok := os.LookupEnv("EMDX_DEFAULT_DOC_TYPE"); ok && v != "" {
		cfg.DefaultDocType = v
	}
}
