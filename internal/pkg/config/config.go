// Package config loads client configuration from YAML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Backend    BackendConfig    `koanf:"backend"`
	Project    ProjectConfig    `koanf:"project"`
	Storage    StorageConfig    `koanf:"storage"`
	Archive    ArchiveConfig    `koanf:"archive"`
	Processing ProcessingConfig `koanf:"processing"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Log        LogConfig        `koanf:"log"`
}

type BackendConfig struct {
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

type ProjectConfig struct {
	ID int `koanf:"id"`
}

type StorageConfig struct {
	Path string `koanf:"path"`
}

type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type ProcessingConfig struct {
	ChunkSize   int `koanf:"chunk_size"`
	OverlapSize int `koanf:"overlap_size"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the first file found among supportchat.yaml
// in the working directory and config.yaml in the user config directory,
// then applies SUPPORTCHAT_* environment overrides and defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, candidate := range configFileCandidates() {
		err := k.Load(file.Provider(candidate), yaml.Parser())
		if err == nil {
			break
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file %s: %w", candidate, err)
		}
	}

	// Environment variables override file config. Double underscore maps to
	// a key separator: SUPPORTCHAT_BACKEND__BASE_URL -> backend.base_url.
	if err := k.Load(env.Provider("SUPPORTCHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SUPPORTCHAT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Backend.BaseURL = substituteEnvVars(cfg.Backend.BaseURL)
	cfg.Storage.Path = substituteEnvVars(cfg.Storage.Path)
	cfg.Archive.Path = substituteEnvVars(cfg.Archive.Path)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFileCandidates() []string {
	candidates := []string{"supportchat.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "supportchat", "config.yaml"))
	}
	return candidates
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"backend.base_url":        "http://localhost:8000",
		"backend.timeout":         "30s",
		"backend.max_retries":     2,
		"backend.retry_delay":     "1s",
		"project.id":              1,
		"storage.path":            defaultStatePath("credentials.db"),
		"archive.enabled":         true,
		"archive.path":            defaultStatePath("transcripts.db"),
		"processing.chunk_size":   512,
		"processing.overlap_size": 50,
		"telemetry.enabled":       false,
		"log.level":               "info",
		"log.format":              "text",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func defaultStatePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "supportchat", name)
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must not be negative")
	}
	if c.Project.ID <= 0 {
		return fmt.Errorf("project.id must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
