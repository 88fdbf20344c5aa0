package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// maskdYAMLConfig mirrors the top-level sections of maskd.yaml.
type maskdYAMLConfig struct {
	HTTP      *HTTPConfig      `yaml:"http"`
	Queue     *QueueConfig     `yaml:"queue"`
	Retention *RetentionConfig `yaml:"retention"`
	Masking   *MaskingPolicy   `yaml:"masking"`
}

// Initialize reads maskd.yaml from configDir, merges it over the built-in
// defaults, and validates the result. The file is optional; without it the
// service runs on defaults alone.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	slog.Info("Loading configuration", "config_dir", configDir)

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"scrub_patterns", stats.ScrubPatterns,
		"custom_patterns", stats.CustomPatterns,
		"pattern_groups", stats.PatternGroups,
		"field_overrides", stats.FieldOverrides)
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var fileCfg maskdYAMLConfig
	err := readYAMLFile(configDir, "maskd.yaml", &fileCfg)
	switch {
	case errors.Is(err, ErrConfigNotFound):
		// The built-in tables cover everything; the file only tunes them.
		slog.Warn("No maskd.yaml found, using built-in defaults")
	case err != nil:
		return nil, NewLoadError("maskd.yaml", err)
	}

	cfg := &Config{
		configDir: configDir,
		HTTP:      DefaultHTTPConfig(),
		Queue:     DefaultQueueConfig(),
		Retention: DefaultRetentionConfig(),
		Masking:   fileCfg.Masking,
	}
	if cfg.Masking == nil {
		cfg.Masking = &MaskingPolicy{}
	}

	// File values win over defaults; fields the file leaves unset keep
	// their default.
	if fileCfg.HTTP != nil {
		if err := mergo.Merge(cfg.HTTP, fileCfg.HTTP, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge http config: %w", err)
		}
	}
	if fileCfg.Queue != nil {
		if err := mergo.Merge(cfg.Queue, fileCfg.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}
	if fileCfg.Retention != nil {
		if err := mergo.Merge(cfg.Retention, fileCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	return cfg, nil
}

// validate rejects configurations the server cannot safely run with.
func validate(cfg *Config) error {
	if err := cfg.Masking.Validate(); err != nil {
		return err
	}
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return NewValidationError("http", "server", "port", ErrInvalidValue)
	}
	if err := cfg.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if cfg.Retention.JobRetentionDays < 1 {
		return NewValidationError("retention", "jobs", "job_retention_days", ErrInvalidValue)
	}
	return nil
}

// readYAMLFile parses one YAML file into target, expanding {{.VAR}}
// environment references first.
func readYAMLFile(dir, name string, target any) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// On template errors the raw bytes pass through so the YAML parser
	// can produce its own (clearer) failure.
	if err := yaml.Unmarshal(ExpandEnv(data), target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}
