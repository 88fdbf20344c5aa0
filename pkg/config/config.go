package config

// Config is the umbrella configuration object returned by Initialize()
// and used throughout the application. Treat as read-only after loading.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// HTTP server settings
	HTTP *HTTPConfig

	// Queue and worker pool configuration
	Queue *QueueConfig

	// Scrub-job retention configuration
	Retention *RetentionConfig

	// Masking policy (custom patterns, field overrides, text scrub)
	Masking *MaskingPolicy
}

// Initialize is defined in loader.go

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	// Port is the API server listen port.
	Port int `yaml:"port"`
}

// DefaultHTTPConfig returns the built-in HTTP defaults.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port: 8080,
	}
}

// Stats contains statistics about loaded masking configuration
type Stats struct {
	ScrubPatterns  int `json:"scrub_patterns"`
	CustomPatterns int `json:"custom_patterns"`
	PatternGroups  int `json:"pattern_groups"`
	FieldOverrides int `json:"field_overrides"`
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	builtin := GetBuiltinConfig()
	s := Stats{
		ScrubPatterns: len(builtin.ScrubPatterns),
		PatternGroups: len(builtin.PatternGroups),
	}
	if c.Masking != nil {
		s.CustomPatterns = len(c.Masking.CustomPatterns)
		s.FieldOverrides = len(c.Masking.FieldOverrides.Personal) +
			len(c.Masking.FieldOverrides.Financial) +
			len(c.Masking.FieldOverrides.Web)
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}
