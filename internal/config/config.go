// Package config loads and validates relay configuration.
//
// Configuration comes from an optional YAML file with ${ENV} expansion,
// overlaid by RELAY_* environment variables for secrets, overlaid by the
// defaults in defaults.go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "2s",
// "50ms" etc.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// OriginPatterns is passed to the WebSocket accept handshake.
	// Defaults to allowing any origin, matching a public chat frontend.
	OriginPatterns []string `yaml:"origin_patterns"`
}

// UpstreamConfig configures the external completion service.
type UpstreamConfig struct {
	URL             string   `yaml:"url"`
	APIKey          string   `yaml:"api_key"`
	AgentID         string   `yaml:"agent_id"`
	UserID          string   `yaml:"user_id"`
	Timeout         Duration `yaml:"timeout"`
	MinCallInterval Duration `yaml:"min_call_interval"`
}

// QuotaConfig configures per-session usage accounting.
type QuotaConfig struct {
	Threshold int `yaml:"threshold"`
	// Estimator selects the usage estimator: "heuristic" (default) or
	// "tiktoken".
	Estimator string `yaml:"estimator"`
}

// StreamingConfig configures chunked response delivery. A negative
// chunk_delay disables inter-chunk pacing entirely.
type StreamingConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`
	ChunkDelay Duration `yaml:"chunk_delay"`
}

// TelemetryConfig configures JSONL turn-event recording.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// ArchiveConfig configures the optional SQLite transcript archive.
// Sessions themselves stay in memory; the archive is an additive sink.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the full relay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Quota     QuotaConfig     `yaml:"quota"`
	Streaming StreamingConfig `yaml:"streaming"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Archive   ArchiveConfig   `yaml:"archive"`
	LogLevel  string          `yaml:"log_level"`
}

// Load reads the config file at path (optional; pass "" to run on
// environment and defaults only), expands ${ENV} references, applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills unset secrets and endpoints from the environment so the
// relay can run without a config file (e.g. container deployments).
func (c *Config) applyEnv() {
	setIfEmpty(&c.Upstream.URL, "RELAY_UPSTREAM_URL")
	setIfEmpty(&c.Upstream.APIKey, "RELAY_UPSTREAM_API_KEY")
	setIfEmpty(&c.Upstream.AgentID, "RELAY_UPSTREAM_AGENT_ID")
	setIfEmpty(&c.Upstream.UserID, "RELAY_UPSTREAM_USER_ID")
	setIfEmpty(&c.Server.Addr, "RELAY_LISTEN_ADDR")
	setIfEmpty(&c.LogLevel, "RELAY_LOG_LEVEL")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst == "" {
		*dst = os.Getenv(envKey)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if len(c.Server.OriginPatterns) == 0 {
		c.Server.OriginPatterns = []string{"*"}
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if c.Upstream.MinCallInterval <= 0 {
		c.Upstream.MinCallInterval = Duration(DefaultMinCallInterval)
	}
	if c.Quota.Threshold <= 0 {
		c.Quota.Threshold = DefaultUsageThreshold
	}
	if c.Quota.Estimator == "" {
		c.Quota.Estimator = "heuristic"
	}
	if c.Streaming.ChunkSize <= 0 {
		c.Streaming.ChunkSize = DefaultChunkSize
	}
	if c.Streaming.ChunkDelay < 0 {
		c.Streaming.ChunkDelay = 0
	} else if c.Streaming.ChunkDelay == 0 {
		c.Streaming.ChunkDelay = Duration(DefaultChunkDelay)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream url is required (set upstream.url or RELAY_UPSTREAM_URL)")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when the archive is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.LogPath == "" && !c.Telemetry.LogToStdout {
		return fmt.Errorf("telemetry requires log_path or log_to_stdout")
	}
	return nil
}
