package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "aura.yml"

// Environment overrides, applied after the file is parsed.
const (
	EnvRedisURL = "AURA_REDIS_URL"
	EnvRoom     = "AURA_ROOM"
)

const (
	defaultRedisURL       = "redis://localhost:6379/0"
	defaultDomain         = "aura"
	defaultResyncInterval = 30 * time.Second
	defaultCircleSegments = 64
	defaultParticleCount  = 24
	defaultFeedAddr       = ":8080"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// AuraConfig represents the top-level aura.yml configuration
type AuraConfig struct {
	Version  string         `yaml:"version"`
	Room     string         `yaml:"room"`
	RedisURL string         `yaml:"redis_url,omitempty"`
	Domains  []string       `yaml:"domains,omitempty"` // Styling domains to reconcile (default: aura)
	Engine   *EngineConfig  `yaml:"engine,omitempty"`
	Feed     *FeedConfig    `yaml:"feed,omitempty"`
	Logging  *LoggingConfig `yaml:"logging,omitempty"`
}

// EngineConfig tunes reconciliation and artifact construction
type EngineConfig struct {
	ResyncInterval *Duration `yaml:"resync_interval,omitempty"` // 0 disables periodic passes
	CircleSegments int       `yaml:"circle_segments,omitempty"`
	ParticleCount  int       `yaml:"particle_count,omitempty"`
}

// FeedConfig configures the renderer feed server
type FeedConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // Default: true
	Addr    string `yaml:"addr,omitempty"`
}

// LoggingConfig selects log level and format ("console" or "json")
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Overrides are command-line values that take precedence over both the file
// and the environment. Empty fields are ignored.
type Overrides struct {
	Room     string
	RedisURL string
}

// LoadOrDefault loads path if it exists, or starts from defaults if it does
// not. Environment variables and then overrides are applied before
// validation.
func LoadOrDefault(path string, overrides Overrides) (*AuraConfig, error) {
	config := AuraConfig{Version: "1.0"}
	if _, err := os.Stat(path); err == nil {
		parsed, err := parse(path)
		if err != nil {
			return nil, err
		}
		config = *parsed
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(&config)
	if overrides.Room != "" {
		config.Room = overrides.Room
	}
	if overrides.RedisURL != "" {
		config.RedisURL = overrides.RedisURL
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *AuraConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: room
	if c.Room == "" {
		return fmt.Errorf("room is required")
	}
	if !namePattern.MatchString(c.Room) {
		return fmt.Errorf("invalid room name %q: must be lowercase alphanumeric with '.', '_' or '-'", c.Room)
	}

	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}
	u, err := url.Parse(c.RedisURL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return fmt.Errorf("invalid redis_url %q: must be redis:// or rediss://", c.RedisURL)
	}

	if len(c.Domains) == 0 {
		c.Domains = []string{defaultDomain}
	}
	seen := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if !namePattern.MatchString(d) {
			return fmt.Errorf("invalid domain %q: must be lowercase alphanumeric with '.', '_' or '-'", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate domain '%s'", d)
		}
		seen[d] = true
	}

	if c.Engine == nil {
		c.Engine = &EngineConfig{}
	}
	if c.Engine.ResyncInterval == nil {
		c.Engine.ResyncInterval = &Duration{Duration: defaultResyncInterval}
	}
	if c.Engine.ResyncInterval.Duration < 0 {
		return fmt.Errorf("engine.resync_interval must be >= 0 (0 = disabled), got %s", c.Engine.ResyncInterval)
	}
	if c.Engine.CircleSegments == 0 {
		c.Engine.CircleSegments = defaultCircleSegments
	}
	if c.Engine.CircleSegments < 8 {
		return fmt.Errorf("engine.circle_segments must be >= 8, got %d", c.Engine.CircleSegments)
	}
	if c.Engine.ParticleCount == 0 {
		c.Engine.ParticleCount = defaultParticleCount
	}
	if c.Engine.ParticleCount < 1 {
		return fmt.Errorf("engine.particle_count must be >= 1, got %d", c.Engine.ParticleCount)
	}

	if c.Feed == nil {
		c.Feed = &FeedConfig{}
	}
	if c.Feed.Enabled == nil {
		enabled := true
		c.Feed.Enabled = &enabled
	}
	if c.Feed.Addr == "" {
		c.Feed.Addr = defaultFeedAddr
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be 'trace', 'debug', 'info', 'warn' or 'error')", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	return nil
}

// FeedEnabled reports whether the feed server should run.
func (c *AuraConfig) FeedEnabled() bool {
	return c.Feed == nil || c.Feed.Enabled == nil || *c.Feed.Enabled
}

// Load reads aura.yml from the specified path, applies environment
// overrides and validates the result.
func Load(path string) (*AuraConfig, error) {
	config, err := parse(path)
	if err != nil {
		return nil, err
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func parse(path string) (*AuraConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config AuraConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &config, nil
}

func applyEnv(c *AuraConfig) {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvRoom); v != "" {
		c.Room = v
	}
}
