// Package config handles configuration loading for phosdash.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration. The zero
// values of Sources mean "use the provider package defaults"; config
// can re-point URLs without changing pipeline semantics.
type Config struct {
	Sources   SourcesConfig   `mapstructure:"sources"   yaml:"sources"`
	HTTP      HTTPConfig      `mapstructure:"http"      yaml:"http"`
	Cache     CacheConfig     `mapstructure:"cache"     yaml:"cache"`
	Bulletins BulletinsConfig `mapstructure:"bulletins" yaml:"bulletins"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// SourcesConfig holds upstream dataset source settings.
type SourcesConfig struct {
	PriceURLs       []string `mapstructure:"price_urls"       yaml:"price_urls"`       // empty = built-in primary+fallback
	ProductionURL   string   `mapstructure:"production_url"   yaml:"production_url"`   // empty = built-in URL
	DiscoverMirrors bool     `mapstructure:"discover_mirrors" yaml:"discover_mirrors"`
	MirrorPage      string   `mapstructure:"mirror_page"      yaml:"mirror_page"` // empty = built-in research page
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// CacheConfig holds dataset cache settings.
type CacheConfig struct {
	TTLHours int `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// BulletinsConfig holds publication-notice feed settings.
type BulletinsConfig struct {
	Enabled bool         `mapstructure:"enabled" yaml:"enabled"`
	Limit   int          `mapstructure:"limit"   yaml:"limit"`
	Feeds   []FeedConfig `mapstructure:"feeds"   yaml:"feeds"` // empty = built-in newsroom feeds
}

// FeedConfig identifies one bulletin feed.
type FeedConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	URL    string `mapstructure:"url"    yaml:"url"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./phosdash.yaml (working directory)
//  2. ~/.phosdash/phosdash.yaml (home directory)
//  3. /etc/phosdash/phosdash.yaml (system)
//
// Environment variables override config file values.
// Format: PHOSDASH_<SECTION>_<KEY>, e.g., PHOSDASH_API_PORT
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("phosdash")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(homeDir(), ".phosdash"))
	v.AddConfigPath("/etc/phosdash")

	v.SetEnvPrefix("PHOSDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("PHOSDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Outbound HTTP defaults
	v.SetDefault("http.timeout_sec", 60)

	// Cache defaults: upstream publications change at most monthly
	v.SetDefault("cache.ttl_hours", 24)

	// Bulletins defaults
	v.SetDefault("bulletins.enabled", true)
	v.SetDefault("bulletins.limit", 10)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
