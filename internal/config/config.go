// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default values.
const (
	DefaultListen           = ":8080"
	DefaultCollection       = "tasks"
	DefaultNoticeTTLSeconds = 4
)

// Config holds the full configuration for the taskdeck server.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`

	// ProjectID is the Google Cloud project hosting the Firestore
	// database. Required.
	ProjectID string `toml:"project_id"`

	// Collection is the Firestore collection holding task documents.
	Collection string `toml:"collection"`

	// NoticeTTLSeconds is how long a transient notification stays
	// visible before it auto-dismisses.
	NoticeTTLSeconds int `toml:"notice_ttl_seconds"`

	// Identity configures the simulated identity provider.
	Identity IdentityConfig `toml:"identity"`
}

// IdentityConfig configures the simulated identity provider.
type IdentityConfig struct {
	// Users is the allow-list of sign-in handles. Empty means any
	// non-empty handle may sign in.
	Users []string `toml:"users"`
}

// NoticeTTL returns the transient-notification lifetime as a duration.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeTTLSeconds) * time.Second
}

// Load loads configuration in priority order:
// 1. Defaults
// 2. Config file (TOML), when one exists in the working directory
// 3. Environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if path := findConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run
// without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required (set GOOGLE_CLOUD_PROJECT or project_id in taskdeck.toml)")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is empty")
	}
	if c.NoticeTTLSeconds <= 0 {
		return fmt.Errorf("notice_ttl_seconds must be positive, got %d", c.NoticeTTLSeconds)
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.Listen = DefaultListen
	cfg.Collection = DefaultCollection
	cfg.NoticeTTLSeconds = DefaultNoticeTTLSeconds
	cfg.Identity.Users = nil
}

// findConfigFile looks for a config file in the current directory.
func findConfigFile() string {
	names := []string{"taskdeck.toml", ".taskdeck.toml"}
	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// loadConfigFile loads TOML config from the given file.
func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TASKDECK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Listen = ":" + v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("TASKDECK_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("TASKDECK_NOTICE_TTL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.NoticeTTLSeconds = i
		}
	}
	if v := os.Getenv("TASKDECK_USERS"); v != "" {
		cfg.Identity.Users = splitAndTrim(v, ",")
	}
}

// splitAndTrim splits s on sep and drops empty entries.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
