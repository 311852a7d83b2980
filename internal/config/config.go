// Package config loads the platctl configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/platctl/internal/castatus"
	"github.com/plexsphere/platctl/internal/paths"
	"github.com/plexsphere/platctl/internal/services"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultPath is where the configuration file is looked up.
	DefaultPath = "/etc/platctl/platctl.yaml"

	// BackendSystemctl drives units through the systemctl program.
	BackendSystemctl = "systemctl"

	// BackendDBus drives units over the systemd D-Bus API.
	BackendDBus = "dbus"
)

// Config is the top-level platctl configuration. It is populated from a
// YAML file via ParseConfig.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// Backend selects how systemd is driven: "systemctl" or "dbus".
	// Default: "systemctl"
	Backend string `yaml:"backend"`

	// StartupTimeout bounds every readiness wait.
	// Default: 300s
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// PollInterval is the delay between readiness checks.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// TrackServices records started units so they can be stopped on
	// uninstall.
	TrackServices bool `yaml:"track_services"`

	// Realm selects the default directory server instance.
	Realm string `yaml:"realm"`

	CA CAConfig `yaml:"ca"`

	// Units overrides entries of the unit name table.
	Units map[string]string `yaml:"units"`

	Paths paths.Paths `yaml:"paths"`
}

// CAConfig configures the CA readiness check.
type CAConfig struct {
	// Host is the host whose status endpoint is polled.
	// Default: localhost
	Host string `yaml:"host"`

	castatus.Config `yaml:",inline"`
}

// Validate checks the CA status settings. A verified certificate is issued
// for the server's FQDN, so verification needs a host that is not loopback.
func (c *CAConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.VerifiesTLS() && isLoopback(c.Host) {
		return fmt.Errorf("config: ca.host %q cannot be verified against the CA certificate; set it to the server's FQDN", c.Host)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Backend == "" {
		c.Backend = BackendSystemctl
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = services.DefaultStartupTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = services.DefaultPollInterval
	}
	if c.CA.Host == "" {
		c.CA.Host = services.DefaultCAHost
	}
	c.CA.ApplyDefaults()
	c.Paths.ApplyDefaults()
}

// Validate checks that values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.Backend != BackendSystemctl && c.Backend != BackendDBus {
		return fmt.Errorf("config: invalid backend %q (must be %q or %q)", c.Backend, BackendSystemctl, BackendDBus)
	}
	if c.StartupTimeout < 0 {
		return errors.New("config: startup_timeout must not be negative")
	}
	if c.PollInterval < 0 {
		return errors.New("config: poll_interval must not be negative")
	}
	if err := c.CA.Validate(); err != nil {
		return err
	}
	return c.Paths.Validate()
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ParseConfig reads a YAML configuration file and returns a Config.
// It applies defaults and validates the configuration.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
