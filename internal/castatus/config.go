package castatus

import (
	"errors"
	"time"
)

// Config holds the configuration for the CA status client.
type Config struct {
	// TLSInsecureSkipVerify disables TLS certificate verification of the
	// status endpoint. The CA answers with its own certificate for the
	// server's FQDN, which is not in the system trust store while the
	// server is installed.
	// Default: true
	TLSInsecureSkipVerify *bool `yaml:"tls_insecure_skip_verify"`

	// CABundle is a PEM file of certificates trusted for the status
	// endpoint. Setting it turns verification back on.
	CABundle string `yaml:"ca_bundle"`

	// RequestTimeout bounds one status request.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultRequestTimeout is the default status request timeout.
const DefaultRequestTimeout = 30 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.TLSInsecureSkipVerify == nil {
		skip := true
		c.TLSInsecureSkipVerify = &skip
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RequestTimeout < 0 {
		return errors.New("castatus: config: request_timeout must not be negative")
	}
	return nil
}

// VerifiesTLS reports whether the client checks the endpoint's certificate:
// when a CA bundle is set or verification was explicitly turned on.
func (c *Config) VerifiesTLS() bool {
	if c.CABundle != "" {
		return true
	}
	return c.TLSInsecureSkipVerify != nil && !*c.TLSInsecureSkipVerify
}
