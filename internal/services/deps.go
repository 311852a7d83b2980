package services

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/juju/clock"

	"github.com/plexsphere/platctl/internal/paths"
	"github.com/plexsphere/platctl/internal/systemd"
	"github.com/plexsphere/platctl/internal/units"
)

// DefaultStartupTimeout bounds every readiness wait.
const DefaultStartupTimeout = 300 * time.Second

// DefaultPollInterval is the delay between two readiness checks.
const DefaultPollInterval = time.Second

// DefaultCAHost is queried when no CA host is configured.
const DefaultCAHost = "localhost"

// dialTimeout bounds a single port check.
const dialTimeout = time.Second

// StatusChecker fetches the status string reported by a CA status endpoint.
// *castatus.Client implements it.
type StatusChecker interface {
	Status(ctx context.Context, url string) (string, error)
}

// DialFunc opens a network connection; used to check for open ports.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Deps carries everything a service handle needs. Nothing is read from
// process-wide state; the factory hands the same Deps to every handle.
type Deps struct {
	Controller systemd.Controller
	Resolver   *units.Resolver
	Paths      paths.Paths

	// CAStatus answers CA status queries. Required for the CA services.
	CAStatus StatusChecker

	Clock  clock.Clock
	Logger *slog.Logger

	// StartupTimeout bounds unit activation, port and CA readiness waits.
	// Default: 300s
	StartupTimeout time.Duration

	// PollInterval is the delay between readiness checks.
	// Default: 1s
	PollInterval time.Duration

	// CAHost is the host whose CA status endpoint is polled.
	// Default: localhost
	CAHost string

	// Realm selects the default directory server instance
	// ("EXAMPLE.COM" → "dirsrv@EXAMPLE-COM.service").
	Realm string

	// Ports lists the TCP ports to wait for after a start, keyed by unit,
	// instance name or template prefix. Default: WellKnownPorts().
	Ports map[string][]int

	// TrackServices records started units in Paths.SvcListFile.
	TrackServices bool

	// Dial is used to check for open ports.
	// Default: net.Dialer with a 1s timeout.
	Dial DialFunc
}

// ApplyDefaults sets default values for zero-valued fields.
func (d *Deps) ApplyDefaults() {
	if d.Resolver == nil {
		d.Resolver = units.NewResolver(nil)
	}
	d.Paths.ApplyDefaults()
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.StartupTimeout == 0 {
		d.StartupTimeout = DefaultStartupTimeout
	}
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.CAHost == "" {
		d.CAHost = DefaultCAHost
	}
	if d.Ports == nil {
		d.Ports = WellKnownPorts()
	}
	if d.Dial == nil {
		d.Dial = (&net.Dialer{Timeout: dialTimeout}).DialContext
	}
}

// Validate checks that required fields are set.
func (d *Deps) Validate() error {
	if d.Controller == nil {
		return errors.New("services: deps: Controller is required")
	}
	if d.StartupTimeout < 0 {
		return errors.New("services: deps: StartupTimeout must not be negative")
	}
	if d.PollInterval < 0 {
		return errors.New("services: deps: PollInterval must not be negative")
	}
	return d.Paths.Validate()
}

// WellKnownPorts returns the TCP ports services listen on once they are
// ready to serve.
func WellKnownPorts() map[string][]int {
	return map[string][]int{
		"dirsrv@PKI-IPA.service":         {7389},
		"PKI-IPA":                        {7389},
		"dirsrv":                         {389},
		"pki-cad":                        {9180, 9443},
		"pki-tomcatd@pki-tomcat.service": {8080, 8443},
		"pki-tomcat":                     {8080, 8443},
		"pki-tomcatd":                    {8080, 8443},
	}
}
