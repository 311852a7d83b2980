package services

import (
	"context"
	"fmt"

	"github.com/plexsphere/platctl/internal/units"
)

// wellKnownServices are the services every server manages. Names are
// canonical.
var wellKnownServices = []string{
	"certmonger", "dirsrv", "httpd", "ipa", "krb5kdc",
	"messagebus", "nslcd", "nscd", "ntpd", "portmap",
	"rpcbind", "kadmin", "sshd", "autofs", "rpcgssd",
	"rpcidmapd", "pki-tomcatd", "chronyd", "domainname",
	"named", "ods-enforcerd", "ods-signerd", "gssproxy",
	"ipa-otpd", "ipa-dnskeysyncd", "ipa-ods-exporter", "sssd",
}

// TimeDateServices are the time synchronization services that conflict
// with the one configured by the installer.
var TimeDateServices = []string{"ntpd"}

// WellKnownNames returns the well-known service names in registration order.
func WellKnownNames() []string {
	return append([]string(nil), wellKnownServices...)
}

// KnownServices holds one handle per well-known service. It is built once
// per process and never modified, so concurrent lookups are safe.
type KnownServices struct {
	factory  *Factory
	names    []string
	services map[string]Service
}

// NewKnownServices builds a handle for every well-known service.
func NewKnownServices(factory *Factory) (*KnownServices, error) {
	k := &KnownServices{
		factory:  factory,
		names:    WellKnownNames(),
		services: make(map[string]Service, len(wellKnownServices)),
	}
	for _, name := range k.names {
		svc, err := factory.Make(name)
		if err != nil {
			return nil, fmt.Errorf("services: register %s: %w", name, err)
		}
		k.services[name] = svc
	}
	return k, nil
}

// Get returns the handle for name. Well-known services come from the
// registry; any other name gets a fresh, uncached handle from the factory.
func (k *KnownServices) Get(name string) (Service, error) {
	if svc, ok := k.Lookup(name); ok {
		return svc, nil
	}
	return k.factory.Make(name)
}

// Lookup returns the registered handle for a well-known name.
func (k *KnownServices) Lookup(name string) (Service, bool) {
	svc, ok := k.services[units.Canonical(name)]
	return svc, ok
}

// Names returns the well-known service names in registration order.
func (k *KnownServices) Names() []string {
	return append([]string(nil), k.names...)
}

// All returns the registered handles in registration order.
func (k *KnownServices) All() []Service {
	all := make([]Service, 0, len(k.names))
	for _, name := range k.names {
		all = append(all, k.services[name])
	}
	return all
}

// DisableTimeDateServices stops and disables each installed service in
// TimeDateServices that is running or enabled, so it cannot fight the
// time synchronization daemon the installer configures. It returns the
// names it changed.
func (k *KnownServices) DisableTimeDateServices(ctx context.Context) ([]string, error) {
	var changed []string
	for _, name := range TimeDateServices {
		svc, err := k.Get(name)
		if err != nil {
			return changed, err
		}
		installed, err := svc.IsInstalled(ctx)
		if err != nil {
			return changed, err
		}
		if !installed {
			continue
		}
		running, err := svc.IsRunning(ctx, "")
		if err != nil {
			return changed, err
		}
		enabled, err := svc.IsEnabled(ctx, "")
		if err != nil {
			return changed, err
		}
		if running {
			if err := svc.Stop(ctx, ""); err != nil {
				return changed, err
			}
		}
		if enabled {
			if err := svc.Disable(ctx, ""); err != nil {
				return changed, err
			}
		}
		if running || enabled {
			changed = append(changed, name)
		}
	}
	return changed, nil
}
