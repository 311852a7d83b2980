package services

import (
	"strings"

	"github.com/plexsphere/platctl/internal/units"
)

// Factory builds service handles. It holds no mutable state besides the
// shared service list, so Make is safe for concurrent use.
type Factory struct {
	deps *Deps
	list *serviceList
}

// NewFactory returns a Factory whose handles use deps.
func NewFactory(deps Deps) (*Factory, error) {
	deps.ApplyDefaults()
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &Factory{
		deps: &deps,
		list: newServiceList(deps.Paths.SvcListFile),
	}, nil
}

// Make returns a fresh handle for name. Names are matched after
// canonicalization, so "pki_tomcatd" and "pki-tomcatd" get the same
// variant. A name that cannot be a unit name yields *UnknownServiceError.
func (f *Factory) Make(name string) (Service, error) {
	if !validName(name) {
		return nil, &UnknownServiceError{Name: name}
	}
	canonical := units.Canonical(name)
	if canonical == "certmonger" {
		return &certmongerService{name: name}, nil
	}

	base := newSystemdService(name, f.deps, f.list)
	switch canonical {
	case "dirsrv":
		if f.deps.Realm != "" {
			base.defaultInstance = strings.ReplaceAll(f.deps.Realm, ".", "-")
		}
		return &directoryService{base}, nil
	case "ipa":
		return &ipaService{base}, nil
	case "sshd":
		return &sshService{base}, nil
	case "pki-cad", "pki-tomcatd":
		return &caService{base}, nil
	case "named":
		return &namedService{base}, nil
	case "ods-enforcerd":
		return &odsEnforcerService{base}, nil
	}
	return base, nil
}

// TrackedUnits returns the units recorded in the service list file, in
// start order.
func (f *Factory) TrackedUnits() ([]string, error) {
	return f.list.Units()
}

// validName accepts what systemd accepts in a unit name.
func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(":-_.@\\", r):
		default:
			return false
		}
	}
	return true
}
