// Package units maps logical service names onto systemd unit names.
package units

import "strings"

// ServiceSuffix is the unit-type suffix appended to names that carry none.
const ServiceSuffix = ".service"

// DefaultUnits returns the openSUSE unit table. Only names whose unit does
// not follow the "<name>.service" convention are listed.
func DefaultUnits() map[string]string {
	return map[string]string{
		"httpd":           "apache2.service",
		"messagebus":      "dbus.service",
		"dirsrv":          "dirsrv@.service",
		"pkids":           "dirsrv@PKI-IPA.service",
		"pki-cad":         "pki-cad@pki-ca.service",
		"pki-tomcatd":     "pki-tomcatd@pki-tomcat.service",
		"ipa-otpd":        "ipa-otpd.socket",
		"ipa-dnskeysyncd": "ipa-dnskeysyncd.service",
		"named":           "named.service",
		"named-regular":   "named.service",
		"named-pkcs11":    "named.service",
		"ods-enforcerd":   "ods-enforcerd.service",
		"ods-signerd":     "ods-signerd.service",
	}
}

// Canonical normalizes a logical name for table lookups. Underscores and
// dashes are interchangeable, so "pki_cad" and "pki-cad" share one entry.
func Canonical(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Resolver resolves logical service names to unit names. The table is
// fixed at construction and safe for concurrent use.
type Resolver struct {
	table map[string]string
}

// NewResolver returns a Resolver over DefaultUnits with overrides applied
// on top. Override keys are canonicalized like lookups are.
func NewResolver(overrides map[string]string) *Resolver {
	table := make(map[string]string)
	for name, unit := range DefaultUnits() {
		table[Canonical(name)] = unit
	}
	for name, unit := range overrides {
		if unit == "" {
			continue
		}
		table[Canonical(name)] = unit
	}
	return &Resolver{table: table}
}

// Resolve returns the unit name for a logical service name. It never fails:
// unknown names that already carry a unit-type suffix are returned as-is,
// anything else gets ".service" appended.
func (r *Resolver) Resolve(name string) string {
	if unit, ok := r.table[Canonical(name)]; ok {
		return unit
	}
	if strings.Contains(name, ".") {
		return name
	}
	return name + ServiceSuffix
}

// Known reports whether name has an explicit table entry.
func (r *Resolver) Known(name string) bool {
	_, ok := r.table[Canonical(name)]
	return ok
}
