package units

import "strings"

// IsTemplate reports whether unit is an uninstantiated template such as
// "dirsrv@.service".
func IsTemplate(unit string) bool {
	prefix, rest, ok := strings.Cut(unit, "@")
	return ok && prefix != "" && (rest == "" || strings.HasPrefix(rest, "."))
}

// IsInstantiated reports whether unit already names a concrete instance,
// e.g. "pki-tomcatd@pki-tomcat.service".
func IsInstantiated(unit string) bool {
	_, rest, ok := strings.Cut(unit, "@")
	return ok && rest != "" && !strings.HasPrefix(rest, ".")
}

// SplitTemplate splits a unit at its "@" into the template prefix and the
// unit-type suffix ("service" when the template has none).
func SplitTemplate(unit string) (prefix, suffix string) {
	prefix, rest, _ := strings.Cut(unit, "@")
	if i := strings.LastIndex(rest, "."); i >= 0 {
		return prefix, rest[i+1:]
	}
	return prefix, "service"
}

// TemplatePrefix returns the part of unit before "@", or the unit without
// its type suffix for plain units.
func TemplatePrefix(unit string) string {
	if prefix, _, ok := strings.Cut(unit, "@"); ok {
		return prefix
	}
	if i := strings.LastIndex(unit, "."); i >= 0 {
		return unit[:i]
	}
	return unit
}

// TargetName returns "<prefix>.target" for a template unit.
func TargetName(unit string) string {
	return TemplatePrefix(unit) + ".target"
}

// WantsDir returns the "<prefix>.target.wants" directory name for unit.
func WantsDir(unit string) string {
	return TemplatePrefix(unit) + ".target.wants"
}

// ServiceInstance returns the concrete unit to address for instance.
// Plain and already-instantiated units are returned unchanged. For a
// template, a non-empty instance is substituted between "@" and the type
// suffix ("dirsrv@.service" + "EXAMPLE" → "dirsrv@EXAMPLE.service"). With no
// instance the grouping target is used when targetExists reports it present,
// otherwise the template itself.
func ServiceInstance(unit, instance string, targetExists func(target string) bool) string {
	if !IsTemplate(unit) {
		return unit
	}
	if instance != "" {
		prefix, suffix := SplitTemplate(unit)
		return prefix + "@" + instance + "." + suffix
	}
	if targetExists != nil {
		if target := TargetName(unit); targetExists(target) {
			return target
		}
	}
	return unit
}
