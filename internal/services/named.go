package services

// namedService is the DNS server. The platform ships a single named binary
// in the "bind" package, also used for PKCS#11 setups.
type namedService struct {
	*systemdService
}

func (s *namedService) UserName() string    { return "named" }
func (s *namedService) GroupName() string   { return "named" }
func (s *namedService) BinaryPath() string  { return s.deps.Paths.NamedPKCS11 }
func (s *namedService) PackageName() string { return "bind" }

// odsEnforcerService is the OpenDNSSEC key enforcer, run as "ods".
type odsEnforcerService struct {
	*systemdService
}

func (s *odsEnforcerService) UserName() string  { return "ods" }
func (s *odsEnforcerService) GroupName() string { return "ods" }
