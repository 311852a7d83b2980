package services

// sshService is sshd, configured under Paths.SSHConfigDir.
type sshService struct {
	*systemdService
}

func (s *sshService) ConfigDir(string) string {
	return s.deps.Paths.SSHConfigDir
}
