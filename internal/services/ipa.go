package services

import "context"

// ipaService is the "ipa" umbrella service. Enabling it does not start the
// services it groups, so Enable restarts it straight away.
type ipaService struct {
	*systemdService
}

func (s *ipaService) Enable(ctx context.Context, instance string) error {
	if err := s.systemdService.Enable(ctx, instance); err != nil {
		return err
	}
	return s.Restart(ctx, instance)
}
