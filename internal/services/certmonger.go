package services

import (
	"context"

	"github.com/plexsphere/platctl/internal/systemd"
)

// certmongerUnit names the unit of the certmonger placeholder.
const certmongerUnit = "there-is-no-certmonger"

// certmongerService stands in for certmonger, which the platform does not
// ship. Every operation succeeds without touching the system.
type certmongerService struct {
	name string
}

func (s *certmongerService) Name() string                          { return s.name }
func (s *certmongerService) UnitName() string                      { return certmongerUnit }
func (s *certmongerService) ServiceInstance(string) string         { return certmongerUnit }
func (s *certmongerService) ConfigDir(string) string               { return "" }
func (s *certmongerService) UserName() string                      { return "" }
func (s *certmongerService) GroupName() string                     { return "" }
func (s *certmongerService) BinaryPath() string                    { return "" }
func (s *certmongerService) PackageName() string                   { return "" }
func (s *certmongerService) Enable(context.Context, string) error  { return nil }
func (s *certmongerService) Disable(context.Context, string) error { return nil }
func (s *certmongerService) Mask(context.Context, string) error    { return nil }
func (s *certmongerService) Unmask(context.Context, string) error  { return nil }

func (s *certmongerService) Start(context.Context, string, ...Option) error           { return nil }
func (s *certmongerService) Stop(context.Context, string, ...Option) error            { return nil }
func (s *certmongerService) Restart(context.Context, string, ...Option) error         { return nil }
func (s *certmongerService) ReloadOrRestart(context.Context, string, ...Option) error { return nil }

func (s *certmongerService) IsRunning(context.Context, string) (bool, error) { return false, nil }
func (s *certmongerService) IsEnabled(context.Context, string) (bool, error) { return false, nil }
func (s *certmongerService) IsMasked(context.Context, string) (bool, error)  { return false, nil }
func (s *certmongerService) IsInstalled(context.Context) (bool, error)       { return false, nil }

func (s *certmongerService) Status(context.Context, string) (systemd.UnitStatus, error) {
	return systemd.UnitStatus{
		Unit:        certmongerUnit,
		LoadState:   "not-found",
		ActiveState: systemd.StateInactive,
		SubState:    "dead",
	}, nil
}
