package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/plexsphere/platctl/internal/fsutil"
)

// directoryService is the directory server. Before an instance is
// restarted its activation link is pointed at the unit override in
// /etc/systemd/system, enabling the instance first if there is no override.
type directoryService struct {
	*systemdService
}

func (s *directoryService) Restart(ctx context.Context, instance string, opts ...Option) error {
	if s.linksInstance(instance) {
		if err := s.repairInstanceLink(ctx, instance); err != nil {
			return err
		}
	}
	return s.systemdService.Restart(ctx, instance, opts...)
}

func (s *directoryService) repairInstanceLink(ctx context.Context, instance string) error {
	override := filepath.Join(s.deps.Paths.EtcSystemdSystemDir, s.unit)
	link := s.wantsLink(instance)
	wants := filepath.Dir(link)

	if _, err := os.Stat(override); errors.Is(err, fs.ErrNotExist) {
		return s.Enable(ctx, instance)
	} else if err != nil {
		return fmt.Errorf("services: restart %s: %w", s.name, err)
	}

	same, err := fsutil.SameFile(override, link)
	if err != nil {
		return fmt.Errorf("services: restart %s: %w", s.name, err)
	}
	if same {
		return nil
	}
	if err := os.MkdirAll(wants, 0o755); err != nil {
		return fmt.Errorf("services: restart %s: %w", s.name, err)
	}
	if err := fsutil.ReplaceSymlink(override, link); err != nil {
		return fmt.Errorf("services: restart %s: relink %s: %w", s.name, link, err)
	}
	s.logger.Info("instance link repaired", "link", link, "target", override)
	return nil
}
