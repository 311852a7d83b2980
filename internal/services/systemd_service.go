package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/plexsphere/platctl/internal/fsutil"
	"github.com/plexsphere/platctl/internal/systemd"
	"github.com/plexsphere/platctl/internal/units"
)

// systemdService is the default handle: every operation maps onto one
// systemd job for the resolved unit.
type systemdService struct {
	name            string
	unit            string
	defaultInstance string

	deps   *Deps
	list   *serviceList
	logger *slog.Logger
}

func newSystemdService(name string, deps *Deps, list *serviceList) *systemdService {
	unit := deps.Resolver.Resolve(name)
	return &systemdService{
		name:   name,
		unit:   unit,
		deps:   deps,
		list:   list,
		logger: deps.Logger.With("component", "services", "service", name, "unit", unit),
	}
}

func (s *systemdService) Name() string     { return s.name }
func (s *systemdService) UnitName() string { return s.unit }

// ServiceInstance substitutes instance into a template unit. With no
// instance the configured default instance is used, then the template's
// grouping target when one is installed.
func (s *systemdService) ServiceInstance(instance string) string {
	return units.ServiceInstance(s.unit, s.instanceName(instance), func(target string) bool {
		_, err := os.Stat(filepath.Join(s.deps.Paths.EtcSystemdSystemDir, target))
		return err == nil
	})
}

// instanceName returns instance, or the configured default instance when
// instance is empty.
func (s *systemdService) instanceName(instance string) string {
	if instance == "" {
		return s.defaultInstance
	}
	return instance
}

// linksInstance reports whether boot-time activation of instance is managed
// through a link in the template's target wants directory.
func (s *systemdService) linksInstance(instance string) bool {
	return s.instanceName(instance) != "" && units.IsTemplate(s.unit)
}

// wantsLink returns the wants directory link that enables instance.
func (s *systemdService) wantsLink(instance string) string {
	return filepath.Join(s.deps.Paths.EtcSystemdSystemDir, units.WantsDir(s.unit), s.ServiceInstance(instance))
}

func (s *systemdService) Start(ctx context.Context, instance string, opts ...Option) error {
	o := applyOptions(opts)
	unit := s.ServiceInstance(instance)
	s.logger.Debug("starting", "instance", unit)
	if err := s.deps.Controller.Start(ctx, unit, o.capture); err != nil {
		return &StartError{Service: s.name, Unit: unit, Err: err}
	}
	if o.wait {
		if err := s.waitReady(ctx, unit); err != nil {
			return err
		}
	}
	if o.serviceList {
		s.track(unit)
	}
	return nil
}

func (s *systemdService) Stop(ctx context.Context, instance string, opts ...Option) error {
	o := applyOptions(opts)
	unit := s.ServiceInstance(instance)
	s.logger.Debug("stopping", "instance", unit)
	if err := s.deps.Controller.Stop(ctx, unit, o.capture); err != nil {
		return fmt.Errorf("services: stop %s: %w", s.name, err)
	}
	if o.serviceList {
		s.untrack(unit)
	}
	return nil
}

func (s *systemdService) Restart(ctx context.Context, instance string, opts ...Option) error {
	o := applyOptions(opts)
	unit := s.ServiceInstance(instance)
	s.logger.Debug("restarting", "instance", unit)
	if err := s.deps.Controller.Restart(ctx, unit, o.capture); err != nil {
		return &StartError{Service: s.name, Unit: unit, Err: err}
	}
	if o.wait {
		return s.waitReady(ctx, unit)
	}
	return nil
}

func (s *systemdService) ReloadOrRestart(ctx context.Context, instance string, opts ...Option) error {
	o := applyOptions(opts)
	unit := s.ServiceInstance(instance)
	if err := s.deps.Controller.ReloadOrRestart(ctx, unit, o.capture); err != nil {
		return &StartError{Service: s.name, Unit: unit, Err: err}
	}
	if o.wait {
		return s.waitReady(ctx, unit)
	}
	return nil
}

// Enable turns on boot-time activation. An instance of a template unit,
// including the default instance, is linked into the template's target
// wants directory by hand, since the packaged template carries no [Install]
// section for its instances.
func (s *systemdService) Enable(ctx context.Context, instance string) error {
	if s.linksInstance(instance) {
		return s.enableInstance(ctx, instance)
	}
	if err := s.deps.Controller.Enable(ctx, s.ServiceInstance(instance)); err != nil {
		return fmt.Errorf("services: enable %s: %w", s.name, err)
	}
	return nil
}

func (s *systemdService) enableInstance(ctx context.Context, instance string) error {
	link := s.wantsLink(instance)
	wants := filepath.Dir(link)
	target := filepath.Join(s.deps.Paths.LibSystemdSystemDir, s.unit)

	if err := os.MkdirAll(wants, 0o755); err != nil {
		return fmt.Errorf("services: enable %s: %w", s.name, err)
	}
	if err := fsutil.ReplaceSymlink(target, link); err != nil {
		return fmt.Errorf("services: enable %s: link %s: %w", s.name, link, err)
	}
	s.logger.Info("instance enabled", "link", link, "target", target)
	if err := s.deps.Controller.DaemonReload(ctx); err != nil {
		return fmt.Errorf("services: enable %s: %w", s.name, err)
	}
	return nil
}

func (s *systemdService) Disable(ctx context.Context, instance string) error {
	if s.linksInstance(instance) {
		link := s.wantsLink(instance)
		if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("services: disable %s: %w", s.name, err)
		}
		if err := s.deps.Controller.DaemonReload(ctx); err != nil {
			return fmt.Errorf("services: disable %s: %w", s.name, err)
		}
		return nil
	}
	if err := s.deps.Controller.Disable(ctx, s.ServiceInstance(instance)); err != nil {
		return fmt.Errorf("services: disable %s: %w", s.name, err)
	}
	return nil
}

func (s *systemdService) Mask(ctx context.Context, instance string) error {
	if err := s.deps.Controller.Mask(ctx, s.ServiceInstance(instance)); err != nil {
		return fmt.Errorf("services: mask %s: %w", s.name, err)
	}
	return nil
}

func (s *systemdService) Unmask(ctx context.Context, instance string) error {
	if err := s.deps.Controller.Unmask(ctx, s.ServiceInstance(instance)); err != nil {
		return fmt.Errorf("services: unmask %s: %w", s.name, err)
	}
	return nil
}

func (s *systemdService) IsRunning(ctx context.Context, instance string) (bool, error) {
	return s.isRunning(ctx, s.ServiceInstance(instance))
}

// isRunning polls the unit's state while it is activating, reloading or
// deactivating.
func (s *systemdService) isRunning(ctx context.Context, unit string) (bool, error) {
	var state string
	err := poll(ctx, s.deps.Clock, s.deps.PollInterval, s.deps.StartupTimeout,
		func(ctx context.Context) (bool, error) {
			var err error
			state, err = s.deps.Controller.ActiveState(ctx, unit)
			if err != nil {
				return false, err
			}
			return !systemd.Transitional(state), nil
		},
		func(int) { s.logger.Debug("waiting for unit to settle", "instance", unit, "state", state) })
	if errors.Is(err, errDeadline) {
		return false, &TimeoutError{Service: s.name, Unit: unit, Op: "wait for", Timeout: s.deps.StartupTimeout}
	}
	if err != nil {
		return false, fmt.Errorf("services: is-active %s: %w", unit, err)
	}
	return state == systemd.StateActive, nil
}

func (s *systemdService) IsEnabled(ctx context.Context, instance string) (bool, error) {
	if s.linksInstance(instance) {
		if _, err := os.Lstat(s.wantsLink(instance)); err == nil {
			return true, nil
		}
	}
	enabled, err := s.deps.Controller.IsEnabled(ctx, s.ServiceInstance(instance))
	if err != nil {
		return false, fmt.Errorf("services: is-enabled %s: %w", s.name, err)
	}
	return enabled, nil
}

func (s *systemdService) IsMasked(ctx context.Context, instance string) (bool, error) {
	masked, err := s.deps.Controller.IsMasked(ctx, s.ServiceInstance(instance))
	if err != nil {
		return false, fmt.Errorf("services: is-masked %s: %w", s.name, err)
	}
	return masked, nil
}

func (s *systemdService) IsInstalled(ctx context.Context) (bool, error) {
	installed, err := s.deps.Controller.IsInstalled(ctx, s.unit)
	if err != nil {
		return false, fmt.Errorf("services: list-unit-files %s: %w", s.name, err)
	}
	return installed, nil
}

func (s *systemdService) Status(ctx context.Context, instance string) (systemd.UnitStatus, error) {
	st, err := s.deps.Controller.Show(ctx, s.ServiceInstance(instance))
	if err != nil {
		return st, fmt.Errorf("services: status %s: %w", s.name, err)
	}
	return st, nil
}

// ConfigDir returns the unit's drop-in directory.
func (s *systemdService) ConfigDir(instance string) string {
	return filepath.Join(s.deps.Paths.EtcSystemdSystemDir, s.ServiceInstance(instance)+".d")
}

func (s *systemdService) UserName() string    { return "" }
func (s *systemdService) GroupName() string   { return "" }
func (s *systemdService) BinaryPath() string  { return "" }
func (s *systemdService) PackageName() string { return "" }

// waitReady waits for unit to leave the activating state and, if it came
// up, for its well-known ports to accept connections. A unit that settled
// in any state other than active is left for the caller to inspect.
func (s *systemdService) waitReady(ctx context.Context, unit string) error {
	running, err := s.isRunning(ctx, unit)
	if err != nil {
		return err
	}
	if !running {
		s.logger.Warn("unit is not running after start", "instance", unit)
		return nil
	}
	return s.waitForOpenPorts(ctx, unit)
}

// portsFor looks up the ports of unit by its full name, its instance name
// and finally its template prefix.
func (s *systemdService) portsFor(unit string) []int {
	if ports, ok := s.deps.Ports[unit]; ok {
		return ports
	}
	if _, rest, ok := strings.Cut(unit, "@"); ok {
		inst := strings.TrimSuffix(rest, filepath.Ext(rest))
		if ports, ok := s.deps.Ports[inst]; ok {
			return ports
		}
	}
	return s.deps.Ports[units.TemplatePrefix(s.unit)]
}

func (s *systemdService) waitForOpenPorts(ctx context.Context, unit string) error {
	ports := s.portsFor(unit)
	if len(ports) == 0 {
		return nil
	}
	s.logger.Debug("waiting for open ports", "instance", unit, "ports", ports)
	pending := slices.Clone(ports)
	err := poll(ctx, s.deps.Clock, s.deps.PollInterval, s.deps.StartupTimeout,
		func(ctx context.Context) (bool, error) {
			remaining := pending[:0]
			for _, port := range pending {
				conn, err := s.deps.Dial(ctx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
				if err != nil {
					remaining = append(remaining, port)
					continue
				}
				conn.Close()
			}
			pending = remaining
			return len(pending) == 0, nil
		}, nil)
	if errors.Is(err, errDeadline) {
		return &TimeoutError{Service: s.name, Unit: unit, Op: "wait for ports of", Timeout: s.deps.StartupTimeout}
	}
	if err != nil {
		return fmt.Errorf("services: wait for ports of %s: %w", unit, err)
	}
	return nil
}

func (s *systemdService) track(unit string) {
	if !s.deps.TrackServices || s.list == nil {
		return
	}
	if err := s.list.Add(unit); err != nil {
		s.logger.Warn("failed to record started service", "error", err)
	}
}

func (s *systemdService) untrack(unit string) {
	if !s.deps.TrackServices || s.list == nil {
		return
	}
	if err := s.list.Remove(unit); err != nil {
		s.logger.Warn("failed to remove stopped service from list", "error", err)
	}
}
