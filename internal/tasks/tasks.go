// Package tasks implements one-off host configuration steps run by the
// installers: hostname changes, the system-wide CA trust store, system
// users and container detection.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"strconv"
	"strings"

	"github.com/plexsphere/platctl/internal/paths"
	"github.com/plexsphere/platctl/internal/runner"
)

// FileStore backs up host files before they are modified.
// *sysrestore.FileStore implements it.
type FileStore interface {
	BackupFile(path string) error
	HasFile(path string) (bool, error)
	RestoreFile(path, newPath string) error
}

// StateStore records host settings changed by a task.
// *sysrestore.StateStore implements it.
type StateStore interface {
	BackupState(module, key, value string) error
	GetState(module, key string) (string, error)
}

// Tasks runs host configuration tasks.
type Tasks struct {
	paths  paths.Paths
	run    runner.Runner
	logger *slog.Logger

	lookupUser  func(name string) error
	lookupGroup func(name string) error
	hostname    func() (string, error)
	isRoot      func() bool
}

// New returns a Tasks operating on the locations in p.
func New(p paths.Paths, run runner.Runner, logger *slog.Logger) *Tasks {
	p.ApplyDefaults()
	return &Tasks{
		paths:  p,
		run:    run,
		logger: logger.With("component", "tasks"),
		lookupUser: func(name string) error {
			_, err := user.Lookup(name)
			return err
		},
		lookupGroup: func(name string) error {
			_, err := user.LookupGroup(name)
			return err
		},
		hostname: kernelHostname,
		isRoot:   isRoot,
	}
}

// RestoreContext would restore the SELinux context of path. The platform
// does not use SELinux.
func (t *Tasks) RestoreContext(string) error { return nil }

// CheckSELinuxStatus always succeeds; the platform does not use SELinux.
func (t *Tasks) CheckSELinuxStatus() error { return nil }

// SetSELinuxBooleans changes nothing and reports false.
func (t *Tasks) SetSELinuxBooleans(map[string]string) (bool, error) { return false, nil }

// SetNISDomain is not supported on this platform.
func (t *Tasks) SetNISDomain(domain string) error {
	t.logger.Warn("set NIS domain is not supported on this platform", "domain", domain)
	return nil
}

// ModifyNSSwitchPAMStack is not supported on this platform.
func (t *Tasks) ModifyNSSwitchPAMStack(sssd, mkhomedir bool, _ StateStore) error {
	t.logger.Warn("nsswitch and PAM configuration is not supported on this platform",
		"sssd", sssd, "mkhomedir", mkhomedir)
	return nil
}

// ModifyPAMToUseKrb5 is not supported on this platform.
func (t *Tasks) ModifyPAMToUseKrb5(StateStore) error {
	t.logger.Warn("PAM krb5 configuration is not supported on this platform")
	return nil
}

// RestorePreIPAClientConfiguration is not supported on this platform.
func (t *Tasks) RestorePreIPAClientConfiguration(_ FileStore, _ StateStore, wasSSSDInstalled, wasSSSDConfigured bool) error {
	t.logger.Warn("restoring the pre-install client configuration is not supported on this platform",
		"sssd_installed", wasSSSDInstalled, "sssd_configured", wasSSSDConfigured)
	return nil
}

// DetectContainer returns the container technology the host runs in, or
// "" when it is not in a container.
func (t *Tasks) DetectContainer(ctx context.Context) (string, error) {
	res, err := t.run.Run(ctx, []string{t.paths.SystemdDetectVirt, "--container"}, runner.AllowFailure())
	if err != nil {
		return "", fmt.Errorf("tasks: detect container: %w", err)
	}
	switch res.ExitCode {
	case 0:
		return strings.TrimSpace(res.Stdout), nil
	case 1:
		return "", nil
	default:
		return "", fmt.Errorf("tasks: detect container: %s exited with status %d", t.paths.SystemdDetectVirt, res.ExitCode)
	}
}

// SystemUser describes a system account.
type SystemUser struct {
	Name    string
	Group   string
	HomeDir string
	Shell   string
	// UID and GID are left to useradd/groupadd when zero.
	UID     int
	GID     int
	Comment string
	// CreateHome creates HomeDir.
	CreateHome bool
}

// withDefaults fills the platform's fixed ids and comments for the CA and
// directory server users.
func (u SystemUser) withDefaults() SystemUser {
	switch u.Name {
	case "pkiuser":
		if u.UID == 0 {
			u.UID = 29
		}
		if u.GID == 0 {
			u.GID = 29
		}
		if u.Comment == "" {
			u.Comment = "CA System User"
		}
	case "dirsrv":
		if u.Comment == "" {
			u.Comment = "DS System User"
		}
	}
	return u
}

// CreateSystemUser creates the group and user of u unless they exist.
func (t *Tasks) CreateSystemUser(ctx context.Context, u SystemUser) error {
	if u.Name == "" || u.Group == "" {
		return errors.New("tasks: create system user: name and group are required")
	}
	u = u.withDefaults()

	if err := t.lookupGroup(u.Group); err == nil {
		t.logger.Debug("group already exists", "group", u.Group)
	} else {
		args := []string{t.paths.GroupAdd, "-r"}
		if u.GID != 0 {
			args = append(args, "-g", strconv.Itoa(u.GID))
		}
		args = append(args, u.Group)
		if _, err := t.run.Run(ctx, args); err != nil {
			return fmt.Errorf("tasks: create group %s: %w", u.Group, err)
		}
	}

	if err := t.lookupUser(u.Name); err == nil {
		t.logger.Debug("user already exists", "user", u.Name)
		return nil
	}
	args := []string{t.paths.UserAdd, "-g", u.Group, "-d", u.HomeDir, "-s", u.Shell, "-r"}
	if u.UID != 0 {
		args = append(args, "-u", strconv.Itoa(u.UID))
	}
	if u.Comment != "" {
		args = append(args, "-c", u.Comment)
	}
	if u.CreateHome {
		args = append(args, "-m")
	} else {
		args = append(args, "-M")
	}
	args = append(args, u.Name)
	if _, err := t.run.Run(ctx, args); err != nil {
		return fmt.Errorf("tasks: create user %s: %w", u.Name, err)
	}
	t.logger.Info("system user created", "user", u.Name, "group", u.Group)
	return nil
}
