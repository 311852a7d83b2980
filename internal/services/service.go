// Package services manages platform daemons through the init system.
//
// A Service is a handle on one logical service ("dirsrv", "httpd",
// "pki-tomcatd"). The Factory builds the right handle for a name: most
// names get the plain systemd handle, a few get a variant that wraps it and
// overrides individual operations (symlink repair before restart, CA
// readiness polling, fixed package identity, or no-ops for a daemon the
// platform does not ship). KnownServices holds one handle per well-known
// name for the life of the process.
package services

import (
	"context"

	"github.com/plexsphere/platctl/internal/systemd"
)

// Service is a handle on one logical service. The instance argument selects
// an instance of a templated unit; "" addresses the default instance.
type Service interface {
	// Name returns the logical service name.
	Name() string
	// UnitName returns the resolved unit name (possibly a template).
	UnitName() string
	// ServiceInstance returns the concrete unit addressed for instance.
	ServiceInstance(instance string) string

	Start(ctx context.Context, instance string, opts ...Option) error
	Stop(ctx context.Context, instance string, opts ...Option) error
	Restart(ctx context.Context, instance string, opts ...Option) error
	ReloadOrRestart(ctx context.Context, instance string, opts ...Option) error

	Enable(ctx context.Context, instance string) error
	Disable(ctx context.Context, instance string) error
	Mask(ctx context.Context, instance string) error
	Unmask(ctx context.Context, instance string) error

	// IsRunning reports whether the unit is active, waiting while it is
	// still activating.
	IsRunning(ctx context.Context, instance string) (bool, error)
	IsEnabled(ctx context.Context, instance string) (bool, error)
	// IsMasked reports whether the unit file is masked.
	IsMasked(ctx context.Context, instance string) (bool, error)
	IsInstalled(ctx context.Context) (bool, error)
	Status(ctx context.Context, instance string) (systemd.UnitStatus, error)

	// ConfigDir returns the directory holding the service's configuration.
	ConfigDir(instance string) string
	// UserName, GroupName, BinaryPath and PackageName describe how the
	// platform packages the service. Empty means unknown.
	UserName() string
	GroupName() string
	BinaryPath() string
	PackageName() string
}

type options struct {
	wait        bool
	capture     bool
	serviceList bool
}

// Option adjusts a single lifecycle call.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{wait: true, capture: true, serviceList: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NoWait returns as soon as the init system accepted the request, without
// waiting for the service to become ready.
func NoWait() Option {
	return func(o *options) { o.wait = false }
}

// NoCapture passes the control program's output through to the terminal.
func NoCapture() Option {
	return func(o *options) { o.capture = false }
}

// NoServiceList leaves the service list file untouched.
func NoServiceList() Option {
	return func(o *options) { o.serviceList = false }
}

// WithStopped runs fn with svc stopped. If the service was running it is
// started again afterwards, also when fn fails.
func WithStopped(ctx context.Context, svc Service, instance string, fn func() error) (err error) {
	running, err := svc.IsRunning(ctx, instance)
	if err != nil {
		return err
	}
	if !running {
		return fn()
	}
	if err := svc.Stop(ctx, instance); err != nil {
		return err
	}
	defer func() {
		if startErr := svc.Start(ctx, instance); startErr != nil && err == nil {
			err = startErr
		}
	}()
	return fn()
}
